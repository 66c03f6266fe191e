// Package storetest holds the behavioural test suite shared by every
// core.Store implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tutormesh/core"
)

// Run exercises newStore against the core.Store contract. newStore must
// return an empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) core.Store) {
	t.Helper()

	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("CreateSessionIsIdempotent", func(t *testing.T) { testCreateSessionIdempotent(t, newStore(t)) })
	t.Run("ConversationPerAgent", func(t *testing.T) { testConversationPerAgent(t, newStore(t)) })
	t.Run("AppendAndList", func(t *testing.T) { testAppendAndList(t, newStore(t)) })
	t.Run("AppendMessagesIsAtomic", func(t *testing.T) { testAppendMessagesAtomic(t, newStore(t)) })
	t.Run("ListMessagesLimit", func(t *testing.T) { testListMessagesLimit(t, newStore(t)) })
	t.Run("ClearConversation", func(t *testing.T) { testClearConversation(t, newStore(t)) })
	t.Run("ReturnsCopies", func(t *testing.T) { testReturnsCopies(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
}

func mustSession(t *testing.T, s core.Store, userID string) *core.Session {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), core.NewSession(userID))
	require.NoError(t, err)
	return sess
}

func mustConversation(t *testing.T, s core.Store, sessionID, agentID string) *core.Conversation {
	t.Helper()
	c, err := s.CreateConversation(context.Background(), core.NewConversation(sessionID, agentID))
	require.NoError(t, err)
	return c
}

func message(convID string, role core.Role, content string, at time.Time) *core.Message {
	return &core.Message{
		ID:             core.NewID(),
		ConversationID: convID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}
}

func testSessionLifecycle(t *testing.T, s core.Store) {
	ctx := context.Background()

	_, err := s.GetSession(ctx, "user-1")
	require.ErrorIs(t, err, core.ErrSessionNotFound)
	require.ErrorIs(t, err, core.ErrNotFound)

	sess := mustSession(t, s, "user-1")
	assert.Equal(t, core.ModeManual, sess.Mode)

	sess.Mode = core.ModeRouter
	sess.ActiveAgentID = "agent-1"
	sess.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.UpdateSession(ctx, sess))

	got, err := s.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, core.ModeRouter, got.Mode)
	assert.Equal(t, "agent-1", got.ActiveAgentID)

	byID, err := s.GetSessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", byID.UserID)

	_, err = s.GetSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	err = s.UpdateSession(ctx, core.NewSession("ghost"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func testCreateSessionIdempotent(t *testing.T, s core.Store) {
	first := mustSession(t, s, "user-1")
	second := mustSession(t, s, "user-1")
	assert.Equal(t, first.ID, second.ID)
}

func testConversationPerAgent(t *testing.T, s core.Store) {
	ctx := context.Background()
	sess := mustSession(t, s, "user-1")

	_, err := s.GetConversation(ctx, sess.ID, "agent-1")
	require.ErrorIs(t, err, core.ErrConversationNotFound)

	a := mustConversation(t, s, sess.ID, "agent-1")
	again := mustConversation(t, s, sess.ID, "agent-1")
	b := mustConversation(t, s, sess.ID, "agent-2")

	assert.Equal(t, a.ID, again.ID)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := s.GetConversation(ctx, sess.ID, "agent-2")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	byID, err := s.GetConversationByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", byID.AgentID)

	list, err := s.ListConversations(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.GetConversationByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
}

func testAppendAndList(t *testing.T, s core.Store) {
	ctx := context.Background()
	sess := mustSession(t, s, "user-1")
	conv := mustConversation(t, s, sess.ID, "agent-1")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	temp := 0.4
	reply := message(conv.ID, core.RoleAssistant, "hello student", base.Add(time.Second))
	reply.AgentID = "agent-1"
	reply.Provider = "mock"
	reply.Model = "mock-model"
	reply.ResponseTime = 1500 * time.Millisecond
	reply.Temperature = &temp
	reply.SynthesizedFrom = `[{"agent_id":"agent-1"}]`

	require.NoError(t, s.AppendMessage(ctx, message(conv.ID, core.RoleUser, "hi", base)))
	require.NoError(t, s.AppendMessage(ctx, reply))

	msgs, err := s.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello student", msgs[1].Content)
	assert.Equal(t, "mock-model", msgs[1].Model)
	assert.Equal(t, 1500*time.Millisecond, msgs[1].ResponseTime)
	require.NotNil(t, msgs[1].Temperature)
	assert.InDelta(t, 0.4, *msgs[1].Temperature, 1e-9)
	assert.Equal(t, reply.SynthesizedFrom, msgs[1].SynthesizedFrom)

	got, err := s.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(base.Add(time.Second)))

	err = s.AppendMessage(ctx, message("missing", core.RoleUser, "x", base))
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
}

func testAppendMessagesAtomic(t *testing.T, s core.Store) {
	ctx := context.Background()
	sess := mustSession(t, s, "user-1")
	conv := mustConversation(t, s, sess.ID, "agent-1")
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := s.AppendMessages(ctx,
		message(conv.ID, core.RoleUser, "question", base),
		message("missing", core.RoleAssistant, "answer", base.Add(time.Second)),
	)
	require.ErrorIs(t, err, core.ErrConversationNotFound)

	msgs, err := s.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	got, err := s.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MessageCount)
	assert.Nil(t, got.LastMessageAt)

	require.NoError(t, s.AppendMessages(ctx,
		message(conv.ID, core.RoleUser, "question", base),
		message(conv.ID, core.RoleAssistant, "answer", base.Add(time.Second)),
	))
	got, err = s.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
}

func testListMessagesLimit(t *testing.T, s core.Store) {
	ctx := context.Background()
	sess := mustSession(t, s, "user-1")
	conv := mustConversation(t, s, sess.ID, "agent-1")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 60 {
		require.NoError(t, s.AppendMessage(ctx, message(conv.ID, core.RoleUser, fmt.Sprintf("m%02d", i), base.Add(time.Duration(i)*time.Second))))
	}

	last, err := s.ListMessages(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, last, 3)
	assert.Equal(t, "m57", last[0].Content)
	assert.Equal(t, "m59", last[2].Content)

	def, err := s.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Len(t, def, core.DefaultHistoryLimit)
	assert.Equal(t, "m10", def[0].Content)
}

func testClearConversation(t *testing.T, s core.Store) {
	ctx := context.Background()
	sess := mustSession(t, s, "user-1")
	conv := mustConversation(t, s, sess.ID, "agent-1")
	other := mustConversation(t, s, sess.ID, "agent-2")

	now := time.Now().UTC()
	require.NoError(t, s.AppendMessage(ctx, message(conv.ID, core.RoleUser, "a", now)))
	require.NoError(t, s.AppendMessage(ctx, message(conv.ID, core.RoleAssistant, "b", now)))
	require.NoError(t, s.AppendMessage(ctx, message(other.ID, core.RoleUser, "keep", now)))

	require.NoError(t, s.ClearConversation(ctx, conv.ID))

	msgs, err := s.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	got, err := s.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, got.MessageCount)
	assert.Nil(t, got.LastMessageAt)

	// Clearing again is a no-op.
	require.NoError(t, s.ClearConversation(ctx, conv.ID))

	kept, err := s.ListMessages(ctx, other.ID, 0)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	assert.ErrorIs(t, s.ClearConversation(ctx, "missing"), core.ErrConversationNotFound)
}

func testReturnsCopies(t *testing.T, s core.Store) {
	ctx := context.Background()
	sess := mustSession(t, s, "user-1")
	sess.Mode = core.ModeRouter
	got, err := s.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, core.ModeManual, got.Mode)
}

func testConcurrentCreate(t *testing.T, s core.Store) {
	ctx := context.Background()
	sess := mustSession(t, s, "user-1")

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.CreateConversation(ctx, core.NewConversation(sess.ID, "agent-1"))
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}
