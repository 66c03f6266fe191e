package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/tutormesh/audit"
	"github.com/hupe1980/tutormesh/catalog"
	"github.com/hupe1980/tutormesh/collab"
	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/internal/testutil"
	"github.com/hupe1980/tutormesh/model"
	"github.com/hupe1980/tutormesh/router"
	"github.com/hupe1980/tutormesh/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	svc   *Service
	model *model.MockModel
	audit *audit.InMemoryStore
	clock *clock
}

func newFixture(t *testing.T, optFns ...func(o *Options)) *fixture {
	t.Helper()
	f := &fixture{
		model: model.NewMockModel("mock-model", "mock"),
		audit: audit.NewInMemoryStore(),
		clock: &clock{t: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)},
	}
	fns := append([]func(o *Options){func(o *Options) {
		o.Model = f.model
		o.Catalog = catalog.NewInMemoryCatalog(testutil.Tutors()...)
		o.AuditSink = f.audit
		o.Now = f.clock.Now
		o.Rand = rand.New(rand.NewPCG(1, 1))
	}}, optFns...)
	f.svc = New(fns...)
	t.Cleanup(func() { _ = f.svc.Close() })
	return f
}

func (f *fixture) logs(t *testing.T, filter core.LogFilter) []*core.InteractionLog {
	t.Helper()
	f.svc.recorder.Wait()
	logs, err := f.svc.GetInteractionLogs(context.Background(), filter)
	require.NoError(t, err)
	return logs
}

func TestGetOrCreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, core.ModeManual, first.Mode)

	second, err := f.svc.GetOrCreateSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Len(t, f.logs(t, core.LogFilter{EventType: core.EventSessionCreated}), 1)

	_, err = f.svc.GetOrCreateSession(ctx, " ")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestUpdateMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.UpdateMode(ctx, "user-1", "Router")
	require.NoError(t, err)
	assert.Equal(t, core.ModeRouter, sess.Mode)

	_, err = f.svc.UpdateMode(ctx, "user-1", "telepathy")
	require.ErrorIs(t, err, core.ErrInvalidMode)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	logs := f.logs(t, core.LogFilter{EventType: core.EventModeChanged})
	require.Len(t, logs, 1)
	assert.Equal(t, "manual", logs[0].Metadata["previous_mode"])
}

func TestSetActiveAgent(t *testing.T) {
	inactive := testutil.NewAgentBuilder("agent-off", "retired").Inactive().Build()
	f := newFixture(t, func(o *Options) {
		o.Catalog = catalog.NewInMemoryCatalog(append(testutil.Tutors(), inactive)...)
	})
	ctx := context.Background()

	sess, err := f.svc.SetActiveAgent(ctx, "user-1", "agent-socratic")
	require.NoError(t, err)
	assert.Equal(t, "agent-socratic", sess.ActiveAgentID)

	_, err = f.svc.SetActiveAgent(ctx, "user-1", "agent-off")
	assert.ErrorIs(t, err, core.ErrAgentNotFoundOrInactive)

	_, err = f.svc.SetActiveAgent(ctx, "user-1", "missing")
	require.ErrorIs(t, err, core.ErrAgentNotFoundOrInactive)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))

	sess, err = f.svc.SetActiveAgent(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Empty(t, sess.ActiveAgentID)
}

func TestSendMessage_Manual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "  Hey @beatrice help me  "})
	require.NoError(t, err)

	assert.Equal(t, "Hey @beatrice help me", res.UserMessage.Content)
	assert.Equal(t, "Mock response to: Hey help me", res.AssistantMessage.Content)
	assert.Equal(t, "agent-beatrice", res.AssistantMessage.AgentID)
	assert.Equal(t, "mock", res.AssistantMessage.Provider)
	assert.Equal(t, "mock-model", res.AssistantMessage.Model)
	require.NotNil(t, res.AssistantMessage.Temperature)
	assert.True(t, res.AssistantMessage.CreatedAt.After(res.UserMessage.CreatedAt))
	assert.Nil(t, res.Routing)
	assert.Nil(t, res.Collaborative)
	assert.Equal(t, 2, res.Conversation.MessageCount)

	calls := f.model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].SystemPrompt, "DO:\n- Acknowledge feelings")
	assert.Empty(t, calls[0].History)

	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "again"})
	require.NoError(t, err)
	calls = f.model.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[1].History, 2)
	assert.Equal(t, "user", calls[1].History[0].Role)

	history, err := f.svc.GetMessageHistory(ctx, res.Conversation.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	logs := f.logs(t, core.LogFilter{EventType: core.EventMessageSent})
	require.Len(t, logs, 2)
	assert.Equal(t, "beatrice", logs[0].AgentName)
	assert.Equal(t, core.ModeManual, logs[0].Mode)
}

func TestSendMessage_UsesActiveAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetActiveAgent(ctx, "user-1", "agent-direct")
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "agent-direct", res.Agent.ID)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "   "})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, core.ErrAgentNotFoundOrInactive)

	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", Message: "hi"})
	assert.ErrorIs(t, err, core.ErrAgentNotFoundOrInactive)

	other, err := f.svc.GetOrCreateSession(ctx, "user-2")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi", SessionID: other.ID})
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi", SessionID: "missing"})
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestSendMessage_SessionOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.GetOrCreateSession(ctx, "user-1")
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi", SessionID: sess.ID})
	require.NoError(t, err)
	assert.Equal(t, sess.ID, res.Conversation.SessionID)
}

func TestSendMessage_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.model.FailForSystemPrompt("Beatrice", errors.New("rate limited"))
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi"})
	require.ErrorIs(t, err, core.ErrUpstream)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))

	conv, err := f.svc.GetOrCreateConversation(ctx, "user-1", "agent-beatrice")
	require.NoError(t, err)
	assert.Zero(t, conv.MessageCount)
}

func TestSendMessage_Router(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateMode(ctx, "user-1", "router")
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-direct", Message: "I'm so stressed and overwhelmed, I want to give up"})
	require.NoError(t, err)

	require.NotNil(t, res.Routing)
	assert.Equal(t, "beatrice", res.Routing.SelectedAgent)
	assert.Equal(t, router.MethodKeyword, res.Routing.Method)
	assert.Greater(t, res.Routing.Confidence, 0.8)
	assert.Len(t, res.Routing.Alternatives, 2)

	assert.Equal(t, "agent-beatrice", res.AssistantMessage.AgentID)
	assert.Equal(t, "agent-direct", res.Conversation.AgentID)
}

func TestSendMessage_AIRouting(t *testing.T) {
	m := model.Func(func(_ context.Context, req model.Request) (model.Response, error) {
		if strings.Contains(req.SystemPrompt, "route student messages") {
			return model.Response{Text: `{"selectedAgent":"socratic-tutor","reason":"conceptual","confidence":0.7}`}, nil
		}
		return model.Response{Text: "answer", Model: "m-1"}, nil
	})
	f := newFixture(t, func(o *Options) {
		o.Model = m
		o.UseAIRouting = true
	})
	ctx := context.Background()

	_, err := f.svc.UpdateMode(ctx, "user-1", "router")
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "tell me about loops"})
	require.NoError(t, err)
	assert.Equal(t, "socratic-tutor", res.Routing.SelectedAgent)
	assert.Equal(t, router.MethodAI, res.Routing.Method)
	assert.Equal(t, "conceptual", res.Routing.Reason)
	assert.Equal(t, "m-1", res.AssistantMessage.Model)
}

func TestSendMessage_Random(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateMode(ctx, "user-1", "random")
	require.NoError(t, err)

	for range 5 {
		res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hello"})
		require.NoError(t, err)
		require.NotNil(t, res.Routing)
		assert.Equal(t, 1.0, res.Routing.Confidence)
		assert.Equal(t, "Randomly selected", res.Routing.Reason)
		assert.Equal(t, res.Routing.AgentID, res.AssistantMessage.AgentID)
	}
}

// listOnlyCatalog lists a fixed pool but resolves ids through the wrapped
// catalog.
type listOnlyCatalog struct {
	*catalog.InMemoryCatalog
	list []*core.Agent
}

func (c listOnlyCatalog) ListAgents(context.Context) ([]*core.Agent, error) { return c.list, nil }

func TestSendMessage_NoAgentsAvailable(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Catalog = listOnlyCatalog{InMemoryCatalog: catalog.NewInMemoryCatalog(testutil.Tutors()...)}
	})
	ctx := context.Background()

	for _, mode := range []string{"router", "random", "collaborative"} {
		_, err := f.svc.UpdateMode(ctx, "user-1", mode)
		require.NoError(t, err)

		_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi"})
		require.ErrorIs(t, err, core.ErrNoAgentsAvailable, mode)
		assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	}
}

func TestSendMessage_SelectedAgentNotFound(t *testing.T) {
	ghost := testutil.NewAgentBuilder("agent-ghost", "ghost").Build()
	f := newFixture(t, func(o *Options) {
		o.Catalog = listOnlyCatalog{
			InMemoryCatalog: catalog.NewInMemoryCatalog(testutil.Tutors()...),
			list:            []*core.Agent{ghost},
		}
	})
	ctx := context.Background()

	_, err := f.svc.UpdateMode(ctx, "user-1", "random")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi"})
	require.ErrorIs(t, err, core.ErrSelectedAgentNotFound)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestSendMessage_CollaborativeParallelPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.model.FailForSystemPrompt("Beatrice", errors.New("provider down"))
	ctx := context.Background()

	_, err := f.svc.UpdateMode(ctx, "user-1", "collaborative")
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-socratic", Message: "@beatrice @direct-helper explain loops"})
	require.NoError(t, err)

	assert.Contains(t, res.AssistantMessage.Content, "[Beatrice was unable to respond]")
	assert.Contains(t, res.AssistantMessage.Content, "**Direct Helper:** Mock response to: explain loops")
	require.NotNil(t, res.Collaborative)
	assert.Equal(t, collab.StyleParallel, res.Collaborative.Style)
	assert.Equal(t, []string{"Beatrice", "Direct Helper"}, res.Collaborative.MentionedAgents)

	var contributions []core.Contribution
	require.NoError(t, json.Unmarshal([]byte(res.AssistantMessage.SynthesizedFrom), &contributions))
	require.Len(t, contributions, 2)
	assert.True(t, contributions[0].Failed)
	assert.Equal(t, "agent-socratic", res.Conversation.AgentID)
}

func TestSendMessage_CollaborativeDebate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateMode(ctx, "user-1", "collaborative")
	require.NoError(t, err)

	res, err := f.svc.SendMessage(ctx, SendRequest{
		UserID:        "user-1",
		AgentID:       "agent-socratic",
		Message:       "tabs or spaces?",
		Collaboration: &collab.Options{Style: collab.StyleDebate, MaxAgents: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Collaborative.TotalRounds)
	assert.Len(t, res.Collaborative.Participants, 2)
}

func TestClearConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearConversation(ctx, "user-1", "agent-beatrice"))
	conv, err := f.svc.GetOrCreateConversation(ctx, "user-1", "agent-beatrice")
	require.NoError(t, err)
	assert.Equal(t, res.Conversation.ID, conv.ID)
	assert.Zero(t, conv.MessageCount)
	assert.Nil(t, conv.LastMessageAt)

	msgs, err := f.svc.GetMessageHistory(ctx, conv.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, f.svc.ClearConversation(ctx, "user-1", "agent-beatrice"))

	err = f.svc.ClearConversation(ctx, "nobody", "agent-beatrice")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	err = f.svc.ClearConversation(ctx, "user-1", "agent-direct")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	assert.Len(t, f.logs(t, core.LogFilter{EventType: core.EventConversationCleared}), 2)
}

func TestGetConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	convs, err := f.svc.GetConversations(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, convs)

	_, err = f.svc.GetOrCreateConversation(ctx, "user-1", "agent-beatrice")
	require.NoError(t, err)
	_, err = f.svc.GetOrCreateConversation(ctx, "user-1", "agent-direct")
	require.NoError(t, err)

	convs, err = f.svc.GetConversations(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}

type sinkFunc func(ctx context.Context, l *core.InteractionLog) error

func (f sinkFunc) Record(ctx context.Context, l *core.InteractionLog) error { return f(ctx, l) }

func TestAuditFailureNeverChangesResults(t *testing.T) {
	sinks := map[string]core.AuditSink{
		"error": sinkFunc(func(context.Context, *core.InteractionLog) error { return errors.New("audit down") }),
		"panic": sinkFunc(func(context.Context, *core.InteractionLog) error { panic("audit exploded") }),
	}

	run := func(t *testing.T, svc *Service) (string, string, string) {
		ctx := context.Background()
		sess, err := svc.UpdateMode(ctx, "user-1", "manual")
		require.NoError(t, err)
		sess, err = svc.SetActiveAgent(ctx, "user-1", "agent-direct")
		require.NoError(t, err)
		res, err := svc.SendMessage(ctx, SendRequest{UserID: "user-1", Message: "how do i loop"})
		require.NoError(t, err)
		require.NoError(t, svc.ClearConversation(ctx, "user-1", "agent-direct"))
		return string(sess.Mode), sess.ActiveAgentID, res.AssistantMessage.Content
	}

	baseline := newFixture(t)
	wantMode, wantAgent, wantContent := run(t, baseline.svc)

	for name, sink := range sinks {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, func(o *Options) { o.AuditSink = sink })
			mode, agent, content := run(t, f.svc)
			assert.Equal(t, wantMode, mode)
			assert.Equal(t, wantAgent, agent)
			assert.Equal(t, wantContent, content)
		})
	}
}

func TestGetStats_DateRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 9, d, 12, 0, 0, 0, time.UTC) }

	f.clock.Set(day(1))
	_, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi"})
	require.NoError(t, err)

	f.clock.Set(day(5))
	_, err = f.svc.UpdateMode(ctx, "user-2", "router")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-2", AgentID: "agent-beatrice", Message: "why?"})
	require.NoError(t, err)
	f.svc.recorder.Wait()

	start, end := day(3), day(6)
	st, err := f.svc.GetStats(ctx, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalSessions)
	assert.Equal(t, 1, st.TotalMessages)
	assert.Equal(t, map[core.Mode]int{core.ModeRouter: 1}, st.ModeBreakdown)
	assert.Equal(t, map[string]int{"socratic-tutor": 1}, st.AgentBreakdown)

	all, err := f.svc.GetStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalSessions)
	assert.Equal(t, 2, all.TotalMessages)
	assert.Equal(t, map[core.Mode]int{core.ModeManual: 1, core.ModeRouter: 1}, all.ModeBreakdown)

	_, err = f.svc.GetStats(ctx, &end, &start)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{core.ErrSessionNotFound, http.StatusNotFound},
		{core.ErrConversationNotFound, http.StatusNotFound},
		{core.ErrAgentNotFoundOrInactive, http.StatusNotFound},
		{core.ErrInvalidMode, http.StatusBadRequest},
		{core.ErrInvalidArgument, http.StatusBadRequest},
		{core.ErrNoAgentsAvailable, http.StatusInternalServerError},
		{core.ErrSelectedAgentNotFound, http.StatusInternalServerError},
		{core.ErrUpstream, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

// appendFailingStore rejects every message write.
type appendFailingStore struct {
	core.Store
}

func (appendFailingStore) AppendMessage(context.Context, *core.Message) error {
	return errors.New("disk full")
}

func (appendFailingStore) AppendMessages(context.Context, ...*core.Message) error {
	return errors.New("disk full")
}

func TestSendMessage_StoreFailureLeavesNoPartialExchange(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Store = appendFailingStore{Store: session.NewInMemoryStore()}
	})
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", AgentID: "agent-beatrice", Message: "hi"})
	require.Error(t, err)

	conv, err := f.svc.GetOrCreateConversation(ctx, "user-1", "agent-beatrice")
	require.NoError(t, err)
	assert.Equal(t, 0, conv.MessageCount)
	assert.Nil(t, conv.LastMessageAt)

	msgs, err := f.svc.GetMessageHistory(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, f.logs(t, core.LogFilter{EventType: core.EventMessageSent}))
}

func TestActiveAgentClearedWhenDeactivated(t *testing.T) {
	cat := catalog.NewInMemoryCatalog(testutil.Tutors()...)
	f := newFixture(t, func(o *Options) { o.Catalog = cat })
	ctx := context.Background()

	_, err := f.svc.SetActiveAgent(ctx, "user-1", "agent-direct")
	require.NoError(t, err)

	retired := testutil.NewAgentBuilder("agent-direct", "direct-helper").Inactive().Build()
	require.NoError(t, cat.Put(retired))

	sess, err := f.svc.GetOrCreateSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, sess.ActiveAgentID)

	_, err = f.svc.SendMessage(ctx, SendRequest{UserID: "user-1", Message: "hi"})
	assert.ErrorIs(t, err, core.ErrAgentNotFoundOrInactive)

	sess, err = f.svc.SetActiveAgent(ctx, "user-1", "agent-beatrice")
	require.NoError(t, err)
	require.NoError(t, cat.Put(testutil.NewAgentBuilder("agent-beatrice", "beatrice").Inactive().Build()))

	pinned, err := f.svc.sessionFor(ctx, SendRequest{UserID: "user-1", SessionID: sess.ID})
	require.NoError(t, err)
	assert.Empty(t, pinned.ActiveAgentID)
}
