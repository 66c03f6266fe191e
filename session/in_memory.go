package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/tutormesh/core"
)

// compile-time assertion
var _ core.Store = (*InMemoryStore)(nil)

// InMemoryStore is a volatile core.Store storing sessions, conversations and
// messages in process local maps. It is safe for concurrent access and best
// suited for tests or ephemeral demo setups. Every returned record is cloned
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu sync.RWMutex

	sessions      map[string]*core.Session      // by id
	sessionByUser map[string]string             // user id -> session id
	conversations map[string]*core.Conversation // by id
	convByPair    map[pairKey]string            // (session, agent) -> conversation id
	messages      map[string][]*core.Message    // conversation id -> chronological
}

type pairKey struct{ sessionID, agentID string }

// NewInMemoryStore constructs an empty in‑memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:      make(map[string]*core.Session),
		sessionByUser: make(map[string]string),
		conversations: make(map[string]*core.Conversation),
		convByPair:    make(map[pairKey]string),
		messages:      make(map[string][]*core.Message),
	}
}

// GetSession returns the user's session or core.ErrSessionNotFound.
func (s *InMemoryStore) GetSession(_ context.Context, userID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessionByUser[userID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return s.sessions[id].Clone(), nil
}

// GetSessionByID returns the session with the given id.
func (s *InMemoryStore) GetSessionByID(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// CreateSession stores sess unless the user already owns one, in which case
// the existing session is returned.
func (s *InMemoryStore) CreateSession(_ context.Context, sess *core.Session) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sessionByUser[sess.UserID]; ok {
		return s.sessions[id].Clone(), nil
	}
	stored := sess.Clone()
	s.sessions[stored.ID] = stored
	s.sessionByUser[stored.UserID] = stored.ID
	return stored.Clone(), nil
}

// UpdateSession overwrites the mutable fields of an existing session.
func (s *InMemoryStore) UpdateSession(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sess.ID]
	if !ok {
		return core.ErrSessionNotFound
	}
	cur.Mode = sess.Mode
	cur.ActiveAgentID = sess.ActiveAgentID
	cur.UpdatedAt = sess.UpdatedAt
	return nil
}

// GetConversation returns the conversation for the session/agent pair.
func (s *InMemoryStore) GetConversation(_ context.Context, sessionID, agentID string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.convByPair[pairKey{sessionID, agentID}]
	if !ok {
		return nil, core.ErrConversationNotFound
	}
	return s.conversations[id].Clone(), nil
}

// GetConversationByID returns the conversation with the given id.
func (s *InMemoryStore) GetConversationByID(_ context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, core.ErrConversationNotFound
	}
	return c.Clone(), nil
}

// CreateConversation stores c unless the pair already has a conversation, in
// which case the existing one is returned.
func (s *InMemoryStore) CreateConversation(_ context.Context, c *core.Conversation) (*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[c.SessionID]; !ok {
		return nil, core.ErrSessionNotFound
	}
	key := pairKey{c.SessionID, c.AgentID}
	if id, ok := s.convByPair[key]; ok {
		return s.conversations[id].Clone(), nil
	}
	stored := c.Clone()
	s.conversations[stored.ID] = stored
	s.convByPair[key] = stored.ID
	return stored.Clone(), nil
}

// ListConversations returns the session's conversations, most recently
// active first.
func (s *InMemoryStore) ListConversations(_ context.Context, sessionID string) ([]*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Conversation
	for _, c := range s.conversations {
		if c.SessionID == sessionID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AppendMessage stores m and bumps the conversation counters under one lock.
func (s *InMemoryStore) AppendMessage(ctx context.Context, m *core.Message) error {
	return s.AppendMessages(ctx, m)
}

// AppendMessages stores every message under one lock. Unknown conversations
// are detected before anything is written.
func (s *InMemoryStore) AppendMessages(_ context.Context, msgs ...*core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if _, ok := s.conversations[m.ConversationID]; !ok {
			return core.ErrConversationNotFound
		}
	}

	for _, m := range msgs {
		c := s.conversations[m.ConversationID]
		stored := m.Clone()
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		s.messages[c.ID] = append(s.messages[c.ID], stored)

		at := stored.CreatedAt
		c.MessageCount++
		c.LastMessageAt = &at
		c.UpdatedAt = at
	}
	return nil
}

// ListMessages returns the most recent limit messages, oldest first.
func (s *InMemoryStore) ListMessages(_ context.Context, conversationID string, limit int) ([]*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, core.ErrConversationNotFound
	}
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}

	all := s.messages[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*core.Message, len(all))
	for i, m := range all {
		out[i] = m.Clone()
	}
	return out, nil
}

// ClearConversation removes every message and resets the counters.
func (s *InMemoryStore) ClearConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return core.ErrConversationNotFound
	}
	delete(s.messages, conversationID)
	c.MessageCount = 0
	c.LastMessageAt = nil
	c.UpdatedAt = time.Now().UTC()
	return nil
}
