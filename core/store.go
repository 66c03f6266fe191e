package core

import (
	"context"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is the number of messages returned by ListMessages when
// the caller passes a non-positive limit.
const DefaultHistoryLimit = 50

// Store persists sessions, conversations and messages.
//
// Contract:
//   - CreateSession / CreateConversation return the existing record when the
//     uniqueness key (user / session+agent) is already taken
//   - AppendMessage atomically inserts the message and bumps the owning
//     conversation's MessageCount and LastMessageAt
//   - AppendMessages does the same for a batch: all messages are stored or
//     none is
//   - ListMessages returns the most recent limit messages oldest first
//   - ClearConversation deletes all messages and resets the counters; it is a
//     no-op for an empty conversation
//   - Returned records are copies; mutating them does not affect the store
type Store interface {
	GetSession(ctx context.Context, userID string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	CreateSession(ctx context.Context, s *Session) (*Session, error)
	UpdateSession(ctx context.Context, s *Session) error

	GetConversation(ctx context.Context, sessionID, agentID string) (*Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*Conversation, error)
	CreateConversation(ctx context.Context, c *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, sessionID string) ([]*Conversation, error)

	AppendMessage(ctx context.Context, m *Message) error
	AppendMessages(ctx context.Context, msgs ...*Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	ClearConversation(ctx context.Context, conversationID string) error
}

// AgentCatalog gives read access to agent records. ListAgents returns only
// eligible agents (active, tutor category) in a stable order.
type AgentCatalog interface {
	ListAgents(ctx context.Context) ([]*Agent, error)
	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetAgentByName(ctx context.Context, name string) (*Agent, error)
}

// AuditSink accepts interaction log records.
type AuditSink interface {
	Record(ctx context.Context, l *InteractionLog) error
}

// AuditReader queries interaction log records, newest first.
type AuditReader interface {
	Query(ctx context.Context, f LogFilter) ([]*InteractionLog, error)
}

// NewID returns a random unique identifier.
func NewID() string { return uuid.NewString() }
