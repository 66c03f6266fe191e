package core

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a session decides which agent answers a message.
type Mode string

const (
	// ModeManual sends every message to the agent the user picked.
	ModeManual Mode = "manual"
	// ModeRouter picks one agent per message by keyword or AI classification.
	ModeRouter Mode = "router"
	// ModeRandom picks one eligible agent uniformly at random.
	ModeRandom Mode = "random"
	// ModeCollaborative asks several agents and synthesizes one reply.
	ModeCollaborative Mode = "collaborative"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeRouter, ModeRandom, ModeCollaborative:
		return true
	default:
		return false
	}
}

// ParseMode converts user input into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Session is the per-user container holding the active routing mode. A user
// owns at most one session; it is created lazily and never deleted.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Mode          Mode      `json:"mode"`
	ActiveAgentID string    `json:"active_agent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSession creates a manual-mode session for the user.
func NewSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{ID: NewID(), UserID: userID, Mode: ModeManual, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a copy safe for independent mutation.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// Conversation is the message thread between a session and one agent.
type Conversation struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	AgentID       string     `json:"agent_id"`
	MessageCount  int        `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewConversation creates an empty conversation for the session/agent pair.
func NewConversation(sessionID, agentID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{ID: NewID(), SessionID: sessionID, AgentID: agentID, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		cp.LastMessageAt = &t
	}
	return &cp
}

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages written by the student.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by one or more agents.
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. Assistant messages carry model
// metadata; collaborative replies additionally carry the JSON encoded
// per-agent contributions in SynthesizedFrom.
type Message struct {
	ID              string        `json:"id"`
	ConversationID  string        `json:"conversation_id"`
	AgentID         string        `json:"agent_id,omitempty"`
	Role            Role          `json:"role"`
	Content         string        `json:"content"`
	Provider        string        `json:"provider,omitempty"`
	Model           string        `json:"model,omitempty"`
	ResponseTime    time.Duration `json:"response_time,omitempty"`
	Temperature     *float64      `json:"temperature,omitempty"`
	SynthesizedFrom string        `json:"synthesized_from,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Clone returns a deep copy.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Temperature != nil {
		t := *m.Temperature
		cp.Temperature = &t
	}
	return &cp
}

// Contribution is one agent's part of a collaborative reply.
type Contribution struct {
	AgentID     string `json:"agent_id"`
	AgentName   string `json:"agent_name"`
	DisplayName string `json:"display_name"`
	Content     string `json:"content"`
	Round       int    `json:"round"`
	Failed      bool   `json:"failed,omitempty"`
}
