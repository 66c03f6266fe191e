package testutil

import (
	"time"

	"github.com/hupe1980/tutormesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("user-1").Mode(core.ModeRouter).ActiveAgent("a1").Build()
type SessionBuilder struct {
	userID   string
	mode     core.Mode
	activeID string
	at       time.Time
}

// NewSessionBuilder creates a new builder for the given user's session.
func NewSessionBuilder(userID string) *SessionBuilder {
	return &SessionBuilder{userID: userID, mode: core.ModeManual}
}

// Mode sets the routing mode (chainable).
func (b *SessionBuilder) Mode(m core.Mode) *SessionBuilder {
	b.mode = m
	return b
}

// ActiveAgent sets the active agent id (chainable).
func (b *SessionBuilder) ActiveAgent(id string) *SessionBuilder {
	b.activeID = id
	return b
}

// At pins the creation and update timestamps (chainable).
func (b *SessionBuilder) At(t time.Time) *SessionBuilder {
	b.at = t
	return b
}

// Build returns a *core.Session with a fresh id.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.userID)
	s.Mode = b.mode
	s.ActiveAgentID = b.activeID
	if !b.at.IsZero() {
		s.CreatedAt = b.at
		s.UpdatedAt = b.at
	}
	return s
}
