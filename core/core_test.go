package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"valid", `["Ask questions","Be kind"]`, []string{"Ask questions", "Be kind"}},
		{"malformed", `["unterminated`, nil},
		{"not an array", `{"a":1}`, nil},
		{"mixed entries", `["keep", 3, "", "  also keep "]`, []string{"keep", "also keep"}},
		{"only blanks", `["", " "]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRules(tt.raw))
		})
	}
}

func TestAgent_Instructions(t *testing.T) {
	a := &Agent{
		SystemPrompt: "You are a Socratic tutor.",
		DosRules:     EncodeRules([]string{"Ask guiding questions"}),
		DontsRules:   `not json`,
	}

	got := a.Instructions()
	assert.Equal(t, "You are a Socratic tutor.\n\nDO:\n- Ask guiding questions", got)
	assert.NotContains(t, got, "DON'T")

	a.DontsRules = EncodeRules([]string{"Give the answer away"})
	assert.Contains(t, a.Instructions(), "DON'T:\n- Give the answer away")
}

func TestAgent_Eligible(t *testing.T) {
	assert.True(t, (&Agent{IsActive: true, Category: CategoryTutor}).Eligible())
	assert.False(t, (&Agent{IsActive: false, Category: CategoryTutor}).Eligible())
	assert.False(t, (&Agent{IsActive: true, Category: "grader"}).Eligible())

	var nilAgent *Agent
	assert.False(t, nilAgent.Eligible())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Collaborative ")
	require.NoError(t, err)
	assert.Equal(t, ModeCollaborative, m)

	_, err = ParseMode("chaos")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestNotFoundErrors(t *testing.T) {
	for _, err := range []error{ErrSessionNotFound, ErrConversationNotFound, ErrAgentNotFoundOrInactive} {
		assert.True(t, errors.Is(err, ErrNotFound), err.Error())
	}
	assert.Equal(t, "agent not found or inactive", ErrAgentNotFoundOrInactive.Error())
}

func TestLogFilter_Match(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := &InteractionLog{UserID: "u1", SessionID: "s1", EventType: EventMessageSent, Mode: ModeRouter, CreatedAt: base}

	start := base.Add(-time.Hour)
	end := base.Add(time.Hour)

	assert.True(t, LogFilter{}.Match(l))
	assert.True(t, LogFilter{UserID: "u1", Mode: ModeRouter, Start: &start, End: &end}.Match(l))
	assert.False(t, LogFilter{UserID: "u2"}.Match(l))
	assert.False(t, LogFilter{EventType: EventModeChanged}.Match(l))
	assert.False(t, LogFilter{End: &base}.Match(l), "end is exclusive")
	assert.True(t, LogFilter{Start: &base}.Match(l), "start is inclusive")
}

func TestConversation_CloneIsDeep(t *testing.T) {
	now := time.Now()
	c := &Conversation{ID: "c1", LastMessageAt: &now}
	cp := c.Clone()
	*cp.LastMessageAt = now.Add(time.Hour)
	assert.Equal(t, now, *c.LastMessageAt)
}
