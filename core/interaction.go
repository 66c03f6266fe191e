package core

import "time"

// EventType classifies an interaction log record.
type EventType string

const (
	// EventSessionCreated is recorded when a session is lazily created.
	EventSessionCreated EventType = "session_created"
	// EventModeChanged is recorded when a session switches mode.
	EventModeChanged EventType = "mode_changed"
	// EventAgentSelected is recorded when the active agent changes.
	EventAgentSelected EventType = "agent_selected"
	// EventMessageSent is recorded after a message pair was persisted.
	EventMessageSent EventType = "message_sent"
	// EventConversationCleared is recorded after a conversation was cleared.
	EventConversationCleared EventType = "conversation_cleared"
)

// InteractionLog is an append-only audit record.
type InteractionLog struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	SessionID    string            `json:"session_id"`
	EventType    EventType         `json:"event_type"`
	AgentID      string            `json:"agent_id,omitempty"`
	AgentName    string            `json:"agent_name,omitempty"`
	Mode         Mode              `json:"mode,omitempty"`
	ResponseTime time.Duration     `json:"response_time,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Clone returns a deep copy.
func (l *InteractionLog) Clone() *InteractionLog {
	cp := *l
	if l.Metadata != nil {
		cp.Metadata = make(map[string]string, len(l.Metadata))
		for k, v := range l.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// LogFilter narrows interaction log queries. Zero fields do not filter.
// The time range is inclusive of Start and exclusive of End.
type LogFilter struct {
	UserID    string
	SessionID string
	EventType EventType
	AgentID   string
	Mode      Mode
	Start     *time.Time
	End       *time.Time
	Limit     int
}

// Match reports whether the record satisfies every set criterion.
func (f LogFilter) Match(l *InteractionLog) bool {
	switch {
	case f.UserID != "" && l.UserID != f.UserID:
		return false
	case f.SessionID != "" && l.SessionID != f.SessionID:
		return false
	case f.EventType != "" && l.EventType != f.EventType:
		return false
	case f.AgentID != "" && l.AgentID != f.AgentID:
		return false
	case f.Mode != "" && l.Mode != f.Mode:
		return false
	case f.Start != nil && l.CreatedAt.Before(*f.Start):
		return false
	case f.End != nil && !l.CreatedAt.Before(*f.End):
		return false
	}
	return true
}

// Stats aggregates interaction logs.
type Stats struct {
	TotalInteractions   int               `json:"total_interactions"`
	TotalSessions       int               `json:"total_sessions"`
	TotalMessages       int               `json:"total_messages"`
	ModeBreakdown       map[Mode]int      `json:"mode_breakdown"`
	AgentBreakdown      map[string]int    `json:"agent_breakdown"`
	EventBreakdown      map[EventType]int `json:"event_breakdown"`
	AverageResponseTime time.Duration     `json:"average_response_time"`
}
