package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/tutormesh/core"
)

// Record implements core.AuditSink.
func (s *Store) Record(ctx context.Context, l *core.InteractionLog) error {
	var meta sql.NullString
	if len(l.Metadata) > 0 {
		data, err := json.Marshal(l.Metadata)
		if err != nil {
			return fmt.Errorf("encode log metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	id := l.ID
	if id == "" {
		id = core.NewID()
	}
	at := l.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO tutor_interaction_logs
			(id, user_id, session_id, event_type, agent_id, agent_name, mode, response_time_ms, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, l.UserID, l.SessionID, string(l.EventType), l.AgentID, l.AgentName, string(l.Mode),
			l.ResponseTime.Milliseconds(), meta, toMillis(at),
		)
		if err != nil {
			return fmt.Errorf("insert interaction log: %w", err)
		}
		return nil
	})
}

// Query implements core.AuditReader. Results are newest first.
func (s *Store) Query(ctx context.Context, f core.LogFilter) ([]*core.InteractionLog, error) {
	var (
		where []string
		args  []any
	)
	eq := func(col, val string) {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	eq("user_id", f.UserID)
	eq("session_id", f.SessionID)
	eq("event_type", string(f.EventType))
	eq("agent_id", f.AgentID)
	eq("mode", string(f.Mode))
	if f.Start != nil {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(*f.Start))
	}
	if f.End != nil {
		where = append(where, "created_at < ?")
		args = append(args, toMillis(*f.End))
	}

	query := `SELECT id, user_id, session_id, event_type, agent_id, agent_name, mode, response_time_ms, metadata, created_at
	FROM tutor_interaction_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interaction logs: %w", err)
	}
	defer rows.Close()

	var out []*core.InteractionLog
	for rows.Next() {
		var (
			l                   core.InteractionLog
			eventType, mode     string
			responseMs, created int64
			meta                sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.SessionID, &eventType, &l.AgentID, &l.AgentName, &mode,
			&responseMs, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan interaction log row: %w", err)
		}
		l.EventType = core.EventType(eventType)
		l.Mode = core.Mode(mode)
		l.ResponseTime = time.Duration(responseMs) * time.Millisecond
		l.CreatedAt = fromMillis(created)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &l.Metadata); err != nil {
				s.logger.Warn("Ignoring malformed log metadata", "id", l.ID, "error", err)
			}
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
