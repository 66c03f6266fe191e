package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hupe1980/tutormesh/core"
)

// AppendMessage inserts m and bumps the conversation counters in one
// transaction.
func (s *Store) AppendMessage(ctx context.Context, m *core.Message) error {
	return s.AppendMessages(ctx, m)
}

// AppendMessages inserts every message and bumps the counters in one
// transaction; on error nothing is stored.
func (s *Store) AppendMessages(ctx context.Context, msgs ...*core.Message) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		for _, m := range msgs {
			if err := appendMessage(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func appendMessage(ctx context.Context, tx *sql.Tx, m *core.Message) error {
	at := m.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var temp sql.NullFloat64
	if m.Temperature != nil {
		temp = sql.NullFloat64{Float64: *m.Temperature, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE tutor_conversations
	SET message_count = message_count + 1, last_message_at = ?, updated_at = ?
	WHERE id = ?`,
		toMillis(at), toMillis(at), m.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("bump conversation: %w", err)
	}
	if err := requireAffected(res, core.ErrConversationNotFound); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO tutor_messages
		(id, conversation_id, agent_id, role, content, provider, model, response_time_ms, temperature, synthesized_from, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, nullString(m.AgentID), string(m.Role), m.Content,
		nullString(m.Provider), nullString(m.Model), m.ResponseTime.Milliseconds(), temp,
		nullString(m.SynthesizedFrom), toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent limit messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*core.Message, error) {
	if _, err := s.GetConversationByID(ctx, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, conversation_id, agent_id, role, content, provider, model, response_time_ms, temperature, synthesized_from, created_at
	FROM (
		SELECT * FROM tutor_messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []*core.Message
	for rows.Next() {
		var (
			m                        core.Message
			role                     string
			agentID, provider, model sql.NullString
			synthesized              sql.NullString
			responseMs               sql.NullInt64
			temp                     sql.NullFloat64
			created                  int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &agentID, &role, &m.Content, &provider, &model,
			&responseMs, &temp, &synthesized, &created); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.AgentID = agentID.String
		m.Role = core.Role(role)
		m.Provider = provider.String
		m.Model = model.String
		m.ResponseTime = time.Duration(responseMs.Int64) * time.Millisecond
		if temp.Valid {
			t := temp.Float64
			m.Temperature = &t
		}
		m.SynthesizedFrom = synthesized.String
		m.CreatedAt = fromMillis(created)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ClearConversation deletes all messages and resets the counters.
func (s *Store) ClearConversation(ctx context.Context, conversationID string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE tutor_conversations
		SET message_count = 0, last_message_at = NULL, updated_at = ?
		WHERE id = ?`, toMillis(time.Now()), conversationID)
		if err != nil {
			return fmt.Errorf("reset conversation: %w", err)
		}
		if err := requireAffected(res, core.ErrConversationNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tutor_messages WHERE conversation_id = ?`, conversationID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return nil
	})
}
