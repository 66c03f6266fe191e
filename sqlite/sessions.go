package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hupe1980/tutormesh/core"
)

const sessionColumns = `id, user_id, mode, active_agent_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*core.Session, error) {
	var (
		sess             core.Session
		mode             string
		activeAgent      sql.NullString
		created, updated int64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &mode, &activeAgent, &created, &updated); err != nil {
		return nil, err
	}
	sess.Mode = core.Mode(mode)
	sess.ActiveAgentID = activeAgent.String
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)
	return &sess, nil
}

// GetSession returns the user's session.
func (s *Store) GetSession(ctx context.Context, userID string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM tutor_sessions WHERE user_id = ?`, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return sess, nil
}

// GetSessionByID returns the session with the given id.
func (s *Store) GetSessionByID(ctx context.Context, id string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM tutor_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return sess, nil
}

// CreateSession inserts sess or returns the user's existing session.
func (s *Store) CreateSession(ctx context.Context, sess *core.Session) (*core.Session, error) {
	err := s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO tutor_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
			sess.ID, sess.UserID, string(sess.Mode), nullString(sess.ActiveAgentID),
			toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.GetSession(ctx, sess.UserID)
}

// UpdateSession persists mode, active agent and update time.
func (s *Store) UpdateSession(ctx context.Context, sess *core.Session) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tutor_sessions SET mode = ?, active_agent_id = ?, updated_at = ? WHERE id = ?`,
			string(sess.Mode), nullString(sess.ActiveAgentID), toMillis(sess.UpdatedAt), sess.ID,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return requireAffected(res, core.ErrSessionNotFound)
	})
}

const conversationColumns = `id, session_id, agent_id, message_count, last_message_at, created_at, updated_at`

func scanConversation(row rowScanner) (*core.Conversation, error) {
	var (
		c                core.Conversation
		last             sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.SessionID, &c.AgentID, &c.MessageCount, &last, &created, &updated); err != nil {
		return nil, err
	}
	if last.Valid {
		t := fromMillis(last.Int64)
		c.LastMessageAt = &t
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

// GetConversation returns the conversation for the session/agent pair.
func (s *Store) GetConversation(ctx context.Context, sessionID, agentID string) (*core.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM tutor_conversations WHERE session_id = ? AND agent_id = ?`,
		sessionID, agentID)
	return conversationOrNotFound(scanConversation(row))
}

// GetConversationByID returns the conversation with the given id.
func (s *Store) GetConversationByID(ctx context.Context, id string) (*core.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM tutor_conversations WHERE id = ?`, id)
	return conversationOrNotFound(scanConversation(row))
}

func conversationOrNotFound(c *core.Conversation, err error) (*core.Conversation, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}
	return c, nil
}

// CreateConversation inserts c or returns the pair's existing conversation.
func (s *Store) CreateConversation(ctx context.Context, c *core.Conversation) (*core.Conversation, error) {
	err := s.write(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tutor_sessions WHERE id = ?`, c.SessionID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return core.ErrSessionNotFound
		}

		_, err := tx.ExecContext(ctx, `
		INSERT INTO tutor_conversations (id, session_id, agent_id, message_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(session_id, agent_id) DO NOTHING`,
			c.ID, c.SessionID, c.AgentID, toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
		)
		return err
	})
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return s.GetConversation(ctx, c.SessionID, c.AgentID)
}

// ListConversations returns the session's conversations, most recently
// active first.
func (s *Store) ListConversations(ctx context.Context, sessionID string) ([]*core.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM tutor_conversations WHERE session_id = ? ORDER BY updated_at DESC, id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []*core.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
