// Package sqlite implements the tutor stores on a local SQLite database using
// the pure Go modernc.org/sqlite driver.
//
// One Store value satisfies core.Store, core.AgentCatalog, core.AuditSink and
// core.AuditReader. Timestamps are stored as Unix milliseconds in UTC.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/logging"
)

var (
	_ core.Store        = (*Store)(nil)
	_ core.AgentCatalog = (*Store)(nil)
	_ core.AuditSink    = (*Store)(nil)
	_ core.AuditReader  = (*Store)(nil)
)

// Options configures Open.
type Options struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
	Logger       logging.Logger
}

// Store is the SQLite backed repository.
type Store struct {
	db     *sql.DB
	logger logging.Logger

	// writeMu serializes writers to avoid SQLITE_BUSY under WAL.
	writeMu sync.Mutex
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{BusyTimeout: 5 * time.Second, MaxOpenConns: 8}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		path, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, logger: logging.OrNoOp(opts.Logger)}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) initSchema(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS tutor_agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		display_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		personality TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL DEFAULT '',
		temperature REAL NOT NULL DEFAULT 0.7,
		dos_rules TEXT NOT NULL DEFAULT '',
		donts_rules TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		category TEXT NOT NULL DEFAULT 'tutor',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tutor_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL,
		active_agent_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tutor_conversations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES tutor_sessions(id) ON DELETE CASCADE,
		agent_id TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		last_message_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (session_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS tutor_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL REFERENCES tutor_conversations(id) ON DELETE CASCADE,
		agent_id TEXT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		provider TEXT,
		model TEXT,
		response_time_ms INTEGER,
		temperature REAL,
		synthesized_from TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tutor_messages_conv ON tutor_messages(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS tutor_interaction_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		agent_name TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL DEFAULT '',
		response_time_ms INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tutor_logs_created ON tutor_interaction_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_tutor_logs_user ON tutor_interaction_logs(user_id, created_at);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
