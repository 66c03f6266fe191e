package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/tutormesh/core"
)

const agentColumns = `id, name, display_name, description, personality, system_prompt, temperature,
	dos_rules, donts_rules, is_active, category, created_at`

func scanAgent(row rowScanner) (*core.Agent, error) {
	var (
		a       core.Agent
		active  int
		created int64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.DisplayName, &a.Description, &a.Personality, &a.SystemPrompt,
		&a.Temperature, &a.DosRules, &a.DontsRules, &active, &a.Category, &created); err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

// UpsertAgents seeds or refreshes agent records in one transaction.
func (s *Store) UpsertAgents(ctx context.Context, agents ...*core.Agent) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		for _, a := range agents {
			created := a.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			active := 0
			if a.IsActive {
				active = 1
			}
			_, err := tx.ExecContext(ctx, `
			INSERT INTO tutor_agents (`+agentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				display_name = excluded.display_name,
				description = excluded.description,
				personality = excluded.personality,
				system_prompt = excluded.system_prompt,
				temperature = excluded.temperature,
				dos_rules = excluded.dos_rules,
				donts_rules = excluded.donts_rules,
				is_active = excluded.is_active,
				category = excluded.category`,
				a.ID, a.Name, a.DisplayName, a.Description, a.Personality, a.SystemPrompt, a.Temperature,
				a.DosRules, a.DontsRules, active, a.Category, toMillis(created),
			)
			if err != nil {
				return fmt.Errorf("upsert agent %s: %w", a.Name, err)
			}
		}
		return nil
	})
}

// ListAgents returns active tutor agents ordered by name.
func (s *Store) ListAgents(ctx context.Context) ([]*core.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM tutor_agents WHERE is_active = 1 AND category = ? ORDER BY name, id`,
		core.CategoryTutor)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var out []*core.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAgent returns the agent with the given id regardless of eligibility.
func (s *Store) GetAgent(ctx context.Context, id string) (*core.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM tutor_agents WHERE id = ?`, id)
	return agentOrNotFound(scanAgent(row))
}

// GetAgentByName returns the agent with the given name, case-insensitively.
func (s *Store) GetAgentByName(ctx context.Context, name string) (*core.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM tutor_agents WHERE name = ?`, name)
	return agentOrNotFound(scanAgent(row))
}

func agentOrNotFound(a *core.Agent, err error) (*core.Agent, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAgentNotFoundOrInactive
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}
	return a, nil
}
