package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists rule specs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed rule spec store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the rules table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rules (
			name        TEXT PRIMARY KEY,
			position    SERIAL,
			spec        JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) Upsert(ctx context.Context, spec *Spec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal rule spec: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (name, spec, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET spec = EXCLUDED.spec, updated_at = NOW()
	`, spec.Name, specJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert rule %q: %w", spec.Name, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete rule %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Spec, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT spec FROM rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Spec
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		var spec Spec
		if err := json.Unmarshal(raw, &spec); err != nil {
			continue
		}
		out = append(out, &spec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Replace(ctx context.Context, specs []*Spec) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}
	for _, spec := range specs {
		specJSON, err := json.Marshal(spec)
		if err != nil {
			return fmt.Errorf("failed to marshal rule spec: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rules (name, spec) VALUES ($1, $2)`, spec.Name, specJSON); err != nil {
			return fmt.Errorf("failed to insert rule %q: %w", spec.Name, err)
		}
	}
	return tx.Commit()
}
