package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/solsentry/solsentry/internal/analysis"
)

// PostgresStore persists assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the assessments table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS assessments (
			id            VARCHAR(36) PRIMARY KEY,
			wallet        TEXT NOT NULL,
			signature     TEXT,
			score         INT NOT NULL CHECK (score >= 0 AND score <= 100),
			level         VARCHAR(10) NOT NULL CHECK (level IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
			threats       JSONB NOT NULL DEFAULT '[]',
			blocked       BOOLEAN NOT NULL DEFAULT FALSE,
			reason        TEXT,
			financial     JSONB NOT NULL DEFAULT '{}',
			evaluated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_assessments_wallet
			ON assessments (wallet, evaluated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_assessments_blocked
			ON assessments (evaluated_at DESC) WHERE blocked;
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	threatsJSON, err := json.Marshal(a.Threats)
	if err != nil {
		return fmt.Errorf("failed to marshal threats: %w", err)
	}
	financialJSON, err := json.Marshal(a.Financial)
	if err != nil {
		return fmt.Errorf("failed to marshal financial summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, wallet, signature, score, level, threats, blocked, reason, financial, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		a.ID, a.Wallet, a.Signature, a.Score, string(a.Level),
		threatsJSON, a.Blocked, a.Reason, financialJSON, a.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]*Assessment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet, signature, score, level, threats, blocked, reason, financial, evaluated_at
		FROM assessments
		WHERE wallet = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var level string
		var threatsJSON, financialJSON []byte
		var signature, reason sql.NullString

		if err := rows.Scan(&a.ID, &a.Wallet, &signature, &a.Score, &level,
			&threatsJSON, &a.Blocked, &reason, &financialJSON, &a.EvaluatedAt); err != nil {
			continue
		}
		a.Signature = signature.String
		a.Reason = reason.String
		a.Level = Level(level)
		a.Threats = []analysis.Threat{}
		_ = json.Unmarshal(threatsJSON, &a.Threats)
		_ = json.Unmarshal(financialJSON, &a.Financial)
		result = append(result, &a)
	}
	return result, rows.Err()
}
