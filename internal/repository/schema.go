package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS mortgage`,
	`CREATE TABLE IF NOT EXISTS mortgage.users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS mortgage.loans (
		id             BIGSERIAL PRIMARY KEY,
		user_id        BIGINT NOT NULL REFERENCES mortgage.users(id),
		amount         DOUBLE PRECISION NOT NULL,
		term_years     INTEGER NOT NULL,
		credit_score   INTEGER NOT NULL,
		income         DOUBLE PRECISION NOT NULL,
		rate           DOUBLE PRECISION NOT NULL,
		optimized      BOOLEAN NOT NULL DEFAULT FALSE,
		recommendation TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS loans_user_id_idx ON mortgage.loans (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS mortgage.compliance_checks (
		id         BIGSERIAL PRIMARY KEY,
		loan_id    BIGINT NOT NULL REFERENCES mortgage.loans(id) ON DELETE CASCADE,
		status     TEXT NOT NULL,
		details    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS compliance_checks_loan_id_idx ON mortgage.compliance_checks (loan_id, created_at DESC)`,
}

// Migrate creates the schema if it does not exist yet. Statements are idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
