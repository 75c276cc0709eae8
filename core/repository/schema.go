package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		owner_id TEXT NOT NULL,
		goal TEXT NOT NULL,
		budget_total NUMERIC(12,4) NOT NULL CHECK (budget_total >= 0),
		budget_remaining NUMERIC(12,4) NOT NULL CHECK (budget_remaining >= 0),
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (budget_remaining <= budget_total)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_owner ON runs (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs (status)`,
	`CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		base_price_per_hour NUMERIC(12,4) NOT NULL,
		reliability_score DOUBLE PRECISION NOT NULL,
		supported_gpu_types TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id),
		vendor_id TEXT NOT NULL,
		vendor_job_id TEXT,
		status TEXT NOT NULL,
		expected_cost NUMERIC(12,4),
		expected_duration_minutes INTEGER,
		actual_cost NUMERIC(12,4),
		artifact_url TEXT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_run ON jobs (run_id, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id),
		job_id UUID NOT NULL REFERENCES jobs(id),
		vendor_id TEXT NOT NULL,
		amount NUMERIC(12,4) NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		external_tx_id TEXT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_run ON payments (run_id, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id),
		job_id UUID,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_run ON observations (run_id, timestamp DESC)`,
}

// Migrate creates the ledger tables and indexes if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}
