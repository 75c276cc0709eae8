package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gpu-renter/core/models"

	"github.com/google/uuid"
)

// RunRepository handles database operations for runs
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new run, assigning an id when absent
func (r *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	query := `
		INSERT INTO runs (id, owner_id, goal, budget_total, budget_remaining, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.OwnerID,
		run.Goal,
		run.BudgetTotal,
		run.BudgetRemaining,
		run.Status,
		run.CreatedAt,
		run.UpdatedAt,
	)
	return err
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		SELECT id, owner_id, goal, budget_total, budget_remaining, status, created_at, updated_at
		FROM runs
		WHERE id = $1
	`
	var run models.Run
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.OwnerID,
		&run.Goal,
		&run.BudgetTotal,
		&run.BudgetRemaining,
		&run.Status,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns lists runs with optional owner and status filters, newest first
// unless the filter asks for the least recently updated
func (r *RunRepository) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.Run, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		SELECT id, owner_id, goal, budget_total, budget_remaining, status, created_at, updated_at
		FROM runs
		WHERE 1 = 1
	`
	var args []interface{}
	argIndex := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIndex)
		args = append(args, filter.OwnerID)
		argIndex++
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, status)
			argIndex++
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	if filter.StalestFirst {
		query += " ORDER BY updated_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		if err := rows.Scan(
			&run.ID,
			&run.OwnerID,
			&run.Goal,
			&run.BudgetTotal,
			&run.BudgetRemaining,
			&run.Status,
			&run.CreatedAt,
			&run.UpdatedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus sets the run status
func (r *RunRepository) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE runs SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeductBudget conditionally decrements the remaining budget
func (r *RunRepository) DeductBudget(ctx context.Context, id string, amount float64) (bool, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		UPDATE runs
		SET budget_remaining = budget_remaining - $1, updated_at = NOW()
		WHERE id = $2 AND budget_remaining >= $1
	`
	res, err := r.db.ExecContext(ctx, query, amount, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
