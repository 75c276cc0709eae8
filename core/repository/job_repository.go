package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gpu-renter/core/models"

	"github.com/google/uuid"
)

// JobRepository handles database operations for jobs
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob creates a new job in the database
func (r *JobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		INSERT INTO jobs (
			id, run_id, vendor_id, vendor_job_id, status, expected_cost,
			expected_duration_minutes, actual_cost, artifact_url, error_message,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	var duration sql.NullInt64
	if job.ExpectedDurationMinutes != nil {
		duration = sql.NullInt64{Int64: int64(*job.ExpectedDurationMinutes), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.RunID,
		job.VendorID,
		nullString(job.VendorJobID),
		job.Status,
		nullFloat(job.ExpectedCost),
		duration,
		nullFloat(job.ActualCost),
		nullString(job.ArtifactURL),
		nullString(job.ErrorMessage),
		now,
		now,
	)
	if err != nil {
		return err
	}

	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

// ListJobsByRun lists a run's jobs, most recently updated first
func (r *JobRepository) ListJobsByRun(ctx context.Context, runID string) ([]models.Job, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		SELECT id, run_id, vendor_id, vendor_job_id, status, expected_cost,
			expected_duration_minutes, actual_cost, artifact_url, error_message,
			created_at, updated_at
		FROM jobs
		WHERE run_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var job models.Job
		var vendorJobID, artifactURL, errorMessage sql.NullString
		var expectedCost, actualCost sql.NullFloat64
		var duration sql.NullInt64

		if err := rows.Scan(
			&job.ID,
			&job.RunID,
			&job.VendorID,
			&vendorJobID,
			&job.Status,
			&expectedCost,
			&duration,
			&actualCost,
			&artifactURL,
			&errorMessage,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, err
		}

		job.VendorJobID = stringPtr(vendorJobID)
		job.ExpectedCost = floatPtr(expectedCost)
		job.ActualCost = floatPtr(actualCost)
		job.ArtifactURL = stringPtr(artifactURL)
		job.ErrorMessage = stringPtr(errorMessage)
		if duration.Valid {
			minutes := int(duration.Int64)
			job.ExpectedDurationMinutes = &minutes
		}

		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// UpdateJob applies the non-nil fields of update to the job
func (r *JobRepository) UpdateJob(ctx context.Context, id string, update models.JobUpdate) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.VendorJobID != nil {
		add("vendor_job_id", *update.VendorJobID)
	}
	if update.ActualCost != nil {
		add("actual_cost", *update.ActualCost)
	}
	if update.ArtifactURL != nil {
		add("artifact_url", *update.ArtifactURL)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE jobs SET %s, updated_at = NOW() WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
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
