package repository

import (
	"context"
	"database/sql"
	"time"

	"gpu-renter/core/models"

	"github.com/google/uuid"
)

// ObservationRepository handles database operations for run observations
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// AppendObservation inserts an audit entry
func (r *ObservationRepository) AppendObservation(ctx context.Context, obs *models.Observation) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO observations (id, run_id, job_id, type, content, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, obs.ID, obs.RunID, nullString(obs.JobID), obs.Type, obs.Content, obs.Timestamp)
	return err
}

// ListObservations retrieves observations for a run. A non-positive limit
// returns them all.
func (r *ObservationRepository) ListObservations(ctx context.Context, runID string, limit int) ([]models.Observation, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		SELECT id, run_id, job_id, type, content, timestamp
		FROM observations
		WHERE run_id = $1
		ORDER BY timestamp DESC
	`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var obs models.Observation
		var jobID sql.NullString

		if err := rows.Scan(
			&obs.ID,
			&obs.RunID,
			&jobID,
			&obs.Type,
			&obs.Content,
			&obs.Timestamp,
		); err != nil {
			return nil, err
		}

		obs.JobID = stringPtr(jobID)
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}
