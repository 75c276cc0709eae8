package repository

import (
	"context"
	"database/sql"
	"time"

	"gpu-renter/core/models"

	"github.com/google/uuid"
)

// PaymentRepository handles database operations for payments
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment records a payment attempt
func (r *PaymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO payments (
			id, run_id, job_id, vendor_id, amount, currency, status,
			external_tx_id, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.RunID,
		payment.JobID,
		payment.VendorID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		nullString(payment.ExternalTxID),
		nullString(payment.ErrorMessage),
		now,
		now,
	)
	if err != nil {
		return err
	}

	payment.CreatedAt = now
	payment.UpdatedAt = now
	return nil
}

// ListPaymentsByRun lists a run's payments, most recently updated first
func (r *PaymentRepository) ListPaymentsByRun(ctx context.Context, runID string) ([]models.Payment, error) {
	ctx, cancel := r.db.bound(ctx)
	defer cancel()

	query := `
		SELECT id, run_id, job_id, vendor_id, amount, currency, status,
			external_tx_id, error_message, created_at, updated_at
		FROM payments
		WHERE run_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var txID, errorMessage sql.NullString
		if err := rows.Scan(
			&p.ID,
			&p.RunID,
			&p.JobID,
			&p.VendorID,
			&p.Amount,
			&p.Currency,
			&p.Status,
			&txID,
			&errorMessage,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.ExternalTxID = stringPtr(txID)
		p.ErrorMessage = stringPtr(errorMessage)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
