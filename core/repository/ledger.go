package repository

import (
	"context"
	"errors"

	"gpu-renter/core/models"
)

// ErrNotFound is returned by point lookups when no record matches
var ErrNotFound = errors.New("record not found")

// RunStore persists runs and owns the conditional budget update
type RunStore interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, filter models.RunFilter) ([]models.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus) error
	// DeductBudget decrements budget_remaining by amount only while it is
	// still >= amount. It reports false when no row changed.
	DeductBudget(ctx context.Context, id string, amount float64) (bool, error)
}

// VendorStore reads the vendor catalog
type VendorStore interface {
	ListVendors(ctx context.Context) ([]models.Vendor, error)
	GetVendor(ctx context.Context, id string) (*models.Vendor, error)
	UpsertVendor(ctx context.Context, vendor *models.Vendor) error
}

// JobStore persists jobs
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	// ListJobsByRun returns the run's jobs, most recently updated first
	ListJobsByRun(ctx context.Context, runID string) ([]models.Job, error)
	UpdateJob(ctx context.Context, id string, update models.JobUpdate) error
}

// PaymentStore persists payments
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPaymentsByRun(ctx context.Context, runID string) ([]models.Payment, error)
}

// ObservationLog is the append-only audit trail
type ObservationLog interface {
	AppendObservation(ctx context.Context, obs *models.Observation) error
	// ListObservations returns up to limit entries, most recent first
	ListObservations(ctx context.Context, runID string, limit int) ([]models.Observation, error)
}

// Ledger groups the stores the tick engine depends on
type Ledger struct {
	Runs         RunStore
	Vendors      VendorStore
	Jobs         JobStore
	Payments     PaymentStore
	Observations ObservationLog
}

// NewLedger builds a Postgres-backed ledger on top of db
func NewLedger(db *DB) Ledger {
	return Ledger{
		Runs:         NewRunRepository(db),
		Vendors:      NewVendorRepository(db),
		Jobs:         NewJobRepository(db),
		Payments:     NewPaymentRepository(db),
		Observations: NewObservationRepository(db),
	}
}
