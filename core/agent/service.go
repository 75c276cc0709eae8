package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gpu-renter/core/models"
	"gpu-renter/core/repository"
	"gpu-renter/core/runlock"
	"gpu-renter/observability"

	"github.com/google/uuid"
)

var (
	// ErrValidation marks malformed caller input
	ErrValidation = errors.New("validation failed")
	// ErrRunNotFound is returned when a run id does not resolve
	ErrRunNotFound = errors.New("run not found")
)

// StatusObservationLimit is how many observations Status returns
const StatusObservationLimit = 50

// StartRunInput is the input to StartRun
type StartRunInput struct {
	OwnerID     string  `json:"ownerId"`
	Goal        string  `json:"goal"`
	BudgetTotal float64 `json:"budgetTotal"`
}

// RunStatus is a run with its jobs, payments and latest observations
type RunStatus struct {
	Run          models.Run           `json:"run"`
	Jobs         []models.Job         `json:"jobs"`
	Payments     []models.Payment     `json:"payments"`
	Observations []models.Observation `json:"observations"`
}

// Service is the control surface over runs
type Service struct {
	engine *Engine
	ledger repository.Ledger
	locker runlock.Locker
	log    *observability.Logger
}

// NewService creates a new run service
func NewService(engine *Engine, ledger repository.Ledger, locker runlock.Locker, log *observability.Logger) *Service {
	if locker == nil {
		locker = runlock.NewMemory()
	}
	if log == nil {
		log = observability.NopLogger()
	}
	return &Service{
		engine: engine,
		ledger: ledger,
		locker: locker,
		log:    log.With("component", "RunService"),
	}
}

// StartRun creates a pending run with its full budget remaining
func (s *Service) StartRun(ctx context.Context, in StartRunInput) (*models.Run, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	goal := strings.TrimSpace(in.Goal)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: ownerId is required", ErrValidation)
	}
	if goal == "" {
		return nil, fmt.Errorf("%w: goal is required", ErrValidation)
	}
	if math.IsNaN(in.BudgetTotal) || math.IsInf(in.BudgetTotal, 0) || in.BudgetTotal <= 0 {
		return nil, fmt.Errorf("%w: budgetTotal must be a positive number", ErrValidation)
	}

	run := &models.Run{
		OwnerID:         ownerID,
		Goal:            goal,
		BudgetTotal:     in.BudgetTotal,
		BudgetRemaining: in.BudgetTotal,
		Status:          models.RunStatusPending,
	}
	if err := s.ledger.Runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	s.log.Info("run started", "run_id", run.ID, "owner", ownerID, "budget", run.BudgetTotal)
	return run, nil
}

// Tick advances a run under its per-run lock
func (s *Service) Tick(ctx context.Context, runID string) (Result, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return Result{}, fmt.Errorf("%w: runId is required", ErrValidation)
	}
	if _, err := uuid.Parse(runID); err != nil {
		return Result{}, fmt.Errorf("%w: invalid runId", ErrValidation)
	}

	release, err := s.locker.Acquire(ctx, runID)
	if errors.Is(err, runlock.ErrLocked) {
		return Result{Message: MsgTickInProgress}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	return s.engine.Tick(ctx, runID), nil
}

// Status returns the run, its jobs and payments most recently updated
// first, and the latest observations most recent first
func (s *Service) Status(ctx context.Context, runID string) (*RunStatus, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("%w: runId is required", ErrValidation)
	}
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("%w: invalid runId", ErrValidation)
	}

	run, err := s.ledger.Runs.GetRun(ctx, runID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	jobs, err := s.ledger.Jobs.ListJobsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	payments, err := s.ledger.Payments.ListPaymentsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	observations, err := s.ledger.Observations.ListObservations(ctx, runID, StatusObservationLimit)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}

	return &RunStatus{
		Run:          *run,
		Jobs:         nonNil(jobs),
		Payments:     nonNil(payments),
		Observations: nonNil(observations),
	}, nil
}

// ActiveRuns lists runs that a scheduler should keep ticking, least
// recently updated first
func (s *Service) ActiveRuns(ctx context.Context, limit int) ([]models.Run, error) {
	return s.ledger.Runs.ListRuns(ctx, models.RunFilter{
		Statuses:     []models.RunStatus{models.RunStatusPending, models.RunStatusRunning},
		Limit:        limit,
		StalestFirst: true,
	})
}

// ListRuns lists runs for reporting
func (s *Service) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.Run, error) {
	return s.ledger.Runs.ListRuns(ctx, filter)
}

// ListVendors returns the vendor catalog
func (s *Service) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	vendors, err := s.ledger.Vendors.ListVendors(ctx)
	return nonNil(vendors), err
}

// Stats returns the engine counters
func (s *Service) Stats() StatsSnapshot {
	return s.engine.Stats()
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
