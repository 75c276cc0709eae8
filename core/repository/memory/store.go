package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gpu-renter/core/models"
	"gpu-renter/core/repository"

	"github.com/google/uuid"
)

// Store keeps every ledger record in memory. It satisfies all of the
// repository store interfaces with the same semantics as Postgres,
// including the conditional budget update.
type Store struct {
	mu           sync.RWMutex
	runs         map[string]models.Run
	vendors      map[string]models.Vendor
	jobs         map[string]models.Job
	payments     map[string]models.Payment
	observations []models.Observation
	last         time.Time
}

var (
	_ repository.RunStore       = (*Store)(nil)
	_ repository.VendorStore    = (*Store)(nil)
	_ repository.JobStore       = (*Store)(nil)
	_ repository.PaymentStore   = (*Store)(nil)
	_ repository.ObservationLog = (*Store)(nil)
)

func New() *Store {
	return &Store{
		runs:     map[string]models.Run{},
		vendors:  map[string]models.Vendor{},
		jobs:     map[string]models.Job{},
		payments: map[string]models.Payment{},
	}
}

// Ledger exposes the store through every ledger interface
func (s *Store) Ledger() repository.Ledger {
	return repository.Ledger{
		Runs:         s,
		Vendors:      s,
		Jobs:         s,
		Payments:     s,
		Observations: s,
	}
}

// now returns a strictly increasing timestamp so recency ordering is stable.
// Caller must hold the write lock.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func (s *Store) CreateRun(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %q already exists", run.ID)
	}
	now := s.now()
	run.CreatedAt = now
	run.UpdatedAt = now
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &run, nil
}

func (s *Store) ListRuns(_ context.Context, filter models.RunFilter) ([]models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []models.Run
	for _, run := range s.runs {
		if filter.OwnerID != "" && run.OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, run.Status) {
			continue
		}
		runs = append(runs, run)
	}
	if filter.StalestFirst {
		sort.Slice(runs, func(i, j int) bool {
			if !runs[i].UpdatedAt.Equal(runs[j].UpdatedAt) {
				return runs[i].UpdatedAt.Before(runs[j].UpdatedAt)
			}
			return runs[i].ID < runs[j].ID
		})
	} else {
		sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	}
	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

func (s *Store) UpdateRunStatus(_ context.Context, id string, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return repository.ErrNotFound
	}
	run.Status = status
	run.UpdatedAt = s.now()
	s.runs[id] = run
	return nil
}

func (s *Store) DeductBudget(_ context.Context, id string, amount float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok || run.BudgetRemaining < amount {
		return false, nil
	}
	run.BudgetRemaining -= amount
	run.UpdatedAt = s.now()
	s.runs[id] = run
	return true, nil
}

func (s *Store) ListVendors(_ context.Context) ([]models.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vendors := make([]models.Vendor, 0, len(s.vendors))
	for _, v := range s.vendors {
		vendors = append(vendors, cloneVendor(v))
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].ID < vendors[j].ID })
	return vendors, nil
}

func (s *Store) GetVendor(_ context.Context, id string) (*models.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vendors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v = cloneVendor(v)
	return &v, nil
}

func (s *Store) UpsertVendor(_ context.Context, vendor *models.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.vendors[vendor.ID]; ok {
		vendor.CreatedAt = existing.CreatedAt
	} else {
		vendor.CreatedAt = now
	}
	vendor.UpdatedAt = now
	s.vendors[vendor.ID] = cloneVendor(*vendor)
	return nil
}

func (s *Store) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *Store) ListJobsByRun(_ context.Context, runID string) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []models.Job
	for _, job := range s.jobs {
		if job.RunID == runID {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt) })
	return jobs, nil
}

func (s *Store) UpdateJob(_ context.Context, id string, update models.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.VendorJobID != nil {
		job.VendorJobID = models.StringPtr(*update.VendorJobID)
	}
	if update.ActualCost != nil {
		job.ActualCost = models.Float64Ptr(*update.ActualCost)
	}
	if update.ArtifactURL != nil {
		job.ArtifactURL = models.StringPtr(*update.ArtifactURL)
	}
	if update.ErrorMessage != nil {
		job.ErrorMessage = models.StringPtr(*update.ErrorMessage)
	}
	job.UpdatedAt = s.now()
	s.jobs[id] = job
	return nil
}

func (s *Store) CreatePayment(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := s.now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	s.payments[payment.ID] = clonePayment(*payment)
	return nil
}

func (s *Store) ListPaymentsByRun(_ context.Context, runID string) ([]models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payments []models.Payment
	for _, p := range s.payments {
		if p.RunID == runID {
			payments = append(payments, clonePayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].UpdatedAt.After(payments[j].UpdatedAt) })
	return payments, nil
}

func (s *Store) AppendObservation(_ context.Context, obs *models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = s.now()
	}
	entry := *obs
	if obs.JobID != nil {
		entry.JobID = models.StringPtr(*obs.JobID)
	}
	s.observations = append(s.observations, entry)
	return nil
}

func (s *Store) ListObservations(_ context.Context, runID string, limit int) ([]models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Observation
	for i := len(s.observations) - 1; i >= 0; i-- {
		if s.observations[i].RunID == runID {
			out = append(out, s.observations[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsStatus(statuses []models.RunStatus, status models.RunStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneVendor(v models.Vendor) models.Vendor {
	v.SupportedGPUTypes = append([]string(nil), v.SupportedGPUTypes...)
	return v
}

func cloneJob(j models.Job) models.Job {
	if j.VendorJobID != nil {
		j.VendorJobID = models.StringPtr(*j.VendorJobID)
	}
	if j.ExpectedCost != nil {
		j.ExpectedCost = models.Float64Ptr(*j.ExpectedCost)
	}
	if j.ExpectedDurationMinutes != nil {
		j.ExpectedDurationMinutes = models.IntPtr(*j.ExpectedDurationMinutes)
	}
	if j.ActualCost != nil {
		j.ActualCost = models.Float64Ptr(*j.ActualCost)
	}
	if j.ArtifactURL != nil {
		j.ArtifactURL = models.StringPtr(*j.ArtifactURL)
	}
	if j.ErrorMessage != nil {
		j.ErrorMessage = models.StringPtr(*j.ErrorMessage)
	}
	return j
}

func clonePayment(p models.Payment) models.Payment {
	if p.ExternalTxID != nil {
		p.ExternalTxID = models.StringPtr(*p.ExternalTxID)
	}
	if p.ErrorMessage != nil {
		p.ErrorMessage = models.StringPtr(*p.ErrorMessage)
	}
	return p
}
