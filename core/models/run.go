package models

import "time"

// Run represents one goal-directed, budget-bounded procurement session
type Run struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Goal            string    `json:"goal"`
	BudgetTotal     float64   `json:"budgetTotal"`
	BudgetRemaining float64   `json:"budgetRemaining"`
	Status          RunStatus `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run can no longer be mutated by a tick
func (r Run) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// Spent returns how much of the budget has been committed to jobs
func (r Run) Spent() float64 {
	return r.BudgetTotal - r.BudgetRemaining
}

// RunFilter narrows run listings
type RunFilter struct {
	OwnerID  string
	Statuses []RunStatus
	Limit    int

	// StalestFirst orders by least recently updated instead of newest
	// created, so a limited listing cannot starve old runs
	StalestFirst bool
}
