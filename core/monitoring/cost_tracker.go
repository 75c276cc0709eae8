package monitoring

import (
	"context"
	"fmt"
	"sort"

	"gpu-renter/core/models"
)

// RunLister lists runs from the ledger
type RunLister interface {
	ListRuns(ctx context.Context, filter models.RunFilter) ([]models.Run, error)
}

// SpendSummary aggregates budgets across runs
type SpendSummary struct {
	OwnerID         string                   `json:"ownerId,omitempty"`
	Runs            int                      `json:"runs"`
	RunsByStatus    map[models.RunStatus]int `json:"runsByStatus"`
	BudgetTotal     float64                  `json:"budgetTotal"`
	BudgetSpent     float64                  `json:"budgetSpent"`
	BudgetRemaining float64                  `json:"budgetRemaining"`
	TopSpenders     []OwnerSpend             `json:"topSpenders,omitempty"`
}

// OwnerSpend is the amount one owner has spent
type OwnerSpend struct {
	OwnerID string  `json:"ownerId"`
	Spent   float64 `json:"spent"`
}

const topSpenderCount = 5

// CostTracker derives spend from run budgets. A run's spend is what its
// conditional deductions removed, so the ledger is the only source.
type CostTracker struct {
	runs RunLister
}

// NewCostTracker creates a new cost tracker
func NewCostTracker(runs RunLister) *CostTracker {
	return &CostTracker{runs: runs}
}

// Summary aggregates spend, optionally for a single owner
func (ct *CostTracker) Summary(ctx context.Context, ownerID string) (*SpendSummary, error) {
	runs, err := ct.runs.ListRuns(ctx, models.RunFilter{OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return Summarize(ownerID, runs), nil
}

// Summarize aggregates an already loaded set of runs
func Summarize(ownerID string, runs []models.Run) *SpendSummary {
	summary := &SpendSummary{
		OwnerID:      ownerID,
		Runs:         len(runs),
		RunsByStatus: make(map[models.RunStatus]int),
	}
	byOwner := make(map[string]float64)

	for _, run := range runs {
		summary.RunsByStatus[run.Status]++
		summary.BudgetTotal += run.BudgetTotal
		summary.BudgetRemaining += run.BudgetRemaining
		summary.BudgetSpent += run.Spent()
		byOwner[run.OwnerID] += run.Spent()
	}

	if ownerID == "" {
		for owner, spent := range byOwner {
			summary.TopSpenders = append(summary.TopSpenders, OwnerSpend{OwnerID: owner, Spent: spent})
		}
		sort.Slice(summary.TopSpenders, func(i, j int) bool {
			if summary.TopSpenders[i].Spent != summary.TopSpenders[j].Spent {
				return summary.TopSpenders[i].Spent > summary.TopSpenders[j].Spent
			}
			return summary.TopSpenders[i].OwnerID < summary.TopSpenders[j].OwnerID
		})
		if len(summary.TopSpenders) > topSpenderCount {
			summary.TopSpenders = summary.TopSpenders[:topSpenderCount]
		}
	}
	return summary
}
