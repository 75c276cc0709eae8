package planner

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gpu-renter/core/models"
)

// Deterministic is the rule-based planner
type Deterministic struct{}

func (Deterministic) Decide(_ context.Context, in Input) Result {
	return Result{
		Decision: Decide(in, ""),
		Mode:     ModeDeterministic,
		Prompt:   string(ModeDeterministic),
	}
}

// Decide applies the deterministic policy. A non-empty fallbackReason marks
// the decision as a fallback and is used as its reason prefix.
func Decide(in Input, fallbackReason string) Decision {
	for _, job := range in.Jobs {
		if job.Status == models.JobStatusSubmitted || job.Status == models.JobStatusRunning {
			return Decision{Action: ActionWait, Reason: reasonOr(fallbackReason, "Job already active")}
		}
	}

	vendor, recovered := preferredVendor(in.Vendors, in.Jobs)
	if vendor == nil || vendor.BasePricePerHour <= 0 {
		return Decision{Action: ActionWait, Reason: reasonOr(fallbackReason, "No usable vendor price")}
	}

	maxHours := floor2(math.Min(in.Run.BudgetRemaining/vendor.BasePricePerHour, 1))
	if maxHours <= 0 {
		return Decision{Action: ActionAbort, Reason: "Insufficient budget"}
	}

	reason := "Cheapest available vendor"
	if recovered {
		reason = "Previous vendor failed, switching to " + vendor.ID
	}
	if fallbackReason != "" {
		reason = fallbackReason + " (fallback)"
	}
	return Decision{Action: ActionStartJob, VendorID: vendor.ID, MaxHours: maxHours, Reason: reason}
}

// preferredVendor orders vendors by price then reliability and returns the
// first without a failed job on this run. If every vendor has failed the
// cheapest is returned. recovered is true when a failed vendor was skipped.
func preferredVendor(vendors []models.Vendor, jobs []models.Job) (*models.Vendor, bool) {
	if len(vendors) == 0 {
		return nil, false
	}

	ordered := append([]models.Vendor(nil), vendors...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BasePricePerHour != ordered[j].BasePricePerHour {
			return ordered[i].BasePricePerHour < ordered[j].BasePricePerHour
		}
		return ordered[i].ReliabilityScore > ordered[j].ReliabilityScore
	})

	failed := failedVendors(jobs)
	for i := range ordered {
		if !failed[ordered[i].ID] {
			return &ordered[i], i > 0 && failed[ordered[0].ID]
		}
	}
	return &ordered[0], false
}

func failedVendors(jobs []models.Job) map[string]bool {
	failed := make(map[string]bool)
	for _, job := range jobs {
		if job.Status == models.JobStatusFailed {
			failed[job.VendorID] = true
		}
	}
	return failed
}

// floor2 truncates to two decimals so the bound never exceeds what the budget affords
func floor2(v float64) float64 {
	return math.Floor(v*100+1e-9) / 100
}

func reasonOr(fallbackReason, reason string) string {
	if fallbackReason != "" {
		return fmt.Sprintf("%s (fallback)", fallbackReason)
	}
	return reason
}
