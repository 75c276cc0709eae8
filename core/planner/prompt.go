package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

type vendorSummary struct {
	VendorID         string  `json:"vendorId"`
	BasePricePerHour float64 `json:"basePricePerHour"`
	ReliabilityScore float64 `json:"reliabilityScore"`
}

type jobSummary struct {
	VendorID     string   `json:"vendorId"`
	Status       string   `json:"status"`
	ExpectedCost *float64 `json:"expectedCost,omitempty"`
	ActualCost   *float64 `json:"actualCost,omitempty"`
}

// BuildPrompt renders the user prompt sent to the model
func BuildPrompt(in Input) string {
	vendors := make([]vendorSummary, 0, len(in.Vendors))
	for _, v := range in.Vendors {
		vendors = append(vendors, vendorSummary{VendorID: v.ID, BasePricePerHour: v.BasePricePerHour, ReliabilityScore: v.ReliabilityScore})
	}
	jobs := make([]jobSummary, 0, len(in.Jobs))
	for _, j := range in.Jobs {
		jobs = append(jobs, jobSummary{VendorID: j.VendorID, Status: string(j.Status), ExpectedCost: j.ExpectedCost, ActualCost: j.ActualCost})
	}

	vendorJSON, _ := json.Marshal(vendors)
	jobJSON, _ := json.Marshal(jobs)

	return strings.Join([]string{
		"You are a GPU procurement agent.",
		"Constraints:",
		"- Must not exceed run.budgetRemaining.",
		"- Must choose vendorId from provided vendors only.",
		"Return STRICT JSON only with fields: action, vendorId (if start_job), maxHours (if start_job), reason.",
		"",
		"Goal: " + in.Run.Goal,
		fmt.Sprintf("Budget remaining: %v", in.Run.BudgetRemaining),
		"Vendors: " + string(vendorJSON),
		"Past jobs: " + string(jobJSON),
		fmt.Sprintf("Payments count: %d", len(in.Payments)),
	}, "\n")
}
