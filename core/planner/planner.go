package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"gpu-renter/core/models"
)

// Action is the planner's chosen next step
type Action string

const (
	ActionStartJob Action = "start_job"
	ActionWait     Action = "wait"
	ActionAbort    Action = "abort"
)

// Decision is one planner verdict. VendorID and MaxHours are set only for start_job.
type Decision struct {
	Action   Action  `json:"action"`
	VendorID string  `json:"vendorId,omitempty"`
	MaxHours float64 `json:"maxHours,omitempty"`
	Reason   string  `json:"reason"`
}

// Input is the context a planner decides on
type Input struct {
	Run      models.Run
	Vendors  []models.Vendor
	Jobs     []models.Job
	Payments []models.Payment
}

// Mode names a planner implementation
type Mode string

const (
	ModeDeterministic Mode = "deterministic"
	ModeLLM           Mode = "llm"
)

// Result carries the decision together with its audit trail
type Result struct {
	Decision     Decision
	Mode         Mode
	Prompt       string
	RawResponse  string
	UsedFallback bool
}

// Planner chooses the next action for a run. It never fails; degraded
// paths are reported through Result.UsedFallback.
type Planner interface {
	Decide(ctx context.Context, in Input) Result
}

// Config selects and configures a planner
type Config struct {
	Mode Mode
	LLM  LLMConfig
}

// New builds the planner named by cfg.Mode
func New(cfg Config) (Planner, error) {
	switch cfg.Mode {
	case "", ModeDeterministic:
		return Deterministic{}, nil
	case ModeLLM:
		return NewLLM(cfg.LLM)
	default:
		return nil, fmt.Errorf("unknown planner mode %q", cfg.Mode)
	}
}

// AuditContent renders a result as the agent_reasoning observation body
func (r Result) AuditContent() string {
	decision, err := json.Marshal(r.Decision)
	if err != nil {
		decision = []byte(fmt.Sprintf("%+v", r.Decision))
	}
	content := fmt.Sprintf("mode: %s\nprompt: %s\ndecision: %s\nfallback: %t", r.Mode, r.Prompt, decision, r.UsedFallback)
	if r.RawResponse != "" {
		content += "\nraw: " + r.RawResponse
	}
	return content
}
