package models

import "time"

// Payment is the settlement record for one job's submission attempt
type Payment struct {
	ID           string        `json:"id"`
	RunID        string        `json:"runId"`
	JobID        string        `json:"jobId"`
	VendorID     string        `json:"vendorId"`
	Amount       float64       `json:"amount"`
	Currency     string        `json:"currency"`
	Status       PaymentStatus `json:"status"`
	ExternalTxID *string       `json:"externalTxId,omitempty"`
	ErrorMessage *string       `json:"errorMessage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// PaymentStatus represents the settlement state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ObservationType classifies audit entries
type ObservationType string

const (
	ObservationJobLog         ObservationType = "job_log"
	ObservationMetric         ObservationType = "metric"
	ObservationError          ObservationType = "error"
	ObservationAgentReasoning ObservationType = "agent_reasoning"
)

// Observation is an immutable, timestamped audit entry attached to a run
// and optionally to one of its jobs
type Observation struct {
	ID        string          `json:"id"`
	RunID     string          `json:"runId"`
	JobID     *string         `json:"jobId,omitempty"`
	Type      ObservationType `json:"type"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}
