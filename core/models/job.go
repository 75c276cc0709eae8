package models

import "time"

// Job represents one unit of rented vendor compute associated with a run
type Job struct {
	ID                      string    `json:"id"`
	RunID                   string    `json:"runId"`
	VendorID                string    `json:"vendorId"`
	VendorJobID             *string   `json:"vendorJobId,omitempty"`
	Status                  JobStatus `json:"status"`
	ExpectedCost            *float64  `json:"expectedCost,omitempty"`
	ExpectedDurationMinutes *int      `json:"expectedDurationMinutes,omitempty"`
	ActualCost              *float64  `json:"actualCost,omitempty"`
	ArtifactURL             *string   `json:"artifactUrl,omitempty"`
	ErrorMessage            *string   `json:"errorMessage,omitempty"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// JobStatus represents the current status of a job.
//
// The tick engine moves quoted jobs straight to running once submission
// and payment succeed. Submitted and cancelled exist for externally
// triggered cancellation and a future two-phase submission.
type JobStatus string

const (
	JobStatusQuoted    JobStatus = "quoted"
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsActive reports whether the job still occupies the run's single active slot
func (j Job) IsActive() bool {
	switch j.Status {
	case JobStatusQuoted, JobStatusSubmitted, JobStatusRunning:
		return true
	}
	return false
}

// IsTerminal reports whether the job reached a final state
func (j Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ActiveJob returns the first active job in jobs, or nil
func ActiveJob(jobs []Job) *Job {
	for i := range jobs {
		if jobs[i].IsActive() {
			job := jobs[i]
			return &job
		}
	}
	return nil
}

// JobUpdate carries the fields to change on a job. Nil fields are left untouched.
type JobUpdate struct {
	Status       *JobStatus
	VendorJobID  *string
	ActualCost   *float64
	ArtifactURL  *string
	ErrorMessage *string
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f
func Float64Ptr(f float64) *float64 { return &f }

// IntPtr returns a pointer to i
func IntPtr(i int) *int { return &i }

// StatusPtr returns a pointer to s
func StatusPtr(s JobStatus) *JobStatus { return &s }
