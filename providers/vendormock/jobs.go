package vendormock

import (
	"fmt"
	"math"
)

// pollsToFinish is the number of status polls a job takes to settle
const pollsToFinish = 3

// Job is one simulated vendor job
type Job struct {
	VendorJobID string
	VendorID    string
	Status      string
	Progress    float64
	Logs        []string
	Polls       int
}

// Advance returns the job after one status poll. fail decides the outcome
// when the job reaches its final poll. Finished jobs are returned unchanged.
func Advance(job Job, fail bool) Job {
	if job.Status != statusRunning {
		return job
	}

	next := job
	next.Polls++
	next.Progress = math.Min(1, job.Progress+0.35)
	next.Logs = append(append([]string(nil), job.Logs...),
		fmt.Sprintf("Epoch %d/%d loss=%.2f", next.Polls, pollsToFinish, 1.5/float64(next.Polls)))

	if next.Polls >= pollsToFinish {
		if fail {
			next.Status = statusFailed
		} else {
			next.Status = statusCompleted
		}
	}
	return next
}

const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
