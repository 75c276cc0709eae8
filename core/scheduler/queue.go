package scheduler

import (
	"container/heap"

	"gpu-renter/core/models"
)

// RunQueue orders runs for dispatch within one scheduler pass
type RunQueue struct {
	runs []*queuedRun
}

type queuedRun struct {
	run   models.Run
	index int
}

// NewRunQueue creates a queue holding runs
func NewRunQueue(runs []models.Run) *RunQueue {
	q := &RunQueue{runs: make([]*queuedRun, 0, len(runs))}
	for i := range runs {
		q.runs = append(q.runs, &queuedRun{run: runs[i], index: i})
	}
	heap.Init(q)
	return q
}

// PopRun removes and returns the most urgent run
func (q *RunQueue) PopRun() (models.Run, bool) {
	if q.Len() == 0 {
		return models.Run{}, false
	}
	return heap.Pop(q).(*queuedRun).run, true
}

func (q *RunQueue) Len() int {
	return len(q.runs)
}

// Less puts runs with a job in flight first, since their vendor state is
// what moves, then the least recently updated
func (q *RunQueue) Less(i, j int) bool {
	a, b := q.runs[i].run, q.runs[j].run
	if (a.Status == models.RunStatusRunning) != (b.Status == models.RunStatusRunning) {
		return a.Status == models.RunStatusRunning
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func (q *RunQueue) Swap(i, j int) {
	q.runs[i], q.runs[j] = q.runs[j], q.runs[i]
	q.runs[i].index = i
	q.runs[j].index = j
}

// Push implements heap.Interface
func (q *RunQueue) Push(x interface{}) {
	item := x.(*queuedRun)
	item.index = len(q.runs)
	q.runs = append(q.runs, item)
}

// Pop implements heap.Interface
func (q *RunQueue) Pop() interface{} {
	old := q.runs
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.runs = old[:n-1]
	return item
}
