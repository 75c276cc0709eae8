package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gpu-renter/core/agent"
	"gpu-renter/core/models"

	"github.com/stretchr/testify/assert"
)

type stubRuns struct {
	runs    []models.Run
	listErr error
	tickErr map[string]error
	delay   time.Duration
	entered chan struct{}
	gate    chan struct{}

	mu       sync.Mutex
	ticked   []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubRuns) ActiveRuns(context.Context, int) ([]models.Run, error) {
	return s.runs, s.listErr
}

func (s *stubRuns) Tick(_ context.Context, runID string) (agent.Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(s.delay)
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.gate
	}

	s.mu.Lock()
	s.ticked = append(s.ticked, runID)
	s.mu.Unlock()
	return agent.Result{Message: agent.MsgJobStillRunning}, s.tickErr[runID]
}

func runsWithIDs(ids ...string) []models.Run {
	runs := make([]models.Run, len(ids))
	for i, id := range ids {
		runs[i] = models.Run{ID: id, Status: models.RunStatusRunning}
	}
	return runs
}

func TestRunOnce_TicksEveryRun(t *testing.T) {
	stub := &stubRuns{
		runs:    runsWithIDs("a", "b", "c"),
		tickErr: map[string]error{"b": errors.New("boom")},
	}
	s := NewScheduler(stub, Config{Concurrency: 2}, nil)

	assert.Equal(t, 3, s.RunOnce(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, stub.ticked)
}

func TestRunOnce_BoundsConcurrency(t *testing.T) {
	stub := &stubRuns{runs: runsWithIDs("1", "2", "3", "4", "5", "6"), delay: 20 * time.Millisecond}
	s := NewScheduler(stub, Config{Concurrency: 2}, nil)

	s.RunOnce(context.Background())
	assert.Len(t, stub.ticked, 6)
	assert.LessOrEqual(t, stub.peak.Load(), int32(2))
}

func TestRunOnce_ListFailure(t *testing.T) {
	stub := &stubRuns{listErr: errors.New("db down")}
	s := NewScheduler(stub, Config{}, nil)

	assert.Zero(t, s.RunOnce(context.Background()))
	assert.Empty(t, stub.ticked)
}

func TestStartStop(t *testing.T) {
	stub := &stubRuns{runs: runsWithIDs("a")}
	s := NewScheduler(stub, Config{Interval: 5 * time.Millisecond}, nil)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		return len(stub.ticked) > 0
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStopWaitsForInFlightPass(t *testing.T) {
	stub := &stubRuns{
		runs:    runsWithIDs("a"),
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	s := NewScheduler(stub, Config{Interval: 5 * time.Millisecond}, nil)
	go s.Start(context.Background())

	select {
	case <-stub.entered:
	case <-time.After(time.Second):
		t.Fatal("tick never started")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(stub.gate)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}
	assert.Contains(t, stub.ticked, "a")
}

func TestStopBeforeStart(t *testing.T) {
	s := NewScheduler(&stubRuns{}, Config{Interval: time.Millisecond}, nil)
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start ran after Stop")
	}
}

func TestRunQueueOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := []models.Run{
		{ID: "pending-old", Status: models.RunStatusPending, UpdatedAt: base},
		{ID: "running-new", Status: models.RunStatusRunning, UpdatedAt: base.Add(2 * time.Minute)},
		{ID: "pending-new", Status: models.RunStatusPending, UpdatedAt: base.Add(time.Minute)},
		{ID: "running-old", Status: models.RunStatusRunning, UpdatedAt: base.Add(time.Minute)},
	}

	q := NewRunQueue(runs)
	var order []string
	for {
		run, ok := q.PopRun()
		if !ok {
			break
		}
		order = append(order, run.ID)
	}
	assert.Equal(t, []string{"running-old", "running-new", "pending-old", "pending-new"}, order)
}

func TestRunOnce_DispatchesInQueueOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stub := &stubRuns{runs: []models.Run{
		{ID: "p", Status: models.RunStatusPending, UpdatedAt: base},
		{ID: "r", Status: models.RunStatusRunning, UpdatedAt: base.Add(time.Hour)},
	}}
	s := NewScheduler(stub, Config{Concurrency: 1}, nil)

	s.RunOnce(context.Background())
	assert.Equal(t, []string{"r", "p"}, stub.ticked)
}
