package scheduler

import (
	"context"
	"sync"
	"time"

	"gpu-renter/core/agent"
	"gpu-renter/core/models"
	"gpu-renter/observability"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultConcurrency = 4
	// DefaultBatchSize caps how many runs one pass ticks
	DefaultBatchSize = 100
)

// RunTicker is the part of the run service the scheduler drives
type RunTicker interface {
	ActiveRuns(ctx context.Context, limit int) ([]models.Run, error)
	Tick(ctx context.Context, runID string) (agent.Result, error)
}

// Config controls the tick loop
type Config struct {
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

// Scheduler periodically ticks every non-terminal run
type Scheduler struct {
	runs     RunTicker
	cfg      Config
	log      *observability.Logger
	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
	running  sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(runs RunTicker, cfg Config, log *observability.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = observability.NopLogger()
	}
	return &Scheduler{
		runs:     runs,
		cfg:      cfg,
		log:      log.With("component", "Scheduler"),
		stopChan: make(chan struct{}),
	}
}

// Start runs the tick loop until ctx is cancelled or Stop is called. A pass
// in progress always finishes before Start returns.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.cfg.Interval.String(), "concurrency", s.cfg.Concurrency)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop stops the scheduler and waits for an in-flight pass to drain, so
// the stores can be closed once it returns. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}
	s.mu.Unlock()
	s.running.Wait()
}

// RunOnce ticks each active run once and returns how many were ticked
func (s *Scheduler) RunOnce(ctx context.Context) int {
	runs, err := s.runs.ActiveRuns(ctx, s.cfg.BatchSize)
	if err != nil {
		s.log.Error("failed to list active runs", "error", err)
		return 0
	}
	if len(runs) == 0 {
		return 0
	}

	queue := NewRunQueue(runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for {
		run, ok := queue.PopRun()
		if !ok {
			break
		}
		runID := run.ID
		g.Go(func() error {
			res, err := s.runs.Tick(gctx, runID)
			if err != nil {
				// one bad run must not cancel the rest of the pass
				s.log.Warn("scheduled tick failed", "run_id", runID, "error", err)
				return nil
			}
			s.log.Debug("scheduled tick", "run_id", runID, "message", res.Message)
			return nil
		})
	}
	_ = g.Wait()
	return len(runs)
}
