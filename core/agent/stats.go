package agent

import "sync/atomic"

// Stats counts engine outcomes since process start
type Stats struct {
	ticks         atomic.Int64
	jobsStarted   atomic.Int64
	jobsCompleted atomic.Int64
	jobsFailed    atomic.Int64
	budgetRaces   atomic.Int64
	budgetUnknown atomic.Int64
	tickFailures  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Ticks         int64 `json:"ticks"`
	JobsStarted   int64 `json:"jobsStarted"`
	JobsCompleted int64 `json:"jobsCompleted"`
	JobsFailed    int64 `json:"jobsFailed"`
	BudgetRaces   int64 `json:"budgetRaces"`
	BudgetUnknown int64 `json:"budgetUnknown"`
	TickFailures  int64 `json:"tickFailures"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Ticks:         s.ticks.Load(),
		JobsStarted:   s.jobsStarted.Load(),
		JobsCompleted: s.jobsCompleted.Load(),
		JobsFailed:    s.jobsFailed.Load(),
		BudgetRaces:   s.budgetRaces.Load(),
		BudgetUnknown: s.budgetUnknown.Load(),
		TickFailures:  s.tickFailures.Load(),
	}
}
