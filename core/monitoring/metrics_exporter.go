package monitoring

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gpu-renter/core/agent"
	"gpu-renter/core/models"
)

// StatsSource exposes the engine counters
type StatsSource interface {
	Stats() agent.StatsSnapshot
}

// MetricsExporter renders ledger and engine state in the Prometheus text format
type MetricsExporter struct {
	costs *CostTracker
	stats StatsSource
}

// NewMetricsExporter creates a new metrics exporter
func NewMetricsExporter(costs *CostTracker, stats StatsSource) *MetricsExporter {
	return &MetricsExporter{costs: costs, stats: stats}
}

var runStatuses = []models.RunStatus{
	models.RunStatusPending,
	models.RunStatusRunning,
	models.RunStatusCompleted,
	models.RunStatusFailed,
}

// GetPrometheusMetrics returns metrics in Prometheus format
func (me *MetricsExporter) GetPrometheusMetrics(ctx context.Context) (string, error) {
	summary, err := me.costs.Summary(ctx, "")
	if err != nil {
		return "", err
	}

	var b strings.Builder

	writeHeader(&b, "gpu_renter_runs", "gauge", "Runs by status")
	for _, status := range runStatuses {
		fmt.Fprintf(&b, "gpu_renter_runs{status=%q} %d\n", status, summary.RunsByStatus[status])
	}

	writeHeader(&b, "gpu_renter_budget_total_usd", "gauge", "Sum of run budgets")
	fmt.Fprintf(&b, "gpu_renter_budget_total_usd %.4f\n", summary.BudgetTotal)
	writeHeader(&b, "gpu_renter_budget_spent_usd", "gauge", "Budget deducted for paid jobs")
	fmt.Fprintf(&b, "gpu_renter_budget_spent_usd %.4f\n", summary.BudgetSpent)
	writeHeader(&b, "gpu_renter_budget_remaining_usd", "gauge", "Budget still available to runs")
	fmt.Fprintf(&b, "gpu_renter_budget_remaining_usd %.4f\n", summary.BudgetRemaining)

	if len(summary.TopSpenders) > 0 {
		writeHeader(&b, "gpu_renter_owner_spent_usd", "gauge", "Spend of the largest owners")
		spenders := append([]OwnerSpend(nil), summary.TopSpenders...)
		sort.Slice(spenders, func(i, j int) bool { return spenders[i].OwnerID < spenders[j].OwnerID })
		for _, s := range spenders {
			fmt.Fprintf(&b, "gpu_renter_owner_spent_usd{owner_id=%q} %.4f\n", s.OwnerID, s.Spent)
		}
	}

	if me.stats != nil {
		stats := me.stats.Stats()
		counters := []struct {
			name, help string
			value      int64
		}{
			{"gpu_renter_ticks_total", "Ticks processed", stats.Ticks},
			{"gpu_renter_jobs_started_total", "Jobs paid for and started", stats.JobsStarted},
			{"gpu_renter_jobs_completed_total", "Jobs completed", stats.JobsCompleted},
			{"gpu_renter_jobs_failed_total", "Jobs failed", stats.JobsFailed},
			{"gpu_renter_budget_races_total", "Submitted jobs whose budget deduction lost a race", stats.BudgetRaces},
			{"gpu_renter_budget_unknown_total", "Submitted jobs whose budget deduction outcome is unknown", stats.BudgetUnknown},
			{"gpu_renter_tick_failures_total", "Ticks that ended in an unexpected error", stats.TickFailures},
		}
		for _, c := range counters {
			writeHeader(&b, c.name, "counter", c.help)
			fmt.Fprintf(&b, "%s %d\n", c.name, c.value)
		}
	}

	return b.String(), nil
}

func writeHeader(b *strings.Builder, name, typ, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}
