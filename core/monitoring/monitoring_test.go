package monitoring

import (
	"context"
	"errors"
	"testing"

	"gpu-renter/core/agent"
	"gpu-renter/core/models"
	"gpu-renter/core/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats agent.StatsSnapshot

func (f fixedStats) Stats() agent.StatsSnapshot { return agent.StatsSnapshot(f) }

type failingRuns struct{}

func (failingRuns) ListRuns(context.Context, models.RunFilter) ([]models.Run, error) {
	return nil, errors.New("db down")
}

func seedRuns(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	runs := []models.Run{
		{OwnerID: "alice", Goal: "g", BudgetTotal: 2, BudgetRemaining: 0.6, Status: models.RunStatusRunning},
		{OwnerID: "alice", Goal: "g", BudgetTotal: 1, BudgetRemaining: 1, Status: models.RunStatusPending},
		{OwnerID: "bob", Goal: "g", BudgetTotal: 5, BudgetRemaining: 1, Status: models.RunStatusCompleted},
	}
	for i := range runs {
		require.NoError(t, store.CreateRun(context.Background(), &runs[i]))
	}
	return store
}

func TestSummary(t *testing.T) {
	tracker := NewCostTracker(seedRuns(t))

	all, err := tracker.Summary(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Runs)
	assert.InDelta(t, 8.0, all.BudgetTotal, 1e-9)
	assert.InDelta(t, 5.4, all.BudgetSpent, 1e-9)
	assert.InDelta(t, 2.6, all.BudgetRemaining, 1e-9)
	assert.Equal(t, 1, all.RunsByStatus[models.RunStatusCompleted])
	require.Len(t, all.TopSpenders, 2)
	assert.Equal(t, "bob", all.TopSpenders[0].OwnerID)

	alice, err := tracker.Summary(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, alice.Runs)
	assert.InDelta(t, 1.4, alice.BudgetSpent, 1e-9)
	assert.Empty(t, alice.TopSpenders)
}

func TestSummaryError(t *testing.T) {
	_, err := NewCostTracker(failingRuns{}).Summary(context.Background(), "")
	assert.Error(t, err)
}

func TestGetPrometheusMetrics(t *testing.T) {
	exporter := NewMetricsExporter(NewCostTracker(seedRuns(t)), fixedStats{Ticks: 7, BudgetRaces: 1, BudgetUnknown: 2})

	out, err := exporter.GetPrometheusMetrics(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "# TYPE gpu_renter_runs gauge\n")
	assert.Contains(t, out, `gpu_renter_runs{status="running"} 1`)
	assert.Contains(t, out, `gpu_renter_runs{status="failed"} 0`)
	assert.Contains(t, out, "gpu_renter_budget_spent_usd 5.4000\n")
	assert.Contains(t, out, `gpu_renter_owner_spent_usd{owner_id="alice"} 1.4000`)
	assert.Contains(t, out, "gpu_renter_ticks_total 7\n")
	assert.Contains(t, out, "gpu_renter_budget_races_total 1\n")
	assert.Contains(t, out, "gpu_renter_budget_unknown_total 2\n")
}

func TestGetPrometheusMetricsError(t *testing.T) {
	_, err := NewMetricsExporter(NewCostTracker(failingRuns{}), nil).GetPrometheusMetrics(context.Background())
	assert.Error(t, err)
}
