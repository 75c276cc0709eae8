package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"gpu-renter/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to DATABASE_TEST_URL or skips the test
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("DATABASE_TEST_URL")
	if url == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	db, err := NewDB(url, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestNewDB_RequiresURL(t *testing.T) {
	_, err := NewDB("", time.Second)
	assert.Error(t, err)
}

func TestPostgresLedger_BudgetAndJobs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ledger := NewLedger(db)

	run := &models.Run{OwnerID: "owner", Goal: "goal", BudgetTotal: 2, BudgetRemaining: 2, Status: models.RunStatusPending}
	require.NoError(t, ledger.Runs.CreateRun(ctx, run))

	ok, err := ledger.Runs.DeductBudget(ctx, run.ID, 1.4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Runs.DeductBudget(ctx, run.ID, 1.4)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := ledger.Runs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.BudgetRemaining, 1e-6)

	job := &models.Job{RunID: run.ID, VendorID: "gpu_vendor_1", Status: models.JobStatusQuoted, ExpectedCost: models.Float64Ptr(1.4), ExpectedDurationMinutes: models.IntPtr(60)}
	require.NoError(t, ledger.Jobs.CreateJob(ctx, job))
	require.NoError(t, ledger.Jobs.UpdateJob(ctx, job.ID, models.JobUpdate{
		Status:      models.StatusPtr(models.JobStatusRunning),
		VendorJobID: models.StringPtr("vj"),
	}))

	jobs, err := ledger.Jobs.ListJobsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusRunning, jobs[0].Status)
	require.NotNil(t, jobs[0].ExpectedDurationMinutes)
	assert.Equal(t, 60, *jobs[0].ExpectedDurationMinutes)

	_, err = ledger.Runs.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresLedger_ObservationsAndActiveOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ledger := NewLedger(db)

	older := &models.Run{OwnerID: "owner", Goal: "goal", BudgetTotal: 1, BudgetRemaining: 1, Status: models.RunStatusPending}
	require.NoError(t, ledger.Runs.CreateRun(ctx, older))
	newer := &models.Run{OwnerID: "owner", Goal: "goal", BudgetTotal: 1, BudgetRemaining: 1, Status: models.RunStatusPending}
	require.NoError(t, ledger.Runs.CreateRun(ctx, newer))

	for _, content := range []string{"a", "b", "c"} {
		require.NoError(t, ledger.Observations.AppendObservation(ctx, &models.Observation{RunID: older.ID, Type: models.ObservationJobLog, Content: content}))
	}
	all, err := ledger.Observations.ListObservations(ctx, older.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	two, err := ledger.Observations.ListObservations(ctx, older.ID, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	runs, err := ledger.Runs.ListRuns(ctx, models.RunFilter{OwnerID: "owner", StalestFirst: true})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(runs), 2)
	for i := 1; i < len(runs); i++ {
		assert.False(t, runs[i].UpdatedAt.Before(runs[i-1].UpdatedAt))
	}
}
