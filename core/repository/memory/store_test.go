package memory_test

import (
	"context"
	"sync"
	"testing"

	"gpu-renter/core/models"
	"gpu-renter/core/repository"
	"gpu-renter/core/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(t *testing.T, store *memory.Store, budget float64) *models.Run {
	t.Helper()
	run := &models.Run{OwnerID: "owner", Goal: "fine-tune", BudgetTotal: budget, BudgetRemaining: budget, Status: models.RunStatusPending}
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

func TestStore_GetRunNotFound(t *testing.T) {
	store := memory.New()

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_DeductBudgetConditional(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	run := newRun(t, store, 2.0)

	ok, err := store.DeductBudget(ctx, run.ID, 1.4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeductBudget(ctx, run.ID, 1.4)
	require.NoError(t, err)
	assert.False(t, ok, "second deduction must fail closed")

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.BudgetRemaining, 1e-9)
}

func TestStore_DeductBudgetConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	run := newRun(t, store, 1.5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.DeductBudget(ctx, run.ID, 1.0)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.BudgetRemaining, 1e-9)
}

func TestStore_JobsOrderedByRecentUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	run := newRun(t, store, 5)

	first := &models.Job{RunID: run.ID, VendorID: "v1", Status: models.JobStatusQuoted}
	second := &models.Job{RunID: run.ID, VendorID: "v2", Status: models.JobStatusQuoted}
	require.NoError(t, store.CreateJob(ctx, first))
	require.NoError(t, store.CreateJob(ctx, second))

	require.NoError(t, store.UpdateJob(ctx, first.ID, models.JobUpdate{
		Status:      models.StatusPtr(models.JobStatusRunning),
		VendorJobID: models.StringPtr("vj-1"),
	}))

	jobs, err := store.ListJobsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID)
	assert.Equal(t, models.JobStatusRunning, jobs[0].Status)
	require.NotNil(t, jobs[0].VendorJobID)
	assert.Equal(t, "vj-1", *jobs[0].VendorJobID)
	assert.Nil(t, jobs[1].VendorJobID)
}

func TestStore_UpdateJobNotFound(t *testing.T) {
	store := memory.New()

	err := store.UpdateJob(context.Background(), "nope", models.JobUpdate{Status: models.StatusPtr(models.JobStatusFailed)})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_ObservationsMostRecentFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	run := newRun(t, store, 1)
	other := newRun(t, store, 1)

	for _, content := range []string{"a", "b", "c"} {
		require.NoError(t, store.AppendObservation(ctx, &models.Observation{RunID: run.ID, Type: models.ObservationJobLog, Content: content}))
	}
	require.NoError(t, store.AppendObservation(ctx, &models.Observation{RunID: other.ID, Type: models.ObservationError, Content: "x"}))

	obs, err := store.ListObservations(ctx, run.ID, 2)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "c", obs[0].Content)
	assert.Equal(t, "b", obs[1].Content)
}

func TestStore_ListRunsFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := newRun(t, store, 1)
	b := newRun(t, store, 1)
	require.NoError(t, store.UpdateRunStatus(ctx, b.ID, models.RunStatusCompleted))

	runs, err := store.ListRuns(ctx, models.RunFilter{Statuses: []models.RunStatus{models.RunStatusPending, models.RunStatusRunning}})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, a.ID, runs[0].ID)
}

func TestStore_ListRunsStalestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := newRun(t, store, 1)
	b := newRun(t, store, 1)
	c := newRun(t, store, 1)
	require.NoError(t, store.UpdateRunStatus(ctx, a.ID, models.RunStatusRunning))

	runs, err := store.ListRuns(ctx, models.RunFilter{StalestFirst: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b.ID, runs[0].ID)
	assert.Equal(t, c.ID, runs[1].ID)
}

func TestStore_ObservationsNonPositiveLimitReturnsAll(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	run := newRun(t, store, 1)
	for _, content := range []string{"a", "b", "c"} {
		require.NoError(t, store.AppendObservation(ctx, &models.Observation{RunID: run.ID, Type: models.ObservationJobLog, Content: content}))
	}

	for _, limit := range []int{0, -1} {
		obs, err := store.ListObservations(ctx, run.ID, limit)
		require.NoError(t, err)
		assert.Len(t, obs, 3)
	}
}

func TestStore_UpsertVendorPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	v := &models.Vendor{ID: "gpu_vendor_1", Name: "FastGPU", BasePricePerHour: 1.4, SupportedGPUTypes: []string{"A10"}}
	require.NoError(t, store.UpsertVendor(ctx, v))
	created := v.CreatedAt

	v2 := &models.Vendor{ID: "gpu_vendor_1", Name: "FasterGPU", BasePricePerHour: 1.2}
	require.NoError(t, store.UpsertVendor(ctx, v2))

	got, err := store.GetVendor(ctx, "gpu_vendor_1")
	require.NoError(t, err)
	assert.Equal(t, "FasterGPU", got.Name)
	assert.Equal(t, created, got.CreatedAt)
}
