package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperlens/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history", "paperlens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, RunRecord{
		ID:          "run-1",
		StartedAt:   started,
		FinishedAt:  started.Add(5 * time.Minute),
		Discovered:  120,
		Relevant:    14,
		Selected:    5,
		Delivered:   5,
		FilterTotal: 12,
		ScorerTotal: 2,
		Status:      "ok",
	}))
	require.NoError(t, store.RecordRun(ctx, RunRecord{
		ID:         "run-2",
		StartedAt:  started.Add(24 * time.Hour),
		FinishedAt: started.Add(24*time.Hour + time.Minute),
		Status:     "no papers found",
	}))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, 120, runs[1].Discovered)
	assert.Equal(t, 5, runs[1].Delivered)
	assert.Equal(t, 12, runs[1].FilterTotal)
	assert.Equal(t, "ok", runs[1].Status)
}

func TestRecentRunsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRun(ctx, RunRecord{
			ID:         string(rune('a' + i)),
			StartedAt:  time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2025, 1, 1+i, 0, 1, 0, 0, time.UTC),
		}))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, "e", runs[0].ID)
}

func TestFilterNewSkipsDelivered(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	papers := []types.Paper{
		{ID: "2501.00001", Title: "First"},
		{ID: "2501.00002", Title: "Second"},
		{ID: "2501.00003", Title: "Third"},
	}

	fresh := store.FilterNew(ctx, papers)
	assert.Len(t, fresh, 3)

	require.NoError(t, store.MarkDelivered(ctx, "run-1", papers[:2]))

	fresh = store.FilterNew(ctx, papers)
	require.Len(t, fresh, 1)
	assert.Equal(t, "2501.00003", fresh[0].ID)
}

func TestMarkDeliveredIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	papers := []types.Paper{{ID: "2501.00001", Title: "First"}}
	require.NoError(t, store.MarkDelivered(ctx, "run-1", papers))
	require.NoError(t, store.MarkDelivered(ctx, "run-2", papers))

	fresh := store.FilterNew(ctx, papers)
	assert.Empty(t, fresh)
}

func TestNilStoreIsDisabled(t *testing.T) {
	var store *Store
	ctx := context.Background()

	papers := []types.Paper{{ID: "2501.00001"}}
	assert.Equal(t, papers, store.FilterNew(ctx, papers))
	assert.NoError(t, store.MarkDelivered(ctx, "run-1", papers))
	assert.NoError(t, store.RecordRun(ctx, RunRecord{ID: "run-1"}))
	assert.NoError(t, store.Close())

	runs, err := store.RecentRuns(ctx, 10)
	assert.NoError(t, err)
	assert.Nil(t, runs)
}
