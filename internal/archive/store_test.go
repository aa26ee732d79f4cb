package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"simulearn/internal/sim"
)

func testRecord(id string, ts time.Time) sim.SavedRecord {
	return sim.SavedRecord{
		ID:           id,
		Timestamp:    ts,
		ScenarioKind: sim.ScenarioPhysics,
		Topic:        "pendulum motion",
		Report: sim.AnalysisReport{
			Score:        75,
			Evaluation:   "good intuition",
			KeyLearnings: []string{"period depends on length"},
			Suggestions:  "vary the amplitude",
		},
		Transcript: []sim.Message{
			{Role: sim.RoleModel, Text: "A pendulum swings."},
			{Role: sim.RoleUser, Text: "shorten the string"},
		},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	runStoreRoundTrip(t, NewMemoryStore())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	runStoreRoundTrip(t, NewFileStore(path))
}

func runStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := testRecord("rec-1", base)
	newer := testRecord("rec-2", base.Add(time.Hour))
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	got, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, older, got)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "rec-2", list[0].ID, "newest record first")

	require.NoError(t, store.Delete(ctx, "rec-1"))
	_, err = store.Get(ctx, "rec-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "rec-1"), ErrNotFound)
}

func TestStoreRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	rec := testRecord("  ", time.Now())
	require.Error(t, NewMemoryStore().Save(ctx, rec))
	require.Error(t, NewFileStore(filepath.Join(t.TempDir(), "a.json")).Save(ctx, rec))
}

func TestFileStoreSurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.json")
	rec := testRecord("rec-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, NewFileStore(path).Save(ctx, rec))

	reloaded := NewFileStore(path)
	got, err := reloaded.Get(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := testRecord("rec-1", time.Now())
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)
	got.Transcript[0].Text = "mutated"
	got.Report.KeyLearnings[0] = "mutated"

	again, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)
	require.Equal(t, "A pendulum swings.", again.Transcript[0].Text)
	require.Equal(t, "period depends on length", again.Report.KeyLearnings[0])
}
