package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndRecent(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	ctx := context.Background()
	first := Record{
		BuildID:          "build-1",
		StartedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Duration:         1200 * time.Millisecond,
		Outcome:          "success",
		Rendered:         10,
		SkippedUnchanged: 5,
		SourceCommit:     "abc123",
	}
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, Record{
		BuildID:   "build-2",
		StartedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		Duration:  300 * time.Millisecond,
		Outcome:   "failed",
		Rendered:  2,
		Failed:    1,
		Failures: []Failure{
			{Path: "content/bad.md", Kind: "page", Category: "render", Message: "boom"},
		},
	}))

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Most recent first.
	require.Equal(t, "build-2", recent[0].BuildID)
	require.Equal(t, "failed", recent[0].Outcome)
	require.Len(t, recent[0].Failures, 1)
	require.Equal(t, "content/bad.md", recent[0].Failures[0].Path)

	require.Equal(t, first.BuildID, recent[1].BuildID)
	require.Equal(t, first.StartedAt, recent[1].StartedAt)
	require.Equal(t, first.Duration, recent[1].Duration)
	require.Equal(t, "abc123", recent[1].SourceCommit)
	require.Empty(t, recent[1].Failures)
}

func TestStore_RecentHonorsLimit(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, store.Append(ctx, Record{
			BuildID:   string(rune('a' + i)),
			StartedAt: time.Now(),
			Outcome:   "success",
		}))
	}

	recent, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "e", recent[0].BuildID)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), Record{
		BuildID: "persisted", StartedAt: time.Now(), Outcome: "success",
	}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	recent, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "persisted", recent[0].BuildID)
}
