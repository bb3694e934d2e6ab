package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/config"
)

func watchFixture(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{Site: config.SiteConfig{Title: "T"}}
	cfg.ApplyDefaults()
	for _, d := range []string{"content", "templates", "data", "static"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o750))
	}
	return root, cfg
}

func TestRun_FileChangeTriggersDebouncedBuild(t *testing.T) {
	root, cfg := watchFixture(t)

	var builds atomic.Int32
	w := New(root, cfg, Options{Debounce: 50 * time.Millisecond},
		func(context.Context, bool) { builds.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// A burst of writes coalesces into one build.
	for i := range 3 {
		require.NoError(t, os.WriteFile(
			filepath.Join(root, "content", "page.md"),
			[]byte{byte('a' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return builds.Load() == 1 },
		2*time.Second, 20*time.Millisecond)

	// No further events, no further builds.
	time.Sleep(150 * time.Millisecond)
	require.EqualValues(t, 1, builds.Load())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_BuildWaitsFullQuietWindowAfterLastEvent(t *testing.T) {
	root, cfg := watchFixture(t)

	debounce := 150 * time.Millisecond
	var builds atomic.Int32
	var builtAt atomic.Int64
	w := New(root, cfg, Options{Debounce: debounce}, func(context.Context, bool) {
		builds.Add(1)
		builtAt.Store(time.Now().UnixNano())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Each write lands inside the previous quiet window, so the window must
	// restart from the last event rather than from any earlier timer tick.
	var last time.Time
	for i := range 3 {
		last = time.Now()
		require.NoError(t, os.WriteFile(
			filepath.Join(root, "content", "page.md"),
			[]byte{byte('a' + i)}, 0o644))
		time.Sleep(100 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return builds.Load() == 1 },
		2*time.Second, 20*time.Millisecond)
	elapsed := time.Unix(0, builtAt.Load()).Sub(last)
	require.GreaterOrEqual(t, elapsed, debounce)
}

func TestRun_IgnoresOutputAndHiddenPaths(t *testing.T) {
	root, cfg := watchFixture(t)
	w := New(root, cfg, Options{}, func(context.Context, bool) {})

	require.True(t, w.ignored(filepath.Join(root, "public", "index.html")))
	require.True(t, w.ignored(filepath.Join(root, ".sitesmith", "manifest.json")))
	require.True(t, w.ignored(filepath.Join(root, "content", ".page.md.swp")))
	require.False(t, w.ignored(filepath.Join(root, "content", "page.md")))
	require.False(t, w.ignored(filepath.Join(root, "templates", "post.html")))
}

func TestRun_NewSubdirectoryIsWatched(t *testing.T) {
	root, cfg := watchFixture(t)

	var builds atomic.Int32
	w := New(root, cfg, Options{Debounce: 50 * time.Millisecond},
		func(context.Context, bool) { builds.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "content", "posts")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	require.Eventually(t, func() bool { return builds.Load() >= 1 },
		2*time.Second, 20*time.Millisecond)

	// Writes inside the new directory keep triggering builds.
	prev := builds.Load()
	require.NoError(t, os.WriteFile(filepath.Join(sub, "new.md"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return builds.Load() > prev },
		2*time.Second, 20*time.Millisecond)
}

func TestRun_ScheduledFullRebuild(t *testing.T) {
	root, cfg := watchFixture(t)

	var forced atomic.Int32
	w := New(root, cfg, Options{FullRebuildEvery: 100 * time.Millisecond},
		func(_ context.Context, force bool) {
			if force {
				forced.Add(1)
			}
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool { return forced.Load() >= 1 },
		3*time.Second, 20*time.Millisecond)
}
