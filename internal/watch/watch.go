// Package watch drives rebuild-on-change: filesystem events from the source
// tree are debounced into incremental builds, with an optional scheduled
// periodic full rebuild as a safety net against missed events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitesmith/internal/build"
	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
)

// DefaultDebounce is the quiet window applied to bursts of file events.
const DefaultDebounce = 500 * time.Millisecond

// BuildFunc runs one build. force requests a full rebuild.
type BuildFunc func(ctx context.Context, force bool)

// Options tune the watch loop.
type Options struct {
	// Debounce is the quiet window before a burst of events triggers a
	// build. Zero means DefaultDebounce.
	Debounce time.Duration
	// FullRebuildEvery schedules periodic forced rebuilds. Zero disables.
	FullRebuildEvery time.Duration
}

// Watcher owns one watch session over a source root.
type Watcher struct {
	root   string
	cfg    *config.Config
	opts   Options
	build  BuildFunc
	logger *slog.Logger
}

// New creates a watcher. The build function is invoked from the watch loop
// goroutine, so builds never overlap.
func New(root string, cfg *config.Config, opts Options, buildFn BuildFunc) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		root:   root,
		cfg:    cfg,
		opts:   opts,
		build:  buildFn,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// Run blocks, dispatching builds until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	for _, dir := range w.watchRoots() {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := addTree(fw, dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	fullChan := make(chan struct{}, 1)
	if w.opts.FullRebuildEvery > 0 {
		sched, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("create rebuild scheduler: %w", err)
		}
		_, err = sched.NewJob(
			gocron.DurationJob(w.opts.FullRebuildEvery),
			gocron.NewTask(func() {
				select {
				case fullChan <- struct{}{}:
				default:
				}
			}),
			gocron.WithName("scheduled-full-rebuild"),
		)
		if err != nil {
			return fmt.Errorf("schedule full rebuild: %w", err)
		}
		sched.Start()
		defer func() { _ = sched.Shutdown() }()
		w.logger.Info("Scheduled periodic full rebuilds",
			slog.Duration("interval", w.opts.FullRebuildEvery))
	}

	w.logger.Info("Watching for changes",
		slog.String("root", w.root),
		slog.Duration("debounce", w.opts.Debounce))

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(fw, ev.Name); err != nil {
						w.logger.Warn("Watching new directory failed",
							logfields.Node(ev.Name), logfields.Error(err))
					}
				}
			}
			w.logger.Debug("Source change detected",
				logfields.Node(ev.Name), slog.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					// The timer already fired; drop the stale tick so the
					// quiet window restarts from this event.
					select {
					case <-timerC:
					default:
					}
				}
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", logfields.Error(err))

		case <-timerC:
			timer = nil
			timerC = nil
			w.build(ctx, false)

		case <-fullChan:
			w.logger.Info("Running scheduled full rebuild")
			w.build(ctx, true)
		}
	}
}

// watchRoots lists the source directories that feed the build graph.
func (w *Watcher) watchRoots() []string {
	dirs := []string{
		w.cfg.Paths.Content,
		w.cfg.Paths.Templates,
		w.cfg.Paths.Data,
		w.cfg.Paths.Static,
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, filepath.Join(w.root, d))
	}
	return out
}

// ignored filters hidden files, the output tree, and engine state.
func (w *Watcher) ignored(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, dir := range []string{w.cfg.Paths.Output, build.ManifestDir} {
		abs := filepath.Join(w.root, dir)
		if name == abs || strings.HasPrefix(name, abs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
