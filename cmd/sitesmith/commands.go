package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitesmith/internal/build"
	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/events"
	"git.home.luguber.info/inful/sitesmith/internal/history"
	"git.home.luguber.info/inful/sitesmith/internal/metrics"
	"git.home.luguber.info/inful/sitesmith/internal/watch"
)

// errBuildFailed signals a completed build with node failures; the report has
// already been printed, so main only needs the exit code.
var errBuildFailed = stderrors.New("build finished with failures")

func loadConfig() (*config.Config, error) {
	path := CLI.Config
	if !filepath.IsAbs(path) {
		path = filepath.Join(CLI.Source, path)
	}
	return config.Load(path)
}

// newService assembles a build service with the configured collaborators.
// The returned cleanup releases them.
func newService(cfg *config.Config, recorder metrics.Recorder) (*build.Service, func(), error) {
	svc := build.NewService(cfg)
	if recorder != nil {
		svc = svc.WithRecorder(recorder)
	}

	var cleanups []func()
	if cfg.Build.HistoryDB != "" {
		dbPath := cfg.Build.HistoryDB
		if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(CLI.Source, dbPath)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, nil, fmt.Errorf("create history directory: %w", err)
		}
		store, err := history.Open(dbPath)
		if err != nil {
			return nil, nil, err
		}
		svc = svc.WithHistory(store)
		cleanups = append(cleanups, func() { _ = store.Close() })
	}

	if cfg.Events.URL != "" {
		pub, err := events.Connect(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			// Events are best-effort; a missing broker must not block builds.
			slog.Warn("Build events disabled", "error", err)
		} else {
			svc = svc.WithPublisher(pub)
			cleanups = append(cleanups, pub.Close)
		}
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return svc, cleanup, nil
}

func runBuild() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := svc.Run(ctx, build.Request{
		SourceDir: CLI.Source,
		OutputDir: CLI.Build.Output,
		Options: build.Options{
			Force:    CLI.Build.Force,
			FailFast: CLI.Build.FailFast,
			Workers:  CLI.Build.Workers,
		},
	})
	if err != nil {
		return err
	}
	report.Print(os.Stdout)
	if !report.Succeeded() {
		return errBuildFailed
	}
	return nil
}

func runInit() error {
	path := CLI.Config
	if !filepath.IsAbs(path) {
		path = filepath.Join(CLI.Source, path)
	}
	if err := config.Init(path, CLI.Init.Force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runWatch() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	debounce, err := time.ParseDuration(CLI.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("invalid --debounce: %w", err)
	}
	fullEvery := time.Duration(0)
	if CLI.Watch.FullEvery != "0" && CLI.Watch.FullEvery != "" {
		fullEvery, err = time.ParseDuration(CLI.Watch.FullEvery)
		if err != nil {
			return fmt.Errorf("invalid --full-every: %w", err)
		}
	}

	var recorder metrics.Recorder
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metrics.HTTPHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Serving metrics", "listen", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	svc, cleanup, err := newService(cfg, recorder)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOnce := func(ctx context.Context, force bool) {
		report, err := svc.Run(ctx, build.Request{
			SourceDir: CLI.Source,
			OutputDir: CLI.Watch.Output,
			Options:   build.Options{Force: force},
		})
		if err != nil {
			slog.Error("Build failed", "error", err)
			return
		}
		report.Print(os.Stdout)
	}

	// Initial build before entering the loop.
	runOnce(ctx, false)

	w := watch.New(CLI.Source, cfg, watch.Options{
		Debounce:         debounce,
		FullRebuildEvery: fullEvery,
	}, runOnce)
	err = w.Run(ctx)
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runHistory() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Build.HistoryDB == "" {
		return fmt.Errorf("build.history_db is not configured")
	}
	dbPath := cfg.Build.HistoryDB
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(CLI.Source, dbPath)
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(context.Background(), CLI.History.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no builds recorded")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %s  %-8s  rendered=%d skipped=%d failed=%d  %s\n",
			rec.StartedAt.Format(time.RFC3339),
			rec.BuildID,
			rec.Outcome,
			rec.Rendered,
			rec.SkippedUnchanged,
			rec.Failed,
			rec.Duration.Round(time.Millisecond))
		for _, f := range rec.Failures {
			fmt.Printf("    FAIL %s (%s): %s\n", f.Path, f.Kind, f.Message)
		}
	}
	return nil
}
