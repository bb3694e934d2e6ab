// Package build orchestrates one build invocation end to end: source walk,
// graph resolution, change detection, scheduled rendering, and manifest
// finalization, with optional history, metrics, and event collaborators.
package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/errors"
	"git.home.luguber.info/inful/sitesmith/internal/events"
	"git.home.luguber.info/inful/sitesmith/internal/gitinfo"
	"git.home.luguber.info/inful/sitesmith/internal/graph"
	"git.home.luguber.info/inful/sitesmith/internal/history"
	"git.home.luguber.info/inful/sitesmith/internal/incremental"
	"git.home.luguber.info/inful/sitesmith/internal/linkcheck"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
	"git.home.luguber.info/inful/sitesmith/internal/manifest"
	"git.home.luguber.info/inful/sitesmith/internal/metrics"
	"git.home.luguber.info/inful/sitesmith/internal/render"
	"git.home.luguber.info/inful/sitesmith/internal/scheduler"
)

// ManifestDir is the state directory kept under the source root.
const ManifestDir = ".sitesmith"

// Request describes one build invocation.
type Request struct {
	// SourceDir is the site source root.
	SourceDir string
	// OutputDir overrides the configured output directory. Relative paths
	// resolve against SourceDir.
	OutputDir string
	Options   Options
}

// Options are per-invocation overrides on top of the configuration.
type Options struct {
	// Force marks every node dirty regardless of fingerprints.
	Force bool
	// FailFast stops dispatching after the first render failure.
	FailFast bool
	// Workers overrides the configured pool size. Zero keeps the configured
	// value, falling back to runtime.NumCPU.
	Workers int
	// DefaultTemplate overrides the configured fallback template name.
	DefaultTemplate string
}

// Service runs builds for one configuration. Collaborators default to no-ops
// so the engine stays usable as a plain library.
type Service struct {
	cfg       *config.Config
	logger    *slog.Logger
	recorder  metrics.Recorder
	history   *history.Store
	publisher *events.Publisher
}

// NewService creates a build service.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
}

// WithLogger sets a custom logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// WithRecorder sets a metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	s.recorder = r
	return s
}

// WithHistory sets a build history store.
func (s *Service) WithHistory(h *history.Store) *Service {
	s.history = h
	return s
}

// WithPublisher sets a build event publisher.
func (s *Service) WithPublisher(p *events.Publisher) *Service {
	s.publisher = p
	return s
}

// Run executes one build. The returned error is non-nil only for fatal
// conditions (configuration, cycles, cancellation); per-node failures are
// reported through the Report with a non-success outcome.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	report := &Report{
		BuildID:   uuid.NewString(),
		StartedAt: start.UTC(),
	}
	logger := s.logger.With(logfields.BuildID(report.BuildID))

	workers := req.Options.Workers
	if workers == 0 {
		workers = s.cfg.Build.Workers
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	defaultTemplate := req.Options.DefaultTemplate
	if defaultTemplate == "" {
		defaultTemplate = s.cfg.Build.DefaultTemplate
	}
	failFast := req.Options.FailFast || s.cfg.Build.FailFast
	outDir := req.OutputDir
	if outDir == "" {
		outDir = s.cfg.Paths.Output
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(req.SourceDir, outDir)
	}

	nodes, err := content.NewBuilder(req.SourceDir, s.cfg).WithLogger(logger).Build()
	if err != nil {
		return nil, err
	}
	g := graph.New(nodes)
	if err := graph.Resolve(g, defaultTemplate); err != nil {
		return nil, err
	}

	configHash, err := s.cfg.Hash()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, "hash configuration")
	}
	commit, err := gitinfo.HeadCommit(req.SourceDir)
	if err != nil {
		logger.Warn("Reading source git state failed", logfields.Error(err))
		commit = ""
	}
	report.SourceCommit = commit

	manifestPath := filepath.Join(req.SourceDir, ManifestDir, "manifest.json")
	prev := manifest.Load(manifestPath)
	force := req.Options.Force
	if prev.ConfigHash != "" && prev.ConfigHash != configHash {
		logger.Info("Configuration changed since last build, forcing full rebuild")
		force = true
	}

	detected, err := incremental.Detect(g, prev, force)
	if err != nil {
		return nil, err
	}
	s.recorder.SetDirtyNodes(len(detected.Dirty))
	s.recorder.SetWorkers(workers)
	logger.Info("Build plan ready",
		slog.Int("nodes", g.Len()),
		logfields.Dirty(len(detected.Dirty)),
		logfields.Workers(workers))

	renderer := render.NewRenderer(g, s.cfg, outDir).WithLogger(logger)
	schedRes, runErr := scheduler.Run(ctx, g, detected.Dirty,
		scheduler.Options{Workers: workers, FailFast: failFast}, renderer.Render)
	if runErr != nil && (stderrors.Is(runErr, context.Canceled) || stderrors.Is(runErr, context.DeadlineExceeded)) {
		report.Outcome = OutcomeCanceled
		report.Duration = time.Since(start)
		s.recorder.IncBuildOutcome(string(OutcomeCanceled))
		return report, runErr
	}
	if runErr != nil {
		return nil, runErr
	}

	s.fillReport(report, g, detected, schedRes)

	// Only renders that actually happened (or nodes proven unchanged) enter
	// the next manifest; failed and skipped nodes are retried next run.
	next := manifest.New()
	next.BuildID = report.BuildID
	next.ConfigHash = configHash
	next.SourceCommit = commit
	for _, id := range schedRes.Succeeded {
		node := g.Node(id)
		next.Put(node.Path, manifest.Entry{Fingerprint: node.Fingerprint, OutputPath: node.DestPath})
	}
	for _, id := range detected.Unchanged {
		node := g.Node(id)
		next.Put(node.Path, manifest.Entry{Fingerprint: node.Fingerprint, OutputPath: node.DestPath})
	}
	if err := next.Save(manifestPath); err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, "save manifest")
	}

	if s.cfg.Build.VerifyLinks {
		s.verifyLinks(logger, outDir)
	}

	report.Duration = time.Since(start)
	s.finish(ctx, logger, report)
	return report, nil
}

func (s *Service) fillReport(report *Report, g *graph.Graph, detected *incremental.Result, schedRes *scheduler.Result) {
	report.Rendered = len(schedRes.Succeeded)
	report.SkippedUnchanged = len(detected.Unchanged)
	report.Failed = len(schedRes.Failed)
	report.SkippedDeps = len(schedRes.Skipped)

	for id, be := range schedRes.Failed {
		node := g.Node(id)
		report.Failures = append(report.Failures, Failure{
			Path:     node.Path,
			Kind:     string(node.Kind),
			Category: string(be.Category),
			Message:  be.Message,
		})
	}
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Path < report.Failures[j].Path
	})

	for _, id := range schedRes.Succeeded {
		s.recorder.IncNodeResult(string(g.Node(id).Kind), metrics.ResultSuccess)
	}
	for id := range schedRes.Failed {
		s.recorder.IncNodeResult(string(g.Node(id).Kind), metrics.ResultFailed)
	}
	for _, id := range schedRes.Skipped {
		s.recorder.IncNodeResult(string(g.Node(id).Kind), metrics.ResultSkipped)
	}

	if report.Failed > 0 || report.SkippedDeps > 0 {
		report.Outcome = OutcomeFailed
	} else {
		report.Outcome = OutcomeSuccess
	}
}

func (s *Service) verifyLinks(logger *slog.Logger, outDir string) {
	broken, err := linkcheck.Verify(outDir)
	if err != nil {
		logger.Warn("Link verification failed", logfields.Error(err))
		return
	}
	for _, b := range broken {
		logger.Warn("Broken internal link",
			logfields.Output(b.Source),
			slog.String("target", b.Target))
	}
	if len(broken) == 0 {
		logger.Debug("Link verification passed")
	}
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, report *Report) {
	s.recorder.ObserveBuildDuration(report.Duration)
	s.recorder.IncBuildOutcome(string(report.Outcome))

	if s.history != nil {
		rec := history.Record{
			BuildID:          report.BuildID,
			StartedAt:        report.StartedAt,
			Duration:         report.Duration,
			Outcome:          string(report.Outcome),
			Rendered:         report.Rendered,
			SkippedUnchanged: report.SkippedUnchanged,
			Failed:           report.Failed,
			SkippedDeps:      report.SkippedDeps,
			SourceCommit:     report.SourceCommit,
		}
		for _, f := range report.Failures {
			rec.Failures = append(rec.Failures, history.Failure{
				Path: f.Path, Kind: f.Kind, Category: f.Category, Message: f.Message,
			})
		}
		if err := s.history.Append(ctx, rec); err != nil {
			logger.Warn("Recording build history failed", logfields.Error(err))
		}
	}

	if s.publisher != nil {
		event := events.BuildCompleted{
			BuildID:          report.BuildID,
			Outcome:          string(report.Outcome),
			Rendered:         report.Rendered,
			SkippedUnchanged: report.SkippedUnchanged,
			Failed:           report.Failed,
			SkippedDeps:      report.SkippedDeps,
			DurationMS:       report.Duration.Milliseconds(),
			SourceCommit:     report.SourceCommit,
			CompletedAt:      time.Now().UTC(),
		}
		if err := s.publisher.Publish(event); err != nil {
			logger.Warn("Publishing build event failed", logfields.Error(err))
		}
	}

	logger.Info("Build complete",
		slog.String("outcome", string(report.Outcome)),
		slog.Int("rendered", report.Rendered),
		slog.Int("skipped_unchanged", report.SkippedUnchanged),
		slog.Int("failed", report.Failed),
		logfields.DurationMS(float64(report.Duration.Microseconds())/1000))
}
