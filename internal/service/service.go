// Package service drives one build run: the top-level clean, the optional
// module clean, the module builds and the final root build.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/k8ika0s/autobuild/internal/builder"
	"github.com/k8ika0s/autobuild/internal/console"
	"github.com/k8ika0s/autobuild/internal/flags"
	"github.com/k8ika0s/autobuild/internal/metrics"
	"github.com/k8ika0s/autobuild/internal/objectstore"
	"github.com/k8ika0s/autobuild/internal/reporter"
	"github.com/k8ika0s/autobuild/internal/runner"
	"github.com/k8ika0s/autobuild/internal/scheduler"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	// StatusNoop marks a run whose flags selected no modules.
	StatusNoop = "noop"
)

// Result summarizes a run. It is also the manifest written to MANIFEST_PATH.
type Result struct {
	RunID      string           `json:"run_id"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Sequential []string         `json:"sequential,omitempty"`
	Parallel   []string         `json:"parallel,omitempty"`
	Limit      int              `json:"limit"`
	Report     scheduler.Report `json:"report"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	DurationMS int64            `json:"duration_ms"`
}

// Service runs builds. Every collaborator except Runner is optional.
type Service struct {
	Cfg      Config
	Commands builder.Commands
	Runner   runner.Runner
	Sink     reporter.Sink
	Archive  objectstore.Store
	Metrics  *metrics.PrometheusRecorder
	Console  *console.Printer
	Logger   *slog.Logger
	RunID    string
}

// New wires a Service from cfg: the build profile, a shell runner, the event
// sinks, the failure log archive and a Prometheus recorder.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	profile, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &Service{
		Cfg:      cfg,
		Commands: profile.Commands,
		Runner:   &runner.ShellRunner{Timeout: cfg.RunnerTimeout(), Logger: logger},
		Sink:     cfg.Sinks(logger),
		Archive:  cfg.Archive(ctx, logger),
		Metrics:  metrics.NewPrometheusRecorder(nil),
		Console:  console.Default(),
		Logger:   logger.With("run_id", runID),
		RunID:    runID,
	}, nil
}

// Close releases the event sinks.
func (s *Service) Close() error {
	if s.Sink == nil {
		return nil
	}
	return s.Sink.Close()
}

// Run executes the whole build sequence. The returned error is the first
// fatal failure; Result is populated either way.
func (s *Service) Run(ctx context.Context) (res Result, err error) {
	start := time.Now()
	res = Result{RunID: s.RunID, StartedAt: start.UTC()}
	defer func() { s.finish(ctx, &res, start, err) }()

	log := s.logger()
	cmds := s.Commands.WithDefaults()
	if strings.TrimSpace(s.Cfg.CXXFlags) == "" {
		return res, flags.ErrEmpty
	}

	b := s.builder(cmds)
	log.Info("Cleaning previous builds...")
	if err := b.RunRoot(ctx, cmds.RootClean); err != nil {
		return res, err
	}

	ids, err := flags.Parse(s.Cfg.CXXFlags)
	if err != nil && !errors.Is(err, flags.ErrNoModules) {
		return res, err
	}
	if err := s.clean(ctx, cmds, ParseCleanMode(s.Cfg.CleanBuild), ids); err != nil {
		return res, err
	}
	if len(ids) == 0 {
		log.Info("No modules to build.")
		res.Status = StatusNoop
		return res, nil
	}

	plan := scheduler.NewPlan(ids, s.Cfg.ParallelJobs)
	res.Sequential, res.Parallel, res.Limit = plan.Sequential, plan.Parallel, plan.EffectiveLimit()
	if s.Cfg.Quiet() {
		log.Info(fmt.Sprintf("Compiling selected modules in parallel (jobs=%d) with CXXFLAGS=%s...", res.Limit, s.Cfg.CXXFlags))
	} else {
		log.Info("Compiling selected modules sequentially with CXXFLAGS=" + s.Cfg.CXXFlags + "...")
	}

	sched := &scheduler.Scheduler{
		Builder:  b,
		Sink:     s.Sink,
		Recorder: s.recorder(),
		Logger:   log,
		RunID:    s.RunID,
	}
	res.Report, err = sched.Run(ctx, plan)
	if err != nil {
		return res, err
	}
	log.Info("All module builds completed successfully!")

	if !s.Cfg.OnlyModules {
		log.Info("Compiling the main project in the root...")
		if err := b.RunRoot(ctx, cmds.RootBuild); err != nil {
			return res, err
		}
	}
	log.Info("Build completed successfully!")
	return res, nil
}

func (s *Service) clean(ctx context.Context, cmds builder.Commands, step CleanStep, requested []string) error {
	c := &builder.Cleaner{Root: s.root(), Runner: s.Runner, Command: cmds.Clean, Logger: s.logger()}
	switch step.Mode {
	case CleanFull:
		return c.CleanAll(ctx)
	case CleanRequested:
		return c.CleanModules(ctx, requested)
	case CleanList:
		return c.CleanModules(ctx, step.Modules)
	}
	s.logger().Info("No CLEAN_BUILD option specified. Skipping clean step.")
	return nil
}

func (s *Service) builder(cmds builder.Commands) *builder.Builder {
	return &builder.Builder{
		Root:     s.root(),
		Runner:   s.Runner,
		Commands: cmds,
		Quiet:    s.Cfg.Quiet(),
		Console:  s.Console,
		Logger:   s.logger(),
		Archive:  s.Archive,
		RunID:    s.RunID,
	}
}

// finish records the run outcome. Reporting failures are logged only.
func (s *Service) finish(ctx context.Context, res *Result, start time.Time, err error) {
	elapsed := time.Since(start)
	res.FinishedAt = start.Add(elapsed).UTC()
	res.DurationMS = elapsed.Milliseconds()
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
	case res.Status == "":
		res.Status = StatusSucceeded
	}

	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultFailed
	}
	s.recorder().ObserveRunDuration(elapsed)
	s.recorder().IncRunOutcome(outcome)

	log := s.logger()
	if s.Cfg.ManifestPath != "" {
		if werr := writeManifest(s.Cfg.ManifestPath, res); werr != nil {
			log.Warn("write manifest failed", "path", s.Cfg.ManifestPath, "error", werr)
		}
	}
	if s.Cfg.MetricsTextfile != "" && s.Metrics != nil {
		if werr := s.Metrics.WriteTextfile(s.Cfg.MetricsTextfile); werr != nil {
			log.Warn("write metrics textfile failed", "path", s.Cfg.MetricsTextfile, "error", werr)
		}
	}
	if s.Sink != nil {
		ev := reporter.Event{RunID: s.RunID, Status: res.Status, DurationMS: res.DurationMS, Summary: res.Error}
		if perr := s.Sink.Publish(context.WithoutCancel(ctx), ev); perr != nil {
			log.Warn("publish run event failed", "error", perr)
		}
	}
}

// writeManifest writes the run manifest as indented JSON.
func writeManifest(path string, manifest any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Service) root() string {
	if s.Cfg.Root == "" {
		return "."
	}
	return s.Cfg.Root
}

func (s *Service) recorder() metrics.Recorder {
	if s.Metrics == nil {
		return metrics.NoopRecorder{}
	}
	return s.Metrics
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
