// Package scheduler runs a build plan as two lanes: a single goroutine that
// builds forced-sequential modules strictly in order, and a bounded pool for
// everything else.
//
// The first failure in either lane becomes the reported cause and stops the
// parallel lane from starting more modules. Builds already in flight are not
// killed; they finish and their outcomes are recorded. The sequential lane is
// never interrupted by a parallel failure. Run returns only after both lanes
// have been joined, so no build outlives the call.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/k8ika0s/autobuild/internal/builder"
	"github.com/k8ika0s/autobuild/internal/failure"
	"github.com/k8ika0s/autobuild/internal/metrics"
	"github.com/k8ika0s/autobuild/internal/reporter"
	"golang.org/x/sync/errgroup"
)

// ModuleBuilder builds one module.
type ModuleBuilder interface {
	Build(ctx context.Context, id string) builder.Outcome
}

// Scheduler executes plans. Sink, Recorder and Logger are optional.
type Scheduler struct {
	Builder  ModuleBuilder
	Sink     reporter.Sink
	Recorder metrics.Recorder
	Logger   *slog.Logger
	RunID    string
}

// failFast records the first failure of a run and signals the parallel lane.
type failFast struct {
	once sync.Once
	stop chan struct{}
	err  error
}

func newFailFast() *failFast { return &failFast{stop: make(chan struct{})} }

// fail records err if no failure was recorded yet and reports whether it did.
func (f *failFast) fail(err error) bool {
	first := false
	f.once.Do(func() {
		f.err = err
		first = true
		close(f.stop)
	})
	return first
}

func (f *failFast) stopped() bool {
	select {
	case <-f.stop:
		return true
	default:
		return false
	}
}

// Run builds every module of p and returns the per-module report together
// with the first failure observed, if any. An empty plan succeeds at once.
func (s *Scheduler) Run(ctx context.Context, p Plan) (Report, error) {
	tr := newTracker(p)
	if p.Empty() {
		return tr.report(), nil
	}
	ff := newFailFast()

	var lanes errgroup.Group
	if len(p.Sequential) > 0 {
		lanes.Go(func() error {
			s.runSequential(ctx, p.Sequential, tr, ff)
			return nil
		})
	}
	if len(p.Parallel) > 0 {
		lanes.Go(func() error {
			s.runParallel(ctx, p, tr, ff)
			return nil
		})
	}
	_ = lanes.Wait()
	return tr.report(), ff.err
}

func (s *Scheduler) runSequential(ctx context.Context, ids []string, tr *tracker, ff *failFast) {
	s.logger().Info("Starting sequential module builds: " + strings.Join(ids, " "))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			ff.fail(err)
			return
		}
		if err := s.build(ctx, id, LaneSequential, tr); err != nil {
			if ff.fail(err) {
				s.logger().Error("Sequential module build failed", "module", id, "error", err)
			}
			return
		}
	}
}

func (s *Scheduler) runParallel(ctx context.Context, p Plan, tr *tracker, ff *failFast) {
	limit := p.EffectiveLimit()
	s.recorder().SetConcurrency(limit)

	var pool errgroup.Group
	pool.SetLimit(limit)
	for _, id := range p.Parallel {
		if err := ctx.Err(); err != nil {
			ff.fail(err)
			break
		}
		if ff.stopped() {
			break
		}
		id := id
		pool.Go(func() error {
			// A failure may have landed while this module waited for a slot.
			if ff.stopped() {
				return nil
			}
			err := s.build(ctx, id, LaneParallel, tr)
			if err != nil && ff.fail(failure.Aggregate(err)) {
				s.logger().Error("Parallel build failed", "module", id, "error", err)
				if len(p.Sequential) > 0 {
					s.logger().Info("Waiting for sequential builds to finish")
				}
			}
			return err
		})
	}
	_ = pool.Wait()
}

func (s *Scheduler) build(ctx context.Context, id, lane string, tr *tracker) error {
	tr.start(id)
	s.publish(ctx, reporter.Event{Module: id, Lane: lane, Status: reporter.StatusRunning})

	o := s.Builder.Build(ctx, id)
	tr.finish(id, o.Duration, o.Err)
	s.recorder().ObserveModuleDuration(id, lane, o.Duration)

	ev := reporter.Event{Module: id, Lane: lane, Status: reporter.StatusSucceeded, DurationMS: o.Duration.Milliseconds()}
	if o.Err != nil {
		s.recorder().IncModuleResult(id, lane, metrics.ResultFailed)
		ev.Status = reporter.StatusFailed
		ev.Summary = summaryOf(o.Err)
		s.publish(ctx, ev)
		return fmt.Errorf("module %s: %w", id, o.Err)
	}
	s.recorder().IncModuleResult(id, lane, metrics.ResultSuccess)
	s.publish(ctx, ev)
	s.logger().Debug("module built", "module", id, "lane", lane, "duration", o.Duration)
	return nil
}

func (s *Scheduler) publish(ctx context.Context, ev reporter.Event) {
	if s.Sink == nil {
		return
	}
	ev.RunID = s.RunID
	if err := s.Sink.Publish(ctx, ev); err != nil {
		s.logger().Warn("publish build event failed", "module", ev.Module, "status", ev.Status, "error", err)
	}
}

func summaryOf(err error) string {
	var fe *failure.Error
	if errors.As(err, &fe) && fe.Summary != "" {
		return fe.Summary
	}
	return err.Error()
}

func (s *Scheduler) recorder() metrics.Recorder {
	if s.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return s.Recorder
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
