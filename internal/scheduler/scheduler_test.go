package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/k8ika0s/autobuild/internal/builder"
	"github.com/k8ika0s/autobuild/internal/failure"
	"github.com/k8ika0s/autobuild/internal/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuilder struct {
	fn func(ctx context.Context, id string) error

	mu    sync.Mutex
	built []string
}

func (f *fakeBuilder) Build(ctx context.Context, id string) builder.Outcome {
	f.mu.Lock()
	f.built = append(f.built, id)
	f.mu.Unlock()
	var err error
	if f.fn != nil {
		err = f.fn(ctx, id)
	}
	return builder.Outcome{Module: id, Duration: time.Millisecond, Err: err}
}

func (f *fakeBuilder) Built() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.built...)
}

func cmdErr(id string) error {
	return failure.Command(id, "modules/"+id, "make", errors.New("exit status 2"))
}

type recordSink struct {
	mu     sync.Mutex
	events []reporter.Event
}

func (r *recordSink) Publish(_ context.Context, ev reporter.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordSink) Close() error { return nil }

func TestNewPlanPartitions(t *testing.T) {
	p := NewPlan([]string{"LND", "SECP256K1", "CUSTOM_MUTATOR_FOO", "LDK", "BITCOINJ", "LND"}, 3)
	assert.Equal(t, []string{"SECP256K1", "CUSTOM_MUTATOR_FOO", "BITCOINJ"}, p.Sequential)
	assert.Equal(t, []string{"LND", "LDK"}, p.Parallel)
	assert.Equal(t, 3, p.EffectiveLimit())
	assert.Equal(t, []string{"SECP256K1", "CUSTOM_MUTATOR_FOO", "BITCOINJ", "LND", "LDK"}, p.Modules())
	assert.False(t, p.Empty())

	assert.Positive(t, NewPlan(nil, 0).EffectiveLimit())
	assert.True(t, NewPlan(nil, 0).Empty())
}

func TestRunEmptyPlanIsNoop(t *testing.T) {
	fb := &fakeBuilder{}
	s := &Scheduler{Builder: fb}
	rep, err := s.Run(context.Background(), Plan{})
	require.NoError(t, err)
	assert.Empty(t, rep.Modules)
	assert.Empty(t, fb.Built())
}

func TestRunAllSucceed(t *testing.T) {
	fb := &fakeBuilder{}
	sink := &recordSink{}
	s := &Scheduler{Builder: fb, Sink: sink, RunID: "run-1"}
	p := NewPlan([]string{"LND", "SECP256K1", "LDK", "BITCOINJ"}, 0)

	rep, err := s.Run(context.Background(), p)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"LND", "SECP256K1", "LDK", "BITCOINJ"}, fb.Built())
	assert.Equal(t, []string{"SECP256K1", "BITCOINJ", "LND", "LDK"}, rep.InState(StateSucceeded))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.events, 8)
	for _, ev := range sink.events {
		assert.Equal(t, "run-1", ev.RunID)
	}
}

func TestSequentialLaneKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	running := atomic.Int32{}
	fb := &fakeBuilder{fn: func(_ context.Context, id string) error {
		if n := running.Add(1); n > 1 {
			t.Errorf("sequential modules overlapped at %s", id)
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		running.Add(-1)
		return nil
	}}
	s := &Scheduler{Builder: fb}
	p := NewPlan([]string{"CUSTOM_MUTATOR_A", "SECP256K1", "CUSTOM_MUTATOR_B", "BITCOINJ", "LIGHTNING_KMP"}, 0)

	_, err := s.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSTOM_MUTATOR_A", "SECP256K1", "CUSTOM_MUTATOR_B", "BITCOINJ", "LIGHTNING_KMP"}, order)
}

func TestSequentialFailureAbortsLane(t *testing.T) {
	fb := &fakeBuilder{fn: func(_ context.Context, id string) error {
		if id == "SECP256K1" {
			return cmdErr(id)
		}
		return nil
	}}
	s := &Scheduler{Builder: fb}
	p := NewPlan([]string{"LND", "SECP256K1", "BITCOINJ", "LDK"}, 1)

	rep, err := s.Run(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, failure.KindCommand, failure.KindOf(err))
	assert.Equal(t, "SECP256K1", failure.ModuleOf(err))
	assert.NotContains(t, fb.Built(), "BITCOINJ")
	assert.Contains(t, rep.InState(StatePending), "BITCOINJ")
	assert.Equal(t, []string{"SECP256K1"}, rep.InState(StateFailed))
}

func TestParallelFailureStillJoinsSequentialLane(t *testing.T) {
	parallelFailed := make(chan struct{})
	var seqDone atomic.Bool
	fb := &fakeBuilder{fn: func(_ context.Context, id string) error {
		switch id {
		case "LND":
			close(parallelFailed)
			return cmdErr(id)
		case "SECP256K1":
			<-parallelFailed
			time.Sleep(20 * time.Millisecond)
		case "BITCOINJ":
			seqDone.Store(true)
		}
		return nil
	}}
	s := &Scheduler{Builder: fb}
	p := NewPlan([]string{"SECP256K1", "LND", "BITCOINJ"}, 0)

	rep, err := s.Run(context.Background(), p)
	require.Error(t, err)
	assert.True(t, seqDone.Load(), "sequential lane must be joined before Run returns")
	assert.Equal(t, failure.KindAggregate, failure.KindOf(err))
	assert.Equal(t, "LND", failure.ModuleOf(err))
	assert.Contains(t, err.Error(), "One or more module builds failed")
	assert.ElementsMatch(t, []string{"SECP256K1", "BITCOINJ"}, rep.InState(StateSucceeded))
}

func TestFirstFailureDeterminesCause(t *testing.T) {
	lndStarted := make(chan struct{})
	seqFailed := make(chan struct{})
	fb := &fakeBuilder{fn: func(_ context.Context, id string) error {
		switch id {
		case "SECP256K1":
			defer close(seqFailed)
			<-lndStarted
			return cmdErr(id)
		case "LND":
			close(lndStarted)
			<-seqFailed
			time.Sleep(30 * time.Millisecond)
			return cmdErr(id)
		}
		return nil
	}}
	s := &Scheduler{Builder: fb}
	p := NewPlan([]string{"SECP256K1", "LND"}, 0)

	rep, err := s.Run(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, failure.KindCommand, failure.KindOf(err))
	assert.Equal(t, "SECP256K1", failure.ModuleOf(err))
	// the in-flight parallel module still ran to completion and was recorded
	assert.ElementsMatch(t, []string{"SECP256K1", "LND"}, rep.InState(StateFailed))
}

func TestParallelLimitIsRespected(t *testing.T) {
	var running, peak atomic.Int32
	fb := &fakeBuilder{fn: func(context.Context, string) error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		running.Add(-1)
		return nil
	}}
	s := &Scheduler{Builder: fb}
	p := NewPlan([]string{"A", "B", "C", "D", "E", "F"}, 2)

	_, err := s.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, fb.Built(), 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallelFailureStopsNewLaunches(t *testing.T) {
	fb := &fakeBuilder{fn: func(_ context.Context, id string) error {
		if id == "A" {
			return cmdErr(id)
		}
		return nil
	}}
	s := &Scheduler{Builder: fb}
	p := NewPlan([]string{"A", "B", "C"}, 1)

	rep, err := s.Run(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, []string{"A"}, fb.Built())
	assert.Equal(t, []string{"B", "C"}, rep.InState(StatePending))
}

func TestInFlightParallelBuildsAreNotCancelled(t *testing.T) {
	bStarted := make(chan struct{})
	aFailed := make(chan struct{})
	fb := &fakeBuilder{fn: func(ctx context.Context, id string) error {
		switch id {
		case "A":
			defer close(aFailed)
			<-bStarted
			return cmdErr(id)
		case "B":
			close(bStarted)
			<-aFailed
			time.Sleep(20 * time.Millisecond)
			return ctx.Err()
		}
		return nil
	}}
	s := &Scheduler{Builder: fb}
	p := NewPlan([]string{"A", "B"}, 2)

	rep, err := s.Run(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, "A", failure.ModuleOf(err))
	assert.Equal(t, []string{"B"}, rep.InState(StateSucceeded))
}

func TestCancelledContextFailsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fb := &fakeBuilder{}
	s := &Scheduler{Builder: fb}

	_, err := s.Run(ctx, NewPlan([]string{"SECP256K1", "LND"}, 0))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fb.Built())
}

func TestFailureEventCarriesSummary(t *testing.T) {
	fb := &fakeBuilder{fn: func(_ context.Context, id string) error {
		e := failure.Command(id, "modules/lnd", "make", errors.New("exit status 2"))
		e.Summary = "fatal error: lnd.h: No such file or directory"
		return e
	}}
	sink := &recordSink{}
	s := &Scheduler{Builder: fb, Sink: sink}

	_, err := s.Run(context.Background(), NewPlan([]string{"LND"}, 0))
	require.Error(t, err)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	assert.Equal(t, reporter.StatusRunning, sink.events[0].Status)
	assert.Equal(t, reporter.StatusFailed, sink.events[1].Status)
	assert.Equal(t, "fatal error: lnd.h: No such file or directory", sink.events[1].Summary)
}
