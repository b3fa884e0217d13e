package scheduler

import (
	"runtime"

	"github.com/k8ika0s/autobuild/internal/flags"
	"github.com/k8ika0s/autobuild/internal/module"
)

// Lane names.
const (
	LaneSequential = "sequential"
	LaneParallel   = "parallel"
)

// Plan partitions the requested modules into the two lanes. It is built once
// per run and not modified afterwards.
type Plan struct {
	// Sequential modules run one after another, in request order.
	Sequential []string
	Parallel   []string
	// Limit bounds the parallel lane; <= 0 selects runtime.NumCPU().
	Limit int
}

// NewPlan dedupes ids and assigns each to its lane.
func NewPlan(ids []string, limit int) Plan {
	p := Plan{Limit: limit}
	for _, id := range flags.Dedupe(ids) {
		if module.Resolve(id).Sequential {
			p.Sequential = append(p.Sequential, id)
		} else {
			p.Parallel = append(p.Parallel, id)
		}
	}
	return p
}

// Empty reports whether the plan has no modules.
func (p Plan) Empty() bool { return len(p.Sequential) == 0 && len(p.Parallel) == 0 }

// Modules returns every planned module, sequential lane first.
func (p Plan) Modules() []string {
	out := make([]string, 0, len(p.Sequential)+len(p.Parallel))
	out = append(out, p.Sequential...)
	return append(out, p.Parallel...)
}

// EffectiveLimit is the concurrency bound applied to the parallel lane.
func (p Plan) EffectiveLimit() int {
	if p.Limit > 0 {
		return p.Limit
	}
	return runtime.NumCPU()
}
