package scheduler

import (
	"sync"
	"time"
)

// State of a single module within a run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

func (s State) terminal() bool { return s == StateSucceeded || s == StateFailed }

// ModuleReport is the final record of one planned module.
type ModuleReport struct {
	Module   string        `json:"module"`
	Lane     string        `json:"lane"`
	State    State         `json:"state"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report lists every planned module in plan order.
type Report struct {
	Modules []ModuleReport `json:"modules"`
}

// InState returns the modules currently in state st.
func (r Report) InState(st State) []string {
	var out []string
	for _, m := range r.Modules {
		if m.State == st {
			out = append(out, m.Module)
		}
	}
	return out
}

// tracker holds module states. Transitions only move forward:
// pending -> running -> succeeded|failed.
type tracker struct {
	mu      sync.Mutex
	order   []string
	modules map[string]*ModuleReport
}

func newTracker(p Plan) *tracker {
	t := &tracker{modules: make(map[string]*ModuleReport)}
	for _, id := range p.Sequential {
		t.add(id, LaneSequential)
	}
	for _, id := range p.Parallel {
		t.add(id, LaneParallel)
	}
	return t
}

func (t *tracker) add(id, lane string) {
	t.order = append(t.order, id)
	t.modules[id] = &ModuleReport{Module: id, Lane: lane, State: StatePending}
}

func (t *tracker) start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.modules[id]; m != nil && m.State == StatePending {
		m.State = StateRunning
	}
}

func (t *tracker) finish(id string, d time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.modules[id]
	if m == nil || m.State.terminal() {
		return
	}
	m.Duration = d
	m.State = StateSucceeded
	if err != nil {
		m.State = StateFailed
		m.Error = err.Error()
	}
}

func (t *tracker) report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := Report{Modules: make([]ModuleReport, 0, len(t.order))}
	for _, id := range t.order {
		r.Modules = append(r.Modules, *t.modules[id])
	}
	return r
}
