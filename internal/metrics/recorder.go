// Package metrics records module and run level build metrics.
package metrics

import "time"

// Result labels for module and run counters.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Recorder receives build observations. Implementations must be safe for
// concurrent use; the scheduler calls them from every lane.
type Recorder interface {
	ObserveModuleDuration(module, lane string, d time.Duration)
	IncModuleResult(module, lane, result string)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(result string)
	SetConcurrency(n int)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveModuleDuration(string, string, time.Duration) {}
func (NoopRecorder) IncModuleResult(string, string, string)              {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                    {}
func (NoopRecorder) IncRunOutcome(string)                                {}
func (NoopRecorder) SetConcurrency(int)                                  {}
