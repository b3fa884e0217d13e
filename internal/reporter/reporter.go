// Package reporter publishes build events to external sinks. Every sink is
// optional and best effort: a publish error is logged by the caller and never
// changes the outcome of a build.
package reporter

import (
	"context"
	"errors"
	"time"
)

// Event statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Event describes a module state change, or the end of a run when Module is empty.
type Event struct {
	RunID      string `json:"run_id"`
	Module     string `json:"module,omitempty"`
	Lane       string `json:"lane,omitempty"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Stamp fills Timestamp when unset.
func Stamp(ev Event) Event {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}
	return ev
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
func (NopSink) Close() error                         { return nil }

// Multi fans each event out to all sinks.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
