// Package failure classifies the fatal conditions of a build run.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a failure for reporting and exit codes.
type Kind string

const (
	// KindConfiguration covers missing inputs, unresolved modules and absent directories.
	KindConfiguration Kind = "configuration"
	// KindCommand is an external process that exited non-zero.
	KindCommand Kind = "command"
	// KindAggregate is a failure observed among the parallel module builds.
	KindAggregate Kind = "aggregate"
)

// Error is a classified build failure.
type Error struct {
	Kind    Kind
	Module  string
	Command string
	Dir     string
	Message string
	// Summary is a one-line excerpt of the failing command's output.
	Summary string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Command != "":
		b.WriteString("Command failed: ")
		b.WriteString(e.Command)
	default:
		b.WriteString(string(e.Kind))
		b.WriteString(" failure")
	}
	if e.Kind == KindAggregate && e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Configf builds a configuration failure.
func Configf(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// MissingDir reports a module or clean target directory that does not exist.
func MissingDir(module, dir string) *Error {
	return &Error{Kind: KindConfiguration, Module: module, Dir: dir, Message: fmt.Sprintf("Directory %s does not exist", dir)}
}

// Command wraps a non-zero exit of cmd run in dir.
func Command(module, dir, cmd string, err error) *Error {
	return &Error{Kind: KindCommand, Module: module, Dir: dir, Command: cmd, Err: err}
}

// Aggregate wraps the first failure observed in the parallel group.
func Aggregate(cause error) *Error {
	e := &Error{Kind: KindAggregate, Message: "One or more module builds failed", Err: cause}
	var inner *Error
	if errors.As(cause, &inner) {
		e.Module = inner.Module
		e.Summary = inner.Summary
	}
	return e
}

// KindOf returns the kind of the outermost classified error, or "" if err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ModuleOf returns the module that caused err, if any.
func ModuleOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Module
	}
	return ""
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if KindOf(err) == KindConfiguration {
		return 2
	}
	return 1
}

// Format renders err for the error stream.
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := "Error: " + err.Error()
	var e *Error
	if errors.As(err, &e) && e.Summary != "" {
		msg += "\n  " + e.Summary
	}
	return msg
}
