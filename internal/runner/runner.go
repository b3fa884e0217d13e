package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Command is a shell command line executed in Dir.
type Command struct {
	Line string
	Dir  string
	// Quiet buffers stdout/stderr into the Result instead of streaming them.
	Quiet bool
	// Env entries are appended to the inherited environment.
	Env []string
	// Timeout overrides the runner default when positive.
	Timeout time.Duration
}

// Result is the captured outcome of a command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	}
	return strings.TrimRight(r.Stdout, "\n") + "\n" + r.Stderr
}

// Runner executes commands. A non-zero exit is reported as an error and the
// Result still carries whatever output was captured.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ShellRunner runs commands through a POSIX shell.
type ShellRunner struct {
	Shell   string
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration
	Logger  *slog.Logger
}

// Run executes cmd.Line with `sh -c` in cmd.Dir.
func (s *ShellRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	start := time.Now()
	if s.Logger != nil && !cmd.Quiet {
		loc := ""
		if cmd.Dir != "" {
			loc = fmt.Sprintf("(cd %s) ", cmd.Dir)
		}
		s.Logger.Info(loc + cmd.Line)
	}

	runCtx := ctx
	timeout := s.Timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}
	c := exec.CommandContext(runCtx, shell, "-c", cmd.Line)
	c.Dir = cmd.Dir
	// Grandchildren may hold the output pipes open after a kill.
	c.WaitDelay = 2 * time.Second
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	if cmd.Quiet {
		c.Stdout = &stdout
		c.Stderr = &stderr
	} else {
		c.Stdout = orDefault(s.Stdout, os.Stdout)
		c.Stderr = orDefault(s.Stderr, os.Stderr)
	}

	err := c.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%s: timed out after %s: %w", cmd.Line, timeout, err)
		}
		return res, fmt.Errorf("%s: %w", cmd.Line, err)
	}
	return res, nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// FakeRunner is used in tests. Handler, when set, decides each result;
// otherwise every command succeeds with Log as stdout.
type FakeRunner struct {
	Handler func(ctx context.Context, cmd Command) (Result, error)
	Log     string

	mu    sync.Mutex
	calls []Command
}

func (f *FakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	if f.Handler != nil {
		return f.Handler(ctx, cmd)
	}
	return Result{Stdout: f.Log}, nil
}

// Calls returns a copy of the commands run so far.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// Lines returns "dir: line" for every command run so far.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Dir+": "+c.Line)
	}
	return out
}

// ShellQuote quotes value for safe use as a single shell word.
func ShellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", "'\"'\"'") + "'"
}
