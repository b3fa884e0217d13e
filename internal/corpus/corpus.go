// Package corpus filters a fuzzing corpus down to the inputs that do not
// crash a fuzz binary.
package corpus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/k8ika0s/autobuild/internal/console"
	"github.com/k8ika0s/autobuild/internal/failure"
	"github.com/k8ika0s/autobuild/internal/runner"
)

// DefaultTimeout bounds a single input run.
const DefaultTimeout = 30 * time.Second

const detailLimit = 100

// Options configure a Filter run.
type Options struct {
	// Target is exported to the binary as FUZZ.
	Target    string
	Binary    string
	CorpusDir string
	OutputDir string
	Jobs      int
	Timeout   time.Duration

	Runner  runner.Runner
	Console *console.Printer
	Logger  *slog.Logger
}

// Stats counts the outcome of a Filter run. Copy failures are in neither
// Passed nor Crashed.
type Stats struct {
	Passed  int
	Crashed int
	Total   int
}

// Filter runs Binary once per file in CorpusDir and copies every input that
// exits zero into OutputDir, keeping its mode and modification time.
func Filter(ctx context.Context, opts Options) (Stats, error) {
	var st Stats
	if _, err := os.Stat(opts.Binary); err != nil {
		return st, failure.Configf("Binary not found at %s", opts.Binary)
	}
	if info, err := os.Stat(opts.CorpusDir); err != nil || !info.IsDir() {
		return st, failure.Configf("Corpora folder not found at %s", opts.CorpusDir)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return st, fmt.Errorf("create output folder: %w", err)
	}
	inputs, err := listInputs(opts.CorpusDir)
	if err != nil {
		return st, err
	}

	out := opts.Console
	if out == nil {
		out = console.Default()
	}
	if len(inputs) == 0 {
		out.Printf("No files found in %s\n", opts.CorpusDir)
		return st, nil
	}
	st.Total = len(inputs)
	out.Printf("Found %d files to test\n", st.Total)
	out.Printf("Output folder: %s\n", opts.OutputDir)
	out.Rule()

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		i, in := i, in
		g.Go(func() error {
			passed, detail := opts.try(gctx, in)
			if err := gctx.Err(); err != nil {
				return err
			}
			label := fmt.Sprintf("[%d/%d] Testing %s...", i+1, st.Total, filepath.Base(in))
			if !passed {
				out.Failure("%s CRASH/ERROR", label)
				if detail != "" {
					out.Printf("    Crash details: %s\n", detail)
				}
				mu.Lock()
				st.Crashed++
				mu.Unlock()
				return nil
			}
			out.Success("%s PASS", label)
			if err := copyPreserving(in, filepath.Join(opts.OutputDir, filepath.Base(in))); err != nil {
				out.Printf("Error copying %s: %v\n", filepath.Base(in), err)
				opts.logger().Warn("copy corpus input failed", "input", in, "error", err)
				return nil
			}
			mu.Lock()
			st.Passed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return st, err
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	out.Rule()
	out.Header("Results:")
	out.Printf("  Successful (non-crashing): %d\n", st.Passed)
	out.Printf("  Crashed/Failed: %d\n", st.Crashed)
	out.Printf("  Total processed: %d\n", st.Total)
	out.Printf("  Non-crashing inputs saved to: %s\n", opts.OutputDir)
	return st, nil
}

// try runs the binary on one input and reports whether it exited cleanly.
func (o Options) try(ctx context.Context, input string) (bool, string) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	res, err := o.Runner.Run(ctx, runner.Command{
		Line:    runner.ShellQuote(o.Binary) + " " + runner.ShellQuote(input),
		Env:     []string{"FUZZ=" + o.Target},
		Quiet:   true,
		Timeout: timeout,
	})
	if err == nil {
		return true, ""
	}
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = err.Error()
	}
	if len(detail) > detailLimit {
		detail = detail[:detailLimit] + "..."
	}
	return false, detail
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// listInputs returns the regular files directly inside dir, sorted by name.
func listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, p)
	}
	sort.Strings(files)
	return files, nil
}

func copyPreserving(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
