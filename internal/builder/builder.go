package builder

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/k8ika0s/autobuild/internal/console"
	"github.com/k8ika0s/autobuild/internal/failure"
	"github.com/k8ika0s/autobuild/internal/module"
	"github.com/k8ika0s/autobuild/internal/objectstore"
	"github.com/k8ika0s/autobuild/internal/runner"
)

// Commands are the shell command lines used for each build step.
type Commands struct {
	Build     string   `yaml:"build"`
	Clean     string   `yaml:"clean"`
	Pinned    []string `yaml:"pinned"`
	RootBuild string   `yaml:"root_build"`
	RootClean string   `yaml:"root_clean"`
}

// DefaultCommands returns the make/rustup command set.
func DefaultCommands() Commands {
	return Commands{
		Build:     "make",
		Clean:     "make clean",
		Pinned:    []string{"rustup default nightly", "make cargo", "make"},
		RootBuild: "make",
		RootClean: "make clean",
	}
}

// WithDefaults fills empty fields from DefaultCommands.
func (c Commands) WithDefaults() Commands {
	def := DefaultCommands()
	if c.Build == "" {
		c.Build = def.Build
	}
	if c.Clean == "" {
		c.Clean = def.Clean
	}
	if len(c.Pinned) == 0 {
		c.Pinned = def.Pinned
	}
	if c.RootBuild == "" {
		c.RootBuild = def.RootBuild
	}
	if c.RootClean == "" {
		c.RootClean = def.RootClean
	}
	return c
}

// Steps returns the command lines that build spec, in order.
func (c Commands) Steps(spec module.Spec) []string {
	if spec.PinnedToolchain {
		return c.Pinned
	}
	return []string{c.Build}
}

// Outcome is the result of building one module. A nil Err means success.
type Outcome struct {
	Module   string
	Duration time.Duration
	Output   string
	Err      error
}

// Failed reports whether the module build failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Builder builds single modules below Root.
type Builder struct {
	Root     string
	Runner   runner.Runner
	Commands Commands
	// Quiet buffers command output and prints it only when a module fails.
	Quiet   bool
	Console *console.Printer
	Logger  *slog.Logger
	// Archive receives the captured output of failed quiet builds.
	Archive objectstore.Store
	RunID   string
}

// Build runs the command sequence for id. The first failing step aborts the module.
func (b *Builder) Build(ctx context.Context, id string) Outcome {
	start := time.Now()
	spec := module.Resolve(id)
	dir := filepath.Join(b.Root, spec.Dir)
	if !isDir(dir) {
		return Outcome{Module: id, Err: failure.MissingDir(id, dir)}
	}
	if !b.Quiet {
		b.logger().Info("Building module: "+id, "dir", dir, "pinned_toolchain", spec.PinnedToolchain)
	}

	var stdout, stderr strings.Builder
	for _, line := range b.Commands.WithDefaults().Steps(spec) {
		res, err := b.Runner.Run(ctx, runner.Command{Line: line, Dir: dir, Quiet: b.Quiet})
		stdout.WriteString(res.Stdout)
		stderr.WriteString(res.Stderr)
		if err != nil {
			out := runner.Result{Stdout: stdout.String(), Stderr: stderr.String()}.Output()
			ferr := failure.Command(id, dir, line, err)
			ferr.Summary = summarizeLog(out)
			if b.Quiet {
				b.console().Block(stdout.String(), stderr.String())
				b.archive(ctx, id, out)
			}
			return Outcome{Module: id, Duration: time.Since(start), Output: out, Err: ferr}
		}
	}
	if b.Quiet {
		b.console().Success("%s built successfully", id)
	}
	return Outcome{
		Module:   id,
		Duration: time.Since(start),
		Output:   runner.Result{Stdout: stdout.String(), Stderr: stderr.String()}.Output(),
	}
}

// RunRoot runs line in the project root, streaming its output.
func (b *Builder) RunRoot(ctx context.Context, line string) error {
	if _, err := b.Runner.Run(ctx, runner.Command{Line: line, Dir: b.Root}); err != nil {
		return failure.Command("", b.Root, line, err)
	}
	return nil
}

func (b *Builder) archive(ctx context.Context, id, out string) {
	if b.Archive == nil || out == "" {
		return
	}
	key := path.Join(b.RunID, id+".log")
	if err := b.Archive.Put(ctx, key, []byte(out), "text/plain"); err != nil {
		b.logger().Warn("archive build log failed", "module", id, "key", key, "error", err)
	}
}

func (b *Builder) console() *console.Printer {
	if b.Console == nil {
		return console.Default()
	}
	return b.Console
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
