package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/k8ika0s/autobuild/internal/console"
	"github.com/k8ika0s/autobuild/internal/corpus"
	"github.com/k8ika0s/autobuild/internal/failure"
	"github.com/k8ika0s/autobuild/internal/runner"
	"github.com/k8ika0s/autobuild/internal/service"
)

// Globals are bound into every command's Run method.
type Globals struct {
	Ctx    context.Context
	Logger *slog.Logger
}

// CLI is the root command.
type CLI struct {
	Verbose  bool   `short:"v" help:"Enable debug logging"`
	LogLevel string `name:"log-level" env:"AUTOBUILD_LOG_LEVEL" enum:"debug,info,warn,error" default:"info" help:"Log level (${enum})"`

	Build       BuildCmd       `cmd:"" default:"withargs" help:"Build the modules selected by CXXFLAGS (default)"`
	CleanCorpus CleanCorpusCmd `cmd:"" name:"clean-corpus" help:"Keep only the corpus inputs that do not crash a fuzz binary"`
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.level()})))
	return nil
}

func (c *CLI) level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// BuildCmd runs the module build.
type BuildCmd struct {
	CXXFlags    string `name:"cxxflags" env:"CXXFLAGS" help:"Flags string; every -D<MODULE> token selects a module"`
	Clean       string `name:"clean" env:"CLEAN_BUILD" help:"FULL, CLEAN, or a space separated list of modules to clean first"`
	Jobs        int    `short:"j" name:"jobs" env:"PARALLEL_JOBS" default:"0" help:"Parallel build limit; 0 uses the CPU count, 1 streams output"`
	OnlyModules int    `name:"only-modules" env:"ONLY_MODULES" default:"0" help:"Non-zero skips the final root build"`
	Root        string `name:"root" env:"AUTOBUILD_ROOT" default:"." help:"Project root"`
	Profile     string `name:"profile" env:"AUTOBUILD_PROFILE" help:"YAML build profile overriding the build commands"`

	RunnerTimeoutSec int `name:"runner-timeout" env:"RUNNER_TIMEOUT_SEC" default:"0" help:"Per-command timeout in seconds; 0 disables it"`

	RedisURL            string `name:"redis-url" env:"REDIS_URL" group:"Reporting" help:"Redis URL for build events"`
	RedisKey            string `name:"redis-key" env:"REDIS_KEY" group:"Reporting" help:"Redis list receiving build events"`
	KafkaBrokers        string `name:"kafka-brokers" env:"KAFKA_BROKERS" group:"Reporting" help:"Comma separated Kafka brokers for build events"`
	KafkaTopic          string `name:"kafka-topic" env:"KAFKA_TOPIC" group:"Reporting" help:"Kafka topic for build events"`
	ControlPlaneURL     string `name:"control-plane-url" env:"CONTROL_PLANE_URL" group:"Reporting" help:"Control plane base URL for build events"`
	ControlPlaneToken   string `name:"control-plane-token" env:"CONTROL_PLANE_TOKEN" group:"Reporting" help:"Control plane token"`
	ObjectStoreEndpoint string `name:"object-store-endpoint" env:"OBJECT_STORE_ENDPOINT" group:"Reporting" help:"S3 compatible endpoint for failed build logs"`
	ObjectStoreBucket   string `name:"object-store-bucket" env:"OBJECT_STORE_BUCKET" group:"Reporting" help:"Bucket for failed build logs"`
	ObjectStoreAccess   string `name:"object-store-access-key" env:"OBJECT_STORE_ACCESS_KEY" group:"Reporting" help:"Object store access key"`
	ObjectStoreSecret   string `name:"object-store-secret-key" env:"OBJECT_STORE_SECRET_KEY" group:"Reporting" help:"Object store secret key"`
	ObjectStoreUseSSL   bool   `name:"object-store-use-ssl" env:"OBJECT_STORE_USE_SSL" group:"Reporting" help:"Use TLS for the object store"`
	LogArchiveDir       string `name:"log-archive-dir" env:"LOG_ARCHIVE_DIR" group:"Reporting" help:"Local directory for failed build logs"`
	MetricsTextfile     string `name:"metrics-textfile" env:"METRICS_TEXTFILE" group:"Reporting" help:"Write Prometheus metrics to this textfile"`
	ManifestPath        string `name:"manifest" env:"MANIFEST_PATH" group:"Reporting" help:"Write the run manifest JSON here"`
}

// Config converts the parsed flags into a service.Config.
func (b *BuildCmd) Config() (service.Config, error) {
	if b.Jobs < 0 {
		return service.Config{}, failure.Configf("PARALLEL_JOBS must be a non-negative integer, got %d", b.Jobs)
	}
	return service.Config{
		Root:                b.Root,
		CXXFlags:            b.CXXFlags,
		CleanBuild:          b.Clean,
		ParallelJobs:        b.Jobs,
		OnlyModules:         b.OnlyModules != 0,
		ProfilePath:         b.Profile,
		RunnerTimeoutSec:    b.RunnerTimeoutSec,
		RedisURL:            b.RedisURL,
		RedisKey:            b.RedisKey,
		KafkaBrokers:        b.KafkaBrokers,
		KafkaTopic:          b.KafkaTopic,
		ControlPlaneURL:     b.ControlPlaneURL,
		ControlPlaneToken:   b.ControlPlaneToken,
		ObjectStoreEndpoint: b.ObjectStoreEndpoint,
		ObjectStoreBucket:   b.ObjectStoreBucket,
		ObjectStoreAccess:   b.ObjectStoreAccess,
		ObjectStoreSecret:   b.ObjectStoreSecret,
		ObjectStoreUseSSL:   b.ObjectStoreUseSSL,
		LogArchiveDir:       b.LogArchiveDir,
		MetricsTextfile:     b.MetricsTextfile,
		ManifestPath:        b.ManifestPath,
	}, nil
}

func (b *BuildCmd) Run(g *Globals) error {
	cfg, err := b.Config()
	if err != nil {
		return err
	}
	svc, err := service.New(g.Ctx, cfg, g.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			g.Logger.Warn("close event sinks", "error", err)
		}
	}()
	_, err = svc.Run(g.Ctx)
	return err
}

// CleanCorpusCmd filters a fuzzing corpus.
type CleanCorpusCmd struct {
	Target  string        `arg:"" help:"Fuzz target, exported to the binary as FUZZ (e.g. psbt_parse)"`
	Binary  string        `arg:"" help:"Path to the fuzz binary"`
	Corpora string        `arg:"" help:"Directory holding the corpus inputs"`
	Output  string        `arg:"" help:"Directory receiving the non-crashing inputs"`
	Jobs    int           `short:"j" default:"1" help:"Inputs tested concurrently"`
	Timeout time.Duration `default:"30s" help:"Per-input timeout"`
}

func (c *CleanCorpusCmd) Run(g *Globals) error {
	p := console.Default()
	p.Header("Filtering fuzz inputs:")
	p.Printf("  Fuzz target: %s\n", c.Target)
	p.Printf("  Binary path: %s\n", c.Binary)
	p.Printf("  Corpora path: %s\n", c.Corpora)
	p.Printf("  Output folder: %s\n", c.Output)
	p.Rule()
	_, err := corpus.Filter(g.Ctx, corpus.Options{
		Target:    c.Target,
		Binary:    c.Binary,
		CorpusDir: c.Corpora,
		OutputDir: c.Output,
		Jobs:      c.Jobs,
		Timeout:   c.Timeout,
		Runner:    &runner.ShellRunner{Logger: g.Logger},
		Console:   p,
		Logger:    g.Logger,
	})
	return err
}
