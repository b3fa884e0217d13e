package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/k8ika0s/autobuild/internal/objectstore"
	"github.com/k8ika0s/autobuild/internal/reporter"
)

// Config holds run settings. It is filled once at the CLI boundary.
type Config struct {
	Root         string
	CXXFlags     string
	CleanBuild   string
	ParallelJobs int
	OnlyModules  bool
	ProfilePath  string

	RunnerTimeoutSec int

	RedisURL            string
	RedisKey            string
	KafkaBrokers        string
	KafkaTopic          string
	ControlPlaneURL     string
	ControlPlaneToken   string
	ObjectStoreEndpoint string
	ObjectStoreBucket   string
	ObjectStoreAccess   string
	ObjectStoreSecret   string
	ObjectStoreUseSSL   bool
	LogArchiveDir       string
	MetricsTextfile     string
	ManifestPath        string
}

// Quiet reports whether module output is buffered. Only PARALLEL_JOBS=1
// streams output.
func (c Config) Quiet() bool { return c.ParallelJobs != 1 }

// RunnerTimeout is the per-command limit; zero means none.
func (c Config) RunnerTimeout() time.Duration {
	if c.RunnerTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.RunnerTimeoutSec) * time.Second
}

// Sinks builds the configured event sinks. A sink that cannot be created is
// logged and skipped.
func (c Config) Sinks(logger *slog.Logger) reporter.Sink {
	var sinks reporter.Multi
	if c.ControlPlaneURL != "" {
		sinks = append(sinks, reporter.NewHTTPSink(c.ControlPlaneURL, c.ControlPlaneToken))
	}
	if c.RedisURL != "" {
		if s, err := reporter.NewRedisSink(c.RedisURL, c.RedisKey); err != nil {
			logger.Warn("redis event sink disabled", "error", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if strings.TrimSpace(c.KafkaBrokers) != "" {
		if s, err := reporter.NewKafkaSink(c.KafkaBrokers, c.KafkaTopic); err != nil {
			logger.Warn("kafka event sink disabled", "error", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	switch len(sinks) {
	case 0:
		return reporter.NopSink{}
	case 1:
		return sinks[0]
	}
	return sinks
}

// Archive builds the failure log store: object storage when configured,
// else a local directory, else nothing.
func (c Config) Archive(ctx context.Context, logger *slog.Logger) objectstore.Store {
	if c.ObjectStoreEndpoint != "" && c.ObjectStoreBucket != "" {
		store, err := objectstore.NewMinIOStore(ctx, c.ObjectStoreEndpoint, c.ObjectStoreAccess, c.ObjectStoreSecret, c.ObjectStoreBucket, "build-logs", c.ObjectStoreUseSSL)
		if err == nil {
			return store
		}
		logger.Warn("object store unavailable, failure logs not archived remotely", "endpoint", c.ObjectStoreEndpoint, "error", err)
	}
	if c.LogArchiveDir != "" {
		return objectstore.LocalStore{Dir: c.LogArchiveDir}
	}
	return objectstore.NullStore{}
}
