package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on a Prometheus registry.
type PrometheusRecorder struct {
	reg            *prom.Registry
	moduleDuration *prom.HistogramVec
	moduleResults  *prom.CounterVec
	runDuration    prom.Histogram
	runOutcome     *prom.CounterVec
	concurrency    prom.Gauge
}

var durationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400}

// NewPrometheusRecorder registers the build metrics on reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		moduleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "autobuild",
			Name:      "module_duration_seconds",
			Help:      "Duration of individual module builds",
			Buckets:   durationBuckets,
		}, []string{"module", "lane"}),
		moduleResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "autobuild",
			Name:      "module_results_total",
			Help:      "Module build results by outcome",
		}, []string{"module", "lane", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "autobuild",
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   durationBuckets,
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "autobuild",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"result"}),
		concurrency: prom.NewGauge(prom.GaugeOpts{
			Namespace: "autobuild",
			Name:      "parallel_limit",
			Help:      "Effective concurrency limit of the parallel group",
		}),
	}
	reg.MustRegister(pr.moduleDuration, pr.moduleResults, pr.runDuration, pr.runOutcome, pr.concurrency)
	return pr
}

func (p *PrometheusRecorder) ObserveModuleDuration(module, lane string, d time.Duration) {
	p.moduleDuration.WithLabelValues(module, lane).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncModuleResult(module, lane, result string) {
	p.moduleResults.WithLabelValues(module, lane, result).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(result string) {
	p.runOutcome.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) SetConcurrency(n int) {
	p.concurrency.Set(float64(n))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.reg)
}
