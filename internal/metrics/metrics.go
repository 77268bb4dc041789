// Package metrics records what a selection run scanned, found and picked as
// Prometheus metrics.
//
// Metrics live on a private registry rather than the global one so that
// repeated runs in one process (watch mode, tests) never collide. The CLI
// dumps the registry in the text exposition format with WriteTextfile,
// suitable for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"retrospec/internal/diff"
)

const namespace = "retrospec"

// Kind labels distinguish the two halves of a snapshot.
const (
	KindModule    = "module"
	KindTestSuite = "test_suite"
)

// Registry holds every retrospec metric.
type Registry struct {
	reg *prometheus.Registry

	FilesScanned  *prometheus.CounterVec
	FilesSkipped  *prometheus.CounterVec
	CacheHits     *prometheus.CounterVec
	Modules       prometheus.Gauge
	TestSuites    prometheus.Gauge
	SelectedTests prometheus.Gauge
	Changes       *prometheus.GaugeVec
	RunDuration   prometheus.Histogram
	Runs          *prometheus.CounterVec
}

// New creates a Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		FilesScanned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_scanned_total",
			Help:      "Files handed to an extractor, by kind",
		}, []string{"kind"}),
		FilesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Files skipped because they could not be read or extracted, by kind",
		}, []string{"kind"}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_cache_hits_total",
			Help:      "Files served from the extraction cache, by kind",
		}, []string{"kind"}),
		Modules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "modules",
			Help:      "Modules in the current snapshot",
		}),
		TestSuites: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_suites",
			Help:      "Test suites in the current snapshot",
		}),
		SelectedTests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_tests",
			Help:      "Test suites selected by the last run",
		}),
		Changes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "changes",
			Help:      "Entries per change classification in the last diff",
		}, []string{"kind", "change"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full selection run",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Selection runs by outcome",
		}, []string{"outcome"}),
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveScan records one scanner pass.
func (r *Registry) ObserveScan(kind string, files, skipped, cacheHits int) {
	if r == nil {
		return
	}
	r.FilesScanned.WithLabelValues(kind).Add(float64(files))
	r.FilesSkipped.WithLabelValues(kind).Add(float64(skipped))
	r.CacheHits.WithLabelValues(kind).Add(float64(cacheHits))
}

// ObserveDiff sets the change gauges from d. Every kind gets a value, zero
// included, so a textfile never keeps a stale count.
func (r *Registry) ObserveDiff(d *diff.Result) {
	if r == nil || d == nil {
		return
	}
	set := func(kind string, changes []diff.Change) {
		counts := diff.Counts(changes)
		for _, k := range diff.Kinds() {
			r.Changes.WithLabelValues(kind, string(k)).Set(float64(counts[k]))
		}
	}
	set(KindModule, d.Modules)
	set(KindTestSuite, d.TestSuites)
}

// ObserveRun records the outcome of one run.
func (r *Registry) ObserveRun(modules, testSuites, selected int, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.Modules.Set(float64(modules))
	r.TestSuites.Set(float64(testSuites))
	r.SelectedTests.Set(float64(selected))
	r.RunDuration.Observe(elapsed.Seconds())
	r.Runs.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
