// Package observability provides the logger and Prometheus metrics shared
// by the analysis commands.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rsmetrics"

// Outcome label values of AnalysesTotal
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus counters and histograms for index analyses.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec // labels: outcome={success,error}
	AnalysisDuration prometheus.Histogram
	SamplesAnalyzed  prometheus.Histogram
	NonNormalTotal   *prometheus.CounterVec // labels: index
	SinkErrorsTotal  *prometheus.CounterVec // labels: sink={plot,csv,xlsx,quicklook,manifest}
}

// NewMetrics creates the analysis metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid "already registered"
// panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Index rasters analyzed, by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a single index analysis including artifact output.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SamplesAnalyzed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "samples_analyzed",
			Help:      "Number of valid pixels per analyzed raster.",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		}),
		NonNormalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "non_normal_total",
			Help:      "Analyses whose distribution was judged non-normal, by index.",
		}, []string{"index"}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Artifact writes that failed, by sink.",
		}, []string{"sink"}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.SamplesAnalyzed,
		m.NonNormalTotal,
		m.SinkErrorsTotal,
	)

	return m
}

// WriteTextfile writes every metric gathered by g to filename in the text
// exposition format read by the node exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, filename string) error {
	return prometheus.WriteToTextfile(filename, g)
}
