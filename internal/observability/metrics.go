package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "iran_tracker"

// Metrics holds the Prometheus counters, histograms, and gauges for the refresh pipeline.
type Metrics struct {
	// Source metrics.
	Fetches     *prometheus.CounterVec // labels: dataset, origin={remote,cache,snapshot,error}
	RowsParsed  *prometheus.CounterVec // labels: dataset
	RowsDropped *prometheus.CounterVec // labels: dataset

	// Dataset size after the last committed refresh.
	Incidents           prometheus.Gauge
	Facilities          prometheus.Gauge
	UnmatchedFacilities prometheus.Gauge

	RefreshDuration prometheus.Histogram
	RefreshErrors   prometheus.Counter
	StaleDiscarded  prometheus.Counter
	PublishErrors   prometheus.Counter
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates all pipeline metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Dataset loads by dataset and the origin that served them.",
		}, []string{"dataset", "origin"}),
		RowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "CSV rows read per dataset.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped for missing identifiers or unusable coordinates.",
		}, []string{"dataset"}),
		Incidents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "incidents",
			Help:      "Grouped incidents in the current snapshot.",
		}),
		Facilities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facilities",
			Help:      "Facility locations in the current snapshot.",
		}),
		UnmatchedFacilities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unmatched_facilities",
			Help:      "Facilities with no flowchart shape in the current snapshot.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-parse-aggregate cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_errors_total",
			Help:      "Refresh cycles that produced no snapshot.",
		}),
		StaleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_discarded_total",
			Help:      "Refresh results discarded because a newer refresh had started.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish a snapshot downstream.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Fetches,
		m.RowsParsed,
		m.RowsDropped,
		m.Incidents,
		m.Facilities,
		m.UnmatchedFacilities,
		m.RefreshDuration,
		m.RefreshErrors,
		m.StaleDiscarded,
		m.PublishErrors,
		m.PipelineRunning,
	}
}
