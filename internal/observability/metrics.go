package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rotse_sim"

// Metrics holds the Prometheus counters, histograms, and gauges for a simulation run.
type Metrics struct {
	StarsProcessed prometheus.Counter
	StarFailures   *prometheus.CounterVec // labels: stage
	RunInProgress  prometheus.Gauge

	// Scheduling metrics.
	NightsScheduled  prometheus.Counter
	NightsSkipped    prometheus.Counter
	SamplesScheduled prometheus.Counter

	// Sky-condition metrics.
	SamplesDropped       *prometheus.CounterVec // labels: stage={elevation,precipitation,wind,cloud}
	SamplesAttenuated    prometheus.Counter
	CloudFieldsGenerated prometheus.Counter
	CacheEntries         *prometheus.CounterVec // labels: kind={drop,clear,cloudset}

	StageDuration *prometheus.HistogramVec // labels: stage

	// Weather API metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherAPIDuration prometheus.Histogram

	// Output metrics.
	ObservationsWritten *prometheus.CounterVec // labels: sink={csv,sqlite,kafka}
}

// NewMetrics creates and registers all simulation metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can construct as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stars_processed_total",
			Help:      "Stars that completed every stage.",
		}),
		StarFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "star_failures_total",
			Help:      "Stars aborted by a fatal error, by stage.",
		}, []string{"stage"}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a simulation run is active.",
		}),
		NightsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nights_scheduled_total",
			Help:      "Nights for which observation candidates were evaluated.",
		}),
		NightsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nights_skipped_total",
			Help:      "Nights skipped because the day had fewer than two raw samples.",
		}),
		SamplesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_scheduled_total",
			Help:      "Observation instants produced by the nightly scheduler.",
		}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Samples removed by a filtering stage.",
		}, []string{"stage"}),
		SamplesAttenuated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_attenuated_total",
			Help:      "Samples whose luminosity was reduced by partial cloud cover.",
		}),
		CloudFieldsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_fields_generated_total",
			Help:      "Cloud fields generated for the adjustment cache.",
		}),
		CacheEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjustment_cache_entries_total",
			Help:      "Adjustment cache entries written, by kind.",
		}, []string{"kind"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a pipeline phase.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather API requests by outcome.",
		}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Open-Meteo API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ObservationsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_written_total",
			Help:      "Observation rows written, by sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StarsProcessed,
		m.StarFailures,
		m.RunInProgress,
		m.NightsScheduled,
		m.NightsSkipped,
		m.SamplesScheduled,
		m.SamplesDropped,
		m.SamplesAttenuated,
		m.CloudFieldsGenerated,
		m.CacheEntries,
		m.StageDuration,
		m.WeatherRequests,
		m.WeatherAPIDuration,
		m.ObservationsWritten,
	}
}
