package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the relay.
type Metrics struct {
	CyclesRun         *prometheus.CounterVec // labels: kind={alerts,conditions,forecast}, outcome={ok,error,skipped}
	RecordsFetched    *prometheus.CounterVec // labels: kind
	RecordsSent       *prometheus.CounterVec // labels: kind
	DuplicatesSkipped prometheus.Counter
	DeliveryFailures  prometheus.Counter
	LocationErrors    prometheus.Counter
	CycleDuration     *prometheus.HistogramVec // labels: kind
	SchedulerRunning  *prometheus.GaugeVec     // labels: job={interval,daily}
}

// NewMetrics creates and registers all relay metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesRun,
		m.RecordsFetched,
		m.RecordsSent,
		m.DuplicatesSkipped,
		m.DeliveryFailures,
		m.LocationErrors,
		m.CycleDuration,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_relay",
			Name:      "cycles_run_total",
			Help:      "Completed pipeline cycles by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_relay",
			Name:      "records_fetched_total",
			Help:      "Raw records fetched from upstream providers by cycle kind.",
		}, []string{"kind"}),
		RecordsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_relay",
			Name:      "records_sent_total",
			Help:      "Records successfully delivered to the webhook by cycle kind.",
		}, []string{"kind"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_relay",
			Name:      "duplicates_skipped_total",
			Help:      "Records suppressed by the dedup ledger.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_relay",
			Name:      "delivery_failures_total",
			Help:      "Webhook deliveries that failed.",
		}),
		LocationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_relay",
			Name:      "location_errors_total",
			Help:      "Per-location fetch or normalize failures.",
		}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather_relay",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-dedupe-deliver cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		SchedulerRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "weather_relay",
			Name:      "scheduler_running",
			Help:      "1 when the named scheduler has an active trigger.",
		}, []string{"job"}),
	}
}
