package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ExtractionTotal counts per-photo extraction attempts by outcome.
	ExtractionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "extraction_total",
		Help:      "Total number of photo extraction attempts, labeled by result (ok, degraded).",
	}, []string{"result"})

	// ExtractionDurationSeconds is wall time per photo extraction, including the model call.
	ExtractionDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "extraction_duration_seconds",
		Help:      "Time to extract a single photo analysis (model call + parse).",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	// AggregationTotal counts aggregation attempts by outcome.
	AggregationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "aggregation_total",
		Help:      "Total number of daily report aggregation attempts, labeled by result (ok, fallback).",
	}, []string{"result"})

	// AggregationDurationSeconds is wall time per aggregation call.
	AggregationDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "aggregation_duration_seconds",
		Help:      "Time to aggregate photo analyses into a daily report (model call + parse).",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	// ReportsGeneratedTotal counts completed pipeline runs by outcome.
	ReportsGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "reports_generated_total",
		Help:      "Total number of daily reports generated, labeled by result (ok, degraded, error).",
	}, []string{"result"})

	// PhotosPerReport is the photo count distribution per pipeline run.
	PhotosPerReport = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "photos_per_report",
		Help:      "Number of photos submitted per generated report.",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
	})

	// RabbitMQConnected is 1 when the subscriber considers itself connected.
	RabbitMQConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "rabbitmq_connected",
		Help:      "Whether the RabbitMQ subscriber is currently connected (best-effort).",
	})

	// RabbitMQLastConnectSeconds is a unix timestamp (seconds) of last successful connect.
	RabbitMQLastConnectSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "rabbitmq_last_connect_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last successful RabbitMQ connect (best-effort).",
	})

	// WorkerInFlight is the current number of deliveries being processed by workers.
	WorkerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "rabbitmq_worker_in_flight",
		Help:      "Current number of RabbitMQ deliveries being processed by worker goroutines.",
	})

	// ProcessedTotal counts processed deliveries by outcome.
	ProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siterecap",
		Subsystem: "pipeline",
		Name:      "rabbitmq_processed_total",
		Help:      "Total number of RabbitMQ deliveries processed by the subscriber, labeled by result.",
	}, []string{"result"})
)

// Register registers pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ExtractionTotal,
			ExtractionDurationSeconds,
			AggregationTotal,
			AggregationDurationSeconds,
			ReportsGeneratedTotal,
			PhotosPerReport,
			RabbitMQConnected,
			RabbitMQLastConnectSeconds,
			WorkerInFlight,
			ProcessedTotal,
		)
	})
}

func NowUnixSeconds() float64 {
	return float64(time.Now().Unix())
}
