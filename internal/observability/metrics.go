// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Oracle stream metrics
	PriceUpdatesRouted  *prometheus.CounterVec
	PriceUpdatesDropped prometheus.Counter
	OracleReconnects    prometheus.Counter

	// Order book stream metrics
	BookUpdatesProcessed prometheus.Counter
	BookUpdatesInvalid   prometheus.Counter
	BookRowsStored       prometheus.Counter
	ActiveListeners      prometheus.Gauge
	ListenerCapHits      prometheus.Counter

	// Discovery metrics
	ScanPagesFetched prometheus.Counter
	ScanPageErrors   prometheus.Counter
	WindowsTracked   prometheus.Gauge

	// Signal metrics
	SignalsEmitted *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastPriceUpdate prometheus.Gauge
	LastScan        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "polymarket_edge_lab"
	}

	return &Metrics{
		// Oracle stream metrics
		PriceUpdatesRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "price_updates_routed_total",
			Help:      "Total number of price updates routed into the cache by source",
		}, []string{"source"}),
		PriceUpdatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "price_updates_dropped_total",
			Help:      "Total number of stream messages dropped as malformed or unrecognized",
		}),
		OracleReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "oracle_reconnects_total",
			Help:      "Total number of oracle stream reconnect attempts",
		}),

		// Order book stream metrics
		BookUpdatesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "updates_processed_total",
			Help:      "Total number of valid order book updates applied",
		}),
		BookUpdatesInvalid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "updates_invalid_total",
			Help:      "Total number of order book updates rejected by validation",
		}),
		BookRowsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "rows_stored_total",
			Help:      "Total number of top-of-book rows persisted",
		}),
		ActiveListeners: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "active_listeners",
			Help:      "Current number of running per-market order book listeners",
		}),
		ListenerCapHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "listener_cap_hits_total",
			Help:      "Total number of listener starts refused at the concurrency cap",
		}),

		// Discovery metrics
		ScanPagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scan_pages_fetched_total",
			Help:      "Total number of catalog pages fetched",
		}),
		ScanPageErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scan_page_errors_total",
			Help:      "Total number of catalog pages skipped due to errors",
		}),
		WindowsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "windows_tracked",
			Help:      "Current number of market windows tracked by the scheduler",
		}),

		// Signal metrics
		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "signals_emitted_total",
			Help:      "Total number of trading signals emitted by action",
		}, []string{"action"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastPriceUpdate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_price_update_timestamp",
			Help:      "Unix timestamp of the last routed price update",
		}),
		LastScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_scan_timestamp",
			Help:      "Unix timestamp of the last completed catalog scan",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPriceRouted increments the routed price update counter for a source.
func RecordPriceRouted(source string) {
	DefaultMetrics.PriceUpdatesRouted.WithLabelValues(source).Inc()
}

// RecordPriceDropped increments the dropped stream message counter.
func RecordPriceDropped() {
	DefaultMetrics.PriceUpdatesDropped.Inc()
}

// RecordOracleReconnect increments the oracle reconnect counter.
func RecordOracleReconnect() {
	DefaultMetrics.OracleReconnects.Inc()
}

// RecordBookUpdate records an order book update, valid or not.
func RecordBookUpdate(valid bool) {
	if valid {
		DefaultMetrics.BookUpdatesProcessed.Inc()
	} else {
		DefaultMetrics.BookUpdatesInvalid.Inc()
	}
}

// RecordSignalEmitted increments the emitted signal counter for an action.
func RecordSignalEmitted(action string) {
	DefaultMetrics.SignalsEmitted.WithLabelValues(action).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
