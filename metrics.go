package kompas

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the discovery lifecycle:
// fetches, single-flight coalescing, store traffic, expiry checks and events.
// It is safe for concurrent use.
type MetricsCollector struct {
	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	fetchesInFlight *prometheus.GaugeVec

	flightJoinsTotal *prometheus.CounterVec

	storeHits   *prometheus.CounterVec
	storeMisses *prometheus.CounterVec

	expiryChecksTotal *prometheus.CounterVec

	eventsEmittedTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	initialized prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		fetchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kompas_fetches_total",
				Help: "Total number of discovery fetches performed",
			},
			[]string{"operation", "status_code"},
		),
		fetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kompas_fetch_duration_seconds",
				Help:    "Duration of discovery fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status_code"},
		),
		fetchesInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kompas_fetches_in_flight",
				Help: "Number of discovery operations currently in flight",
			},
			[]string{"operation"},
		),
		flightJoinsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kompas_flight_joins_total",
				Help: "Total number of callers coalesced onto an in-flight operation",
			},
			[]string{"operation"},
		),
		storeHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kompas_store_hits_total",
				Help: "Total number of document store hits",
			},
			[]string{"slot"},
		),
		storeMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kompas_store_misses_total",
				Help: "Total number of document store misses",
			},
			[]string{"slot"},
		),
		expiryChecksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kompas_expiry_checks_total",
				Help: "Total number of external document expiry checks by result",
			},
			[]string{"result"},
		),
		eventsEmittedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kompas_events_emitted_total",
				Help: "Total number of events emitted to subscribers",
			},
			[]string{"event"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kompas_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "operation"},
		),
		initialized: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "kompas_initialized",
				Help: "Whether the coordinator has completed bootstrap (0 or 1)",
			},
		),
	}

	if r, ok := registry.(*prometheus.Registry); ok {
		mc.registry = r
	}

	return mc
}

// RecordFetch records fetch count and duration for an operation.
func (mc *MetricsCollector) RecordFetch(operation string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.fetchesTotal.WithLabelValues(operation, statusCodeStr).Inc()
	mc.fetchDuration.WithLabelValues(operation, statusCodeStr).Observe(duration.Seconds())
}

// RecordFetchStart increments the in-flight gauge for an operation.
func (mc *MetricsCollector) RecordFetchStart(operation string) {
	if mc == nil {
		return
	}

	mc.fetchesInFlight.WithLabelValues(operation).Inc()
}

// RecordFetchEnd decrements the in-flight gauge for an operation.
func (mc *MetricsCollector) RecordFetchEnd(operation string) {
	if mc == nil {
		return
	}

	mc.fetchesInFlight.WithLabelValues(operation).Dec()
}

// RecordFlightJoin increments the coalesced caller counter for an operation.
func (mc *MetricsCollector) RecordFlightJoin(operation string) {
	if mc == nil {
		return
	}

	mc.flightJoinsTotal.WithLabelValues(operation).Inc()
}

// RecordStoreHit increments the store hit counter for a slot.
func (mc *MetricsCollector) RecordStoreHit(slot string) {
	if mc == nil {
		return
	}

	mc.storeHits.WithLabelValues(slot).Inc()
}

// RecordStoreMiss increments the store miss counter for a slot.
func (mc *MetricsCollector) RecordStoreMiss(slot string) {
	if mc == nil {
		return
	}

	mc.storeMisses.WithLabelValues(slot).Inc()
}

// RecordExpiryCheck increments the expiry check counter for a result,
// one of "fresh", "stale" or "missing".
func (mc *MetricsCollector) RecordExpiryCheck(result string) {
	if mc == nil {
		return
	}

	mc.expiryChecksTotal.WithLabelValues(result).Inc()
}

// RecordEvent increments the emitted event counter.
func (mc *MetricsCollector) RecordEvent(event string) {
	if mc == nil {
		return
	}

	mc.eventsEmittedTotal.WithLabelValues(event).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, operation string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, operation).Inc()
}

// SetInitialized sets the readiness gauge.
func (mc *MetricsCollector) SetInitialized(ready bool) {
	if mc == nil {
		return
	}

	if ready {
		mc.initialized.Set(1)
	} else {
		mc.initialized.Set(0)
	}
}

// GetRegistry exposes the underlying prometheus registry when the collector
// was built on one.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
