package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for the HTTP surface, bookings and
// availability lookups. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	bookings         *prometheus.CounterVec
	availabilityHits *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "training",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "training",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "training",
			Subsystem: "appointments",
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by slot kind and outcome",
		}, []string{"slot_kind", "outcome"}),
		availabilityHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "training",
			Subsystem: "availability",
			Name:      "checks_total",
			Help:      "Single-date availability checks by slot kind and result",
		}, []string{"slot_kind", "available"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "training",
			Subsystem: "availability",
			Name:      "cache_lookups_total",
			Help:      "Availability range cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.httpRequests, m.httpLatency, m.bookings, m.availabilityHits, m.cacheLookups)
	return m
}

func (m *Metrics) ObserveHTTP(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) ObserveBooking(slotKind, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(slotKind, outcome).Inc()
}

func (m *Metrics) ObserveAvailabilityCheck(slotKind string, available bool) {
	if m == nil {
		return
	}
	m.availabilityHits.WithLabelValues(slotKind, strconv.FormatBool(available)).Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
