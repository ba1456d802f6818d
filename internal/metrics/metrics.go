package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application collectors. A nil *Metrics is valid and
// records nothing, which keeps tests and tools free of registry setup.
type Metrics struct {
	BookingOperations   *prometheus.CounterVec
	NotificationsSent   *prometheus.CounterVec
	NotificationsDrop   prometheus.Counter
	WaitlistNotified    prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg under the given namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BookingOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking engine operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Notification dispatch attempts by event kind and result",
		}, []string{"kind", "result"}),
		NotificationsDrop: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Notifications dropped because the dispatch queue was full",
		}),
		WaitlistNotified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waitlist",
			Name:      "notified_total",
			Help:      "Waiting list entries notified of an opened slot",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) ObserveBooking(operation, outcome string) {
	if m == nil {
		return
	}
	m.BookingOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveNotification(kind, result string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveDrop() {
	if m == nil {
		return
	}
	m.NotificationsDrop.Inc()
}

func (m *Metrics) ObserveWaitlistNotified(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.WaitlistNotified.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
