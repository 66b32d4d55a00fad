package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics counts reservation-engine outcomes.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbuddy",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbuddy",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Total cancellation attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

// SweepMetrics counts lifecycle-sweeper work.
type SweepMetrics struct {
	expiredTotal  prometheus.Counter
	remindedTotal prometheus.Counter
}

func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	m := &SweepMetrics{
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medbuddy",
			Subsystem: "sweeper",
			Name:      "expired_total",
			Help:      "Reservations auto-cancelled by the expiry sweep",
		}),
		remindedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medbuddy",
			Subsystem: "sweeper",
			Name:      "reminders_flagged_total",
			Help:      "Appointments flagged for reminder by the reminder sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.expiredTotal, m.remindedTotal)
	return m
}

func (m *SweepMetrics) ObserveExpired() {
	if m == nil {
		return
	}
	m.expiredTotal.Inc()
}

func (m *SweepMetrics) ObserveReminder() {
	if m == nil {
		return
	}
	m.remindedTotal.Inc()
}

// HTTPMetrics times request handling per route and status.
type HTTPMetrics struct {
	latency *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medbuddy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.latency)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(method, path, status).Observe(seconds)
}
