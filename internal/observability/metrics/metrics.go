package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking and payment flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	verifyTotal      *prometheus.CounterVec
	ordersTotal      *prometheus.CounterVec
	bookingLatency   *prometheus.HistogramVec
	paidAppointments prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jeevancare",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total slot booking attempts",
		}, []string{"outcome"}),
		verifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jeevancare",
			Subsystem: "payments",
			Name:      "verify_total",
			Help:      "Total payment verification attempts",
		}, []string{"outcome"}),
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jeevancare",
			Subsystem: "payments",
			Name:      "orders_total",
			Help:      "Total payment order creations",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jeevancare",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of slot booking requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		paidAppointments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jeevancare",
			Subsystem: "payments",
			Name:      "paid_appointments_total",
			Help:      "Appointments transitioned to Paid",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.verifyTotal, m.ordersTotal, m.bookingLatency, m.paidAppointments)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveOrder(outcome string) {
	if m == nil {
		return
	}
	m.ordersTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveVerify(outcome string, updated int) {
	if m == nil {
		return
	}
	m.verifyTotal.WithLabelValues(outcome).Inc()
	if updated > 0 {
		m.paidAppointments.Add(float64(updated))
	}
}
