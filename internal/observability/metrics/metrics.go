package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConsultMetrics exposes counters/histograms for booking, matching and advice flows.
type ConsultMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	claimsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	reviewsTotal     *prometheus.CounterVec
	quotaDecisions   *prometheus.CounterVec
	adviceLatency    *prometheus.HistogramVec
}

func NewConsultMetrics(reg prometheus.Registerer) *ConsultMetrics {
	m := &ConsultMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediq",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediq",
			Subsystem: "appointments",
			Name:      "queue_claims_total",
			Help:      "Queue claim attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediq",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment state transitions by action and outcome",
		}, []string{"action", "outcome"}),
		reviewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediq",
			Subsystem: "appointments",
			Name:      "reviews_total",
			Help:      "Review submissions by outcome",
		}, []string{"outcome"}),
		quotaDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediq",
			Subsystem: "quota",
			Name:      "decisions_total",
			Help:      "Usage quota decisions by plan and result",
		}, []string{"plan", "result"}),
		adviceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediq",
			Subsystem: "advice",
			Name:      "latency_seconds",
			Help:      "Latency of advice collaborator calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.claimsTotal, m.transitionsTotal, m.reviewsTotal, m.quotaDecisions, m.adviceLatency)
	return m
}

func (m *ConsultMetrics) ObserveBooking(kind, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *ConsultMetrics) ObserveClaim(outcome string) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(outcome).Inc()
}

func (m *ConsultMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *ConsultMetrics) ObserveReview(outcome string) {
	if m == nil {
		return
	}
	m.reviewsTotal.WithLabelValues(outcome).Inc()
}

func (m *ConsultMetrics) ObserveQuota(plan, result string) {
	if m == nil {
		return
	}
	m.quotaDecisions.WithLabelValues(plan, result).Inc()
}

func (m *ConsultMetrics) ObserveAdviceLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.adviceLatency.WithLabelValues(status).Observe(seconds)
}
