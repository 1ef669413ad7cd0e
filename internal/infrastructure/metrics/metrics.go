package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the CRPT submission pipeline.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	ThrottleWait    prometheus.Histogram
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crpt_submissions_total",
			Help: "Total number of document submissions by outcome",
		}, []string{"outcome"}),
		ThrottleWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crpt_throttle_wait_seconds",
			Help:    "Time spent waiting for a rate limit slot",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crpt_request_duration_seconds",
			Help:    "Duration of create document HTTP exchanges",
			Buckets: prometheus.DefBuckets,
		}, []string{"status_class"}),
	}
}

// ObserveSubmission counts one finished submission. Safe on a nil receiver.
func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveThrottleWait records how long a caller waited for its slot.
func (m *Metrics) ObserveThrottleWait(d time.Duration) {
	if m == nil {
		return
	}
	m.ThrottleWait.Observe(d.Seconds())
}

// ObserveRequest records an HTTP exchange. statusClass is "2xx", "4xx", "5xx" or "error".
func (m *Metrics) ObserveRequest(statusClass string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(statusClass).Observe(d.Seconds())
}
