package stubserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeStub     = "stub"
	outcomeContract = "contract"
	outcomeMismatch = "mismatch"
	outcomeError    = "error"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specmatic_stub_requests_total",
			Help: "Requests answered by the stub server, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "specmatic_stub_request_duration_seconds",
			Help:    "Time taken to answer a request, including stub delays.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *metrics) observe(outcome string, start time.Time) {
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
