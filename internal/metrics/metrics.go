// Package metrics registers the Prometheus collectors shared by the war room
// session, the synthesis service and the HTTP API.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Synthesis outcomes recorded on SynthesisRequestsTotal.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultInvalid     = "invalid"
	ResultUnavailable = "unavailable"
)

// Metrics holds the war room collectors.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	PhaseTransitions  *prometheus.CounterVec

	SynthesisRequestsTotal *prometheus.CounterVec
	SynthesisDuration      prometheus.Histogram

	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// Default creates and registers the collectors on first use.
//
// Metrics:
//   - warroom_sessions_started_total
//   - warroom_sessions_completed_total
//   - warroom_phase_transitions_total{phase}
//   - warroom_synthesis_requests_total{result}
//   - warroom_synthesis_duration_seconds
//   - warroom_http_requests_total{method,endpoint,status}
//   - warroom_http_request_duration_seconds{method,endpoint}
func Default() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "warroom_sessions_started_total",
				Help: "Sessions that left the idle phase",
			}),
			SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "warroom_sessions_completed_total",
				Help: "Sessions that reached the complete phase",
			}),
			PhaseTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "warroom_phase_transitions_total",
					Help: "Phase transitions by destination phase",
				},
				[]string{"phase"},
			),
			SynthesisRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "warroom_synthesis_requests_total",
					Help: "Decision synthesis calls by result",
				},
				[]string{"result"}, // success, failure, invalid, unavailable
			),
			SynthesisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "warroom_synthesis_duration_seconds",
				Help:    "Decision synthesis latency in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			}),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "warroom_http_requests_total",
					Help: "HTTP requests by method, route and status",
				},
				[]string{"method", "endpoint", "status"},
			),
			HTTPDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "warroom_http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "endpoint"},
			),
		}
	})
	return globalMetrics
}

// ObserveSynthesis records one synthesis call.
func (m *Metrics) ObserveSynthesis(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisRequestsTotal.WithLabelValues(result).Inc()
	m.SynthesisDuration.Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// ObservePhase records a transition into phase.
func (m *Metrics) ObservePhase(phase string) {
	if m == nil {
		return
	}
	m.PhaseTransitions.WithLabelValues(phase).Inc()
}

// SessionStarted counts a session leaving idle.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// SessionCompleted counts a session reaching complete.
func (m *Metrics) SessionCompleted() {
	if m == nil {
		return
	}
	m.SessionsCompleted.Inc()
}
