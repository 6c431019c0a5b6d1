package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsSingleton(t *testing.T) {
	require.Same(t, Default(), Default())
}

func TestObserveSynthesis(t *testing.T) {
	m := Default()
	before := testutil.ToFloat64(m.SynthesisRequestsTotal.WithLabelValues(ResultInvalid))
	m.ObserveSynthesis(ResultInvalid, 300*time.Millisecond)
	after := testutil.ToFloat64(m.SynthesisRequestsTotal.WithLabelValues(ResultInvalid))
	assert.Equal(t, before+1, after)
}

func TestObserveHTTP(t *testing.T) {
	m := Default()
	counter := m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/synthesize", "400")
	before := testutil.ToFloat64(counter)
	m.ObserveHTTP(http.MethodPost, "/synthesize", http.StatusBadRequest, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSynthesis(ResultSuccess, time.Second)
		m.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, time.Second)
		m.ObservePhase("idle")
		m.SessionStarted()
		m.SessionCompleted()
	})
}

func TestSessionCounters(t *testing.T) {
	m := Default()
	started := testutil.ToFloat64(m.SessionsStarted)
	completed := testutil.ToFloat64(m.SessionsCompleted)
	m.SessionStarted()
	m.SessionCompleted()
	assert.Equal(t, started+1, testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, completed+1, testutil.ToFloat64(m.SessionsCompleted))
}
