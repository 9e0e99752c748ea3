package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cachestream/errors"
)

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cachestream",
		Subsystem: "test",
		Name:      name,
		Help:      "test counter",
	})
}

func TestNewMetricsRegistry(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r)
	require.NotNil(t, r.PrometheusRegistry())
	require.NotNil(t, r.CoreMetrics())
	assert.NotNil(t, r.CoreMetrics().CacheRequestsTotal)
	assert.NotNil(t, r.CoreMetrics().TransportConnected)
}

func TestRegisterAndUnregisterCounter(t *testing.T) {
	r := NewMetricsRegistry()

	c := newTestCounter("ops_total")
	require.NoError(t, r.RegisterCounter("session", "ops", c))

	// Same key is rejected
	err := r.RegisterCounter("session", "ops", newTestCounter("other_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	assert.True(t, r.Unregister("session", "ops"))
	assert.False(t, r.Unregister("session", "ops"))

	// Re-registration works after unregister
	require.NoError(t, r.RegisterCounter("session", "ops", newTestCounter("ops_total")))
}

func TestRegisterGaugeAndVecs(t *testing.T) {
	r := NewMetricsRegistry()

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cachestream", Subsystem: "test", Name: "depth", Help: "h",
	})
	require.NoError(t, r.RegisterGauge("buffer", "depth", g))

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cachestream", Subsystem: "test", Name: "events_total", Help: "h",
	}, []string{"kind"})
	require.NoError(t, r.RegisterCounterVec("buffer", "events", cv))

	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cachestream", Subsystem: "test", Name: "state", Help: "h",
	}, []string{"kind"})
	require.NoError(t, r.RegisterGaugeVec("buffer", "state", gv))
}

func TestPrometheusLevelConflict(t *testing.T) {
	r := NewMetricsRegistry()

	// Two different registry keys but identical prometheus identity
	require.NoError(t, r.RegisterCounter("a", "x", newTestCounter("dup_total")))
	err := r.RegisterCounter("b", "y", newTestCounter("dup_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
