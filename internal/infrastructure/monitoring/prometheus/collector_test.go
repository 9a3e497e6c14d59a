package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/substance-resolver/internal/testutil"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, nil)
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_WithRuntimeMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{
		Namespace:            "test",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, nil)
	require.NoError(t, err)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "go_goroutines")
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("events_total", "Events", "kind")
	vec.WithLabelValues("a").Inc()
	vec.WithLabelValues("a").Add(2)

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_events_total{kind="a"} 3`)
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterGauge("depth", "Depth", "queue")
	g := vec.WithLabelValues("q1")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_depth{queue="q1"} 4`)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency_seconds", "Latency", nil, "op").WithLabelValues("x").Observe(0.2)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_latency_seconds_count{op="x"} 1`)
	assert.Contains(t, output, `test_unit_latency_seconds_bucket{op="x",le="0.25"} 1`)
}

func TestRegister_SameNameReturnsSameVector(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "Dup", "k").WithLabelValues("v").Inc()
	c.RegisterCounter("dup_total", "Dup", "k").WithLabelValues("v").Inc()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_dup_total{k="v"} 2`)
}

func TestRegister_TypeMismatchFallsBackToNoop(t *testing.T) {
	log := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, log)
	require.NoError(t, err)

	c.RegisterCounter("clash", "Clash")
	g := c.RegisterGauge("clash", "Clash")
	assert.NotPanics(t, func() { g.WithLabelValues().Set(1) })
	assert.True(t, log.HasMessage("warn", "metric type mismatch"))
}

func TestRegisterCounter_Concurrent(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "Concurrent").WithLabelValues().Inc()
		}()
	}
	wg.Wait()

	assert.Contains(t, scrapeMetrics(t, c), "test_unit_concurrent_total 20")
}
