package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	m := New()
	m.ObserveModelCall("generate", "ok", time.Second)
	m.ObserveModelCall("generate", "ok", time.Second)
	m.ObserveModelCall("adapt", "UpstreamTimeout", time.Second)
	m.ObserveSearch("ok", 10*time.Millisecond)
	m.ObserveRequest("/health", http.StatusOK)
	m.SetCorpusSize(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.modelCalls.WithLabelValues("generate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelCalls.WithLabelValues("adapt", "UpstreamTimeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/health", "200")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.corpusSize))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ObserveAttempts("generate", 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `workoutai_conform_attempts_count{operation="generate"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveModelCall("generate", "ok", time.Second)
		m.ObserveAttempts("generate", 1)
		m.ObserveSearch("ok", time.Second)
		m.ObserveRequest("/", 200)
		m.SetCorpusSize(1)
	})
	assert.NotNil(t, m.Handler())
}
