package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate/metrics"
)

func TestMetrics_Recorder(t *testing.T) {
	m := metrics.New()

	m.FallbackServed("issue_upload")
	m.FallbackServed("issue_upload")
	m.FallbackServed("stream")
	m.BrokerFailed("download_url")

	expected := `
# HELP objectgate_fallback_total Operations served from local fallback storage, by operation.
# TYPE objectgate_fallback_total counter
objectgate_fallback_total{operation="issue_upload"} 2
objectgate_fallback_total{operation="stream"} 1
# HELP objectgate_broker_failures_total Credential broker calls that failed, by operation.
# TYPE objectgate_broker_failures_total counter
objectgate_broker_failures_total{operation="download_url"} 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"objectgate_fallback_total", "objectgate_broker_failures_total")
	assert.NoError(t, err)
}

func TestMetrics_Middleware(t *testing.T) {
	m := metrics.New()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))

	for _, path := range []string{"/a", "/b", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(m.Registry(), "objectgate_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per status code")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `objectgate_http_requests_total{code="200",method="GET"} 2`)
	assert.Contains(t, body, `objectgate_http_requests_total{code="404",method="GET"} 1`)
	assert.Contains(t, body, "objectgate_http_inflight_requests 0")
	assert.Contains(t, body, "go_goroutines")
}
