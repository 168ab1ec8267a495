package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsMiddlewareCounts(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	m.RecordMovement("sale", "processed")
	m.RecordMovement("sale", "skipped")
	m.RecordNameFallback()
	m.RecordClamp()

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `meridian_http_requests_total{code="418",route="unknown"} 1`), body)
	require.True(t, strings.Contains(body, `meridian_stock_movements_total{kind="sale",outcome="processed"} 1`), body)
	require.True(t, strings.Contains(body, "meridian_item_name_fallback_lookups_total 1"), body)
	require.True(t, strings.Contains(body, "meridian_stock_clamps_total 1"), body)
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.RecordMovement("sale", "processed")
	m.RecordNameFallback()
	m.RecordClamp()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, m.Middleware(next))
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
