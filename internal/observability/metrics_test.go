package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/orders/{id}")
	req := httptest.NewRequest(http.MethodGet, "/orders/3", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `orderdesk_http_requests_total{code="418",route="/orders/{id}"} 1`)
	assert.Contains(t, body, `orderdesk_http_request_duration_seconds_bucket{route="/orders/{id}"`)
}

func TestItemBatchCounter(t *testing.T) {
	metrics := NewMetrics()
	metrics.ItemBatch("applied", 3)
	metrics.ItemBatch("applied", 1)
	metrics.ItemBatch("rejected", 2)

	body := scrape(t, metrics)
	assert.Contains(t, body, `orderdesk_item_batches_total{outcome="applied"} 2`)
	assert.Contains(t, body, `orderdesk_item_batches_total{outcome="rejected"} 1`)
	assert.True(t, strings.Contains(body, "orderdesk_item_batch_directives_count 3"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ItemBatch("applied", 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
