package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/presale/service/metrics"
)

func TestHealth(t *testing.T) {
	f := newServerFixture(t)
	rec := doRequest(t, f.server(t).Handler(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	f := newServerFixture(t)
	rec := doRequest(t, f.server(t).Handler(), http.MethodOptions, "/api/purchase-tokens", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestOptionalRoutesDisabled(t *testing.T) {
	f := newServerFixture(t)
	f.store = nil
	h := f.server(t).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/v1/purchases?buyer="+f.buyer.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/stream/purchases/"+f.buyer.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestMetricsRecorded(t *testing.T) {
	f := newServerFixture(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	s := f.server(t)
	s.metrics = m
	h := s.Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/sol-price", "")
	require.Equal(t, http.StatusOK, rec.Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "http_requests_total" {
			for _, metric := range mf.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "handler" && label.GetValue() == "/api/sol-price" {
						found = true
					}
				}
			}
		}
	}
	assert.True(t, found, "expected http_requests_total for /api/sol-price")

	// The promhttp handler serves the default registry.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
