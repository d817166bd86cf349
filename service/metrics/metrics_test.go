package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{400, "4xx"},
		{403, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCodeToString(tt.code))
	}
}

func TestRecordPriceSourceAttempt(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPriceSourceAttempt("binance", "success", 0.1)
	m.RecordPriceSourceAttempt("binance", "error", 0.2)
	m.RecordPriceSourceAttempt("binance", "error", 0.3)
	m.RecordPriceFallback()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.priceSourceAttemptsTotal.WithLabelValues("binance", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.priceSourceAttemptsTotal.WithLabelValues("binance", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.priceFallbacksTotal))
}

func TestRecordPurchasePrepared(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPurchasePrepared(true, false)
	m.RecordPurchaseRejected("validation")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchasesPreparedTotal.WithLabelValues("true", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchasesRejectedTotal.WithLabelValues("validation")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/api/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/test", "GET", "4xx")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	called := false
	handler := HTTPMetricsMiddleware(nil, "/api/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	var _ http.Flusher = w
	w.Flush()
	assert.True(t, rec.Flushed)
}

func TestTimer(t *testing.T) {
	var recorded float64
	done := Timer(time.Now().Add(-time.Second), func(d float64) { recorded = d })
	done()
	assert.GreaterOrEqual(t, recorded, 1.0)
}
