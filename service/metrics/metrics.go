package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics; a nil
// *Metrics means "don't record".
type Metrics struct {
	// Price oracle metrics
	priceSourceAttemptsTotal *prometheus.CounterVec
	priceSourceDuration      *prometheus.HistogramVec
	priceFallbacksTotal      prometheus.Counter
	lastQuotePrice           *prometheus.GaugeVec

	// Purchase metrics
	purchasesPreparedTotal *prometheus.CounterVec
	purchasesRejectedTotal *prometheus.CounterVec
	purchaseStatusTotal    *prometheus.CounterVec

	// Solana RPC metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Workflow metrics
	confirmationWorkflowDuration *prometheus.HistogramVec
	activityDuration             *prometheus.HistogramVec

	// Database metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		priceSourceAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_source_attempts_total",
				Help: "Total number of quote requests per price source and outcome",
			},
			[]string{"source", "status"},
		),
		priceSourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "price_source_duration_seconds",
				Help:    "Duration of quote requests per price source in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"source"},
		),
		priceFallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "price_fallbacks_total",
				Help: "Total number of times the fixed fallback price was used because every source failed",
			},
		),
		lastQuotePrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "price_last_quote_usd",
				Help: "Most recent SOL/USD price returned by each source",
			},
			[]string{"source"},
		),

		purchasesPreparedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_prepared_total",
				Help: "Total number of purchase transactions prepared",
			},
			[]string{"creates_token_account", "degraded_price"},
		),
		purchasesRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_rejected_total",
				Help: "Total number of purchase requests rejected, by error kind",
			},
			[]string{"kind"},
		),
		purchaseStatusTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchase_status_transitions_total",
				Help: "Total number of purchase status transitions",
			},
			[]string{"status"},
		),

		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		confirmationWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_workflow_duration_seconds",
				Help:    "Time from submission to terminal purchase status in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_activity_duration_seconds",
				Help:    "Duration of confirmation workflow activities in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"activity"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active purchase event stream connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"event_status"},
		),
	}
}

// Price oracle metric helpers

// RecordPriceSourceAttempt records a single quote request against one source.
func (m *Metrics) RecordPriceSourceAttempt(source, status string, duration float64) {
	m.priceSourceAttemptsTotal.WithLabelValues(source, status).Inc()
	m.priceSourceDuration.WithLabelValues(source).Observe(duration)
}

// RecordQuotePrice records the last price observed from a source.
func (m *Metrics) RecordQuotePrice(source string, price float64) {
	m.lastQuotePrice.WithLabelValues(source).Set(price)
}

// RecordPriceFallback records use of the fixed fallback price.
func (m *Metrics) RecordPriceFallback() {
	m.priceFallbacksTotal.Inc()
}

// Purchase metric helpers

// RecordPurchasePrepared records a successfully prepared purchase transaction.
func (m *Metrics) RecordPurchasePrepared(createsTokenAccount, degradedPrice bool) {
	m.purchasesPreparedTotal.WithLabelValues(
		strconv.FormatBool(createsTokenAccount),
		strconv.FormatBool(degradedPrice),
	).Inc()
}

// RecordPurchaseRejected records a rejected purchase request by error kind.
func (m *Metrics) RecordPurchaseRejected(kind string) {
	m.purchasesRejectedTotal.WithLabelValues(kind).Inc()
}

// RecordPurchaseStatus records a purchase reaching a status.
func (m *Metrics) RecordPurchaseStatus(status string) {
	m.purchaseStatusTotal.WithLabelValues(status).Inc()
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Workflow metric helpers

// RecordWorkflowDuration records the time a purchase took to reach a terminal status.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	m.confirmationWorkflowDuration.WithLabelValues(status).Observe(duration)
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.activityDuration.WithLabelValues(activity).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation. The subject embeds a
// buyer address, so only the event status is used as a label.
func (m *Metrics) RecordNATSPublish(eventStatus, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.WithLabelValues(eventStatus).Observe(duration)
}

// statusCodeToString buckets HTTP status codes into classes to keep label cardinality low.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
