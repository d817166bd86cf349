package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brojonat/presale/service/config"
	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/metrics"
	"github.com/brojonat/presale/service/phase"
	"github.com/brojonat/presale/service/price"
	"github.com/brojonat/presale/service/purchase"
	"github.com/brojonat/presale/service/solana"
	"github.com/brojonat/presale/service/temporal"
)

// QuoteSource is the price oracle as seen by the handlers.
type QuoteSource interface {
	Quote(ctx context.Context) (price.Quote, error)
	QuoteOrFallback(ctx context.Context) price.Quote
}

// TransactionBuilder prepares treasury co-signed purchase transactions.
type TransactionBuilder interface {
	Preflight() error
	Build(ctx context.Context, req solana.BuildRequest) (*solana.PreparedTransaction, error)
}

// PurchaseStore is the purchase audit log.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, params db.CreatePurchaseParams) (*db.Purchase, error)
	GetPurchase(ctx context.Context, id uuid.UUID) (*db.Purchase, error)
	ListPurchasesByBuyer(ctx context.Context, buyer string, limit int32) ([]*db.Purchase, error)
	MarkPurchaseSubmitted(ctx context.Context, id uuid.UUID, signature string) (*db.Purchase, error)
}

// Dependencies are the components the server routes to. Store, Confirmer and
// SSE are optional; their routes are disabled when nil.
type Dependencies struct {
	Oracle       QuoteSource
	LegacyOracle QuoteSource
	Validator    *purchase.Validator
	Builder      TransactionBuilder
	Phase        *phase.Controller
	Store        PurchaseStore
	Confirmer    temporal.Confirmer
	SSE          *SSEPublisher
}

// Server represents the HTTP server for the presale service.
type Server struct {
	addr    string
	cfg     *config.Config
	deps    Dependencies
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, deps Dependencies, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.LegacyOracle == nil {
		deps.LegacyOracle = deps.Oracle
	}
	return &Server{
		addr:    addr,
		cfg:     cfg,
		deps:    deps,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the routed handler, wrapped with CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	d := s.deps

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Price routes
	route("GET /api/sol-price", "/api/sol-price", handleSOLPrice(d.Oracle, s.logger))
	route("GET /api/solana-price", "/api/solana-price", handleLegacySOLPrice(d.LegacyOracle, s.logger))

	// Purchase preparation
	route("POST /api/purchase-tokens", "/api/purchase-tokens",
		handlePreparePurchase(d.Oracle, d.Validator, d.Builder, d.Phase, d.Store, s.metrics, s.logger))
	route("GET /api/purchase-tokens", "/api/purchase-tokens", handlePurchaseInfo(s.cfg, d.Validator))

	route("GET /api/v1/presale/phase", "/api/v1/presale/phase", handlePhase(d.Phase))

	// Purchase audit routes (if a store is configured)
	if d.Store != nil {
		route("GET /api/v1/purchases/{id}", "/api/v1/purchases/{id}", handleGetPurchase(d.Store, s.logger))
		route("GET /api/v1/purchases", "/api/v1/purchases", handleListPurchases(d.Store, s.logger))
		route("POST /api/v1/purchases/{id}/submission", "/api/v1/purchases/{id}/submission",
			handleSubmitPurchase(d.Store, d.Confirmer, s.cfg, s.logger))
		s.logger.Info("purchase audit endpoints enabled")
	} else {
		s.logger.Warn("database not configured, purchase audit endpoints disabled")
	}

	// SSE streaming endpoint (if SSE publisher is configured)
	if d.SSE != nil {
		mux.Handle("GET /api/v1/stream/purchases/{buyer}", handleStreamPurchases(d.SSE, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoint disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.deps.SSE != nil {
		s.deps.SSE.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
