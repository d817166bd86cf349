package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/brojonat/presale/service/config"
	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/metrics"
	"github.com/brojonat/presale/service/phase"
	"github.com/brojonat/presale/service/price"
	"github.com/brojonat/presale/service/purchase"
	"github.com/brojonat/presale/service/server"
	"github.com/brojonat/presale/service/solana"
	"github.com/brojonat/presale/service/temporal"
)

func main() {
	// A local .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	if !cfg.HasTreasuryKey() || cfg.TokenMintAddress == "" {
		logger.Warn("purchase preparation is not configured; requests will fail until TOKEN_MINT_ADDRESS and TREASURY_PRIVATE_KEY are set")
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Price oracles
	sources, err := price.NewDefaultSources(cfg.PriceSourceTimeout, nil)
	if err != nil {
		logger.Error("failed to configure price sources", "error", err)
		os.Exit(1)
	}
	oracle := price.NewOracle(sources, cfg.FallbackSOLPriceUSD, metricsCollector, logger)

	legacySources, err := price.NewSources(price.LegacySourceConfigs(cfg.PriceSourceTimeout), nil)
	if err != nil {
		logger.Error("failed to configure legacy price sources", "error", err)
		os.Exit(1)
	}
	legacyOracle := price.NewOracle(legacySources, cfg.FallbackSOLPriceUSD, metricsCollector, logger)
	logger.Info("initialized price oracles", "sources", oracle.Sources(), "legacy_sources", legacyOracle.Sources())

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	solanaClient := solana.NewClient(solanaRPC, cfg.SolanaRPCURL, metricsCollector, logger)
	builder := solana.NewBuilder(solanaClient, solana.BuilderConfig{
		MintAddress:   cfg.TokenMintAddress,
		TokenDecimals: int32(cfg.TokenDecimals),
		TreasuryKey:   cfg.TreasuryPrivateKey,
	}, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	deps := server.Dependencies{
		Oracle:       oracle,
		LegacyOracle: legacyOracle,
		Validator:    purchase.NewValidator(cfg.TokenPriceUSD),
		Builder:      builder,
	}

	// Optional purchase audit log and persisted presale threshold
	liveAt := cfg.PresaleLiveAt
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to apply database schema", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		liveAt, err = phase.ResolveThreshold(ctx, store, phase.LiveAtKey, cfg.PresaleLiveAt)
		if err != nil {
			logger.Error("failed to resolve presale start", "error", err)
			os.Exit(1)
		}
		deps.Store = store
	} else {
		logger.Info("DATABASE_URL not set, purchase audit log disabled")
	}

	controller, err := phase.NewController(liveAt, cfg.PresaleEndsAt)
	if err != nil {
		logger.Error("invalid presale schedule", "error", err)
		os.Exit(1)
	}
	deps.Phase = controller
	logger.Info("presale schedule",
		"live_at", liveAt.Format(time.RFC3339),
		"ends_at", cfg.PresaleEndsAt.Format(time.RFC3339),
		"phase", controller.Current().Phase,
	)

	// Optional purchase event stream
	if cfg.NATSURL != "" {
		ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		defer ssePublisher.Close()
		deps.SSE = ssePublisher
	}

	// Optional confirmation workflows
	if cfg.TemporalEnabled {
		if deps.Store == nil {
			logger.Error("TEMPORAL_ENABLED requires DATABASE_URL")
			os.Exit(1)
		}
		temporalClient, err := temporal.NewClient(
			cfg.TemporalHost,
			cfg.TemporalNamespace,
			cfg.TemporalTaskQueue,
			logger,
		)
		if err != nil {
			logger.Error("failed to create temporal client", "error", err)
			os.Exit(1)
		}
		defer temporalClient.Close()
		deps.Confirmer = temporalClient
		logger.Info("connected to temporal",
			"host", cfg.TemporalHost,
			"namespace", cfg.TemporalNamespace,
			"task_queue", cfg.TemporalTaskQueue,
		)
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, deps, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"solana_rpc", cfg.SolanaRPCURL,
		"audit_log", deps.Store != nil,
		"event_stream", deps.SSE != nil,
		"confirmations", deps.Confirmer != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
