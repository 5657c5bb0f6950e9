package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"forecast-dashboard/internal/app"
	"forecast-dashboard/internal/config"
	"forecast-dashboard/internal/handlers"
	"forecast-dashboard/internal/middleware"
	"forecast-dashboard/internal/observability"
	"forecast-dashboard/internal/server"
)

const summaryLoadTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger, os.Stdout)
	slog.SetDefault(logger)
	observability.SetSpanLogger(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"data_source", cfg.Data.Source,
		"addr", cfg.Address(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), summaryLoadTimeout)
	defer cancel()

	start := time.Now()
	forecaster, closeData, err := app.NewForecaster(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load forecast summary", "error", err)
		os.Exit(1)
	}
	logger.Info("forecast summary loaded",
		"rows", forecaster.Summary().Len(),
		"duration", time.Since(start),
	)

	if err := run(cfg, logger, newHandler(cfg, logger, server.NewServer(forecaster, logger, handlerOptions(cfg))), closeData); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("application stopped gracefully")
}

func handlerOptions(cfg *config.Config) handlers.Options {
	return handlers.Options{TopN: cfg.Engine.TopN, TailRows: cfg.Engine.TailRows, MaxPairs: cfg.Engine.MaxPairs}
}

func newHandler(cfg *config.Config, logger *slog.Logger, srv http.Handler) http.Handler {
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)
	return chain(srv)
}

func run(cfg *config.Config, logger *slog.Logger, handler http.Handler, closeData func() error) error {
	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("data-source", func(ctx context.Context) error {
		logger.Info("closing forecast data source")
		return closeData()
	})

	return gracefulServer.ListenAndServe()
}
