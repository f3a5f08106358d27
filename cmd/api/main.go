// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/bootstrap"
	"github.com/capitalize-ai/care-messaging/internal/config"
	"github.com/capitalize-ai/care-messaging/internal/handler"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/internal/service"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
	"github.com/capitalize-ai/care-messaging/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server",
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("realtime_driver", cfg.RealtimeDriver),
	)

	ctx := context.Background()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "care-messaging", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Storage
	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// a missing schema is repaired on first send as well
	if err := st.EnsureSchema(ctx); err != nil {
		log.Warn("failed to provision messaging schema at startup", zap.Error(err))
	}

	// Realtime delivery degrades to polling when the broker is unreachable
	var broker realtime.Broker
	b, cleanup, err := bootstrap.OpenBroker(ctx, cfg, log)
	if err != nil {
		log.Error("realtime delivery disabled", zap.Error(err))
	} else {
		broker = b
	}
	var closeOnce sync.Once
	closeBroker := func() { closeOnce.Do(cleanup) }
	defer closeBroker()

	svc := service.NewMessagingService(st, broker, service.Config{
		PageCap:        cfg.MessagePageCap,
		RealtimeDriver: cfg.RealtimeDriver,
	}, log)

	router := handler.NewRouter(svc, handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		RequestTimeout:    cfg.ServerWriteTimeout,
	}, log)

	// Create HTTP server. Only headers are bounded: whole-request timeouts
	// would cut off live streams.
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	// Graceful shutdown with timeout. Live streams end when the broker closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	server.RegisterOnShutdown(closeBroker)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
