// Command analytics runs the content-search analytics aggregator on its own.
//
// It consumes search and entry-view events from Kafka, aggregates them in
// memory (query volume, zero-result rate, latency percentiles, top queries
// and top entries) and serves GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config path/to/config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dannyJ848/SOMA-sub037/internal/analytics"
	"github.com/dannyJ848/SOMA-sub037/pkg/config"
	"github.com/dannyJ848/SOMA-sub037/pkg/health"
	"github.com/dannyJ848/SOMA-sub037/pkg/kafka"
	"github.com/dannyJ848/SOMA-sub037/pkg/logger"
	"github.com/dannyJ848/SOMA-sub037/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := cfg.Kafka.Topics.SearchEvents
	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, topic, aggregator.HandleMessage())
	go func() {
		if err := consumer.Run(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", topic, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker(2 * time.Second)
	checker.Register("kafka", func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	analytics.NewHandler(aggregator).Routes(r)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
