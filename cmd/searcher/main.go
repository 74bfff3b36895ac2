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
	"github.com/dannyJ848/SOMA-sub037/internal/corpus"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/cache"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/handler"
	"github.com/dannyJ848/SOMA-sub037/pkg/config"
	"github.com/dannyJ848/SOMA-sub037/pkg/contentindex"
	"github.com/dannyJ848/SOMA-sub037/pkg/health"
	"github.com/dannyJ848/SOMA-sub037/pkg/kafka"
	"github.com/dannyJ848/SOMA-sub037/pkg/logger"
	"github.com/dannyJ848/SOMA-sub037/pkg/metrics"
	"github.com/dannyJ848/SOMA-sub037/pkg/middleware"
	"github.com/dannyJ848/SOMA-sub037/pkg/postgres"
	pkgredis "github.com/dannyJ848/SOMA-sub037/pkg/redis"
	"github.com/dannyJ848/SOMA-sub037/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file; defaults serve the embedded corpus")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("content search service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting content search service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
		"stemming", cfg.Search.Stemming,
	)
	m := metrics.New()
	checker := health.NewChecker(2 * time.Second)

	source, closeSource, err := openSource(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer closeSource()

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     10 * time.Second,
				OnStateChange: func(name string, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, cache.WithBreaker(breaker))
			checker.RegisterOptional("redis", health.PingProbe("redis", redisClient))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	holder := contentindex.NewHolder(
		contentindex.Options{
			Stemming:         cfg.Search.Stemming,
			ExactPhraseBonus: cfg.Search.ExactPhraseBonus,
		},
		contentindex.OnSwap(func(ix *contentindex.Index) {
			stats := ix.Stats()
			m.ObserveIndex(metrics.IndexSnapshot{
				Entries:         stats.Entries,
				Terms:           stats.Terms,
				BuildSeconds:    ix.BuildDuration().Seconds(),
				CategoryEntries: stats.CategoryEntries,
			})
		}),
	)
	checker.Register("content_index", health.IndexProbe(holder))

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	_, err = holder.Reload(loadCtx, source)
	cancel()
	if err != nil {
		return fmt.Errorf("building content index: %w", err)
	}

	aggregator := analytics.NewAggregator()
	var tracker analytics.Tracker = aggregator
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.SearchEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()

		collector := analytics.NewCollector(producer, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		consumer := kafka.NewConsumer(cfg.Kafka, topic, aggregator.HandleMessage())
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("analytics consumer stopped", "error", err)
			}
		}()
		checker.RegisterOptional("kafka", func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		})
		slog.Info("analytics streaming enabled", "topic", topic, "brokers", cfg.Kafka.Brokers)
	}

	opts := []handler.Option{
		handler.WithAdminGuard(middleware.NewAdminKeys(cfg.Server.AdminKeys).Require),
		handler.WithTracker(tracker),
		handler.WithMetrics(m),
		handler.WithReloader(func(ctx context.Context) (*contentindex.Index, error) {
			return holder.Reload(ctx, source)
		}),
	}
	if queryCache != nil {
		opts = append(opts, handler.WithCache(queryCache))
	}
	h := handler.New(holder, handler.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Tracing:      cfg.Tracing.Enabled,
	}, opts...)

	limiter := middleware.NewRateLimiter(cfg.Search.RequestsPerSecond, cfg.Search.Burst)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	r.Use(middleware.Metrics(m))
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		h.Routes(r)
		analytics.NewHandler(aggregator).Routes(r)
	})

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("content search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("content search service stopped")
	return nil
}

// openSource returns the configured corpus source and a func releasing
// whatever it holds open.
func openSource(ctx context.Context, cfg *config.Config, checker *health.Checker) (contentindex.CorpusSource, func(), error) {
	switch cfg.Corpus.Source {
	case config.SourceDir:
		return corpus.Dir(cfg.Corpus.Dir), func() {}, nil
	case config.SourcePostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to corpus database: %w", err)
		}
		checker.RegisterOptional("postgres", health.PingProbe("postgres", client))
		return corpus.NewPostgresSource(client.DB, cfg.Corpus.Table), func() { client.Close() }, nil
	default:
		return corpus.Embedded(), func() {}, nil
	}
}
