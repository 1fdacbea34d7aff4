// Package main provides the outbox relay entry point. It drains converted
// messages from the outbox table to the broker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/config"
	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/postgres"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/redpanda"
	"github.com/drfirst/go-rxhl7/internal/observability/logging"
	"github.com/drfirst/go-rxhl7/internal/observability/metrics"
	"github.com/drfirst/go-rxhl7/internal/observability/tracing"
	"github.com/drfirst/go-rxhl7/pkg/circuitbreaker"
)

const (
	maintenanceInterval = 30 * time.Second
	processedRetention  = 7 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load("outbox-relay")
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to database")

	m := metrics.New(prometheus.DefaultRegisterer)

	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.KafkaBrokers
	producerCfg.OnProduced = func(string) { m.KafkaMessagesProduced.Inc() }
	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()
	logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.KafkaBrokers))

	breakerCfg := circuitbreaker.DefaultConfig("")
	breakerCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(to.Value())
	}
	breakers := circuitbreaker.NewManager(breakerCfg, logger)

	service := conversion.NewService(conversion.NewRepository(pool, logger), nil, m, cfg.OutboundTopic, logger)

	outbox := postgres.NewOutbox(pool, &breakerPublisher{next: producer, breakers: breakers}, postgres.DefaultOutboxConfig(), logger)
	outbox.OnPublished(markPublished(service, logger))
	outbox.Start()

	go maintain(ctx, outbox, m, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           opsRouter(pool, breakers),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = server.Shutdown(shutdownCtx)
	outbox.Stop()
	logger.Info("outbox relay stopped")
}

// maintain exports the backlog gauge, parks exhausted entries and prunes
// delivered rows.
func maintain(ctx context.Context, outbox *postgres.Outbox, m *metrics.Metrics, logger *zap.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if stats, err := outbox.GetStats(ctx); err != nil {
			logger.Warn("outbox stats failed", zap.Error(err))
		} else {
			m.OutboxPending.Set(float64(stats.Pending))
		}

		if n, err := outbox.MoveToDeadLetter(ctx); err != nil {
			logger.Error("dead letter sweep failed", zap.Error(err))
		} else if n > 0 {
			logger.Warn("outbox entries dead-lettered", zap.Int64("count", n))
		}

		if _, err := outbox.CleanupProcessed(ctx, processedRetention); err != nil {
			logger.Warn("outbox cleanup failed", zap.Error(err))
		}
	}
}

func opsRouter(pool *pgxpool.Pool, breakers *circuitbreaker.Manager) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Get("/breakers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(breakers.GetHealthStatus())
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}
