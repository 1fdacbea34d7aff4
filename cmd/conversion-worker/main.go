// Package main provides the conversion worker entry point. It consumes HL7
// orders from the inbound topic and converts them with the same service the
// API uses; converted messages leave through the outbox.
package main

import (
	"context"
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
	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/redpanda"
	"github.com/drfirst/go-rxhl7/internal/observability/logging"
	"github.com/drfirst/go-rxhl7/internal/observability/metrics"
	"github.com/drfirst/go-rxhl7/internal/observability/tracing"
	"github.com/drfirst/go-rxhl7/pkg/idempotency"
	"github.com/drfirst/go-rxhl7/pkg/workerpool"
)

func main() {
	cfg, err := config.Load("conversion-worker")
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

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

	inboxCfg := idempotency.DefaultInboxConfig()
	inboxCfg.IsTerminal = conversion.IsRejection
	inbox := idempotency.NewInbox(pool, inboxCfg, logger)
	inbox.StartCleanup()
	defer inbox.Stop()

	if n, err := inbox.RecoverStaleEntries(ctx); err != nil {
		logger.Warn("stale inbox recovery failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("recovered stale inbox entries", zap.Int64("count", n))
	}

	repo := conversion.NewRepository(pool, logger)
	service := conversion.NewService(repo, convert.NewConverter(nil, logger), m, cfg.OutboundTopic, logger)

	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = cfg.Workers
	proc, err := newProcessor(inbox, service, producer, redpanda.TopicDeadLetter, poolCfg, logger)
	if err != nil {
		logger.Fatal("worker pool creation failed", zap.Error(err))
	}
	proc.start()

	consumerCfg := redpanda.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.KafkaBrokers
	consumerCfg.GroupID = cfg.KafkaGroupID
	consumerCfg.Topics = []string{cfg.InboundTopic}
	consumerCfg.OnConsumed = func(string) { m.KafkaMessagesConsumed.Inc() }
	consumer, err := redpanda.NewConsumer(consumerCfg, proc.handle, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}
	consumer.Start()
	logger.Info("conversion worker started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.InboundTopic),
		zap.Int("workers", cfg.Workers))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           opsRouter(pool, consumer),
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if err := consumer.Stop(); err != nil {
		logger.Error("consumer stop error", zap.Error(err))
	}
	if err := proc.stop(); err != nil {
		logger.Error("worker pool stop error", zap.Error(err))
	}
	logger.Info("conversion worker stopped")
}

func opsRouter(pool *pgxpool.Pool, consumer *redpanda.Consumer) http.Handler {
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
		if err := consumer.Ping(r.Context()); err != nil {
			http.Error(w, "broker not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}
