// Package main provides the conversion API service entry point.
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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/api/handlers"
	"github.com/drfirst/go-rxhl7/internal/api/middleware"
	"github.com/drfirst/go-rxhl7/internal/config"
	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/postgres"
	"github.com/drfirst/go-rxhl7/internal/observability/logging"
	"github.com/drfirst/go-rxhl7/internal/observability/metrics"
	"github.com/drfirst/go-rxhl7/internal/observability/tracing"
)

const maxBodyBytes = 1 << 20

func main() {
	cfg, err := config.Load("conversion-api")
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
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}
	logger.Info("connected to database")

	if cfg.IsDev() {
		if _, err := postgres.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	repo := conversion.NewRepository(pool, logger)
	service := conversion.NewService(repo, convert.NewConverter(nil, logger), m, cfg.OutboundTopic, logger)

	replay, err := handlers.NewReplayCache(cfg.ReplayCacheEntries, cfg.ReplayCacheTTL)
	if err != nil {
		logger.Fatal("replay cache init failed", zap.Error(err))
	}
	defer replay.Close()

	messageHandler := handlers.NewMessageHandler(service, replay, m, logger)
	conversionHandler := handlers.NewConversionHandler(service, logger)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))

	r.Get("/health", healthHandler(cfg.ServiceName))
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeyClients()))
		r.Use(middleware.MaxBody(maxBodyBytes))
		r.Mount("/messages", messageHandler.Routes())
		r.Mount("/conversions", conversionHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting conversion API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func healthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": service,
			"version": "1.0.0",
		})
	}
}
