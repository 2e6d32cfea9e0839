package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/config"
	dbRedis "github.com/kailas-cloud/costgate/internal/db/redis"
	logpkg "github.com/kailas-cloud/costgate/internal/logger"
	"github.com/kailas-cloud/costgate/internal/metrics"
	ledgerrepo "github.com/kailas-cloud/costgate/internal/repository/ledger"
	usagerepo "github.com/kailas-cloud/costgate/internal/repository/usage"
	exchangeTransport "github.com/kailas-cloud/costgate/internal/transport/exchange"
	"github.com/kailas-cloud/costgate/internal/transport/httpapi"
	openaiTransport "github.com/kailas-cloud/costgate/internal/transport/openai"
	costuc "github.com/kailas-cloud/costgate/internal/usecase/cost"
	exchangeuc "github.com/kailas-cloud/costgate/internal/usecase/exchange"
	governuc "github.com/kailas-cloud/costgate/internal/usecase/govern"
	healthuc "github.com/kailas-cloud/costgate/internal/usecase/health"
	ledgeruc "github.com/kailas-cloud/costgate/internal/usecase/ledger"
	quotauc "github.com/kailas-cloud/costgate/internal/usecase/quota"
	"github.com/kailas-cloud/costgate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting costgate API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register governance metrics explicitly (no init())
	metrics.RegisterGovernanceMetrics()

	// Exchange rate acquisition — providers tried in declared order
	sources := make([]exchangeuc.Source, 0, len(cfg.Exchange.Providers))
	fetchTimeout := time.Duration(cfg.Exchange.FetchTimeoutSec) * time.Second
	for _, p := range cfg.Exchange.Providers {
		sources = append(sources, exchangeTransport.NewClient(p.Name, p.BaseURL, cfg.Exchange.Currency, fetchTimeout))
	}
	rateSvc := exchangeuc.New(sources, exchangeuc.Config{
		TTL:          time.Duration(cfg.Exchange.CacheTTLMin) * time.Minute,
		FallbackRate: cfg.Exchange.FallbackRate,
		MinRate:      cfg.Exchange.MinRate,
		MaxRate:      cfg.Exchange.MaxRate,
	}, logger)
	logger.Info("Exchange rate service created",
		zap.Int("providers", len(sources)),
		zap.Float64("fallback_rate", cfg.Exchange.FallbackRate),
	)

	// Cost calculator over the configured pricing table
	prices := make(map[string]costuc.Pricing, len(cfg.Pricing.Models))
	for model, p := range cfg.Pricing.Models {
		prices[model] = costuc.Pricing{
			InputPerMillionUSD:  p.InputPerMillionUSD,
			OutputPerMillionUSD: p.OutputPerMillionUSD,
		}
	}
	calculator := costuc.New(cfg.AI.Model, prices, rateSvc)

	// Repositories (domain-native, no adapters)
	usageRepo := usagerepo.New(store)
	ledgerRepo := ledgerrepo.New(store)

	// Use case services
	tracker := quotauc.New(usageRepo, logger)
	ledgerSvc := ledgeruc.New(ledgerRepo, logger)

	aiClient := openaiTransport.NewClient(&openaiTransport.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Logger:  logger,
	})

	limits := make(map[string]int64, len(cfg.Quota.Tiers))
	for tier, t := range cfg.Quota.Tiers {
		limits[tier] = t.WeeklyLimitCents
	}
	governSvc := governuc.New(calculator, tracker, ledgerSvc, aiClient, governuc.Config{
		Limits:            limits,
		ExpectedOutTokens: cfg.AI.ExpectedOutTokens,
	}, logger)

	healthSvc := healthuc.New(store, aiClient, rateSvc)

	server := httpapi.NewServer(governSvc, tracker, rateSvc, calculator, ledgerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
