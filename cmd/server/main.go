package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perfhub/internal/delivery"
	"perfhub/internal/domain"
	"perfhub/internal/infrastructure"
	"perfhub/internal/usecase"
	"perfhub/pkg/config"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.WithField("storage", cfg.Storage.Backend).Info("Starting server")

	m := metrics.New(prometheus.DefaultRegisterer)

	store, err := newStore(cfg.Storage, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	perfRepo := infrastructure.NewPerformanceRepository(store, log)
	connRepo := infrastructure.NewConnectionRepository(store, log)
	demo := infrastructure.NewDemoDataset()
	providers := infrastructure.NewProviderClient(infrastructure.ProviderClientConfig{
		BaseURL:            cfg.Live.ProviderAPIURL,
		DeveloperToken:     cfg.Live.DeveloperToken,
		Timeout:            cfg.Live.FetchTimeout,
		RateLimitPerSecond: cfg.Live.RateLimitPerSecond,
	}, log, m)

	var analyst domain.Analyst
	if cfg.Insights.GeminiAPIKey != "" {
		gemini, err := infrastructure.NewGeminiAnalyst(context.Background(), infrastructure.GeminiConfig{
			APIKey: cfg.Insights.GeminiAPIKey,
			Model:  cfg.Insights.Model,
		}, log, m)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize insights")
		}
		analyst = gemini
	} else {
		log.Warn("GEMINI_API_KEY not set, insights are disabled")
	}

	aggregation := usecase.NewAggregationService(connRepo, perfRepo, providers, demo, log, m, cfg.Live.FetchTimeout)
	services := delivery.Services{
		Aggregation: aggregation,
		Views:       usecase.NewDashboardViews(aggregation, log, m, cfg.Query.SessionIdleTTL, cfg.Query.MaxSessions),
		Summary:     usecase.NewSummaryService(aggregation, log),
		Ingestion:   usecase.NewIngestionService(perfRepo, log, m),
		Live:        usecase.NewLiveService(connRepo, providers, log, cfg.Live.FetchTimeout),
		Insights:    usecase.NewInsightsService(aggregation, demo, analyst, log),
		Connections: connRepo,
	}

	gin.SetMode(gin.ReleaseMode)
	handlers := delivery.NewHTTPHandlers(services, log, m, cfg.Query.DefaultRangeDays)
	router := delivery.NewHTTPRouter(handlers, log, m, cfg.Server.RequestTimeout, cfg.Ingest.WebhookSecret)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server error")
		}
	}()

	<-done
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}
}

// newStore opens the key-value backend named by cfg
func newStore(cfg config.StorageConfig, log *logger.Logger) (domain.KeyValueStore, error) {
	switch cfg.Backend {
	case config.BackendFile:
		store, err := infrastructure.NewFileStore(cfg.FilePath, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := infrastructure.NewRedisStore(client, cfg.KeyPrefix, log)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return infrastructure.NewMemoryStore(log), nil
}
