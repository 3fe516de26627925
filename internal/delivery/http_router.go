package delivery

import (
	"time"

	"perfhub/internal/delivery/middleware"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HTTPRouter struct {
	handlers       *HTTPHandlers
	logger         *logger.Logger
	metrics        *metrics.Metrics
	requestTimeout time.Duration
	webhookSecret  string
}

func NewHTTPRouter(handlers *HTTPHandlers, logger *logger.Logger, metrics *metrics.Metrics, requestTimeout time.Duration, webhookSecret string) *HTTPRouter {
	return &HTTPRouter{
		handlers:       handlers,
		logger:         logger,
		metrics:        metrics,
		requestTimeout: requestTimeout,
		webhookSecret:  webhookSecret,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))
	router.Use(middleware.Timeout(r.requestTimeout))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID", SessionHeader, middleware.SignatureHeader}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/", r.handlers.GetAPIInfo)
		v1.GET("", r.handlers.GetAPIInfo)

		performance := v1.Group("/performance")
		{
			performance.GET("", r.handlers.GetPerformance)
			performance.GET("/summary", r.handlers.GetPerformanceSummary)
		}

		ingest := v1.Group("/ingest")
		{
			ingest.POST("/mapping", r.handlers.SuggestMapping)
			ingest.POST("/csv", r.handlers.IngestCSV)
			ingest.POST("/webhook", middleware.WebhookSignature(r.webhookSecret, r.logger), r.handlers.IngestWebhook)
		}

		connections := v1.Group("/connections")
		{
			connections.GET("", r.handlers.ListConnections)
			connections.PUT("/:provider", r.handlers.PutConnection)
			connections.DELETE("/:provider", r.handlers.DeleteConnection)
			connections.POST("/:provider/sync", r.handlers.SyncConnection)
		}

		insights := v1.Group("/insights")
		{
			insights.POST("/ask", r.handlers.AskInsight)
			insights.POST("/market", r.handlers.MarketInsights)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	return router
}
