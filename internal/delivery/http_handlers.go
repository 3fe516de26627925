package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"perfhub/internal/domain"
	"perfhub/internal/usecase"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Header naming the dashboard a performance query refreshes
const SessionHeader = "X-Dashboard-Session"

// Services bundles the use cases the HTTP layer exposes
type Services struct {
	Aggregation *usecase.AggregationService
	Views       *usecase.DashboardViews
	Summary     *usecase.SummaryService
	Ingestion   *usecase.IngestionService
	Live        *usecase.LiveService
	Insights    *usecase.InsightsService
	Connections domain.ConnectionRepository
}

// handles HTTP requests
type HTTPHandlers struct {
	services         Services
	logger           *logger.Logger
	metrics          *metrics.Metrics
	defaultRangeDays int
	now              func() time.Time
}

// creates new HTTP handlers
func NewHTTPHandlers(
	services Services,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	defaultRangeDays int,
) *HTTPHandlers {
	return &HTTPHandlers{
		services:         services,
		logger:           logger,
		metrics:          metrics,
		defaultRangeDays: defaultRangeDays,
		now:              time.Now,
	}
}

// HealthCheck reports liveness
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "Performance Hub",
		"version":     "1.0.0",
		"description": "Consolidates marketing performance from live providers, uploads and webhooks",
		"endpoints": gin.H{
			"performance": gin.H{
				"path":        "/api/v1/performance",
				"description": "Consolidated records with a confidence report",
				"parameters": gin.H{
					"scope":  "Optional: account id or 'all' (default: all)",
					"from":   "Optional: Start date (YYYY-MM-DD)",
					"to":     "Optional: End date (YYYY-MM-DD)",
					"preset": "Optional: last_7_days, last_30_days, this_month or last_month",
				},
				"example": "/api/v1/performance?scope=acc_01&preset=last_30_days",
			},
			"summary": gin.H{
				"path":        "/api/v1/performance/summary",
				"description": "KPI totals and ratios, optionally compared with the previous period",
				"example":     "/api/v1/performance/summary?from=2026-01-01&to=2026-01-31&compare=true",
			},
			"ingest": gin.H{
				"mapping": "POST /api/v1/ingest/mapping with the CSV as body",
				"csv":     "POST /api/v1/ingest/csv?provider=Google%20Ads&state=closed with the CSV as body",
				"webhook": "POST /api/v1/ingest/webhook with a JSON array of records",
			},
			"connections": gin.H{
				"list":   "GET /api/v1/connections",
				"update": "PUT /api/v1/connections/:provider",
				"remove": "DELETE /api/v1/connections/:provider",
				"sync":   "POST /api/v1/connections/:provider/sync?from=&to=",
			},
			"insights": gin.H{
				"ask":    "POST /api/v1/insights/ask with question and optional history of {role, text} turns",
				"market": "POST /api/v1/insights/market with an optional niche",
			},
		},
		"providers":  domain.LiveProviders,
		"request_id": c.GetString("request_id"),
	})
}

// GetPerformance runs the consolidated query. With a session header the
// result is published to that dashboard and stale refreshes are rejected.
func (h *HTTPHandlers) GetPerformance(c *gin.Context) {
	ctx := c.Request.Context()
	scope := c.Query("scope")

	rng, err := h.resolveRange(c.Query("preset"), c.Query("from"), c.Query("to"))
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}

	var result *domain.AggregationResult
	if session := c.GetHeader(SessionHeader); session != "" {
		result, err = h.services.Views.For(session).Refresh(ctx, scope, rng)
	} else {
		result, err = h.services.Aggregation.Query(ctx, scope, rng)
	}
	if err != nil {
		h.respondError(c, err, "Failed to query performance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scope":      result.Scope,
		"from":       rng.From(),
		"to":         rng.To(),
		"data":       result.Records,
		"total":      len(result.Records),
		"confidence": result.Confidence,
		"degraded":   result.Degraded,
		"seq":        result.Seq,
		"request_id": c.GetString("request_id"),
	})
}

// GetPerformanceSummary returns the KPI cards of the dashboard
func (h *HTTPHandlers) GetPerformanceSummary(c *gin.Context) {
	rng, err := h.resolveRange(c.Query("preset"), c.Query("from"), c.Query("to"))
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}
	compare := c.Query("compare") == "true"

	summary, err := h.services.Summary.Summarize(c.Request.Context(), c.Query("scope"), rng, compare)
	if err != nil {
		h.respondError(c, err, "Failed to summarize performance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":    summary,
		"request_id": c.GetString("request_id"),
	})
}

// resolveRange prefers a preset, then an explicit from/to pair, then the
// configured trailing window
func (h *HTTPHandlers) resolveRange(preset, from, to string) (domain.DateRange, error) {
	if preset != "" {
		return domain.PresetRange(preset, h.now())
	}
	if from != "" || to != "" {
		if from == "" || to == "" {
			return domain.DateRange{}, fmt.Errorf("from and to must be given together")
		}
		return domain.ParseDateRange(from, to)
	}
	today := h.now()
	return domain.NewDateRange(today.AddDate(0, 0, -h.defaultRangeDays), today), nil
}

func (h *HTTPHandlers) badRequest(c *gin.Context, title string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      title,
		"message":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}

// respondError maps use case errors to a status and a machine-readable code
func (h *HTTPHandlers) respondError(c *gin.Context, err error, title string) {
	status, code := classify(err)

	log := h.logger.WithContext(c.Request.Context()).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error(title)
	} else {
		log.Warn(title)
	}

	c.JSON(status, gin.H{
		"error":      title,
		"code":       code,
		"message":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}

func classify(err error) (int, string) {
	code := domain.ErrorCode(err)
	switch {
	case errors.Is(err, domain.ErrAuthExpired):
		return http.StatusUnauthorized, code
	case errors.Is(err, domain.ErrDevTokenUnauthorized):
		return http.StatusForbidden, code
	case errors.Is(err, domain.ErrNoConnections):
		return http.StatusConflict, code
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusConflict, "SUPERSEDED"
	case errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrContractViolation),
		errors.Is(err, domain.ErrUnknownProvider),
		errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrInvalidHistory):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrInsightsDisabled):
		return http.StatusServiceUnavailable, "INSIGHTS_DISABLED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	return http.StatusInternalServerError, ""
}
