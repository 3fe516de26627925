package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"
)

// ScopeAll selects every account
const ScopeAll = "all"

// Querier answers dashboard queries
type Querier interface {
	Query(ctx context.Context, scope string, rng domain.DateRange) (*domain.AggregationResult, error)
}

// AggregationService consolidates live, cached and demonstration data into
// one record set with a confidence report
type AggregationService struct {
	connRepo     domain.ConnectionRepository
	perfRepo     domain.PerformanceRepository
	live         domain.LiveSource
	fallback     domain.FallbackSource
	logger       *logger.Logger
	metrics      *metrics.Metrics
	fetchTimeout time.Duration
}

func NewAggregationService(
	connRepo domain.ConnectionRepository,
	perfRepo domain.PerformanceRepository,
	live domain.LiveSource,
	fallback domain.FallbackSource,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	fetchTimeout time.Duration,
) *AggregationService {
	return &AggregationService{
		connRepo:     connRepo,
		perfRepo:     perfRepo,
		live:         live,
		fallback:     fallback,
		logger:       logger,
		metrics:      metrics,
		fetchTimeout: fetchTimeout,
	}
}

// Query builds the consolidated view for scope over rng. Live sources are
// tried first in fixed provider order, then the cache, and the demonstration
// dataset only when both contributed nothing. Authorization failures abort
// the query; any other live failure degrades it.
func (s *AggregationService) Query(ctx context.Context, scope string, rng domain.DateRange) (*domain.AggregationResult, error) {
	start := time.Now()
	if scope == "" {
		scope = ScopeAll
	}
	log := s.logger.WithQuery(ctx, scope, rng.From(), rng.To())

	var (
		acc      []domain.PerformanceRecord
		degraded []domain.DegradedSource
		sources  []domain.DataSource
		err      error
	)

	liveRows, liveDegraded, err := s.fetchLive(ctx, rng)
	if err != nil {
		return nil, err
	}
	degraded = append(degraded, liveDegraded...)
	if liveRows = filterScope(liveRows, scope); len(liveRows) > 0 {
		if acc, err = Merge(acc, liveRows); err != nil {
			return nil, fmt.Errorf("failed to merge live records: %w", err)
		}
		sources = append(sources, domain.SourceOAuth)
	}

	cached, err := s.perfRepo.GetByDateRange(ctx, rng)
	if err != nil {
		log.WithError(err).Warn("Consolidated cache unavailable, continuing without it")
		s.metrics.RecordDegradedFetch("cache")
		degraded = append(degraded, domain.DegradedSource{Provider: "cache", Reason: err.Error()})
	}
	cached, dropped, reason := SplitValid(cached)
	if dropped > 0 {
		log.WithError(reason).WithField("dropped", dropped).Warn("Skipped malformed cached records")
		s.metrics.RecordDegradedFetch("cache")
		degraded = append(degraded, domain.DegradedSource{
			Provider: "cache",
			Reason:   fmt.Sprintf("%d malformed records skipped: %v", dropped, reason),
		})
	}
	if cached = filterScope(cached, scope); len(cached) > 0 {
		if acc, err = Merge(acc, cached); err != nil {
			return nil, fmt.Errorf("failed to merge cached records: %w", err)
		}
		sources = append(sources, domain.SourceCSV)
	}

	if len(acc) == 0 {
		acc = filterScope(s.fallback.Records(), scope)
		sources = []domain.DataSource{domain.SourceMock}
	}

	sort.SliceStable(acc, func(i, j int) bool {
		if acc[i].Date != acc[j].Date {
			return acc[i].Date < acc[j].Date
		}
		return acc[i].ID < acc[j].ID
	})

	result := &domain.AggregationResult{
		Scope:      scope,
		Range:      rng,
		Records:    acc,
		Confidence: domain.NewConfidenceReport(sources),
		Degraded:   degraded,
	}

	duration := time.Since(start)
	s.metrics.RecordQuery(result.Confidence.ConfidenceScore, result.Confidence.IsFallback, duration)

	log.WithFields(map[string]any{
		"records":    len(acc),
		"sources":    sources,
		"confidence": result.Confidence.ConfidenceScore,
		"degraded":   len(degraded),
		"duration":   duration,
	}).Info("Aggregation query completed")

	return result, nil
}

// fetchLive pulls every usable connection sequentially in provider order
func (s *AggregationService) fetchLive(ctx context.Context, rng domain.DateRange) ([]domain.PerformanceRecord, []domain.DegradedSource, error) {
	log := s.logger.WithContext(ctx)

	conns, err := s.connRepo.List(ctx)
	if err != nil {
		log.WithError(err).Warn("Connection registry unavailable, skipping live sources")
		s.metrics.RecordDegradedFetch("connections")
		return nil, []domain.DegradedSource{{Provider: "connections", Reason: err.Error()}}, nil
	}

	byProvider := make(map[domain.ProviderID]domain.ConnectionStatus, len(conns))
	for _, c := range conns {
		if c.Usable() {
			byProvider[c.Provider] = c
		}
	}

	var (
		rows     []domain.PerformanceRecord
		degraded []domain.DegradedSource
	)
	for _, provider := range domain.LiveProviders {
		conn, ok := byProvider[provider]
		if !ok {
			continue
		}

		fetched, err := s.fetchOne(ctx, conn, rng)
		switch {
		case err == nil:
			if rows, err = Merge(rows, fetched); err != nil {
				return nil, nil, fmt.Errorf("failed to merge %s records: %w", provider, err)
			}
		case errors.Is(err, domain.ErrAuthExpired), errors.Is(err, domain.ErrDevTokenUnauthorized):
			s.logger.WithProvider(ctx, string(provider)).WithError(err).Error("Live source rejected credentials")
			return nil, nil, err
		case errors.Is(err, domain.ErrNoConnections):
			s.logger.WithProvider(ctx, string(provider)).Debug("No live path for provider")
		case ctx.Err() != nil:
			return nil, nil, ctx.Err()
		default:
			s.logger.WithProvider(ctx, string(provider)).WithError(err).Warn("Live fetch failed, degrading to cached data")
			s.metrics.RecordDegradedFetch(string(provider))
			degraded = append(degraded, domain.DegradedSource{Provider: provider, Reason: err.Error()})
		}
	}
	return rows, degraded, nil
}

func (s *AggregationService) fetchOne(ctx context.Context, conn domain.ConnectionStatus, rng domain.DateRange) ([]domain.PerformanceRecord, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	return s.live.Fetch(ctx, conn, rng)
}

func filterScope(records []domain.PerformanceRecord, scope string) []domain.PerformanceRecord {
	if scope == ScopeAll {
		return records
	}
	filtered := make([]domain.PerformanceRecord, 0, len(records))
	for _, r := range records {
		if r.AccountID == scope {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
