package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"
)

// IngestionService is the only writer of the consolidated cache. Every
// write is a read-merge-write-back under one lock, so concurrent uploads
// never overwrite each other.
type IngestionService struct {
	perfRepo domain.PerformanceRepository
	logger   *logger.Logger
	metrics  *metrics.Metrics
	mutex    sync.Mutex
	now      func() time.Time
}

func NewIngestionService(
	perfRepo domain.PerformanceRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *IngestionService {
	return &IngestionService{
		perfRepo: perfRepo,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

type IngestCSVRequest struct {
	Content    string
	Provider   string
	Mapping    ColumnMapping
	FixedDate  string
	ReportType domain.ReportType
	State      domain.DataState
	Delimiter  rune
}

type IngestResult struct {
	Source   domain.DataSource `json:"source"`
	Received int               `json:"received"`
	Merge    MergeStats        `json:"merge"`
	Total    int               `json:"total"`
	Mapping  ColumnMapping     `json:"mapping,omitempty"`
}

// IngestCSV normalizes an upload and merges it into the consolidated cache.
// Without an explicit mapping the suggested one is used.
func (s *IngestionService) IngestCSV(ctx context.Context, req IngestCSVRequest) (*IngestResult, error) {
	log := s.logger.WithContext(ctx)

	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is required", domain.ErrInvalidRecord)
	}
	if req.State != "" && !req.State.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidRecord, req.State)
	}

	mapping := req.Mapping
	if len(mapping) == 0 {
		mapping = SuggestMappingFromContent(req.Content, req.Delimiter)
		log.WithField("mapping", mapping).Info("Using suggested column mapping")
	}

	normalized := Normalize(req.Content, NormalizeOptions{
		Provider:         provider,
		Mapping:          mapping,
		FixedDate:        req.FixedDate,
		ForcedReportType: req.ReportType,
		State:            req.State,
		Delimiter:        req.Delimiter,
		Now:              s.now,
	})

	s.metrics.RecordDefaulted("date", normalized.DefaultedDates)
	s.metrics.RecordDefaulted("dimension", normalized.DefaultedDimensions)
	if normalized.DefaultedDates > 0 {
		log.WithField("rows", normalized.DefaultedDates).Warn("Rows without a readable date were stamped with the ingestion date")
	}

	result, err := s.commit(ctx, domain.SourceCSV, provider, normalized.Records)
	if err != nil {
		return nil, err
	}
	result.Mapping = mapping
	return result, nil
}

// IngestRecords validates and merges records pushed by a webhook
func (s *IngestionService) IngestRecords(ctx context.Context, records []domain.PerformanceRecord) (*IngestResult, error) {
	now := s.now().UnixMilli()

	prepared := make([]domain.PerformanceRecord, 0, len(records))
	for i, r := range records {
		r.Provider = strings.TrimSpace(r.Provider)
		if r.Provider == "" {
			return nil, fmt.Errorf("%w: record %d has no provider", domain.ErrInvalidRecord, i)
		}
		date, ok := domain.ParseDate(r.Date)
		if !ok {
			return nil, fmt.Errorf("%w: record %d has unreadable date %q", domain.ErrInvalidRecord, i, r.Date)
		}
		r.Date = date
		if r.State == "" {
			r.State = domain.StateCurrent
		}
		if !r.State.Valid() {
			return nil, fmt.Errorf("%w: record %d has unknown state %q", domain.ErrInvalidRecord, i, r.State)
		}
		r.ReportType = domain.ParseReportType(string(r.ReportType))
		if strings.TrimSpace(r.DimensionName) == "" {
			r.DimensionName = domain.UndefinedDimension
		}
		r.Conversions = nonNegative(r.Conversions)
		r.Cost = nonNegative(r.Cost)
		r.Clicks = nonNegative(r.Clicks)
		r.Impressions = nonNegative(r.Impressions)
		r.Source = domain.SourceWebhook
		if r.Timestamp <= 0 {
			r.Timestamp = now
		}
		prepared = append(prepared, r.WithID())
	}

	provider := "mixed"
	if len(prepared) > 0 {
		provider = prepared[0].Provider
	}
	return s.commit(ctx, domain.SourceWebhook, provider, prepared)
}

func (s *IngestionService) commit(ctx context.Context, source domain.DataSource, provider string, incoming []domain.PerformanceRecord) (*IngestResult, error) {
	log := s.logger.WithContext(ctx)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, err := s.perfRepo.Load(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load consolidated records")
		return nil, fmt.Errorf("failed to load consolidated records: %w", err)
	}

	existing, dropped, reason := SplitValid(existing)
	if dropped > 0 {
		log.WithError(reason).WithField("dropped", dropped).Warn("Discarding malformed records from consolidated cache")
	}

	merged, stats, err := MergeWithStats(existing, incoming)
	if err != nil {
		return nil, fmt.Errorf("failed to merge %s records: %w", source, err)
	}

	if err := s.perfRepo.Save(ctx, merged); err != nil {
		log.WithError(err).Error("Failed to save consolidated records")
		return nil, fmt.Errorf("failed to save consolidated records: %w", err)
	}

	s.metrics.RecordIngest(string(source), provider, len(incoming))
	s.metrics.RecordMerge(stats.Inserted, stats.Replaced, stats.Kept)

	log.WithFields(map[string]any{
		"source":   source,
		"provider": provider,
		"received": len(incoming),
		"inserted": stats.Inserted,
		"replaced": stats.Replaced,
		"kept":     stats.Kept,
		"total":    len(merged),
	}).Info("Ingested records into consolidated cache")

	return &IngestResult{
		Source:   source,
		Received: len(incoming),
		Merge:    stats,
		Total:    len(merged),
	}, nil
}
