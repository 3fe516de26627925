package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
)

// PerformanceRepository implements domain.PerformanceRepository as one JSON
// array stored whole under domain.ConsolidatedKey
type PerformanceRepository struct {
	store  domain.KeyValueStore
	logger *logger.Logger
}

func NewPerformanceRepository(store domain.KeyValueStore, logger *logger.Logger) *PerformanceRepository {
	return &PerformanceRepository{
		store:  store,
		logger: logger,
	}
}

// Load returns the whole consolidated set; an absent key is an empty set
func (r *PerformanceRepository) Load(ctx context.Context) ([]domain.PerformanceRecord, error) {
	raw, ok, err := r.store.Get(ctx, domain.ConsolidatedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load consolidated records: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []domain.PerformanceRecord{}, nil
	}

	var records []domain.PerformanceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode consolidated records: %w", err)
	}
	if records == nil {
		records = []domain.PerformanceRecord{}
	}
	return records, nil
}

func (r *PerformanceRepository) Save(ctx context.Context, records []domain.PerformanceRecord) error {
	if records == nil {
		records = []domain.PerformanceRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode consolidated records: %w", err)
	}
	if err := r.store.Set(ctx, domain.ConsolidatedKey, raw); err != nil {
		return fmt.Errorf("failed to save consolidated records: %w", err)
	}

	r.logger.WithContext(ctx).WithField("count", len(records)).Info("Saved consolidated records")
	return nil
}

func (r *PerformanceRepository) GetByDateRange(ctx context.Context, rng domain.DateRange) ([]domain.PerformanceRecord, error) {
	records, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.PerformanceRecord, 0, len(records))
	for _, record := range records {
		if rng.Contains(record.Date) {
			result = append(result, record)
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"from":    rng.From(),
		"to":      rng.To(),
		"stored":  len(records),
		"matched": len(result),
	}).Debug("Filtered consolidated records by date range")

	return result, nil
}
