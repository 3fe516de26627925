package usecase

import (
	"context"
	"fmt"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
)

// SummaryService derives the dashboard KPI cards from a query result
type SummaryService struct {
	querier Querier
	logger  *logger.Logger
}

func NewSummaryService(querier Querier, logger *logger.Logger) *SummaryService {
	return &SummaryService{
		querier: querier,
		logger:  logger,
	}
}

// Summarize totals the records of rng. With compare set, the range of equal
// length right before rng is queried too and percentage changes are filled.
func (s *SummaryService) Summarize(ctx context.Context, scope string, rng domain.DateRange, compare bool) (*domain.PerformanceSummary, error) {
	current, err := s.querier.Query(ctx, scope, rng)
	if err != nil {
		return nil, err
	}

	summary := &domain.PerformanceSummary{
		Range:               rng,
		Current:             ComputeKPIs(current.Records),
		ConversionsBySource: conversionsByProvider(current.Records),
		Records:             len(current.Records),
		Confidence:          current.Confidence,
	}

	if compare {
		previous, err := s.querier.Query(ctx, scope, rng.Previous())
		if err != nil {
			return nil, fmt.Errorf("failed to query comparison period: %w", err)
		}
		// demonstration rows are undated, so they are no baseline for real data
		var prev domain.KPISet
		if !mockOnly(previous.Confidence) || mockOnly(current.Confidence) {
			prev = ComputeKPIs(previous.Records)
		}
		summary.Previous = &prev
		summary.ChangePct = changePct(summary.Current, prev)
	}

	s.logger.WithQuery(ctx, scope, rng.From(), rng.To()).WithFields(map[string]any{
		"records": summary.Records,
		"compare": compare,
	}).Info("Computed performance summary")

	return summary, nil
}

// ComputeKPIs totals records and derives the ratio metrics. Ratios with a
// zero denominator are 0.
func ComputeKPIs(records []domain.PerformanceRecord) domain.KPISet {
	var k domain.KPISet
	for _, r := range records {
		k.Conversions += r.Conversions
		k.Cost += r.Cost
		k.Clicks += r.Clicks
		k.Impressions += r.Impressions
	}
	k.CPA = ratio(k.Cost, k.Conversions)
	k.CPC = ratio(k.Cost, k.Clicks)
	k.CTR = ratio(k.Clicks, k.Impressions) * 100
	k.ConversionRate = ratio(k.Conversions, k.Clicks) * 100
	return k
}

func mockOnly(c domain.ConfidenceReport) bool {
	return len(c.Sources) == 1 && c.Sources[0] == domain.SourceMock
}

func conversionsByProvider(records []domain.PerformanceRecord) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range records {
		out[r.Provider] += r.Conversions
	}
	return out
}

// changePct omits metrics whose previous value is 0
func changePct(cur, prev domain.KPISet) map[string]float64 {
	pairs := map[string][2]float64{
		"conversions":     {cur.Conversions, prev.Conversions},
		"cost":            {cur.Cost, prev.Cost},
		"clicks":          {cur.Clicks, prev.Clicks},
		"impressions":     {cur.Impressions, prev.Impressions},
		"cpa":             {cur.CPA, prev.CPA},
		"cpc":             {cur.CPC, prev.CPC},
		"ctr":             {cur.CTR, prev.CTR},
		"conversion_rate": {cur.ConversionRate, prev.ConversionRate},
	}
	out := make(map[string]float64, len(pairs))
	for name, p := range pairs {
		if p[1] == 0 {
			continue
		}
		out[name] = (p[0] - p[1]) / p[1] * 100
	}
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
