package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
)

const (
	insightsClient = "Performance Hub"

	// DefaultMarketNiche is researched when a market request names none
	DefaultMarketNiche = "payroll loans and consumer credit in Brazil"

	// maxHistoryTurns bounds the earlier turns replayed to the analyst
	maxHistoryTurns = 20
)

// InsightsService answers free-form questions about the consolidated data
type InsightsService struct {
	querier  Querier
	fallback domain.FallbackSource
	analyst  domain.Analyst
	logger   *logger.Logger
}

// NewInsightsService accepts a nil analyst; Ask then reports
// domain.ErrInsightsDisabled
func NewInsightsService(querier Querier, fallback domain.FallbackSource, analyst domain.Analyst, logger *logger.Logger) *InsightsService {
	return &InsightsService{
		querier:  querier,
		fallback: fallback,
		analyst:  analyst,
		logger:   logger,
	}
}

type InsightAnswer struct {
	Question   string                  `json:"question"`
	Answer     string                  `json:"answer"`
	Confidence domain.ConfidenceReport `json:"confidence"`
}

type insightContext struct {
	Client      string                     `json:"client"`
	Scope       string                     `json:"scope"`
	From        string                     `json:"from"`
	To          string                     `json:"to"`
	Performance []domain.PerformanceRecord `json:"performance"`
	Actions     []domain.ActionLog         `json:"actions"`
	KPIs        domain.KPISet              `json:"kpis"`
}

// Ask answers question over the consolidated data of scope and rng. history
// holds the earlier turns of the conversation, oldest first; only the most
// recent ones are replayed.
func (s *InsightsService) Ask(ctx context.Context, question, scope string, rng domain.DateRange, history []domain.ChatTurn) (*InsightAnswer, error) {
	if s.analyst == nil {
		return nil, domain.ErrInsightsDisabled
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	for _, turn := range history {
		if err := turn.Validate(); err != nil {
			return nil, err
		}
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	result, err := s.querier.Query(ctx, scope, rng)
	if err != nil {
		return nil, err
	}

	dataContext, err := json.Marshal(insightContext{
		Client:      insightsClient,
		Scope:       result.Scope,
		From:        rng.From(),
		To:          rng.To(),
		Performance: result.Records,
		Actions:     s.actionsFor(result.Scope),
		KPIs:        ComputeKPIs(result.Records),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode insight context: %w", err)
	}

	answer, err := s.analyst.Analyze(ctx, question, history, dataContext)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Insight generation failed")
		return nil, fmt.Errorf("failed to generate insight: %w", err)
	}

	return &InsightAnswer{
		Question:   question,
		Answer:     answer,
		Confidence: result.Confidence,
	}, nil
}

// MarketInsights reports search-grounded trends for niche, or for
// DefaultMarketNiche when niche is blank
func (s *InsightsService) MarketInsights(ctx context.Context, niche string) (*domain.MarketInsight, error) {
	if s.analyst == nil {
		return nil, domain.ErrInsightsDisabled
	}
	niche = strings.TrimSpace(niche)
	if niche == "" {
		niche = DefaultMarketNiche
	}

	insight, err := s.analyst.MarketInsights(ctx, niche)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("niche", niche).Error("Market insight failed")
		return nil, fmt.Errorf("failed to research market: %w", err)
	}
	return insight, nil
}

func (s *InsightsService) actionsFor(scope string) []domain.ActionLog {
	actions := s.fallback.Actions()
	if scope == ScopeAll {
		return actions
	}
	filtered := make([]domain.ActionLog, 0, len(actions))
	for _, a := range actions {
		if a.AccountID == scope {
			filtered = append(filtered, a)
		}
	}
	return filtered
}
