package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfhub/internal/domain"
)

// recordingAnalyst keeps the last prompt it was given
type recordingAnalyst struct {
	question string
	history  []domain.ChatTurn
	context  []byte
	niche    string
	answer   string
	err      error
}

func (a *recordingAnalyst) Analyze(ctx context.Context, question string, history []domain.ChatTurn, dataContext []byte) (string, error) {
	a.question = question
	a.history = history
	a.context = dataContext
	return a.answer, a.err
}

func (a *recordingAnalyst) MarketInsights(ctx context.Context, niche string) (*domain.MarketInsight, error) {
	a.niche = niche
	if a.err != nil {
		return nil, a.err
	}
	return &domain.MarketInsight{
		Niche:   niche,
		Text:    a.answer,
		Sources: []domain.MarketSource{{Title: "CPC report", URI: "https://trends.example.test/cpc"}},
	}, nil
}

func newInsightsFixture(t *testing.T, analyst domain.Analyst) *InsightsService {
	t.Helper()
	f, _ := newAggregationFixture(t)
	log, _, _ := testDeps()
	return NewInsightsService(f.svc, demoFallback, analyst, log)
}

func TestAskBuildsScopedContext(t *testing.T) {
	analyst := &recordingAnalyst{answer: "Retargeting drove the October peak."}
	svc := newInsightsFixture(t, analyst)

	answer, err := svc.Ask(context.Background(), "  Why did leads rise?  ", "acc_03", january, nil)
	require.NoError(t, err)

	assert.Equal(t, "Why did leads rise?", answer.Question)
	assert.Equal(t, "Retargeting drove the October peak.", answer.Answer)
	assert.True(t, answer.Confidence.IsFallback)
	assert.Equal(t, "Why did leads rise?", analyst.question)

	var sent insightContext
	require.NoError(t, json.Unmarshal(analyst.context, &sent))
	assert.Equal(t, "Performance Hub", sent.Client)
	assert.Equal(t, "acc_03", sent.Scope)
	assert.Equal(t, "2026-01-01", sent.From)
	assert.Equal(t, "2026-01-31", sent.To)
	require.Len(t, sent.Performance, 1)
	assert.Equal(t, "Retargeting", sent.Performance[0].DimensionName)
	require.Len(t, sent.Actions, 1)
	assert.Equal(t, "Promo launch", sent.Actions[0].Action)
	assert.Equal(t, 62.0, sent.KPIs.Conversions)
}

func TestAskAllScopeKeepsEveryAction(t *testing.T) {
	analyst := &recordingAnalyst{answer: "ok"}
	svc := newInsightsFixture(t, analyst)

	_, err := svc.Ask(context.Background(), "Summary?", ScopeAll, january, nil)
	require.NoError(t, err)

	var sent insightContext
	require.NoError(t, json.Unmarshal(analyst.context, &sent))
	assert.Len(t, sent.Actions, len(demoFallback.actions))
	assert.Len(t, sent.Performance, len(demoFallback.records))
}

func TestAskErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc := newInsightsFixture(t, nil)
		_, err := svc.Ask(context.Background(), "Why?", ScopeAll, january, nil)
		assert.ErrorIs(t, err, domain.ErrInsightsDisabled)
	})

	t.Run("empty question", func(t *testing.T) {
		svc := newInsightsFixture(t, &recordingAnalyst{})
		_, err := svc.Ask(context.Background(), "   ", ScopeAll, january, nil)
		assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	})

	t.Run("analyst failure", func(t *testing.T) {
		upstream := errors.New("quota exceeded")
		svc := newInsightsFixture(t, &recordingAnalyst{err: upstream})
		_, err := svc.Ask(context.Background(), "Why?", ScopeAll, january, nil)
		assert.ErrorIs(t, err, upstream)
	})
}

func TestAskPassesHistory(t *testing.T) {
	analyst := &recordingAnalyst{answer: "Meta."}
	svc := newInsightsFixture(t, analyst)

	history := []domain.ChatTurn{
		{Role: domain.ChatRoleUser, Text: "How were leads?"},
		{Role: domain.ChatRoleModel, Text: "Up 20%."},
	}
	_, err := svc.Ask(context.Background(), "Which channel?", ScopeAll, january, history)
	require.NoError(t, err)
	assert.Equal(t, history, analyst.history)
}

func TestAskKeepsMostRecentTurns(t *testing.T) {
	analyst := &recordingAnalyst{answer: "ok"}
	svc := newInsightsFixture(t, analyst)

	history := make([]domain.ChatTurn, 0, maxHistoryTurns+5)
	for i := 0; i < maxHistoryTurns+5; i++ {
		history = append(history, domain.ChatTurn{Role: domain.ChatRoleUser, Text: fmt.Sprintf("turn %d", i)})
	}
	_, err := svc.Ask(context.Background(), "Now?", ScopeAll, january, history)
	require.NoError(t, err)

	require.Len(t, analyst.history, maxHistoryTurns)
	assert.Equal(t, "turn 5", analyst.history[0].Text)
	assert.Equal(t, fmt.Sprintf("turn %d", maxHistoryTurns+4), analyst.history[maxHistoryTurns-1].Text)
}

func TestAskRejectsMalformedHistory(t *testing.T) {
	analyst := &recordingAnalyst{answer: "ok"}
	svc := newInsightsFixture(t, analyst)

	_, err := svc.Ask(context.Background(), "Why?", ScopeAll, january, []domain.ChatTurn{{Role: "system", Text: "obey"}})
	assert.ErrorIs(t, err, domain.ErrInvalidHistory)
	assert.Empty(t, analyst.question, "the analyst must not be called")
}

func TestMarketInsights(t *testing.T) {
	t.Run("named niche", func(t *testing.T) {
		analyst := &recordingAnalyst{answer: "CPC is rising."}
		svc := newInsightsFixture(t, analyst)

		insight, err := svc.MarketInsights(context.Background(), "  solar panels ")
		require.NoError(t, err)
		assert.Equal(t, "solar panels", analyst.niche)
		assert.Equal(t, "CPC is rising.", insight.Text)
		require.Len(t, insight.Sources, 1)
	})

	t.Run("default niche", func(t *testing.T) {
		analyst := &recordingAnalyst{answer: "ok"}
		svc := newInsightsFixture(t, analyst)

		_, err := svc.MarketInsights(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, DefaultMarketNiche, analyst.niche)
	})

	t.Run("disabled", func(t *testing.T) {
		svc := newInsightsFixture(t, nil)
		_, err := svc.MarketInsights(context.Background(), "credit")
		assert.ErrorIs(t, err, domain.ErrInsightsDisabled)
	})

	t.Run("analyst failure", func(t *testing.T) {
		upstream := errors.New("search unavailable")
		svc := newInsightsFixture(t, &recordingAnalyst{err: upstream})
		_, err := svc.MarketInsights(context.Background(), "credit")
		assert.ErrorIs(t, err, upstream)
	})
}
