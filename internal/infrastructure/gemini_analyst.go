package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"
)

const analystInstruction = `You are the strategic analyst of a marketing performance hub.
Your tone is professional, direct and focused on digital marketing results.
Answer using only the data below. Cite specific metrics such as CPA, conversions and spend,
and relate changes to the strategic actions when their dates line up.
Data: %s`

const marketPrompt = `Analyse the current digital marketing trends in the %s niche for a performance marketing hub.
Focus on average CPC and current search volume.`

// GeminiAnalyst implements domain.Analyst on the Gemini API
type GeminiAnalyst struct {
	client  *genai.Client
	model   string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, for tests
	BaseURL string
}

func NewGeminiAnalyst(ctx context.Context, cfg GeminiConfig, logger *logger.Logger, metrics *metrics.Metrics) (*GeminiAnalyst, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiAnalyst{
		client:  client,
		model:   cfg.Model,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Analyze answers question over dataContext. Earlier turns are replayed
// ahead of the question in conversation order.
func (a *GeminiAnalyst) Analyze(ctx context.Context, question string, history []domain.ChatTurn, dataContext []byte) (string, error) {
	start := time.Now()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(fmt.Sprintf(analystInstruction, dataContext), genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, conversation(history, question), config)
	duration := time.Since(start)
	if err != nil {
		a.metrics.RecordExternalAPIFailure("gemini", "generate")
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		a.metrics.RecordExternalAPICall("gemini", "empty", duration)
		return "", fmt.Errorf("Gemini returned no text")
	}

	a.metrics.RecordExternalAPICall("gemini", "success", duration)
	a.logger.WithContext(ctx).WithFields(map[string]any{
		"model":        a.model,
		"duration":     duration,
		"history":      len(history),
		"context_size": len(dataContext),
	}).Info("Generated insight")

	return answer, nil
}

// MarketInsights asks for niche trends with Google Search grounding and
// returns the web sources the answer was grounded on
func (a *GeminiAnalyst) MarketInsights(ctx context.Context, niche string) (*domain.MarketInsight, error) {
	start := time.Now()

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(fmt.Sprintf(marketPrompt, niche)), config)
	duration := time.Since(start)
	if err != nil {
		a.metrics.RecordExternalAPIFailure("gemini_search", "generate")
		return nil, fmt.Errorf("Gemini market search failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		a.metrics.RecordExternalAPICall("gemini_search", "empty", duration)
		return nil, fmt.Errorf("Gemini returned no text")
	}

	insight := &domain.MarketInsight{
		Niche:   niche,
		Text:    text,
		Sources: groundingSources(resp),
	}

	a.metrics.RecordExternalAPICall("gemini_search", "success", duration)
	a.logger.WithContext(ctx).WithFields(map[string]any{
		"model":    a.model,
		"niche":    niche,
		"sources":  len(insight.Sources),
		"duration": duration,
	}).Info("Generated market insight")

	return insight, nil
}

func conversation(history []domain.ChatTurn, question string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role == domain.ChatRoleModel {
			contents = append(contents, genai.NewContentFromText(turn.Text, genai.RoleModel))
			continue
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.RoleUser))
	}
	return append(contents, genai.NewContentFromText(question, genai.RoleUser))
}

// groundingSources lists the web chunks of the first candidate
func groundingSources(resp *genai.GenerateContentResponse) []domain.MarketSource {
	sources := []domain.MarketSource{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return sources
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, domain.MarketSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return sources
}
