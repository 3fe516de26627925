package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"
)

// maxResponseBytes caps a single sync response
const maxResponseBytes = 10 << 20

// implements domain.LiveSource against the provider sync API
type ProviderClient struct {
	baseURL        string
	developerToken string
	timeout        time.Duration
	maxBody        int64
	transport      http.RoundTripper
	logger         *logger.Logger
	metrics        *metrics.Metrics
	rateLimiter    *rate.Limiter
	now            func() time.Time
}

type ProviderClientConfig struct {
	BaseURL            string
	DeveloperToken     string
	Timeout            time.Duration
	RateLimitPerSecond int
}

func NewProviderClient(cfg ProviderClientConfig, logger *logger.Logger, metrics *metrics.Metrics) *ProviderClient {
	limit := cfg.RateLimitPerSecond
	if limit <= 0 {
		limit = 10
	}
	return &ProviderClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		developerToken: cfg.DeveloperToken,
		timeout:        cfg.Timeout,
		maxBody:        maxResponseBytes,
		transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(limit), limit),
		now:         time.Now,
	}
}

// Fetch pulls one provider's rows for rng. Authorization failures come back
// as domain.ErrAuthExpired or domain.ErrDevTokenUnauthorized; anything else
// is a plain error the caller may degrade on.
func (c *ProviderClient) Fetch(ctx context.Context, conn domain.ConnectionStatus, rng domain.DateRange) ([]domain.PerformanceRecord, error) {
	adapter, ok := adapters[conn.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", conn.Provider)
	}
	api := string(conn.Provider)

	token := conn.Token()
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", conn.Provider.Label(), domain.ErrNoConnections)
	}
	if !token.Expiry.IsZero() && !token.Valid() {
		c.metrics.RecordExternalAPIFailure(api, "token_expired")
		return nil, fmt.Errorf("%s token expired at %s: %w", conn.Provider.Label(), token.Expiry.Format(time.RFC3339), domain.ErrAuthExpired)
	}

	start := time.Now()

	// Apply rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure(api, "rate_limit")
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.syncURL(adapter.path, conn, rng), nil)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "request_creation")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if conn.Provider.IsGoogle() && c.developerToken != "" {
		req.Header.Set("developer-token", c.developerToken)
	}

	resp, err := c.httpClient(token).Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "network_error")
		return nil, fmt.Errorf("failed to fetch %s data: %w", conn.Provider.Label(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "read_body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		c.metrics.RecordExternalAPIFailure(api, "body_too_large")
		return nil, fmt.Errorf("%s response exceeds %d bytes", conn.Provider.Label(), c.maxBody)
	}

	if err := statusError(conn.Provider, resp.StatusCode, body); err != nil {
		c.metrics.RecordExternalAPICall(api, fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return nil, err
	}

	rows, err := adapter.decode(body)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "json_parse")
		return nil, fmt.Errorf("failed to parse %s data: %w", conn.Provider.Label(), err)
	}

	records, skipped := c.stamp(conn, adapter.reportType, rows)

	c.metrics.RecordExternalAPICall(api, "success", duration)
	c.metrics.RecordIngest(string(domain.SourceOAuth), conn.Provider.Label(), len(records))

	c.logger.WithProvider(ctx, api).WithFields(map[string]any{
		"duration": duration,
		"records":  len(records),
		"skipped":  skipped,
		"from":     rng.From(),
		"to":       rng.To(),
	}).Info("Successfully fetched provider data")

	return records, nil
}

func (c *ProviderClient) httpClient(token *oauth2.Token) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Base:   c.transport,
			Source: oauth2.StaticTokenSource(token),
		},
	}
}

func (c *ProviderClient) syncURL(path string, conn domain.ConnectionStatus, rng domain.DateRange) string {
	q := url.Values{}
	if conn.AccountID != "" {
		q.Set("account_id", conn.AccountID)
	}
	q.Set("start", rng.From())
	q.Set("end", rng.To())
	return fmt.Sprintf("%s/v1/%s/sync?%s", c.baseURL, path, q.Encode())
}

// stamp turns provider rows into records; rows without a readable date are dropped
func (c *ProviderClient) stamp(conn domain.ConnectionStatus, reportType domain.ReportType, rows []liveRow) ([]domain.PerformanceRecord, int) {
	now := c.now().UnixMilli()
	records := make([]domain.PerformanceRecord, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		date, ok := domain.ParseDate(row.date)
		if !ok {
			skipped++
			continue
		}
		record := row.record
		record.AccountID = conn.AccountID
		record.Provider = conn.Provider.Label()
		record.Date = date
		record.ReportType = reportType
		record.State = domain.StateCurrent
		record.Source = domain.SourceOAuth
		record.Timestamp = now
		if strings.TrimSpace(record.DimensionName) == "" {
			record.DimensionName = domain.UndefinedDimension
		}
		records = append(records, record.WithID())
	}
	return records, skipped
}

func statusError(provider domain.ProviderID, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s rejected the access token: %w", provider.Label(), domain.ErrAuthExpired)
	case status == http.StatusForbidden && bytes.Contains(bytes.ToUpper(body), []byte("DEVELOPER_TOKEN")):
		return fmt.Errorf("%s rejected the developer token: %w", provider.Label(), domain.ErrDevTokenUnauthorized)
	}
	return fmt.Errorf("%s API returned status %d", provider.Label(), status)
}
