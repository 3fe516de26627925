package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfhub/internal/domain"
	"perfhub/pkg/metrics"
)

var januaryRange = domain.NewDateRange(
	time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
)

func newTestProviderClient(t *testing.T, handler http.HandlerFunc) *ProviderClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewProviderClient(ProviderClientConfig{
		BaseURL:            server.URL,
		DeveloperToken:     "dev-123",
		Timeout:            5 * time.Second,
		RateLimitPerSecond: 100,
	}, testLogger(), metrics.New(prometheus.NewRegistry()))
	client.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return client
}

func connected(provider domain.ProviderID) domain.ConnectionStatus {
	return domain.ConnectionStatus{Provider: provider, IsConnected: true, AccessToken: "tok-1", AccountID: "acc_01"}
}

func TestProviderClientGoogleAds(t *testing.T) {
	client := newTestProviderClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/google-ads/sync", r.URL.Path)
		assert.Equal(t, "acc_01", r.URL.Query().Get("account_id"))
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2026-01-31", r.URL.Query().Get("end"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-123", r.Header.Get("developer-token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"date":"2026-01-02","campaign":"Brand","cost_micros":12500000,"clicks":40,"impressions":900,"conversions":5},
			{"date":"not a date","campaign":"Broken"},
			{"date":"2026-01-03","campaign":""}
		]}`))
	})

	records, err := client.Fetch(context.Background(), connected(domain.ProviderGoogleAds), januaryRange)
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "Google Ads", r.Provider)
	assert.Equal(t, "acc_01", r.AccountID)
	assert.Equal(t, "2026-01-02", r.Date)
	assert.Equal(t, "Brand", r.DimensionName)
	assert.Equal(t, domain.ReportCampaign, r.ReportType)
	assert.Equal(t, domain.SourceOAuth, r.Source)
	assert.Equal(t, domain.StateCurrent, r.State)
	assert.Equal(t, int64(1_700_000_000_000), r.Timestamp)
	assert.Equal(t, 12.5, r.Cost)
	assert.Equal(t, 5.0, r.Conversions)
	assert.Equal(t, domain.RecordID(r.Key()), r.ID)

	assert.Equal(t, domain.UndefinedDimension, records[1].DimensionName)
}

func TestProviderClientMetaAds(t *testing.T) {
	client := newTestProviderClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/meta-ads/sync", r.URL.Path)
		assert.Empty(t, r.Header.Get("developer-token"))
		w.Write([]byte(`{"data":[{"date_start":"2026-01-05","campaign_name":"Leads BR","spend":"80.10",
			"clicks":"30","impressions":"2000","reach":"1500","frequency":"1.33",
			"actions":[{"action_type":"lead","value":"7"},{"action_type":"link_click","value":"30"}]}]}`))
	})

	records, err := client.Fetch(context.Background(), connected(domain.ProviderMetaAds), januaryRange)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Meta Ads", r.Provider)
	assert.Equal(t, domain.ReportMetaCampaign, r.ReportType)
	assert.Equal(t, 80.10, r.Cost)
	assert.Equal(t, 7.0, r.Conversions)
	require.NotNil(t, r.Reach)
	assert.Equal(t, 1500.0, *r.Reach)
	require.NotNil(t, r.Frequency)
	assert.Equal(t, 1.33, *r.Frequency)
}

func TestProviderClientAnalyticsAndSearchConsole(t *testing.T) {
	client := newTestProviderClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/analytics/sync":
			w.Write([]byte(`{"rows":[{"date":"20260110","page_path":"/emprestimo","sessions":300,
				"screen_page_views":450,"conversions":12,"bounce_rate":0.42}]}`))
		case "/v1/search-console/sync":
			w.Write([]byte(`{"rows":[{"keys":["2026-01-11","consignado"],"clicks":20,"impressions":800,"position":3.2}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ga4, err := client.Fetch(context.Background(), connected(domain.ProviderGA4), januaryRange)
	require.NoError(t, err)
	require.Len(t, ga4, 1)
	assert.Equal(t, "2026-01-10", ga4[0].Date)
	assert.Equal(t, domain.ReportPages, ga4[0].ReportType)
	assert.Equal(t, 300.0, ga4[0].Clicks)
	require.NotNil(t, ga4[0].BounceRate)
	assert.Nil(t, ga4[0].AvgSessionDuration)

	gsc, err := client.Fetch(context.Background(), connected(domain.ProviderSearchConsole), januaryRange)
	require.NoError(t, err)
	require.Len(t, gsc, 1)
	assert.Equal(t, "consignado", gsc[0].DimensionName)
	assert.Equal(t, domain.ReportSearchPerformance, gsc[0].ReportType)
	require.NotNil(t, gsc[0].Position)
	assert.Equal(t, 3.2, *gsc[0].Position)
}

func TestProviderClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"invalid_token"}`, domain.ErrAuthExpired},
		{"developer token", http.StatusForbidden, `{"error":{"status":"PERMISSION_DENIED","details":"DEVELOPER_TOKEN_NOT_APPROVED"}}`, domain.ErrDevTokenUnauthorized},
		{"plain forbidden", http.StatusForbidden, `{"error":"forbidden"}`, nil},
		{"server error", http.StatusBadGateway, ``, nil},
		{"bad json", http.StatusOK, `{"results":`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestProviderClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.Fetch(context.Background(), connected(domain.ProviderGoogleAds), januaryRange)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.Empty(t, domain.ErrorCode(err))
			}
		})
	}
}

func TestProviderClientExpiredTokenSkipsCall(t *testing.T) {
	called := false
	client := newTestProviderClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	conn := connected(domain.ProviderGoogleAds)
	expired := time.Now().Add(-time.Hour)
	conn.TokenExpiry = &expired

	_, err := client.Fetch(context.Background(), conn, januaryRange)
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.False(t, called)
}

func TestProviderClientUnknownProvider(t *testing.T) {
	client := newTestProviderClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.Fetch(context.Background(), connected("tiktok"), januaryRange)
	assert.Error(t, err)
}

func TestProviderClientRejectsOversizeBody(t *testing.T) {
	client := newTestProviderClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[` + strings.Repeat(" ", 256) + `]}`))
	})
	client.maxBody = 64

	_, err := client.Fetch(context.Background(), connected(domain.ProviderGoogleAds), januaryRange)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
	assert.Equal(t, 1.0, testutil.ToFloat64(client.metrics.ExternalAPIFailures.WithLabelValues("google_ads", "body_too_large")))
}
