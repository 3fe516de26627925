package infrastructure

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"perfhub/internal/domain"
)

// liveRow is a decoded provider row before identity and provenance are stamped
type liveRow struct {
	date   string
	record domain.PerformanceRecord
}

type providerAdapter struct {
	path       string
	reportType domain.ReportType
	decode     func(body []byte) ([]liveRow, error)
}

var adapters = map[domain.ProviderID]providerAdapter{
	domain.ProviderGoogleAds:     {path: "google-ads", reportType: domain.ReportCampaign, decode: decodeGoogleAds},
	domain.ProviderMetaAds:       {path: "meta-ads", reportType: domain.ReportMetaCampaign, decode: decodeMetaAds},
	domain.ProviderGA4:           {path: "analytics", reportType: domain.ReportPages, decode: decodeAnalytics},
	domain.ProviderSearchConsole: {path: "search-console", reportType: domain.ReportSearchPerformance, decode: decodeSearchConsole},
}

// Google Ads campaign rows; cost is reported in micros
type googleAdsResponse struct {
	Results []struct {
		Date        string  `json:"date"`
		Campaign    string  `json:"campaign"`
		CostMicros  int64   `json:"cost_micros"`
		Clicks      float64 `json:"clicks"`
		Impressions float64 `json:"impressions"`
		Conversions float64 `json:"conversions"`
	} `json:"results"`
}

func decodeGoogleAds(body []byte) ([]liveRow, error) {
	var resp googleAdsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	rows := make([]liveRow, 0, len(resp.Results))
	for _, r := range resp.Results {
		rows = append(rows, liveRow{
			date: r.Date,
			record: domain.PerformanceRecord{
				DimensionName: r.Campaign,
				Cost:          nonNegative(float64(r.CostMicros) / 1e6),
				Clicks:        nonNegative(r.Clicks),
				Impressions:   nonNegative(r.Impressions),
				Conversions:   nonNegative(r.Conversions),
			},
		})
	}
	return rows, nil
}

// Meta insights rows; the Graph API sends numbers as strings
type metaAdsResponse struct {
	Data []struct {
		DateStart    string `json:"date_start"`
		CampaignName string `json:"campaign_name"`
		Spend        string `json:"spend"`
		Clicks       string `json:"clicks"`
		Impressions  string `json:"impressions"`
		Reach        string `json:"reach"`
		Frequency    string `json:"frequency"`
		Actions      []struct {
			ActionType string `json:"action_type"`
			Value      string `json:"value"`
		} `json:"actions"`
	} `json:"data"`
}

// action types counted as conversions
var metaConversionActions = map[string]bool{
	"lead":                             true,
	"purchase":                         true,
	"complete_registration":            true,
	"offsite_conversion.fb_pixel_lead": true,
}

func decodeMetaAds(body []byte) ([]liveRow, error) {
	var resp metaAdsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	rows := make([]liveRow, 0, len(resp.Data))
	for _, r := range resp.Data {
		var conversions float64
		for _, a := range r.Actions {
			if metaConversionActions[a.ActionType] {
				conversions += numberString(a.Value)
			}
		}
		record := domain.PerformanceRecord{
			DimensionName: r.CampaignName,
			Cost:          numberString(r.Spend),
			Clicks:        numberString(r.Clicks),
			Impressions:   numberString(r.Impressions),
			Conversions:   conversions,
		}
		if r.Reach != "" {
			record.Reach = domain.Float(numberString(r.Reach))
		}
		if r.Frequency != "" {
			record.Frequency = domain.Float(numberString(r.Frequency))
		}
		rows = append(rows, liveRow{date: r.DateStart, record: record})
	}
	return rows, nil
}

// GA4 page rows; dates come as YYYYMMDD
type analyticsResponse struct {
	Rows []struct {
		Date               string   `json:"date"`
		PagePath           string   `json:"page_path"`
		Sessions           float64  `json:"sessions"`
		ScreenPageViews    float64  `json:"screen_page_views"`
		Conversions        float64  `json:"conversions"`
		AvgSessionDuration *float64 `json:"average_session_duration"`
		BounceRate         *float64 `json:"bounce_rate"`
		EngagementRate     *float64 `json:"engagement_rate"`
	} `json:"rows"`
}

func decodeAnalytics(body []byte) ([]liveRow, error) {
	var resp analyticsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	rows := make([]liveRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		rows = append(rows, liveRow{
			date: r.Date,
			record: domain.PerformanceRecord{
				DimensionName:      r.PagePath,
				Clicks:             nonNegative(r.Sessions),
				Impressions:        nonNegative(r.ScreenPageViews),
				Conversions:        nonNegative(r.Conversions),
				AvgSessionDuration: optional(r.AvgSessionDuration),
				BounceRate:         optional(r.BounceRate),
				EngagementRate:     optional(r.EngagementRate),
			},
		})
	}
	return rows, nil
}

// Search Console rows keyed by [date, query]
type searchConsoleResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		Position    *float64 `json:"position"`
	} `json:"rows"`
}

func decodeSearchConsole(body []byte) ([]liveRow, error) {
	var resp searchConsoleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	rows := make([]liveRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		var date, query string
		if len(r.Keys) > 0 {
			date = r.Keys[0]
		}
		if len(r.Keys) > 1 {
			query = r.Keys[1]
		}
		rows = append(rows, liveRow{
			date: date,
			record: domain.PerformanceRecord{
				DimensionName: query,
				Clicks:        nonNegative(r.Clicks),
				Impressions:   nonNegative(r.Impressions),
				Position:      optional(r.Position),
			},
		})
	}
	return rows, nil
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func numberString(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return nonNegative(v)
}

func optional(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return domain.Float(nonNegative(*v))
}
