package domain

import (
	"encoding/base64"
	"strings"
)

// Sentinel used when a row carries no campaign/page name
const UndefinedDimension = "Undefined Campaign"

// Storage key of the consolidated record set
const ConsolidatedKey = "consolidated_performance_db"

type ReportType string

const (
	ReportCampaign          ReportType = "campaign"
	ReportKeywords          ReportType = "keywords"
	ReportPages             ReportType = "pages"
	ReportTrafficSources    ReportType = "traffic_sources"
	ReportSearchPerformance ReportType = "search_performance"
	ReportMetaCampaign      ReportType = "meta_campaign"
	ReportUnknown           ReportType = "unknown"
)

// ParseReportType returns ReportUnknown for anything outside the enumeration
func ParseReportType(s string) ReportType {
	switch rt := ReportType(strings.ToLower(strings.TrimSpace(s))); rt {
	case ReportCampaign, ReportKeywords, ReportPages, ReportTrafficSources,
		ReportSearchPerformance, ReportMetaCampaign:
		return rt
	}
	return ReportUnknown
}

type DataState string

const (
	StateCurrent DataState = "current"
	StateClosed  DataState = "closed"
)

func (s DataState) Valid() bool {
	return s == StateCurrent || s == StateClosed
}

type DataSource string

const (
	SourceOAuth   DataSource = "oauth"
	SourceWebhook DataSource = "webhook"
	SourceCSV     DataSource = "csv"
	SourceMock    DataSource = "mock"
)

// PerformanceRecord is one observation of marketing metrics for a single
// dimension on a single date from a single provider. Records are treated as
// immutable once they enter a consolidated set; a newer version is a new
// value merged in.
type PerformanceRecord struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id,omitempty"`
	Provider      string     `json:"provider_name"`
	Date          string     `json:"date"`
	DimensionName string     `json:"dimension_name"`
	ReportType    ReportType `json:"report_type"`
	State         DataState  `json:"state"`
	Source        DataSource `json:"source"`
	Timestamp     int64      `json:"timestamp"`

	Conversions float64 `json:"conversions"`
	Cost        float64 `json:"cost"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`

	AvgSessionDuration *float64 `json:"avg_session_duration,omitempty"`
	BounceRate         *float64 `json:"bounce_rate,omitempty"`
	Position           *float64 `json:"position,omitempty"`
	Reach              *float64 `json:"reach,omitempty"`
	Frequency          *float64 `json:"frequency,omitempty"`
	EngagementRate     *float64 `json:"engagement_rate,omitempty"`

	// Milestone shown on the timeline (creative launch, bid change...)
	Event string `json:"event,omitempty"`
}

// RecordKey is the identity of an observation. Two records sharing a key are
// the same observation.
type RecordKey struct {
	Provider      string
	Date          string
	DimensionName string
	ReportType    ReportType
}

// String returns the pipe-joined form used for the external id
func (k RecordKey) String() string {
	return k.Provider + "|" + k.Date + "|" + k.DimensionName + "|" + string(k.ReportType)
}

func (r PerformanceRecord) Key() RecordKey {
	return RecordKey{
		Provider:      r.Provider,
		Date:          r.Date,
		DimensionName: r.DimensionName,
		ReportType:    r.ReportType,
	}
}

// RecordID encodes the identity key. Identical keys always yield identical ids.
func RecordID(k RecordKey) string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.String()))
}

// WithID returns a copy of r carrying the id derived from its key
func (r PerformanceRecord) WithID() PerformanceRecord {
	r.ID = RecordID(r.Key())
	return r
}

// Float returns a pointer for optional metric fields
func Float(v float64) *float64 {
	return &v
}
