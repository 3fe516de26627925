package domain

// ConfidenceReport describes which sources contributed to a query result
// and how live it is
type ConfidenceReport struct {
	Sources         []DataSource `json:"source"`
	IsFallback      bool         `json:"isFallback"`
	ConfidenceScore int          `json:"confidenceScore"`
}

const (
	ConfidenceLive     = 100
	ConfidenceCached   = 95
	ConfidenceFallback = 50
)

// NewConfidenceReport scores a set of active sources: oauth > csv > mock
func NewConfidenceReport(sources []DataSource) ConfidenceReport {
	report := ConfidenceReport{Sources: sources, ConfidenceScore: ConfidenceFallback}

	has := make(map[DataSource]bool, len(sources))
	for _, s := range sources {
		has[s] = true
	}

	report.IsFallback = has[SourceMock] || has[SourceCSV]
	switch {
	case has[SourceOAuth]:
		report.ConfidenceScore = ConfidenceLive
	case has[SourceCSV]:
		report.ConfidenceScore = ConfidenceCached
	}
	return report
}

// DegradedSource records a live fetch that failed without aborting the query
type DegradedSource struct {
	Provider ProviderID `json:"provider"`
	Reason   string     `json:"reason"`
}

// AggregationResult is the consolidated, date-filtered record set
type AggregationResult struct {
	Scope      string              `json:"scope"`
	Range      DateRange           `json:"range"`
	Records    []PerformanceRecord `json:"data"`
	Confidence ConfidenceReport    `json:"confidence"`
	Degraded   []DegradedSource    `json:"degraded,omitempty"`
	Seq        uint64              `json:"seq,omitempty"`
}

type ActionCategory string

const (
	ActionAds     ActionCategory = "ads"
	ActionSEO     ActionCategory = "seo"
	ActionContent ActionCategory = "content"
	ActionTech    ActionCategory = "tech"
	ActionMeta    ActionCategory = "meta"
)

// ActionLog is a strategic action taken on an account, used as context for insights
type ActionLog struct {
	AccountID string         `json:"account_id"`
	Provider  string         `json:"provider_name"`
	Date      string         `json:"date"`
	Action    string         `json:"action"`
	Category  ActionCategory `json:"category"`
}

// KPISet holds totals and derived ratios for one period
type KPISet struct {
	Conversions    float64 `json:"conversions"`
	Cost           float64 `json:"cost"`
	Clicks         float64 `json:"clicks"`
	Impressions    float64 `json:"impressions"`
	CPA            float64 `json:"cpa"`
	CPC            float64 `json:"cpc"`
	CTR            float64 `json:"ctr"`
	ConversionRate float64 `json:"conversion_rate"`
}

// PerformanceSummary is the dashboard headline view of a query
type PerformanceSummary struct {
	Range               DateRange          `json:"range"`
	Current             KPISet             `json:"current"`
	Previous            *KPISet            `json:"previous,omitempty"`
	ChangePct           map[string]float64 `json:"change_pct,omitempty"`
	ConversionsBySource map[string]float64 `json:"conversions_by_provider"`
	Records             int                `json:"records"`
	Confidence          ConfidenceReport   `json:"confidence"`
}
