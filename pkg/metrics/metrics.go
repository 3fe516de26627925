package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ingestion metrics
	IngestRecordsTotal  *prometheus.CounterVec
	IngestRowsDefaulted *prometheus.CounterVec

	// Merge metrics
	MergeOutcomes *prometheus.CounterVec

	// Query metrics
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     prometheus.Histogram
	QueriesSuperseded prometheus.Counter
	DegradedFetches   *prometheus.CounterVec

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		IngestRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_records_total",
				Help: "Total number of performance records ingested",
			},
			[]string{"source", "provider"},
		),

		IngestRowsDefaulted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_rows_defaulted_total",
				Help: "Rows whose date or dimension fell back to a default",
			},
			[]string{"field"},
		),

		MergeOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "merge_outcomes_total",
				Help: "Merge decisions per incoming record",
			},
			[]string{"outcome"},
		),

		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregation_queries_total",
				Help: "Total number of aggregation queries",
			},
			[]string{"confidence", "fallback"},
		),

		QueryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aggregation_query_duration_seconds",
				Help:    "Aggregation query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		QueriesSuperseded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aggregation_queries_superseded_total",
				Help: "Queries discarded because a newer one was issued",
			},
		),

		DegradedFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregation_degraded_fetches_total",
				Help: "Live fetches that failed and were replaced by cached or demo data",
			},
			[]string{"provider"},
		),

		ExternalAPICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Ingested records per source and provider
func (m *Metrics) RecordIngest(source, provider string, count int) {
	m.IngestRecordsTotal.WithLabelValues(source, provider).Add(float64(count))
}

// Rows that fell back to a default value
func (m *Metrics) RecordDefaulted(field string, count int) {
	if count > 0 {
		m.IngestRowsDefaulted.WithLabelValues(field).Add(float64(count))
	}
}

// Merge decisions
func (m *Metrics) RecordMerge(inserted, replaced, kept int) {
	m.MergeOutcomes.WithLabelValues("inserted").Add(float64(inserted))
	m.MergeOutcomes.WithLabelValues("replaced").Add(float64(replaced))
	m.MergeOutcomes.WithLabelValues("kept").Add(float64(kept))
}

// Aggregation query metrics
func (m *Metrics) RecordQuery(confidence int, fallback bool, duration time.Duration) {
	band := "mock"
	switch {
	case confidence >= 100:
		band = "live"
	case confidence >= 90:
		band = "cached"
	}
	fb := "false"
	if fallback {
		fb = "true"
	}
	m.QueriesTotal.WithLabelValues(band, fb).Inc()
	m.QueryDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordSuperseded() {
	m.QueriesSuperseded.Inc()
}

func (m *Metrics) RecordDegradedFetch(provider string) {
	m.DegradedFetches.WithLabelValues(provider).Inc()
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
