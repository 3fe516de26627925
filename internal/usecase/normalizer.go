package usecase

import (
	"encoding/csv"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"perfhub/internal/domain"
)

// Metric is a canonical field a CSV column can be mapped to
type Metric string

const (
	MetricDate               Metric = "date"
	MetricCost               Metric = "cost"
	MetricConversions        Metric = "conversions"
	MetricClicks             Metric = "clicks"
	MetricImpressions        Metric = "impressions"
	MetricDimension          Metric = "dimension"
	MetricAvgSessionDuration Metric = "avg_session_duration"
	MetricBounceRate         Metric = "bounce_rate"
	MetricPosition           Metric = "position"
)

// FieldHint lists the lower-case header fragments that identify a metric
type FieldHint struct {
	Metric Metric
	Hints  []string
}

// FieldHints is ordered: the first metric whose hint matches a header cell
// claims that column.
var FieldHints = []FieldHint{
	{MetricDate, []string{"dia", "data", "day", "date", "periodo", "reporting starts"}},
	{MetricCost, []string{"custo", "cost", "valor gasto", "investimento", "amount spent", "spent"}},
	{MetricConversions, []string{"conversoes", "conversions", "leads", "results", "results_delivered"}},
	{MetricClicks, []string{"cliques", "clicks", "link clicks"}},
	{MetricImpressions, []string{"impressoes", "impressions"}},
	{MetricDimension, []string{"campanha", "campaign", "page", "url", "ad set name"}},
	{MetricAvgSessionDuration, []string{"tempo médio", "engagement time"}},
	{MetricBounceRate, []string{"rejeicao", "bounce"}},
	{MetricPosition, []string{"posicao", "position"}},
}

// ColumnMapping maps a canonical metric to a zero-based column index
type ColumnMapping map[Metric]int

// AccountID stamped on every uploaded row
const CSVAccountID = "csv_upload"

// SuggestMapping proposes a mapping from a header row. The result is
// advisory; callers may override any entry before normalizing.
func SuggestMapping(header []string) ColumnMapping {
	mapping := make(ColumnMapping)
	for col, cell := range header {
		name := strings.ToLower(cleanCell(cell))
		if name == "" {
			continue
		}
		if metric, ok := matchHint(name); ok {
			if _, taken := mapping[metric]; !taken {
				mapping[metric] = col
			}
		}
	}
	return mapping
}

// SuggestMappingFromContent reads the header line of an upload
func SuggestMappingFromContent(content string, delimiter rune) ColumnMapping {
	lines := splitLines(content)
	if len(lines) == 0 {
		return ColumnMapping{}
	}
	return SuggestMapping(splitRow(lines[0], delimiter))
}

func matchHint(name string) (Metric, bool) {
	for _, fh := range FieldHints {
		for _, hint := range fh.Hints {
			if strings.Contains(name, hint) {
				return fh.Metric, true
			}
		}
	}
	return "", false
}

type NormalizeOptions struct {
	Provider         string
	Mapping          ColumnMapping
	FixedDate        string
	ForcedReportType domain.ReportType
	State            domain.DataState
	Delimiter        rune
	Now              func() time.Time
}

// NormalizeResult carries the records plus counts of rows that needed defaults
type NormalizeResult struct {
	Records             []domain.PerformanceRecord
	DefaultedDates      int
	DefaultedDimensions int
}

// NormalizeCSV turns a tabular upload into canonical records. Malformed
// cells never fail the upload: numbers fall back to 0, dates to the
// ingestion date and names to the undefined sentinel.
func NormalizeCSV(content string, opts NormalizeOptions) []domain.PerformanceRecord {
	return Normalize(content, opts).Records
}

func Normalize(content string, opts NormalizeOptions) NormalizeResult {
	opts = opts.withDefaults()

	lines := splitLines(content)
	result := NormalizeResult{Records: []domain.PerformanceRecord{}}
	if len(lines) < 2 {
		return result
	}

	now := opts.Now()
	today := now.UTC().Format(domain.DateLayout)
	reportType := opts.reportType()

	for _, line := range lines[1:] {
		values := splitRow(line, opts.Delimiter)

		record := domain.PerformanceRecord{
			AccountID:   CSVAccountID,
			Provider:    opts.Provider,
			ReportType:  reportType,
			State:       opts.State,
			Source:      domain.SourceCSV,
			Timestamp:   now.UnixMilli(),
			Conversions: metricValue(values, opts.Mapping, MetricConversions),
			Cost:        metricValue(values, opts.Mapping, MetricCost),
			Clicks:      metricValue(values, opts.Mapping, MetricClicks),
			Impressions: metricValue(values, opts.Mapping, MetricImpressions),

			AvgSessionDuration: optionalMetric(values, opts.Mapping, MetricAvgSessionDuration),
			BounceRate:         optionalMetric(values, opts.Mapping, MetricBounceRate),
			Position:           optionalMetric(values, opts.Mapping, MetricPosition),
		}

		record.DimensionName = cellAt(values, opts.Mapping, MetricDimension)
		if record.DimensionName == "" {
			record.DimensionName = domain.UndefinedDimension
			result.DefaultedDimensions++
		}

		switch {
		case opts.FixedDate != "":
			record.Date = opts.FixedDate
		default:
			date, ok := domain.ParseDate(cellAt(values, opts.Mapping, MetricDate))
			if !ok {
				date = today
				result.DefaultedDates++
			}
			record.Date = date
		}

		result.Records = append(result.Records, record.WithID())
	}

	return result
}

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	if o.State == "" {
		o.State = domain.StateCurrent
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Mapping == nil {
		o.Mapping = ColumnMapping{}
	}
	if o.FixedDate != "" {
		// an unreadable fixed date is ignored in favor of the row dates
		o.FixedDate, _ = domain.ParseDate(o.FixedDate)
	}
	return o
}

func (o NormalizeOptions) reportType() domain.ReportType {
	if o.ForcedReportType != "" {
		return o.ForcedReportType
	}
	if strings.Contains(strings.ToLower(o.Provider), "meta") {
		return domain.ReportMetaCampaign
	}
	return domain.ReportCampaign
}

func splitLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitRow parses one line honoring double quotes; a line the CSV reader
// rejects is split on the bare delimiter instead
func splitRow(line string, delimiter rune) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	fields, err := reader.Read()
	if err != nil {
		fields = strings.Split(line, string(delimiter))
	}

	for i, f := range fields {
		fields[i] = cleanCell(f)
	}
	return fields
}

func cleanCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(s), `"`, ""))
}

func cellAt(values []string, mapping ColumnMapping, metric Metric) string {
	col, ok := mapping[metric]
	if !ok || col < 0 || col >= len(values) {
		return ""
	}
	return values[col]
}

func metricValue(values []string, mapping ColumnMapping, metric Metric) float64 {
	return parseMetric(cellAt(values, mapping, metric))
}

func optionalMetric(values []string, mapping ColumnMapping, metric Metric) *float64 {
	if _, ok := mapping[metric]; !ok {
		return nil
	}
	return domain.Float(metricValue(values, mapping, metric))
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseMetric reads the leading number of a cell ("12.5 BRL" is 12.5).
// Anything unusable for a counter or an amount yields 0.
func parseMetric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		prefix := leadingNumber.FindString(s)
		if prefix == "" {
			return 0
		}
		if v, err = strconv.ParseFloat(prefix, 64); err != nil {
			return 0
		}
	}
	return nonNegative(v)
}

// nonNegative maps NaN, infinities and negatives to 0
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
