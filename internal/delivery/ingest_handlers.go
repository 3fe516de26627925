package delivery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"

	"perfhub/internal/domain"
	"perfhub/internal/usecase"

	"github.com/gin-gonic/gin"
)

// SuggestMapping proposes a column mapping for the CSV in the body
func (h *HTTPHandlers) SuggestMapping(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.badRequest(c, "Unreadable body", err)
		return
	}
	delimiter, err := parseDelimiter(c.Query("delimiter"))
	if err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mapping":    usecase.SuggestMappingFromContent(string(body), delimiter),
		"request_id": c.GetString("request_id"),
	})
}

// IngestCSV normalizes an uploaded export and merges it into the cache
func (h *HTTPHandlers) IngestCSV(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.badRequest(c, "Unreadable body", err)
		return
	}

	req := usecase.IngestCSVRequest{
		Content:   string(body),
		Provider:  c.Query("provider"),
		FixedDate: c.Query("fixed_date"),
		State:     domain.DataState(c.Query("state")),
	}
	if rt := c.Query("report_type"); rt != "" {
		req.ReportType = domain.ParseReportType(rt)
	}
	if req.Delimiter, err = parseDelimiter(c.Query("delimiter")); err != nil {
		h.badRequest(c, "Invalid parameters", err)
		return
	}
	if req.Mapping, err = parseMapping(c.Query("mapping")); err != nil {
		h.badRequest(c, "Invalid mapping", err)
		return
	}

	result, err := h.services.Ingestion.IngestCSV(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "CSV ingestion failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "CSV ingested successfully",
		"result":     result,
		"request_id": c.GetString("request_id"),
	})
}

// IngestWebhook merges a JSON array of pushed records
func (h *HTTPHandlers) IngestWebhook(c *gin.Context) {
	var records []domain.PerformanceRecord
	if err := c.ShouldBindJSON(&records); err != nil {
		h.badRequest(c, "Invalid payload", err)
		return
	}

	result, err := h.services.Ingestion.IngestRecords(c.Request.Context(), records)
	if err != nil {
		h.respondError(c, err, "Webhook ingestion failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Records ingested successfully",
		"result":     result,
		"request_id": c.GetString("request_id"),
	})
}

// parseMapping reads a JSON object of metric name to column index
func parseMapping(raw string) (usecase.ColumnMapping, error) {
	if raw == "" {
		return nil, nil
	}

	var mapping usecase.ColumnMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("mapping must be a JSON object of metric to column: %w", err)
	}

	known := make(map[usecase.Metric]bool, len(usecase.FieldHints))
	for _, hint := range usecase.FieldHints {
		known[hint.Metric] = true
	}
	for metric, col := range mapping {
		if !known[metric] {
			return nil, fmt.Errorf("unknown metric %q", metric)
		}
		if col < 0 {
			return nil, fmt.Errorf("column of %q must not be negative", metric)
		}
	}
	return mapping, nil
}

func parseDelimiter(raw string) (rune, error) {
	switch raw {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(raw) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(raw)
	return r, nil
}
