package domain

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Layouts accepted for dates coming from uploads and webhooks
var dateLayouts = []string{
	DateLayout,   // YYYY-MM-DD
	"2006/01/02", // YYYY/MM/DD
	"02/01/2006", // DD/MM/YYYY
	"20060102",   // YYYYMMDD (GA4 exports)
	time.RFC3339, // 2006-01-02T15:04:05Z07:00
}

// ParseDate normalizes a date cell into YYYY-MM-DD
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: truncateDay(start), End: truncateDay(end)}
}

// ParseDateRange parses two YYYY-MM-DD strings
func ParseDateRange(from, to string) (DateRange, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", from, err)
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", to, err)
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", to, from)
	}
	return NewDateRange(start, end), nil
}

func (r DateRange) From() string { return r.Start.Format(DateLayout) }
func (r DateRange) To() string   { return r.End.Format(DateLayout) }

// Contains compares on the canonical string form, so the date must be YYYY-MM-DD
func (r DateRange) Contains(date string) bool {
	return date >= r.From() && date <= r.To()
}

// Days returns the number of calendar days covered
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the range of equal length ending the day before Start
func (r DateRange) Previous() DateRange {
	end := r.Start.AddDate(0, 0, -1)
	return DateRange{Start: end.AddDate(0, 0, -(r.Days() - 1)), End: end}
}

const (
	PresetLast7Days  = "last_7_days"
	PresetLast30Days = "last_30_days"
	PresetThisMonth  = "this_month"
	PresetLastMonth  = "last_month"
)

// PresetRange resolves a named dashboard preset against now
func PresetRange(name string, now time.Time) (DateRange, error) {
	today := truncateDay(now)
	switch name {
	case PresetLast7Days:
		return DateRange{Start: today.AddDate(0, 0, -7), End: today}, nil
	case PresetLast30Days:
		return DateRange{Start: today.AddDate(0, 0, -30), End: today}, nil
	case PresetThisMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{Start: start, End: today}, nil
	case PresetLastMonth:
		start := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		return DateRange{Start: start, End: start.AddDate(0, 1, -1)}, nil
	}
	return DateRange{}, fmt.Errorf("unknown date preset %q", name)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
