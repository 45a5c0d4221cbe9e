package domain

import (
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"02/01/2006",
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// IsBlank reports whether a raw cell or field carries no value.
func IsBlank(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || s == "-" || s == "~"
}

// ParseTimestamp parses the timestamp formats seen in the ticketing API and in
// exports. Values without an offset are interpreted in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	if IsBlank(raw) {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseExportTimestamp is ParseTimestamp plus spreadsheet serial dates
// ("45658.25"), which only occur in export cells.
func ParseExportTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	if t, ok := ParseTimestamp(raw, loc); ok {
		return t, true
	}
	if IsBlank(raw) {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	s := strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 1 {
		return time.Time{}, false
	}
	t := excelEpoch.Add(time.Duration(serial * float64(24*time.Hour)))
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
}
