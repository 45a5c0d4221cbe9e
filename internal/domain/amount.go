package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
)

// ParseAmount turns a revenue cell such as "Rp 13.513.500" into an integer.
// Everything except digits and the minus sign is stripped; blank and
// placeholder values give an invalid result.
func ParseAmount(raw string) null.Int64 {
	if IsBlank(raw) {
		return null.Int64{}
	}
	digits := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, raw)
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return null.Int64{}
	}
	return null.Int64From(n)
}

// ParseTime parses raw into a nullable time.
func ParseTime(raw string, loc *time.Location) null.Time {
	return nullTime(ParseTimestamp(raw, loc))
}

// ParseExportTime is ParseTime for export cells.
func ParseExportTime(raw string, loc *time.Location) null.Time {
	return nullTime(ParseExportTimestamp(raw, loc))
}

func nullTime(t time.Time, ok bool) null.Time {
	if !ok {
		return null.Time{}
	}
	return null.TimeFrom(t)
}
