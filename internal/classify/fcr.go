package classify

import (
	"strconv"
	"strings"
)

// fcrMaxSubscribers is the exclusive upper bound on affected subscribers.
const fcrMaxSubscribers = 10

// IsFCR holds when neither the remedy reference nor the escalation reference
// is set and fewer than ten subscribers are affected.
func IsFCR(remedyID, escalationRef string, msisdnCount int) bool {
	return isEmptyRef(remedyID) && isEmptyRef(escalationRef) && msisdnCount < fcrMaxSubscribers
}

func isEmptyRef(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "-"
}

// ParseCount reads the leading integer of a free-text count ("12", "12 msisdn",
// " 3.0"). Anything without leading digits counts as zero.
func ParseCount(raw string) int {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
