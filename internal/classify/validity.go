package classify

import (
	"fmt"
	"strings"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

// Verdict is the outcome of the validity rulebook.
type Verdict struct {
	Status domain.ValidationStatus
	Valid  bool
	Reason string
}

// Validity walks the rules in declaration order and returns the first match.
// Blank field values never match. When no rule matches the description
// fallback is tried, then the ticket is Valid.
func (e *Engine) Validity(in Input) Verdict {
	for _, r := range e.rules {
		value := in.Field(r.Field)
		if value == "" || !r.matches(value) {
			continue
		}
		return Verdict{
			Status: r.Status,
			Valid:  r.Status == domain.ValidationValid,
			Reason: fmt.Sprintf("matched %s rule on %s", r.Status, r.Field),
		}
	}

	if e.fallbackRe != nil {
		if value := in.Field(e.fallback.Field); value != "" && e.fallbackRe.MatchString(value) {
			return Verdict{
				Status: e.fallback.Status,
				Valid:  e.fallback.Status == domain.ValidationValid,
				Reason: e.fallback.Reason,
			}
		}
	}

	return Verdict{Status: domain.ValidationValid, Valid: true, Reason: "passed all checks"}
}

func (r compiledRule) matches(value string) bool {
	if r.Trim {
		value = strings.TrimSpace(value)
	}
	switch r.Kind {
	case MatchExact:
		return value == r.Pattern
	case MatchSubstring:
		return strings.Contains(value, r.Pattern)
	case MatchRegex:
		return r.re.MatchString(value)
	}
	return false
}
