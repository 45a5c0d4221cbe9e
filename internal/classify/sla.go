package classify

import (
	"strings"
	"time"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

// InSLA reports whether the ticket was resolved within the product threshold.
//
// An unresolved ticket is in SLA: it has accrued no breach duration yet and is
// not re-evaluated while open. Unparseable timestamps and products without a
// threshold are out of SLA.
func (e *Engine) InSLA(product, createdAt, resolvedAt string) bool {
	if r := strings.TrimSpace(resolvedAt); r == "" || r == "-" {
		return true
	}

	created, ok := domain.ParseTimestamp(createdAt, time.UTC)
	if !ok {
		return false
	}
	resolved, ok := domain.ParseTimestamp(resolvedAt, time.UTC)
	if !ok {
		return false
	}

	limit, ok := e.sla[domain.NormalizeKey(product)]
	if !ok {
		return false
	}
	return resolved.Sub(created) <= limit
}

// Threshold returns the configured limit for a product.
func (e *Engine) Threshold(product string) (time.Duration, bool) {
	d, ok := e.sla[domain.NormalizeKey(product)]
	return d, ok
}
