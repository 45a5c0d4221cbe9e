package service

import (
	"github.com/aarondl/null/v8"

	"github.com/helpdesk-insight/ticket-ingest/internal/classify"
	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

// applyClassification fills the derived fields of t. Raw timestamps are passed
// separately so that an unparseable value stays distinguishable from a
// missing one.
func applyClassification(engine *classify.Engine, t *domain.Ticket, createdRaw, resolvedRaw string, lookups domain.Lookups) {
	res := engine.Classify(classify.Input{
		Subject:        t.Subject,
		Channel:        t.Channel,
		Department:     t.Department,
		Assignee:       t.Assignee,
		Priority:       t.Priority,
		Description:    t.Description,
		CustomerEmail:  t.CustomerEmail,
		Category:       t.Category,
		SubCategory:    t.SubCategory,
		DetailCategory: t.DetailCategory,
		CompanyName:    t.CompanyName,
		CreatedAt:      createdRaw,
		ResolvedAt:     resolvedRaw,
		RemedyID:       t.RemedyID,
		EscalationRef:  t.EscalationRef,
		MSISDNCount:    t.MSISDNCount,
	}, lookups)

	t.ValidationStatus = res.Verdict.Status
	t.IsValidForReporting = res.Verdict.Valid
	t.Product = null.NewString(res.Product, res.HasProduct)
	t.InSLA = res.InSLA
	t.IsFCR = res.IsFCR
	t.EscalationType = res.Escalation
	t.IsVIP = res.IsVIP
	t.IsPareto = res.IsPareto
}
