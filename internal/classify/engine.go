// Package classify evaluates the business rulebook against normalized tickets.
// Everything here is pure: no I/O, no shared mutable state.
package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Engine is a compiled, read-only rulebook. It is safe for concurrent use.
type Engine struct {
	rules      []compiledRule
	fallback   Fallback
	fallbackRe *regexp.Regexp
	sla        map[string]time.Duration
	vip        *regexp.Regexp
	paretoTier string
}

// Result holds every derived field of a classified ticket.
type Result struct {
	Verdict    Verdict
	Product    string
	HasProduct bool
	InSLA      bool
	IsFCR      bool
	Escalation string
	IsVIP      bool
	IsPareto   bool
}

// NewEngine compiles a rulebook.
func NewEngine(rb Rulebook) (*Engine, error) {
	e := &Engine{fallback: rb.Fallback, paretoTier: rb.ParetoTier}

	for i, r := range rb.Rules {
		if !knownField(r.Field) {
			return nil, fmt.Errorf("rule %d: unknown field %q", i, r.Field)
		}
		cr := compiledRule{Rule: r}
		switch r.Kind {
		case MatchExact, MatchSubstring:
			if r.Pattern == "" {
				return nil, fmt.Errorf("rule %d: empty pattern", i)
			}
		case MatchRegex:
			re, err := compileRulePattern(r)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			cr.re = re
		default:
			return nil, fmt.Errorf("rule %d: unknown kind %q", i, r.Kind)
		}
		e.rules = append(e.rules, cr)
	}

	if rb.Fallback.Pattern != "" {
		if !knownField(rb.Fallback.Field) {
			return nil, fmt.Errorf("fallback: unknown field %q", rb.Fallback.Field)
		}
		re, err := regexp.Compile(rb.Fallback.Pattern)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		e.fallbackRe = re
	}

	sla, err := parseThresholds(rb.SLAThresholds)
	if err != nil {
		return nil, err
	}
	e.sla = sla

	if rb.VIPPattern != "" {
		re, err := regexp.Compile(rb.VIPPattern)
		if err != nil {
			return nil, fmt.Errorf("vip pattern: %w", err)
		}
		e.vip = re
	}
	return e, nil
}

func compileRulePattern(r Rule) (*regexp.Regexp, error) {
	if len(r.Phrases) > 0 {
		quoted := make([]string, 0, len(r.Phrases))
		for _, p := range r.Phrases {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
		if len(quoted) == 0 {
			return nil, errors.New("no usable phrases")
		}
		return regexp.Compile("(?i)" + strings.Join(quoted, "|"))
	}
	if r.Pattern == "" {
		return nil, errors.New("empty pattern")
	}
	return regexp.Compile(r.Pattern)
}

// Classify runs every classifier. SLA is only evaluated for tickets that are
// valid for reporting; invalid tickets are reported out of SLA.
func (e *Engine) Classify(in Input, lookups domain.Lookups) Result {
	verdict := e.Validity(in)
	product, hasProduct := lookups.Product(in.SubCategory)
	tier, hasTier := lookups.Tier(in.CompanyName)

	res := Result{
		Verdict:    verdict,
		Product:    product,
		HasProduct: hasProduct,
		IsFCR:      IsFCR(in.RemedyID, in.EscalationRef, in.MSISDNCount),
		Escalation: Escalation(in.RemedyID, in.EscalationRef),
		IsVIP:      e.IsVIP(in.Subject),
		IsPareto:   hasTier && e.IsPareto(tier),
	}
	if verdict.Valid {
		res.InSLA = e.InSLA(product, in.CreatedAt, in.ResolvedAt)
	}
	return res
}

// IsVIP reports whether the subject mentions a VIP term.
func (e *Engine) IsVIP(subject string) bool {
	if e.vip == nil {
		return false
	}
	return e.vip.MatchString(subject)
}

// IsPareto reports whether a resolved tier is the top tier.
func (e *Engine) IsPareto(tier string) bool {
	return tier != "" && tier == e.paretoTier
}
