package classify

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

// MatchKind selects how a rule compares a field value with its pattern.
type MatchKind string

const (
	MatchExact     MatchKind = "exact"
	MatchRegex     MatchKind = "regex"
	MatchSubstring MatchKind = "substring"
)

// Rule is one entry of the ordered validity table. For regex rules either
// Pattern or Phrases is set; phrases are matched literally and case-insensitively.
type Rule struct {
	Status  domain.ValidationStatus `yaml:"status"`
	Field   string                  `yaml:"field"`
	Kind    MatchKind               `yaml:"kind"`
	Pattern string                  `yaml:"pattern,omitempty"`
	Phrases []string                `yaml:"phrases,omitempty"`
	Trim    bool                    `yaml:"trim,omitempty"`
}

// Fallback is consulted when no rule matched.
type Fallback struct {
	Field   string                  `yaml:"field"`
	Pattern string                  `yaml:"pattern"`
	Status  domain.ValidationStatus `yaml:"status"`
	Reason  string                  `yaml:"reason"`
}

// Rulebook is the complete business configuration of the engine.
type Rulebook struct {
	Rules         []Rule            `yaml:"rules"`
	Fallback      Fallback          `yaml:"fallback"`
	SLAThresholds map[string]string `yaml:"sla_thresholds"`
	VIPPattern    string            `yaml:"vip_pattern"`
	ParetoTier    string            `yaml:"pareto_tier"`
}

var doublePhrases = []string{
	"spam", "out of topic", "double ticket", "dobel ticket",
	"double tiket", "dobel tiket", "balikan ems", "balasan ems",
}

var doubleDetailCategories = []string{
	"I12-Status ticket", "I12-Ticket ID", "I11-Interaksi terputus",
	"I12-Out Of Topic", "Out Of Topic",
}

// DefaultRulebook returns the production rule table. Sender rules come first,
// then the "Double" rules, then the bare "RPA" description.
func DefaultRulebook() Rulebook {
	return Rulebook{
		Rules: []Rule{
			{Status: domain.ValidationEMS, Field: FieldCustomerEmail, Kind: MatchExact, Pattern: "ems@telkomsel.co.id"},
			{Status: domain.ValidationRPA, Field: FieldCustomerEmail, Kind: MatchExact, Pattern: "rpa_ces@telkomsel.co.id"},
			{Status: domain.ValidationHIA, Field: FieldSubject, Kind: MatchExact, Pattern: "UAT HIA"},
			{Status: domain.ValidationDouble, Field: FieldDepartment, Kind: MatchExact, Pattern: "Tiket Take Out"},
			{Status: domain.ValidationDouble, Field: FieldChannel, Kind: MatchExact, Pattern: "Live Chat"},
			{Status: domain.ValidationDouble, Field: FieldAssignee, Kind: MatchExact, Pattern: "TL Iwan Hermawan"},
			{Status: domain.ValidationDouble, Field: FieldDescription, Kind: MatchRegex, Phrases: doublePhrases},
			{Status: domain.ValidationDouble, Field: FieldDetailCategory, Kind: MatchRegex, Phrases: doubleDetailCategories},
			{Status: domain.ValidationRPA, Field: FieldDescription, Kind: MatchExact, Pattern: "RPA", Trim: true},
		},
		Fallback: Fallback{
			Field:   FieldDescription,
			Pattern: `(?i)completed by hia`,
			Status:  domain.ValidationValid,
			Reason:  "completed by HIA",
		},
		SLAThresholds: map[string]string{
			"connectivity": "3h",
			"solution":     "6h",
		},
		VIPPattern: `(?i)vvip|vip|direk|director|komisaris`,
		ParetoTier: domain.ParetoTier,
	}
}

// LoadRulebook reads a YAML rulebook. Sections missing from the file keep
// their default values.
func LoadRulebook(path string) (Rulebook, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Rulebook{}, fmt.Errorf("read rulebook %s: %w", path, err)
	}

	var file Rulebook
	if err := yaml.Unmarshal(content, &file); err != nil {
		return Rulebook{}, fmt.Errorf("parse rulebook %s: %w", path, err)
	}

	rb := DefaultRulebook()
	if len(file.Rules) > 0 {
		rb.Rules = file.Rules
	}
	if file.Fallback.Pattern != "" {
		rb.Fallback = file.Fallback
	}
	if len(file.SLAThresholds) > 0 {
		rb.SLAThresholds = file.SLAThresholds
	}
	if file.VIPPattern != "" {
		rb.VIPPattern = file.VIPPattern
	}
	if file.ParetoTier != "" {
		rb.ParetoTier = file.ParetoTier
	}
	return rb, nil
}

func parseThresholds(raw map[string]string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(raw))
	for product, value := range raw {
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("sla threshold for %q: %w", product, err)
		}
		out[domain.NormalizeKey(product)] = d
	}
	return out, nil
}
