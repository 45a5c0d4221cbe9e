package domain

import (
	"strings"
	"time"
)

// ParetoTier is the account tier that marks a ticket as Pareto.
const ParetoTier = "P1"

// LookupEntry is a raw key/value row of a reference table.
type LookupEntry struct {
	Key   string
	Value string
}

// Lookups is an immutable snapshot of the reference tables used during
// enrichment. Keys are normalized on construction and on every probe.
type Lookups struct {
	products map[string]string
	tiers    map[string]string
	LoadedAt time.Time
}

// NormalizeKey trims and lower-cases a lookup key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// NewLookups builds a snapshot. Later entries win over earlier ones with the
// same normalized key; blank keys are skipped.
func NewLookups(products, tiers []LookupEntry, loadedAt time.Time) Lookups {
	return Lookups{
		products: buildLookupMap(products),
		tiers:    buildLookupMap(tiers),
		LoadedAt: loadedAt,
	}
}

func buildLookupMap(entries []LookupEntry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		key := NormalizeKey(e.Key)
		if key == "" {
			continue
		}
		m[key] = e.Value
	}
	return m
}

// Product resolves the product for a sub-category.
func (l Lookups) Product(subCategory string) (string, bool) {
	key := NormalizeKey(subCategory)
	if key == "" {
		return "", false
	}
	v, ok := l.products[key]
	return v, ok
}

// Tier resolves the corporate tier for a company name.
func (l Lookups) Tier(companyName string) (string, bool) {
	key := NormalizeKey(companyName)
	if key == "" {
		return "", false
	}
	v, ok := l.tiers[key]
	return v, ok
}

// Size reports the number of product and tier entries.
func (l Lookups) Size() (products, tiers int) {
	return len(l.products), len(l.tiers)
}
