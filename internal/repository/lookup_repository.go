package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

// LookupRepository loads the reference tables used during enrichment.
type LookupRepository interface {
	LoadLookups(ctx context.Context) (domain.Lookups, error)
}

type lookupRepository struct {
	db  DBTX
	now func() time.Time
}

// NewLookupRepository builds repository.
func NewLookupRepository(db DBTX) LookupRepository {
	return &lookupRepository{db: db, now: time.Now}
}

// LoadLookups reads both tables in insertion order so that later rows win on
// duplicate normalized keys. Any failure is returned; there is no fallback to
// empty maps.
func (r *lookupRepository) LoadLookups(ctx context.Context) (domain.Lookups, error) {
	products, err := r.loadPairs(ctx, "subcategory_products", "sub_category", "product")
	if err != nil {
		return domain.Lookups{}, err
	}
	tiers, err := r.loadPairs(ctx, "corporate_accounts", "corporate_name", "tier")
	if err != nil {
		return domain.Lookups{}, err
	}
	return domain.NewLookups(products, tiers, r.now()), nil
}

func (r *lookupRepository) loadPairs(ctx context.Context, table, keyCol, valueCol string) ([]domain.LookupEntry, error) {
	query, args, err := psql.Select(keyCol, fmt.Sprintf("COALESCE(%s, '')", valueCol)).
		From(table).
		Where(keyCol + " IS NOT NULL").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", table, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	var entries []domain.LookupEntry
	for rows.Next() {
		var e domain.LookupEntry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return entries, nil
}
