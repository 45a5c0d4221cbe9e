package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

const (
	syncCursorTable = "sync_cursor"
	syncCursorID    = 1
)

// SyncCursorRepository reads and writes the singleton sync cursor.
type SyncCursorRepository interface {
	Get(ctx context.Context) (*domain.SyncCursor, error)
	Save(ctx context.Context, lastSync time.Time) error
}

type syncCursorRepository struct {
	db DBTX
}

// NewSyncCursorRepository builds repository.
func NewSyncCursorRepository(db DBTX) SyncCursorRepository {
	return &syncCursorRepository{db: db}
}

// Get returns nil when no cycle has completed yet.
func (r *syncCursorRepository) Get(ctx context.Context) (*domain.SyncCursor, error) {
	query, args, err := psql.Select("last_sync").
		From(syncCursorTable).
		Where(sq.Eq{"id": syncCursorID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sync cursor query: %w", err)
	}

	var lastSync time.Time
	if err := r.db.QueryRow(ctx, query, args...).Scan(&lastSync); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sync cursor: %w", err)
	}
	return &domain.SyncCursor{LastSync: lastSync}, nil
}

// Save upserts the singleton row.
func (r *syncCursorRepository) Save(ctx context.Context, lastSync time.Time) error {
	query, args, err := psql.Insert(syncCursorTable).
		Columns("id", "last_sync").
		Values(syncCursorID, lastSync).
		Suffix("ON CONFLICT (id) DO UPDATE SET last_sync = EXCLUDED.last_sync").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sync cursor upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("write sync cursor: %w", err)
	}
	return nil
}
