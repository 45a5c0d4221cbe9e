package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/repository"
)

// LookupService hands out reference-table snapshots. A snapshot is reloaded
// once it is older than the refresh interval; snapshots already handed out
// are never mutated.
type LookupService struct {
	repo     repository.LookupRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	snapshot *domain.Lookups
}

// NewLookupService creates the service.
func NewLookupService(repo repository.LookupRepository, interval time.Duration, logger *zap.Logger) *LookupService {
	return &LookupService{
		repo:     repo,
		interval: interval,
		logger:   logger.Named("lookups"),
		now:      time.Now,
	}
}

// Snapshot returns a fresh enough snapshot, loading one if needed. A load
// failure is returned as is: callers must not continue with empty lookups.
func (s *LookupService) Snapshot(ctx context.Context) (domain.Lookups, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil && s.now().Sub(s.snapshot.LoadedAt) < s.interval {
		return *s.snapshot, nil
	}

	lookups, err := s.repo.LoadLookups(ctx)
	if err != nil {
		return domain.Lookups{}, fmt.Errorf("load lookups: %w", err)
	}
	s.snapshot = &lookups

	products, tiers := lookups.Size()
	s.logger.Info("lookups loaded", zap.Int("products", products), zap.Int("tiers", tiers))
	return lookups, nil
}

// Invalidate forces the next Snapshot call to reload.
func (s *LookupService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
}
