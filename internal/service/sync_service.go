package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/events"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
	"github.com/helpdesk-insight/ticket-ingest/internal/repository"
	"github.com/helpdesk-insight/ticket-ingest/internal/ticketsource"
)

// TicketLister pages through the external ticket list.
type TicketLister interface {
	ListTickets(ctx context.Context, window ticketsource.Window, page, limit int) (ticketsource.Page, error)
}

// JobEnqueuer is the producer side of the queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, name, id string, payload any) (queue.Job, error)
}

// SyncSettings tunes a sync cycle.
type SyncSettings struct {
	PageSize        int
	PageMaxAttempts int
	LookbackDays    int
	Location        *time.Location
	RetryInterval   time.Duration
}

// SyncDependencies bundles collaborators for the sync service.
type SyncDependencies struct {
	Lister     TicketLister
	Tickets    repository.TicketRepository
	Cursor     repository.SyncCursorRepository
	Queue      JobEnqueuer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Settings   SyncSettings
}

// CycleResult summarizes one sync cycle.
type CycleResult struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
	PreviousSync *time.Time `json:"previous_sync,omitempty"`
	Pages        int        `json:"pages"`
	Fetched      int        `json:"fetched"`
	Changed      int        `json:"changed"`
	Dispatched   int        `json:"dispatched"`
	Duplicates   int        `json:"duplicates"`
	Jobs         []string   `json:"jobs"`
}

// SyncService runs incremental sync cycles: page through today's tickets,
// drop the ones whose last update is already stored, and queue the rest.
type SyncService struct {
	lister     TicketLister
	tickets    repository.TicketRepository
	cursor     repository.SyncCursorRepository
	queue      JobEnqueuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	settings   SyncSettings
	now        func() time.Time

	cycle   sync.Mutex
	running atomic.Bool

	mu   sync.RWMutex
	last *CycleResult
}

// NewSyncService creates the service.
func NewSyncService(deps SyncDependencies) *SyncService {
	st := deps.Settings
	if st.PageSize <= 0 {
		st.PageSize = 100
	}
	if st.PageMaxAttempts <= 0 {
		st.PageMaxAttempts = 1
	}
	if st.Location == nil {
		st.Location = time.UTC
	}
	if st.RetryInterval <= 0 {
		st.RetryInterval = 500 * time.Millisecond
	}
	return &SyncService{
		lister:     deps.Lister,
		tickets:    deps.Tickets,
		cursor:     deps.Cursor,
		queue:      deps.Queue,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger.Named("sync"),
		settings:   st,
		now:        time.Now,
	}
}

// Running reports whether a cycle is in progress.
func (s *SyncService) Running() bool {
	return s.running.Load()
}

// LastResult returns the most recent successful cycle.
func (s *SyncService) LastResult() (CycleResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return CycleResult{}, false
	}
	return *s.last, true
}

// LastSync returns the persisted cursor, nil before the first cycle.
func (s *SyncService) LastSync(ctx context.Context) (*domain.SyncCursor, error) {
	return s.cursor.Get(ctx)
}

// RunCycle executes one full cycle. Only one cycle runs at a time; a concurrent
// call gets ErrCycleRunning. The cursor advances only when every page was
// fetched, diffed and dispatched.
func (s *SyncService) RunCycle(ctx context.Context) (CycleResult, error) {
	if !s.cycle.TryLock() {
		return CycleResult{}, ErrCycleRunning
	}
	defer s.cycle.Unlock()
	s.running.Store(true)
	defer s.running.Store(false)

	res := CycleResult{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.logger.With(zap.String("run_id", res.RunID))

	cursor, err := s.cursor.Get(ctx)
	if err != nil {
		return res, s.fail(ctx, res, 0, err)
	}
	if cursor != nil {
		prev := cursor.LastSync
		res.PreviousSync = &prev
	}

	window := s.window(res.StartedAt)
	log.Info("sync cycle started",
		zap.String("from", window.Start.Format(time.DateOnly)),
		zap.String("to", window.End.Format(time.DateOnly)),
	)

	for pageNo := 1; ; pageNo++ {
		page, err := s.fetchPage(ctx, window, pageNo)
		if err != nil {
			return res, s.fail(ctx, res, pageNo, err)
		}
		res.Pages++
		res.Fetched += len(page.Tickets)

		changed, err := s.diff(ctx, page.Tickets)
		if err != nil {
			return res, s.fail(ctx, res, pageNo, err)
		}
		res.Changed += len(changed)

		if len(changed) > 0 {
			jobID := batchJobID(pageNo, changed)
			_, err := s.queue.Enqueue(ctx, BatchJobName, jobID, BatchPayload{Tickets: changed})
			switch {
			case errors.Is(err, queue.ErrDuplicateJob):
				res.Duplicates++
				log.Warn("batch already queued", zap.String("job_id", jobID), zap.Int("page", pageNo))
			case err != nil:
				return res, s.fail(ctx, res, pageNo, fmt.Errorf("enqueue page %d: %w", pageNo, err))
			default:
				res.Dispatched += len(changed)
				res.Jobs = append(res.Jobs, jobID)
			}
		}

		log.Debug("page synced",
			zap.Int("page", pageNo),
			zap.Int("pages", page.Pages),
			zap.Int("tickets", len(page.Tickets)),
			zap.Int("changed", len(changed)),
		)

		if !page.HasMore() || len(page.Tickets) == 0 {
			break
		}
	}

	finished := s.now()
	if err := s.cursor.Save(ctx, finished); err != nil {
		return res, s.fail(ctx, res, 0, err)
	}
	res.FinishedAt = finished

	s.mu.Lock()
	last := res
	s.last = &last
	s.mu.Unlock()

	log.Info("sync cycle finished",
		zap.Int("pages", res.Pages),
		zap.Int("fetched", res.Fetched),
		zap.Int("changed", res.Changed),
		zap.Int("dispatched", res.Dispatched),
		zap.Duration("duration", finished.Sub(res.StartedAt)),
	)
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.New(events.EventSyncCompleted, events.SyncCompletedPayload{
			RunID:      res.RunID,
			Pages:      res.Pages,
			Fetched:    res.Fetched,
			Changed:    res.Changed,
			Dispatched: res.Dispatched,
			Duplicates: res.Duplicates,
			Duration:   finished.Sub(res.StartedAt),
		}))
	}
	return res, nil
}

func (s *SyncService) fail(ctx context.Context, res CycleResult, page int, err error) error {
	s.logger.Error("sync cycle failed", zap.String("run_id", res.RunID), zap.Int("page", page), zap.Error(err))
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.New(events.EventSyncFailed, events.SyncFailedPayload{
			RunID: res.RunID,
			Page:  page,
			Error: err.Error(),
		}))
	}
	return err
}

// window covers today in the sync timezone, extended back by the lookback.
func (s *SyncService) window(now time.Time) ticketsource.Window {
	local := now.In(s.settings.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.settings.Location)
	return ticketsource.Window{
		Start: today.AddDate(0, 0, -s.settings.LookbackDays),
		End:   today,
	}
}

func (s *SyncService) fetchPage(ctx context.Context, window ticketsource.Window, pageNo int) (ticketsource.Page, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.settings.RetryInterval
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.settings.PageMaxAttempts-1)), ctx)

	op := func() (ticketsource.Page, error) {
		page, err := s.lister.ListTickets(ctx, window, pageNo, s.settings.PageSize)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return page, backoff.Permanent(err)
		}
		var apiErr *ticketsource.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return page, backoff.Permanent(err)
		}
		return page, err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("ticket page fetch failed, retrying",
			zap.Int("page", pageNo),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	page, err := backoff.RetryNotifyWithData(op, retry, notify)
	if err != nil {
		return ticketsource.Page{}, fmt.Errorf("fetch page %d: %w", pageNo, err)
	}
	return page, nil
}

// diff keeps stubs that are unseen or strictly newer than the stored
// last update. A stub whose update time cannot be parsed is kept. Stubs
// without a ticket number are dropped: they could never be upserted.
func (s *SyncService) diff(ctx context.Context, stubs []domain.TicketStub) ([]domain.TicketStub, error) {
	numbers := make([]string, 0, len(stubs))
	for _, st := range stubs {
		if n := strings.TrimSpace(st.TicketNumber); n != "" {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return nil, nil
	}

	stored, err := s.tickets.GetLastUpdates(ctx, numbers)
	if err != nil {
		return nil, fmt.Errorf("load stored updates: %w", err)
	}

	changed := make([]domain.TicketStub, 0, len(stubs))
	for _, st := range stubs {
		number := strings.TrimSpace(st.TicketNumber)
		if number == "" {
			continue
		}
		last, seen := stored[number]
		if !seen {
			changed = append(changed, st)
			continue
		}
		incoming, ok := domain.ParseTimestamp(st.UpdatedAt.String(), s.settings.Location)
		if !ok || incoming.After(last) {
			changed = append(changed, st)
		}
	}
	return changed, nil
}

// batchJobID identifies a dispatched set by page, first ticket and a digest of
// every (ticket number, update time) pair. Only an identical set maps to the
// same id, so a job still pending in the queue is not queued twice while any
// other change on the page always gets its own job.
func batchJobID(page int, changed []domain.TicketStub) string {
	keys := make([]string, 0, len(changed))
	for _, st := range changed {
		keys = append(keys, strings.TrimSpace(st.TicketNumber)+"@"+strings.TrimSpace(st.UpdatedAt.String()))
	}
	slices.Sort(keys)
	digest := uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(keys, "\n")))
	return fmt.Sprintf("batch-p%d-%s-%s", page, changed[0].TicketID.String(), hex.EncodeToString(digest[:8]))
}
