package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/events"
	"github.com/helpdesk-insight/ticket-ingest/internal/ticketsource"
)

var syncNow = time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)

type syncFixture struct {
	svc        *SyncService
	lister     *fakeLister
	tickets    *fakeTicketRepo
	cursor     *fakeCursorRepo
	queue      *fakeQueue
	dispatcher events.Dispatcher
	published  []events.Event
}

func newSyncFixture(t *testing.T, pages map[int]ticketsource.Page) *syncFixture {
	t.Helper()
	f := &syncFixture{
		lister:     &fakeLister{pages: pages, failures: map[int][]error{}},
		tickets:    &fakeTicketRepo{stored: map[string]time.Time{}},
		cursor:     &fakeCursorRepo{},
		queue:      &fakeQueue{},
		dispatcher: events.NewInMemoryDispatcher(),
	}
	record := func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	}
	f.dispatcher.Subscribe(events.EventSyncCompleted, record)
	f.dispatcher.Subscribe(events.EventSyncFailed, record)

	f.svc = NewSyncService(SyncDependencies{
		Lister:     f.lister,
		Tickets:    f.tickets,
		Cursor:     f.cursor,
		Queue:      f.queue,
		Dispatcher: f.dispatcher,
		Logger:     zap.NewNop(),
		Settings: SyncSettings{
			PageSize:        2,
			PageMaxAttempts: 3,
			LookbackDays:    1,
			Location:        time.UTC,
			RetryInterval:   time.Millisecond,
		},
	})
	f.svc.now = func() time.Time { return syncNow }
	return f
}

func syncStub(id, number, updated string) domain.TicketStub {
	return domain.TicketStub{TicketID: domain.FlexString(id), TicketNumber: number, UpdatedAt: domain.FlexString(updated)}
}

func TestRunCycle_DiffsAndDispatchesPerPage(t *testing.T) {
	f := newSyncFixture(t, map[int]ticketsource.Page{
		1: {Pages: 2, Tickets: []domain.TicketStub{
			syncStub("11", "T-1", "2025-01-01T09:00:00Z"), // unchanged
			syncStub("12", "T-2", "2025-01-01T09:00:00Z"), // newer
		}},
		2: {Pages: 2, Tickets: []domain.TicketStub{
			syncStub("13", "T-3", "2025-01-01T08:00:00Z"), // unseen
			syncStub("14", "T-4", "2025-01-01T07:00:00Z"), // older than stored
		}},
	})
	f.tickets.stored["T-1"] = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	f.tickets.stored["T-2"] = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	f.tickets.stored["T-4"] = time.Date(2025, 1, 1, 7, 30, 0, 0, time.UTC)

	res, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 2, res.Changed)
	assert.Equal(t, 2, res.Dispatched)

	require.Len(t, f.queue.jobs, 2)
	assert.Equal(t, BatchJobName, f.queue.jobs[0].name)
	assert.Equal(t, batchJobID(1, []domain.TicketStub{syncStub("12", "T-2", "2025-01-01T09:00:00Z")}), f.queue.jobs[0].id)
	assert.True(t, strings.HasPrefix(f.queue.jobs[0].id, "batch-p1-12-"), f.queue.jobs[0].id)
	first := f.queue.jobs[0].payload.(BatchPayload)
	require.Len(t, first.Tickets, 1)
	assert.Equal(t, "T-2", first.Tickets[0].TicketNumber)
	second := f.queue.jobs[1].payload.(BatchPayload)
	require.Len(t, second.Tickets, 1)
	assert.Equal(t, "T-3", second.Tickets[0].TicketNumber)

	assert.Equal(t, []time.Time{syncNow}, f.cursor.saves)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), f.lister.windows[0].Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), f.lister.windows[0].End)

	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventSyncCompleted, f.published[0].Type)

	last, ok := f.svc.LastResult()
	require.True(t, ok)
	assert.Equal(t, res.RunID, last.RunID)
}

func TestRunCycle_NoChangesStillAdvancesCursor(t *testing.T) {
	f := newSyncFixture(t, map[int]ticketsource.Page{
		1: {Pages: 1, Tickets: []domain.TicketStub{syncStub("11", "T-1", "2025-01-01T09:00:00Z")}},
	})
	f.tickets.stored["T-1"] = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	previous := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	f.cursor.cursor = &domain.SyncCursor{LastSync: previous}

	res, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Dispatched)
	assert.Empty(t, f.queue.jobs)
	require.NotNil(t, res.PreviousSync)
	assert.Equal(t, previous, *res.PreviousSync)
	assert.Equal(t, []time.Time{syncNow}, f.cursor.saves)
}

func TestRunCycle_UnparseableUpdateAndMissingKey(t *testing.T) {
	f := newSyncFixture(t, map[int]ticketsource.Page{
		1: {Pages: 1, Tickets: []domain.TicketStub{
			syncStub("11", "T-1", "garbage"),
			syncStub("12", "  ", "2025-01-01T09:00:00Z"),
		}},
	})
	f.tickets.stored["T-1"] = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	res, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
	require.Len(t, f.queue.jobs, 1)
	assert.True(t, strings.HasPrefix(f.queue.jobs[0].id, "batch-p1-11-"), f.queue.jobs[0].id)
}

func TestRunCycle_PendingIdenticalBatchIsSkipped(t *testing.T) {
	f := newSyncFixture(t, map[int]ticketsource.Page{
		1: {Pages: 1, Tickets: []domain.TicketStub{syncStub("11", "T-1", "2025-01-01T09:00:00Z")}},
	})

	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	res, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Dispatched)
	assert.Len(t, f.queue.jobs, 1)
	assert.Len(t, f.cursor.saves, 2)
}

func TestRunCycle_UnstoredTicketIsRequeuedWithNewChanges(t *testing.T) {
	f := newSyncFixture(t, map[int]ticketsource.Page{
		1: {Pages: 1, Tickets: []domain.TicketStub{syncStub("21", "T-A", "2025-01-01T09:00:00Z")}},
	})

	first, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Dispatched)

	// T-A failed enrichment and was never stored; T-C is new on the same page.
	f.lister.pages[1] = ticketsource.Page{Pages: 1, Tickets: []domain.TicketStub{
		syncStub("21", "T-A", "2025-01-01T09:00:00Z"),
		syncStub("23", "T-C", "2025-01-01T09:10:00Z"),
	}}

	second, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Changed)
	assert.Equal(t, 2, second.Dispatched)
	assert.Equal(t, 0, second.Duplicates)

	require.Len(t, f.queue.jobs, 2)
	assert.NotEqual(t, f.queue.jobs[0].id, f.queue.jobs[1].id)
	assert.True(t, strings.HasPrefix(f.queue.jobs[1].id, "batch-p1-21-"), f.queue.jobs[1].id)

	requeued := f.queue.jobs[1].payload.(BatchPayload)
	numbers := make([]string, 0, len(requeued.Tickets))
	for _, st := range requeued.Tickets {
		numbers = append(numbers, st.TicketNumber)
	}
	assert.ElementsMatch(t, []string{"T-A", "T-C"}, numbers)
	assert.Len(t, f.cursor.saves, 2)
}

func TestBatchJobID(t *testing.T) {
	a := syncStub("21", "T-A", "2025-01-01T09:00:00Z")
	c := syncStub("23", "T-C", "2025-01-01T09:10:00Z")

	id := batchJobID(3, []domain.TicketStub{a, c})
	assert.True(t, strings.HasPrefix(id, "batch-p3-21-"), id)
	assert.Equal(t, id, batchJobID(3, []domain.TicketStub{a, c}))
	assert.Equal(t, batchJobID(3, []domain.TicketStub{c, a})[len("batch-p3-23-"):], id[len("batch-p3-21-"):], "digest ignores order")

	assert.NotEqual(t, id, batchJobID(3, []domain.TicketStub{a}))
	assert.NotEqual(t, id, batchJobID(4, []domain.TicketStub{a, c}))
	newer := syncStub("23", "T-C", "2025-01-01T09:20:00Z")
	assert.NotEqual(t, id, batchJobID(3, []domain.TicketStub{a, newer}))
}

func TestRunCycle_RetriesPageThenSucceeds(t *testing.T) {
	f := newSyncFixture(t, map[int]ticketsource.Page{
		1: {Pages: 1, Tickets: []domain.TicketStub{syncStub("11", "T-1", "2025-01-01T09:00:00Z")}},
	})
	f.lister.failures[1] = []error{errUpstream, errUpstream}

	res, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, f.lister.calls[1])
	assert.Equal(t, 1, res.Dispatched)
}

func TestRunCycle_RetriesExhaustedFailsCycle(t *testing.T) {
	f := newSyncFixture(t, map[int]ticketsource.Page{
		1: {Pages: 2, Tickets: []domain.TicketStub{syncStub("11", "T-1", "2025-01-01T09:00:00Z")}},
	})
	f.lister.failures[2] = []error{errUpstream, errUpstream, errUpstream}

	_, err := f.svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUpstream))
	assert.Equal(t, 3, f.lister.calls[2])
	assert.Empty(t, f.cursor.saves)

	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventSyncFailed, f.published[0].Type)
	_, ok := f.svc.LastResult()
	assert.False(t, ok)
}

func TestRunCycle_ClientErrorIsNotRetried(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.lister.failures[1] = []error{&ticketsource.APIError{Endpoint: "/ticketing/get-list", StatusCode: 401}}

	_, err := f.svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, f.lister.calls[1])
}

func TestRunCycle_FatalErrors(t *testing.T) {
	page := map[int]ticketsource.Page{
		1: {Pages: 1, Tickets: []domain.TicketStub{syncStub("11", "T-1", "2025-01-01T09:00:00Z")}},
	}

	t.Run("cursor read", func(t *testing.T) {
		f := newSyncFixture(t, page)
		f.cursor.getErr = errors.New("db down")
		_, err := f.svc.RunCycle(context.Background())
		assert.Error(t, err)
		assert.Empty(t, f.lister.calls)
	})

	t.Run("enqueue", func(t *testing.T) {
		f := newSyncFixture(t, page)
		f.queue.err = errors.New("redis down")
		_, err := f.svc.RunCycle(context.Background())
		assert.ErrorContains(t, err, "redis down")
		assert.Empty(t, f.cursor.saves)
	})

	t.Run("cursor write", func(t *testing.T) {
		f := newSyncFixture(t, page)
		f.cursor.saveErr = errors.New("db down")
		_, err := f.svc.RunCycle(context.Background())
		assert.Error(t, err)
	})

	t.Run("stored updates", func(t *testing.T) {
		f := newSyncFixture(t, page)
		f.tickets.queryErr = errors.New("db down")
		_, err := f.svc.RunCycle(context.Background())
		assert.Error(t, err)
		assert.Empty(t, f.queue.jobs)
	})
}

func TestRunCycle_RejectsOverlap(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.lister.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.RunCycle(context.Background())
		done <- err
	}()
	require.Eventually(t, f.svc.Running, time.Second, time.Millisecond)

	_, err := f.svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(f.lister.block)
	require.NoError(t, <-done)
	assert.False(t, f.svc.Running())
}
