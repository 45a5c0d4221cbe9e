package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helpdesk-insight/ticket-ingest/internal/classify"
	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
	"github.com/helpdesk-insight/ticket-ingest/internal/ticketsource"
)

func testEngine(t *testing.T) *classify.Engine {
	t.Helper()
	engine, err := classify.NewEngine(classify.DefaultRulebook())
	require.NoError(t, err)
	return engine
}

func testLookups() domain.Lookups {
	return domain.NewLookups(
		[]domain.LookupEntry{{Key: "Internet Lambat", Value: "connectivity"}, {Key: "Tagihan", Value: "solution"}},
		[]domain.LookupEntry{{Key: "PT Maju Jaya", Value: domain.ParetoTier}},
		time.Now(),
	)
}

type fakeTicketRepo struct {
	mu       sync.Mutex
	stored   map[string]time.Time
	saved    [][]domain.Ticket
	saveErr  error
	queryErr error
}

func (f *fakeTicketRepo) SaveBatch(_ context.Context, tickets []domain.Ticket) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, 0, f.saveErr
	}
	f.saved = append(f.saved, append([]domain.Ticket(nil), tickets...))
	return len(tickets), 0, nil
}

func (f *fakeTicketRepo) GetLastUpdates(_ context.Context, numbers []string) (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make(map[string]time.Time)
	for _, n := range numbers {
		if t, ok := f.stored[n]; ok {
			out[n] = t
		}
	}
	return out, nil
}

type fakeCursorRepo struct {
	cursor  *domain.SyncCursor
	getErr  error
	saveErr error
	saves   []time.Time
}

func (f *fakeCursorRepo) Get(context.Context) (*domain.SyncCursor, error) {
	return f.cursor, f.getErr
}

func (f *fakeCursorRepo) Save(_ context.Context, lastSync time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, lastSync)
	f.cursor = &domain.SyncCursor{LastSync: lastSync}
	return nil
}

type fakeLister struct {
	mu       sync.Mutex
	pages    map[int]ticketsource.Page
	failures map[int][]error
	calls    map[int]int
	windows  []ticketsource.Window
	block    chan struct{}
}

func (f *fakeLister) ListTickets(ctx context.Context, window ticketsource.Window, page, _ int) (ticketsource.Page, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ticketsource.Page{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[int]int)
	}
	f.calls[page]++
	f.windows = append(f.windows, window)
	if errs := f.failures[page]; len(errs) > 0 {
		f.failures[page] = errs[1:]
		return ticketsource.Page{}, errs[0]
	}
	p, ok := f.pages[page]
	if !ok {
		return ticketsource.Page{Number: page}, nil
	}
	p.Number = page
	return p, nil
}

type enqueued struct {
	name    string
	id      string
	payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	ids  map[string]bool
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, name, id string, payload any) (queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return queue.Job{}, f.err
	}
	if f.ids == nil {
		f.ids = make(map[string]bool)
	}
	if id != "" && f.ids[id] {
		return queue.Job{}, queue.ErrDuplicateJob
	}
	if id == "" {
		id = "generated"
	}
	f.ids[id] = true
	f.jobs = append(f.jobs, enqueued{name: name, id: id, payload: payload})
	return queue.Job{ID: id, Name: name}, nil
}

type fakeActivities struct {
	mu       sync.Mutex
	byTicket map[string][]domain.Activity
	failing  map[string]error
	delay    time.Duration
	inFlight int
	maxSeen  int
}

func (f *fakeActivities) ListActivities(ctx context.Context, ticketID string) ([]domain.Activity, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.failing[ticketID]; err != nil {
		return nil, err
	}
	return f.byTicket[ticketID], nil
}

type fakeLookupRepo struct {
	loads int
	err   error
	at    time.Time
}

func (f *fakeLookupRepo) LoadLookups(context.Context) (domain.Lookups, error) {
	f.loads++
	if f.err != nil {
		return domain.Lookups{}, f.err
	}
	return domain.NewLookups([]domain.LookupEntry{{Key: "a", Value: "b"}}, nil, f.at), nil
}

type staticLookups struct {
	lookups domain.Lookups
	err     error
}

func (s staticLookups) Snapshot(context.Context) (domain.Lookups, error) {
	return s.lookups, s.err
}

var errUpstream = errors.New("upstream unavailable")
