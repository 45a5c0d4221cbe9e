package repository

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

const upsertPattern = `INSERT INTO tickets \(ticket_number,.*\) VALUES .* ON CONFLICT \(ticket_number\) DO UPDATE SET .* WHERE tickets\.last_update IS DISTINCT FROM EXCLUDED\.last_update RETURNING \(xmax = 0\) AS inserted`

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func ticket(number string, lastUpdate time.Time) domain.Ticket {
	return domain.Ticket{
		TicketNumber:     number,
		Subject:          "subject " + number,
		LastUpdate:       null.TimeFrom(lastUpdate),
		ValidationStatus: domain.ValidationValid,
		Source:           domain.TicketSourceAPI,
	}
}

func TestDedupeTickets(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := ticket("T-1", t0)
	second := ticket("T-2", t0)
	later := ticket(" T-1 ", t0.Add(time.Hour))
	later.Subject = "newer"

	out := DedupeTickets([]domain.Ticket{first, second, {TicketNumber: "  "}, later})
	require.Len(t, out, 2)
	assert.Equal(t, "T-1", out[0].TicketNumber)
	assert.Equal(t, "newer", out[0].Subject)
	assert.Equal(t, "T-2", out[1].TicketNumber)
}

func TestSaveBatch_EmptyIsNoop(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	ins, upd, err := repo.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, ins)
	assert.Zero(t, upd)

	ins, upd, err = repo.SaveBatch(context.Background(), []domain.Ticket{{Subject: "no key"}})
	require.NoError(t, err)
	assert.Zero(t, ins+upd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_DuplicateKeyUsesLaterRecord(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := ticket("T-1", t0)
	newer := ticket("T-1", t0.Add(2*time.Hour))
	newer.Subject = "latest subject"

	mock.ExpectBegin()
	mock.ExpectQuery(upsertPattern).
		WithArgs(ticketValues(&newer)...).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectCommit()

	ins, upd, err := repo.SaveBatch(context.Background(), []domain.Ticket{older, newer})
	require.NoError(t, err)
	assert.Equal(t, 1, ins)
	assert.Equal(t, 0, upd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_CountsOnlyWrittenRows(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := []domain.Ticket{ticket("T-1", t0), ticket("T-2", t0), ticket("T-3", t0)}

	// T-3 hit the conflict branch but the guard skipped it: no row returned.
	mock.ExpectBegin()
	mock.ExpectQuery(upsertPattern).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true).AddRow(false))
	mock.ExpectCommit()

	ins, upd, err := repo.SaveBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, ins)
	assert.Equal(t, 1, upd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_UnchangedBatchReportsNothing(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := []domain.Ticket{ticket("T-1", t0), ticket("T-2", t0)}

	mock.ExpectBegin()
	mock.ExpectQuery(upsertPattern).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true).AddRow(true))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(upsertPattern).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}))
	mock.ExpectCommit()

	ins, upd, err := repo.SaveBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, ins)
	assert.Equal(t, 0, upd)

	ins, upd, err = repo.SaveBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, ins)
	assert.Equal(t, 0, upd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_SplitsLargeBatches(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := make([]domain.Ticket, 0, maxRowsPerStatement+5)
	for i := 0; i < maxRowsPerStatement+5; i++ {
		batch = append(batch, ticket("T-"+strconv.Itoa(i), t0))
	}

	firstRows := pgxmock.NewRows([]string{"inserted"})
	for i := 0; i < maxRowsPerStatement; i++ {
		firstRows.AddRow(true)
	}
	mock.ExpectBegin()
	mock.ExpectQuery(upsertPattern).WillReturnRows(firstRows)
	mock.ExpectQuery(upsertPattern).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false).AddRow(false))
	mock.ExpectCommit()

	ins, upd, err := repo.SaveBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, maxRowsPerStatement, ins)
	assert.Equal(t, 2, upd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatch_RollsBackOnError(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(upsertPattern).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err := repo.SaveBatch(context.Background(), []domain.Ticket{ticket("T-1", time.Now())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastUpdates(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	stored := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ticket_number, last_update FROM tickets WHERE ticket_number IN ($1,$2,$3)")).
		WithArgs("T-1", "T-2", "T-3").
		WillReturnRows(pgxmock.NewRows([]string{"ticket_number", "last_update"}).
			AddRow("T-1", null.TimeFrom(stored)).
			AddRow("T-2", null.Time{}))

	got, err := repo.GetLastUpdates(context.Background(), []string{"T-1", "T-2", "T-3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"T-1": stored}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastUpdates_NoKeys(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	got, err := repo.GetLastUpdates(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
