package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/events"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
)

const exportCSV = `Ticket Number;Ticket Subject;Channel;Ticket Created;Resolve Time;Sub Category;Nama Perusahaan;Jumlah MSISDN;Amount Revenue
T-100;Internet putus;Email;2025-01-01 08:00:00;2025-01-01 10:00:00;Internet Lambat;PT Maju Jaya;2;Rp 1.500.000
;missing key;Email;;;;;;
T-101;Tagihan salah;Live Chat;2025-01-01 08:00:00;;Tagihan;;;
`

func newImportService(t *testing.T, repo *fakeTicketRepo, q *fakeQueue, dispatcher events.Dispatcher) (*ImportService, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewImportService(ImportDependencies{
		Engine:     testEngine(t),
		Lookups:    staticLookups{lookups: testLookups()},
		Tickets:    repo,
		Queue:      q,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Location:   time.UTC,
		Dir:        dir,
	})
	return svc, dir
}

func TestImportService_ImportFileClassifiesRows(t *testing.T) {
	repo := &fakeTicketRepo{}
	dispatcher := events.NewInMemoryDispatcher()
	var completed []events.ImportCompletedPayload
	dispatcher.Subscribe(events.EventImportCompleted, func(_ context.Context, e events.Event) error {
		completed = append(completed, e.Payload.(events.ImportCompletedPayload))
		return nil
	})
	svc, dir := newImportService(t, repo, &fakeQueue{}, dispatcher)

	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(exportCSV), 0o644))

	res, err := svc.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{File: "export.csv", Rows: 3, Skipped: 1, Inserted: 2}, res)

	require.Len(t, repo.saved, 1)
	require.Len(t, repo.saved[0], 2)

	first := repo.saved[0][0]
	assert.Equal(t, "T-100", first.TicketNumber)
	assert.Equal(t, domain.ValidationValid, first.ValidationStatus)
	assert.True(t, first.IsValidForReporting)
	assert.Equal(t, "connectivity", first.Product.String)
	assert.True(t, first.InSLA)
	assert.True(t, first.IsPareto)
	assert.True(t, first.IsFCR)
	assert.Equal(t, 2, first.MSISDNCount)
	assert.Equal(t, int64(1500000), first.AmountRevenue.Int64)
	assert.Equal(t, time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), first.TicketCreated.Time)

	second := repo.saved[0][1]
	assert.Equal(t, domain.ValidationDouble, second.ValidationStatus)
	assert.False(t, second.InSLA)
	assert.False(t, second.IsPareto)

	require.Len(t, completed, 1)
	assert.Equal(t, 3, completed[0].Rows)
}

func TestImportService_ImportFileLookupFailure(t *testing.T) {
	repo := &fakeTicketRepo{}
	svc, dir := newImportService(t, repo, &fakeQueue{}, nil)
	svc.lookups = staticLookups{err: errUpstream}

	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(exportCSV), 0o644))

	_, err := svc.ImportFile(context.Background(), path)
	assert.ErrorIs(t, err, errUpstream)
	assert.Empty(t, repo.saved)
}

func TestImportService_SubmitQueuesFileInsideDir(t *testing.T) {
	q := &fakeQueue{}
	svc, dir := newImportService(t, &fakeTicketRepo{}, q, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.csv"), []byte(exportCSV), 0o644))

	job, err := svc.Submit(context.Background(), "export.csv")
	require.NoError(t, err)
	assert.Equal(t, ImportJobName, job.Name)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, ImportPayload{Path: filepath.Join(dir, "export.csv")}, q.jobs[0].payload)
}

func TestImportService_SubmitRejectsOutsidePaths(t *testing.T) {
	svc, dir := newImportService(t, &fakeTicketRepo{}, &fakeQueue{}, nil)

	for _, name := range []string{"../secrets.csv", "/etc/passwd", ".", filepath.Join(dir, "..", "x.csv")} {
		_, err := svc.Submit(context.Background(), name)
		assert.ErrorIs(t, err, ErrImportPath, name)
	}

	_, err := svc.Submit(context.Background(), "missing.csv")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrImportPath)
}

func TestImportService_ProcessJob(t *testing.T) {
	repo := &fakeTicketRepo{}
	svc, dir := newImportService(t, repo, &fakeQueue{}, nil)
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(exportCSV, ";", ",")), 0o644))

	raw, err := json.Marshal(ImportPayload{Path: path})
	require.NoError(t, err)
	require.NoError(t, svc.Process(context.Background(), queue.Job{ID: "1", Name: ImportJobName, Payload: raw}))
	require.Len(t, repo.saved, 1)
	assert.Len(t, repo.saved[0], 2)
}
