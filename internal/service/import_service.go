package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/classify"
	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/events"
	"github.com/helpdesk-insight/ticket-ingest/internal/importer"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
	"github.com/helpdesk-insight/ticket-ingest/internal/repository"
)

// ImportJobName is the queue job importing one export file.
const ImportJobName = "import-export-file"

const importBatchSize = 1000

// ImportPayload is the body of an import job.
type ImportPayload struct {
	Path string `json:"path"`
}

// ImportResult summarizes one imported file.
type ImportResult struct {
	File     string `json:"file"`
	Rows     int    `json:"rows"`
	Skipped  int    `json:"skipped"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
}

// ImportDependencies bundles collaborators for the import service.
type ImportDependencies struct {
	Engine     *classify.Engine
	Lookups    LookupSource
	Tickets    repository.TicketRepository
	Queue      JobEnqueuer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Location   *time.Location
	Dir        string
}

// ImportService loads ticket exports through the same classification and
// upsert path as the API sync.
type ImportService struct {
	engine     *classify.Engine
	lookups    LookupSource
	tickets    repository.TicketRepository
	queue      JobEnqueuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	location   *time.Location
	dir        string
}

// NewImportService creates the service.
func NewImportService(deps ImportDependencies) *ImportService {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &ImportService{
		engine:     deps.Engine,
		lookups:    deps.Lookups,
		tickets:    deps.Tickets,
		queue:      deps.Queue,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger.Named("import"),
		location:   deps.Location,
		dir:        deps.Dir,
	}
}

// Submit queues an import of a file inside the import directory.
func (s *ImportService) Submit(ctx context.Context, name string) (queue.Job, error) {
	path, err := s.resolve(name)
	if err != nil {
		return queue.Job{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return queue.Job{}, fmt.Errorf("stat import file: %w", err)
	}
	return s.queue.Enqueue(ctx, ImportJobName, "", ImportPayload{Path: path})
}

func (s *ImportService) resolve(name string) (string, error) {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("resolve import dir: %w", err)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrImportPath, name)
	}
	return path, nil
}

// Process is the queue handler for ImportJobName.
func (s *ImportService) Process(ctx context.Context, job queue.Job) error {
	var payload ImportPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	_, err := s.ImportFile(ctx, payload.Path)
	return err
}

// ImportFile classifies every row of an export and upserts them in batches of
// importBatchSize. Rows without a ticket number are skipped.
func (s *ImportService) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	res := ImportResult{File: filepath.Base(path)}

	lookups, err := s.lookups.Snapshot(ctx)
	if err != nil {
		return res, err
	}

	batch := make([]domain.Ticket, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ins, upd, err := s.tickets.SaveBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("save import batch: %w", err)
		}
		res.Inserted += ins
		res.Updated += upd
		batch = batch[:0]
		return nil
	}

	err = importer.ReadFile(path, func(_ int, row importer.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Rows++
		ticket := importer.ToTicket(row, s.location)
		if ticket.TicketNumber == "" {
			res.Skipped++
			return nil
		}
		applyClassification(s.engine, &ticket,
			importer.TimeCell(row.Get(importer.ColTicketCreated), s.location),
			importer.TimeCell(row.Get(importer.ColResolveTime), s.location),
			lookups)
		batch = append(batch, ticket)
		if len(batch) >= importBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("import %s: %w", res.File, err)
	}
	if err := flush(); err != nil {
		return res, err
	}

	s.logger.Info("export imported",
		zap.String("file", res.File),
		zap.Int("rows", res.Rows),
		zap.Int("skipped", res.Skipped),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
	)
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.New(events.EventImportCompleted, events.ImportCompletedPayload{
			File:     res.File,
			Rows:     res.Rows,
			Skipped:  res.Skipped,
			Inserted: res.Inserted,
			Updated:  res.Updated,
		}))
	}
	return res, nil
}
