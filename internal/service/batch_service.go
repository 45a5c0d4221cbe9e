package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/events"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
	"github.com/helpdesk-insight/ticket-ingest/internal/repository"
)

// BatchJobName is the queue job carrying a page of changed ticket stubs.
const BatchJobName = "process-batch-tickets"

// BatchPayload is the body of a batch job.
type BatchPayload struct {
	Tickets []domain.TicketStub `json:"tickets"`
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	Tickets  int
	Enriched int
	Failed   int
	Inserted int
	Updated  int
}

// Enricher enriches a batch of stubs.
type Enricher interface {
	EnrichBatch(ctx context.Context, stubs []domain.TicketStub, lookups domain.Lookups) ([]domain.Ticket, []*EnrichError, error)
}

// LookupSource provides lookup snapshots.
type LookupSource interface {
	Snapshot(ctx context.Context) (domain.Lookups, error)
}

// BatchService enriches and persists batch jobs.
type BatchService struct {
	lookups    LookupSource
	enricher   Enricher
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewBatchService creates the service.
func NewBatchService(lookups LookupSource, enricher Enricher, tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger) *BatchService {
	return &BatchService{
		lookups:    lookups,
		enricher:   enricher,
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger.Named("batch"),
	}
}

// Process is the queue handler for BatchJobName. Any returned error makes the
// queue retry the whole batch; the upsert is idempotent so a retry is safe.
func (s *BatchService) Process(ctx context.Context, job queue.Job) error {
	var payload BatchPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	res, err := s.ProcessStubs(ctx, payload.Tickets)
	if err != nil {
		return fmt.Errorf("batch %s: %w", job.ID, err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.New(events.EventBatchProcessed, events.BatchProcessedPayload{
			JobID:    job.ID,
			Tickets:  res.Tickets,
			Enriched: res.Enriched,
			Failed:   res.Failed,
			Inserted: res.Inserted,
			Updated:  res.Updated,
		}))
	}
	return nil
}

// ProcessStubs enriches stubs and writes the successful ones in one upsert.
// Nothing is written unless enrichment of the whole batch completed.
func (s *BatchService) ProcessStubs(ctx context.Context, stubs []domain.TicketStub) (BatchResult, error) {
	res := BatchResult{Tickets: len(stubs)}
	if len(stubs) == 0 {
		return res, nil
	}

	lookups, err := s.lookups.Snapshot(ctx)
	if err != nil {
		return res, err
	}

	tickets, failures, err := s.enricher.EnrichBatch(ctx, stubs, lookups)
	if err != nil {
		return res, fmt.Errorf("enrich: %w", err)
	}
	res.Enriched = len(tickets)
	res.Failed = len(failures)

	res.Inserted, res.Updated, err = s.tickets.SaveBatch(ctx, tickets)
	if err != nil {
		return res, fmt.Errorf("save: %w", err)
	}

	s.logger.Info("batch processed",
		zap.Int("tickets", res.Tickets),
		zap.Int("enriched", res.Enriched),
		zap.Int("failed", res.Failed),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
	)
	return res, nil
}
