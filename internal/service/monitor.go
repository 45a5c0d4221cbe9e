package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/events"
	"github.com/helpdesk-insight/ticket-ingest/internal/observability"
)

// Pipeline counter names.
const (
	MetricSyncCycles       = "sync_cycles_total"
	MetricSyncFailures     = "sync_failures_total"
	MetricTicketsFetched   = "tickets_fetched_total"
	MetricTicketsChanged   = "tickets_changed_total"
	MetricTicketsQueued    = "tickets_dispatched_total"
	MetricDuplicateBatches = "batches_duplicate_total"
	MetricBatchesProcessed = "batches_processed_total"
	MetricBatchesFailed    = "batches_failed_total"
	MetricBatchesDead      = "batches_dead_total"
	MetricEnrichFailures   = "tickets_enrich_failed_total"
	MetricTicketsInserted  = "tickets_inserted_total"
	MetricTicketsUpdated   = "tickets_updated_total"
	MetricImportsCompleted = "imports_completed_total"
	MetricImportRows       = "import_rows_total"
)

// Monitor turns pipeline events into log lines and counters.
type Monitor struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewMonitor creates the monitor.
func NewMonitor(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger.Named("monitor"),
	}
}

// RegisterHandlers subscribes to events.
func (m *Monitor) RegisterHandlers() {
	if m.dispatcher == nil {
		return
	}
	m.dispatcher.Subscribe(events.EventSyncCompleted, m.handleSyncCompleted)
	m.dispatcher.Subscribe(events.EventSyncFailed, m.handleSyncFailed)
	m.dispatcher.Subscribe(events.EventBatchProcessed, m.handleBatchProcessed)
	m.dispatcher.Subscribe(events.EventBatchFailed, m.handleBatchFailed)
	m.dispatcher.Subscribe(events.EventTicketFailed, m.handleTicketFailed)
	m.dispatcher.Subscribe(events.EventImportCompleted, m.handleImportCompleted)
}

func (m *Monitor) handleSyncCompleted(_ context.Context, event events.Event) error {
	p, ok := event.Payload.(events.SyncCompletedPayload)
	if !ok {
		return nil
	}
	m.metrics.Add(MetricSyncCycles, 1)
	m.metrics.Add(MetricTicketsFetched, int64(p.Fetched))
	m.metrics.Add(MetricTicketsChanged, int64(p.Changed))
	m.metrics.Add(MetricTicketsQueued, int64(p.Dispatched))
	m.metrics.Add(MetricDuplicateBatches, int64(p.Duplicates))
	return nil
}

func (m *Monitor) handleSyncFailed(_ context.Context, event events.Event) error {
	m.metrics.Add(MetricSyncFailures, 1)
	m.logger.Warn("SyncFailed", zap.Any("payload", event.Payload))
	return nil
}

func (m *Monitor) handleBatchProcessed(_ context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BatchProcessedPayload)
	if !ok {
		return nil
	}
	m.metrics.Add(MetricBatchesProcessed, 1)
	m.metrics.Add(MetricTicketsInserted, int64(p.Inserted))
	m.metrics.Add(MetricTicketsUpdated, int64(p.Updated))
	return nil
}

func (m *Monitor) handleBatchFailed(_ context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BatchFailedPayload)
	if !ok {
		return nil
	}
	m.metrics.Add(MetricBatchesFailed, 1)
	if p.Dead {
		m.metrics.Add(MetricBatchesDead, 1)
		m.logger.Error("BatchDead",
			zap.String("job_id", p.JobID),
			zap.Int("attempts", p.Attempts),
			zap.String("error", p.Error),
		)
	}
	return nil
}

func (m *Monitor) handleTicketFailed(_ context.Context, _ events.Event) error {
	m.metrics.Add(MetricEnrichFailures, 1)
	return nil
}

func (m *Monitor) handleImportCompleted(_ context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ImportCompletedPayload)
	if !ok {
		return nil
	}
	m.metrics.Add(MetricImportsCompleted, 1)
	m.metrics.Add(MetricImportRows, int64(p.Rows))
	m.metrics.Add(MetricTicketsInserted, int64(p.Inserted))
	m.metrics.Add(MetricTicketsUpdated, int64(p.Updated))
	return nil
}
