package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSyncCompleted   EventType = "sync_completed"
	EventSyncFailed      EventType = "sync_failed"
	EventBatchProcessed  EventType = "batch_processed"
	EventBatchFailed     EventType = "batch_failed"
	EventTicketFailed    EventType = "ticket_enrich_failed"
	EventImportCompleted EventType = "import_completed"
)

// Event represents a pipeline event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SyncCompletedPayload payload.
type SyncCompletedPayload struct {
	RunID      string        `json:"run_id"`
	Pages      int           `json:"pages"`
	Fetched    int           `json:"fetched"`
	Changed    int           `json:"changed"`
	Dispatched int           `json:"dispatched"`
	Duplicates int           `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
}

// SyncFailedPayload payload.
type SyncFailedPayload struct {
	RunID string `json:"run_id"`
	Page  int    `json:"page"`
	Error string `json:"error"`
}

// BatchProcessedPayload payload.
type BatchProcessedPayload struct {
	JobID    string `json:"job_id"`
	Tickets  int    `json:"tickets"`
	Enriched int    `json:"enriched"`
	Failed   int    `json:"failed"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
}

// BatchFailedPayload payload.
type BatchFailedPayload struct {
	JobID    string `json:"job_id"`
	Attempts int    `json:"attempts"`
	Dead     bool   `json:"dead"`
	Error    string `json:"error"`
}

// TicketFailedPayload payload.
type TicketFailedPayload struct {
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	Error        string `json:"error"`
}

// ImportCompletedPayload payload.
type ImportCompletedPayload struct {
	File     string `json:"file"`
	Rows     int    `json:"rows"`
	Skipped  int    `json:"skipped"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
}
