package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-insight/ticket-ingest/internal/api/dto"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
	apperrors "github.com/helpdesk-insight/ticket-ingest/pkg/util/errorutil"
)

// QueueInspector exposes queue state to operators.
type QueueInspector interface {
	Failed(ctx context.Context, limit int) ([]queue.Job, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// JobsHandler reports queue state.
type JobsHandler struct {
	queue QueueInspector
}

// NewJobsHandler constructs handler.
func NewJobsHandler(q QueueInspector) *JobsHandler {
	return &JobsHandler{queue: q}
}

// Failed GET /jobs/failed.
func (h *JobsHandler) Failed(c *fiber.Ctx) error {
	var query dto.FailedJobsQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if details, ok := dto.Validate(query); !ok {
		return apperrors.NewValidationError("invalid query", details)
	}

	jobs, err := h.queue.Failed(c.UserContext(), query.Limit)
	if err != nil {
		return err
	}
	items := make([]dto.FailedJob, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, dto.FailedJob{
			ID:         j.ID,
			Name:       j.Name,
			Attempts:   j.Attempts,
			EnqueuedAt: j.EnqueuedAt,
			LastError:  j.LastError,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /queue/stats.
func (h *JobsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.queue.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
