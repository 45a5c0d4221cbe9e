package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-insight/ticket-ingest/internal/api/dto"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
	"github.com/helpdesk-insight/ticket-ingest/internal/service"
	apperrors "github.com/helpdesk-insight/ticket-ingest/pkg/util/errorutil"
)

// ImportSubmitter queues export imports.
type ImportSubmitter interface {
	Submit(ctx context.Context, name string) (queue.Job, error)
}

// ImportHandler accepts export import requests.
type ImportHandler struct {
	imports ImportSubmitter
}

// NewImportHandler constructs handler.
func NewImportHandler(imports ImportSubmitter) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Create POST /imports.
func (h *ImportHandler) Create(c *fiber.Ctx) error {
	var req dto.ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if details, ok := dto.Validate(req); !ok {
		return apperrors.NewValidationError("invalid import request", details)
	}

	job, err := h.imports.Submit(c.UserContext(), req.File)
	switch {
	case errors.Is(err, service.ErrImportPath):
		return apperrors.NewValidationError("file must be inside the import directory", map[string]any{"file": req.File})
	case errors.Is(err, fs.ErrNotExist):
		return apperrors.NewNotFound("import file", map[string]any{"file": req.File})
	case err != nil:
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.JobAccepted{JobID: job.ID, Name: job.Name}})
}
