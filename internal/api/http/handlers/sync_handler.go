package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/api/dto"
	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/service"
	apperrors "github.com/helpdesk-insight/ticket-ingest/pkg/util/errorutil"
)

// SyncRunner is the sync service as seen by the API.
type SyncRunner interface {
	RunCycle(ctx context.Context) (service.CycleResult, error)
	Running() bool
	LastResult() (service.CycleResult, bool)
	LastSync(ctx context.Context) (*domain.SyncCursor, error)
}

// SyncHandler triggers and reports sync cycles.
type SyncHandler struct {
	sync   SyncRunner
	base   context.Context
	logger *zap.Logger

	inflight sync.WaitGroup
}

// NewSyncHandler constructs handler. Cycles started without waiting run
// under base so that shutdown cancels them.
func NewSyncHandler(base context.Context, runner SyncRunner, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{sync: runner, base: base, logger: logger.Named("sync_api")}
}

// Wait blocks until every cycle started in the background has returned.
func (h *SyncHandler) Wait() {
	h.inflight.Wait()
}

// Run POST /sync/run.
func (h *SyncHandler) Run(c *fiber.Ctx) error {
	var req dto.SyncRunRequest
	if err := c.QueryParser(&req); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if h.sync.Running() {
		return apperrors.NewConflict("sync cycle already running", nil)
	}

	if req.Wait {
		res, err := h.sync.RunCycle(c.UserContext())
		if err != nil {
			return mapSyncError(err)
		}
		return c.JSON(fiber.Map{"data": dto.SyncRunResponse{Status: "completed", Result: cycleReply(res)}})
	}

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		if _, err := h.sync.RunCycle(h.base); err != nil && !errors.Is(err, service.ErrCycleRunning) {
			h.logger.Warn("on-demand sync failed", zap.Error(err))
		}
	}()
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.SyncRunResponse{Status: "started"}})
}

// Status GET /sync/status.
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	cursor, err := h.sync.LastSync(c.UserContext())
	if err != nil {
		return err
	}
	resp := dto.SyncStatusResponse{Running: h.sync.Running()}
	if cursor != nil {
		last := cursor.LastSync
		resp.LastSync = &last
	}
	if res, ok := h.sync.LastResult(); ok {
		resp.LastResult = cycleReply(res)
	}
	return c.JSON(fiber.Map{"data": resp})
}

func mapSyncError(err error) error {
	if errors.Is(err, service.ErrCycleRunning) {
		return apperrors.NewConflict("sync cycle already running", nil)
	}
	return apperrors.NewDomainError("SYNC_FAILED", "sync cycle failed", http.StatusBadGateway, map[string]any{"reason": err.Error()})
}

func cycleReply(res service.CycleResult) *dto.SyncCycleReply {
	jobs := res.Jobs
	if jobs == nil {
		jobs = []string{}
	}
	return &dto.SyncCycleReply{
		RunID:        res.RunID,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		PreviousSync: res.PreviousSync,
		Pages:        res.Pages,
		Fetched:      res.Fetched,
		Changed:      res.Changed,
		Dispatched:   res.Dispatched,
		Duplicates:   res.Duplicates,
		Jobs:         jobs,
	}
}
