package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helpdesk-insight/ticket-ingest/internal/classify"
	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
	"github.com/helpdesk-insight/ticket-ingest/internal/events"
)

// ActivitySource fetches the change log of one ticket.
type ActivitySource interface {
	ListActivities(ctx context.Context, ticketID string) ([]domain.Activity, error)
}

// EnrichmentService turns ticket stubs into classified canonical tickets.
type EnrichmentService struct {
	source      ActivitySource
	engine      *classify.Engine
	location    *time.Location
	concurrency int
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// EnrichmentDependencies bundles collaborators for the enrichment service.
type EnrichmentDependencies struct {
	Source      ActivitySource
	Engine      *classify.Engine
	Location    *time.Location
	Concurrency int
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewEnrichmentService creates the service.
func NewEnrichmentService(deps EnrichmentDependencies) *EnrichmentService {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	return &EnrichmentService{
		source:      deps.Source,
		engine:      deps.Engine,
		location:    deps.Location,
		concurrency: deps.Concurrency,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger.Named("enrichment"),
	}
}

// Enrich fetches the activity log of a stub, replays it and returns the
// classified canonical ticket. Errors are *EnrichError.
func (s *EnrichmentService) Enrich(ctx context.Context, stub domain.TicketStub, lookups domain.Lookups) (domain.Ticket, error) {
	activities, err := s.source.ListActivities(ctx, stub.TicketID.String())
	if err != nil {
		return domain.Ticket{}, &EnrichError{TicketID: stub.TicketID.String(), TicketNumber: stub.TicketNumber, Err: err}
	}

	ticket := mergeStub(stub, Replay(activities), s.location)
	applyClassification(s.engine, &ticket, stub.CreatedAt.String(), stub.ResolvedAt(), lookups)
	return ticket, nil
}

// EnrichBatch enriches stubs concurrently, at most concurrency at a time.
// Per-ticket failures are logged and returned next to the successful tickets;
// they do not stop siblings. Only cancellation of ctx fails the batch, and then
// no tickets are returned.
func (s *EnrichmentService) EnrichBatch(ctx context.Context, stubs []domain.TicketStub, lookups domain.Lookups) ([]domain.Ticket, []*EnrichError, error) {
	results := make([]*domain.Ticket, len(stubs))
	var (
		mu       sync.Mutex
		failures []*EnrichError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range stubs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ticket, err := s.Enrich(gctx, stubs[i], lookups)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				var enrichErr *EnrichError
				if !errors.As(err, &enrichErr) {
					enrichErr = &EnrichError{TicketID: stubs[i].TicketID.String(), TicketNumber: stubs[i].TicketNumber, Err: err}
				}
				s.reportFailure(gctx, enrichErr)
				mu.Lock()
				failures = append(failures, enrichErr)
				mu.Unlock()
				return nil
			}
			results[i] = &ticket
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	tickets := make([]domain.Ticket, 0, len(stubs))
	for _, t := range results {
		if t != nil {
			tickets = append(tickets, *t)
		}
	}
	return tickets, failures, nil
}

func (s *EnrichmentService) reportFailure(ctx context.Context, failure *EnrichError) {
	s.logger.Warn("ticket enrichment failed",
		zap.String("ticket_id", failure.TicketID),
		zap.String("ticket_number", failure.TicketNumber),
		zap.Error(failure.Err),
	)
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.New(events.EventTicketFailed, events.TicketFailedPayload{
		TicketID:     failure.TicketID,
		TicketNumber: failure.TicketNumber,
		Error:        failure.Err.Error(),
	}))
}

func mergeStub(stub domain.TicketStub, state FieldState, loc *time.Location) domain.Ticket {
	return domain.Ticket{
		TicketNumber: stub.TicketNumber,
		TicketID:     stub.TicketID.String(),
		Subject:      stub.Subject,
		Channel:      stub.Channel,
		Category:     state.Get(fieldCategory),
		Reporter:     state.Reporter(),
		Assignee:     stub.AssigneeName(),
		Department:   stub.DepartmentName(),
		Priority:     stub.Priority.String(),
		LastStatus:   stub.Status.String(),

		TicketCreated: domain.ParseTime(stub.CreatedAt.String(), loc),
		LastUpdate:    domain.ParseTime(stub.UpdatedAt.String(), loc),

		Description:   stub.Detail,
		CustomerName:  stub.ClientName,
		CustomerPhone: stub.PhoneNumber.String(),
		// The list payload carries no separate e-mail; for mail tickets the
		// client name is the sender address.
		CustomerEmail: stub.ClientName,

		FirstResponseTime: domain.ParseTime(stub.FirstExecutedAt(), loc),
		ResolveTime:       domain.ParseTime(stub.ResolvedAt(), loc),
		ClosedTime:        domain.ParseTime(stub.ResolvedAt(), loc),

		LabelInRoom:    stub.RoomID.String(),
		EscalateTicket: stub.EscalationTo.String(),
		Converse:       stub.Converse.String(),

		AmountRevenue:  domain.ParseAmount(state.Get(fieldAmountRevenue)),
		MSISDNCount:    classify.ParseCount(state.Get(fieldMSISDNCount)),
		Tags:           state.Get(fieldTags),
		RemedyID:       state.Get(fieldRemedyID),
		EscalationRef:  state.Get(fieldEscalationRef),
		ReasonCode:     state.Get(fieldReasonCode),
		ProjectID:      state.Get(fieldProjectID),
		CompanyName:    state.Get(fieldCompanyName),
		Roaming:        state.Get(fieldRoaming),
		SubCategory:    state.Get(fieldSubCategory),
		DetailCategory: state.Get(fieldDetailCategory),
		IOT:            state.Get(fieldIOT),

		Source: domain.TicketSourceAPI,
	}
}
