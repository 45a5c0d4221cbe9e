package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

func at(hour int) time.Time {
	return time.Date(2025, 1, 1, hour, 0, 0, 0, time.UTC)
}

func TestReplay_OldestFirstAndTrackedOnly(t *testing.T) {
	activities := []domain.Activity{
		{Timestamp: at(5), Actor: "Sari", Changes: []domain.FieldChange{{Field: fieldSubCategory, To: "Tagihan"}}},
		{Timestamp: at(1), Actor: "Budi", Changes: []domain.FieldChange{
			{Field: fieldSubCategory, To: "Internet Lambat"},
			{Field: fieldMSISDNCount, To: "3"},
			{Field: "Untracked", To: "x"},
		}},
		{Timestamp: at(3), Changes: []domain.FieldChange{{Field: fieldTags, To: "vip"}}},
	}

	state := Replay(activities)
	assert.Equal(t, "Tagihan", state.Get(fieldSubCategory))
	assert.Equal(t, "3", state.Get(fieldMSISDNCount))
	assert.Equal(t, "vip", state.Get(fieldTags))
	assert.Equal(t, "0", state.Get(fieldAmountRevenue))
	assert.Equal(t, "Sari", state.Reporter())
	assert.Equal(t, "", state.Get("Untracked"))

	assert.Equal(t, at(5), activities[0].Timestamp, "input order untouched")
}

func TestReplay_EqualTimestampsKeepApiOrder(t *testing.T) {
	state := Replay([]domain.Activity{
		{Timestamp: at(2), Changes: []domain.FieldChange{{Field: fieldRoaming, To: "Yes"}}},
		{Timestamp: at(2), Changes: []domain.FieldChange{{Field: fieldRoaming, To: "No"}}},
	})
	assert.Equal(t, "No", state.Get(fieldRoaming))
}

func newEnricher(t *testing.T, source ActivitySource, concurrency int) *EnrichmentService {
	return NewEnrichmentService(EnrichmentDependencies{
		Source:      source,
		Engine:      testEngine(t),
		Location:    time.UTC,
		Concurrency: concurrency,
		Logger:      zap.NewNop(),
	})
}

func stub(id, number string) domain.TicketStub {
	return domain.TicketStub{
		TicketID:     domain.FlexString(id),
		TicketNumber: number,
		Subject:      "VIP escalation",
		Channel:      "Email",
		Status:       "closed",
		CreatedAt:    "2025-01-01T00:00:00Z",
		UpdatedAt:    "2025-01-01T02:00:00Z",
		ClientName:   "customer@example.com",
		Lifecycle:    &domain.TicketTimes{ResolvedAt: "2025-01-01T02:00:00Z"},
	}
}

func TestEnrich_EndToEnd(t *testing.T) {
	source := &fakeActivities{byTicket: map[string][]domain.Activity{
		"1": {{
			Timestamp: at(1),
			Actor:     "Budi",
			Changes: []domain.FieldChange{
				{Field: fieldSubCategory, To: "Internet Lambat"},
				{Field: fieldMSISDNCount, To: "1"},
				{Field: fieldCompanyName, To: "PT Maju Jaya"},
				{Field: fieldAmountRevenue, To: "1500000"},
			},
		}},
	}}
	enricher := newEnricher(t, source, 4)

	ticket, err := enricher.Enrich(context.Background(), stub("1", "T-1"), testLookups())
	require.NoError(t, err)

	assert.Equal(t, "T-1", ticket.TicketNumber)
	assert.Equal(t, "Budi", ticket.Reporter)
	assert.Equal(t, "-", ticket.Assignee)
	assert.Equal(t, domain.ValidationValid, ticket.ValidationStatus)
	assert.True(t, ticket.IsValidForReporting)
	assert.Equal(t, "connectivity", ticket.Product.String)
	assert.True(t, ticket.IsVIP)
	assert.True(t, ticket.InSLA)
	assert.True(t, ticket.IsFCR)
	assert.Equal(t, "", ticket.EscalationType)
	assert.True(t, ticket.IsPareto)
	assert.Equal(t, int64(1500000), ticket.AmountRevenue.Int64)
	assert.Equal(t, at(2), ticket.LastUpdate.Time)
	assert.Equal(t, domain.TicketSourceAPI, ticket.Source)

	late := stub("1", "T-1")
	late.Lifecycle.ResolvedAt = "2025-01-01T05:00:00Z"
	ticket, err = enricher.Enrich(context.Background(), late, testLookups())
	require.NoError(t, err)
	assert.False(t, ticket.InSLA)
}

func TestEnrich_OpenTicketIsInSLA(t *testing.T) {
	enricher := newEnricher(t, &fakeActivities{}, 1)
	open := stub("1", "T-1")
	open.Lifecycle = nil

	ticket, err := enricher.Enrich(context.Background(), open, testLookups())
	require.NoError(t, err)
	assert.True(t, ticket.InSLA)
	assert.False(t, ticket.Product.Valid)
	assert.False(t, ticket.ResolveTime.Valid)
}

func TestEnrichBatch_IsolatesFailures(t *testing.T) {
	source := &fakeActivities{failing: map[string]error{"2": errUpstream}}
	enricher := newEnricher(t, source, 2)

	tickets, failures, err := enricher.EnrichBatch(context.Background(),
		[]domain.TicketStub{stub("1", "T-1"), stub("2", "T-2"), stub("3", "T-3")}, testLookups())
	require.NoError(t, err)

	require.Len(t, tickets, 2)
	assert.Equal(t, "T-1", tickets[0].TicketNumber)
	assert.Equal(t, "T-3", tickets[1].TicketNumber)

	require.Len(t, failures, 1)
	assert.Equal(t, "T-2", failures[0].TicketNumber)
	assert.True(t, errors.Is(failures[0], errUpstream))
}

func TestEnrichBatch_BoundedConcurrency(t *testing.T) {
	source := &fakeActivities{delay: 10 * time.Millisecond}
	enricher := newEnricher(t, source, 3)

	stubs := make([]domain.TicketStub, 12)
	for i := range stubs {
		stubs[i] = stub(string(rune('a'+i)), "T-"+string(rune('a'+i)))
	}
	tickets, failures, err := enricher.EnrichBatch(context.Background(), stubs, testLookups())
	require.NoError(t, err)
	assert.Len(t, tickets, 12)
	assert.Empty(t, failures)
	assert.LessOrEqual(t, source.maxSeen, 3)
}

func TestEnrichBatch_CancelledReturnsNothing(t *testing.T) {
	source := &fakeActivities{delay: time.Second}
	enricher := newEnricher(t, source, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tickets, failures, err := enricher.EnrichBatch(ctx, []domain.TicketStub{stub("1", "T-1"), stub("2", "T-2")}, testLookups())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, tickets)
	assert.Nil(t, failures)
}
