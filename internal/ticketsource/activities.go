package ticketsource

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

type activityRequest struct {
	TicketID string `json:"ticket_id"`
}

type changePayload struct {
	Name string            `json:"name"`
	From domain.FlexString `json:"from"`
	To   domain.FlexString `json:"to"`
}

type activityPayload struct {
	Timestamp domain.FlexString `json:"timestamp"`
	Object    struct {
		AdditionalInfo struct {
			Changes json.RawMessage `json:"changes"`
		} `json:"additional_info"`
		CreatorInfo struct {
			Name string `json:"name"`
		} `json:"creator_info"`
	} `json:"object"`
}

type activityResponse struct {
	Results []activityPayload `json:"results"`
}

// ListActivities returns the change log of a ticket in API order. Activities
// whose changes are not a list carry no changes. Timestamps that cannot be
// parsed are left zero.
func (c *Client) ListActivities(ctx context.Context, ticketID string) ([]domain.Activity, error) {
	var resp activityResponse
	if err := c.post(ctx, activityPath, activityRequest{TicketID: ticketID}, true, &resp); err != nil {
		return nil, err
	}

	activities := make([]domain.Activity, 0, len(resp.Results))
	for _, p := range resp.Results {
		act := domain.Activity{Actor: p.Object.CreatorInfo.Name}
		if ts, ok := domain.ParseTimestamp(p.Timestamp.String(), time.UTC); ok {
			act.Timestamp = ts
		}
		act.Changes = c.decodeChanges(ticketID, p.Object.AdditionalInfo.Changes)
		activities = append(activities, act)
	}
	return activities, nil
}

func (c *Client) decodeChanges(ticketID string, raw json.RawMessage) []domain.FieldChange {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}

	var changes []json.RawMessage
	if err := json.Unmarshal(raw, &changes); err != nil {
		c.logger.Warn("undecodable activity changes", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil
	}

	out := make([]domain.FieldChange, 0, len(changes))
	for _, item := range changes {
		var ch changePayload
		if err := json.Unmarshal(item, &ch); err != nil || ch.Name == "" {
			continue
		}
		out = append(out, domain.FieldChange{Field: ch.Name, From: ch.From.String(), To: ch.To.String()})
	}
	return out
}
