package ticketsource

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

const dateLayout = "2006-01-02"

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Page is one page of the ticket list.
type Page struct {
	Number  int
	Pages   int
	Tickets []domain.TicketStub
}

// HasMore reports whether another page follows this one.
func (p Page) HasMore() bool {
	return p.Number < p.Pages
}

type rangeValues struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type filterOption struct {
	Key    string      `json:"key"`
	Values rangeValues `json:"values"`
}

type searchOption struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type listRequest struct {
	AgentID       string         `json:"agent_id"`
	Application   string         `json:"application"`
	FilterOptions []filterOption `json:"filterOptions"`
	Limit         int            `json:"limit"`
	Page          int            `json:"page"`
	Search        searchOption   `json:"search"`
	Sort          map[string]int `json:"sort"`
}

type listResponse struct {
	Results struct {
		Data  []domain.TicketStub `json:"data"`
		Pages int                 `json:"pages"`
	} `json:"results"`
}

// ListTickets fetches one page of tickets created inside the window, newest
// first. Pages are 1-based.
func (c *Client) ListTickets(ctx context.Context, window Window, page, limit int) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("invalid page %d", page)
	}

	req := listRequest{
		AgentID:     c.cfg.AgentID,
		Application: c.cfg.ApplicationID,
		FilterOptions: []filterOption{{
			Key: "range_date",
			Values: rangeValues{
				StartDate: window.Start.Format(dateLayout),
				EndDate:   window.End.Format(dateLayout),
			},
		}},
		Limit:  limit,
		Page:   page,
		Search: searchOption{},
		Sort:   map[string]int{"created": -1},
	}

	var resp listResponse
	if err := c.post(ctx, listPath, req, false, &resp); err != nil {
		return Page{}, err
	}

	c.logger.Debug("ticket page fetched",
		zap.Int("page", page),
		zap.Int("pages", resp.Results.Pages),
		zap.Int("tickets", len(resp.Results.Data)),
	)

	return Page{
		Number:  page,
		Pages:   resp.Results.Pages,
		Tickets: resp.Results.Data,
	}, nil
}
