package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

const (
	ticketsTable = "tickets"

	// maxRowsPerStatement keeps a single INSERT under the 65535 bind
	// parameter limit of the wire protocol.
	maxRowsPerStatement = 1000
)

var ticketColumns = []string{
	"ticket_number", "ticket_id", "ticket_subject", "channel", "category",
	"reporter", "assignee", "department", "priority", "last_status",
	"ticket_created", "last_update", "description",
	"customer_name", "customer_phone", "customer_email",
	"first_response_time", "resolve_time", "closed_time",
	"label_in_room", "escalate_ticket", "converse",
	"amount_revenue", "jumlah_msisdn", "tags", "id_remedy_no", "eskalasi_id",
	"reason_osl", "project_id", "nama_perusahaan", "roaming",
	"sub_category", "detail_category", "iot",
	"validation_status", "is_valid_for_reporting", "product", "in_sla", "is_fcr",
	"escalation_type", "is_vip", "is_pareto", "source",
}

var upsertSuffix = buildUpsertSuffix()

func buildUpsertSuffix() string {
	sets := make([]string, 0, len(ticketColumns))
	for _, col := range ticketColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	sets = append(sets, "synced_at = NOW()")
	return "ON CONFLICT (ticket_number) DO UPDATE SET " + strings.Join(sets, ", ") +
		" WHERE " + ticketsTable + ".last_update IS DISTINCT FROM EXCLUDED.last_update" +
		" RETURNING (xmax = 0) AS inserted"
}

// TicketRepository persists canonical tickets.
type TicketRepository interface {
	SaveBatch(ctx context.Context, tickets []domain.Ticket) (inserted, updated int, err error)
	GetLastUpdates(ctx context.Context, ticketNumbers []string) (map[string]time.Time, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

// DedupeTickets keeps one ticket per ticket number; a later position in the
// slice overwrites an earlier one. Tickets without a number are dropped.
// First-seen order of the numbers is preserved.
func DedupeTickets(tickets []domain.Ticket) []domain.Ticket {
	index := make(map[string]int, len(tickets))
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		key := strings.TrimSpace(t.TicketNumber)
		if key == "" {
			continue
		}
		t.TicketNumber = key
		if i, ok := index[key]; ok {
			out[i] = t
			continue
		}
		index[key] = len(out)
		out = append(out, t)
	}
	return out
}

// SaveBatch upserts the batch in a single transaction. Existing rows are only
// rewritten when last_update changed, and only rewritten rows count as updated.
func (r *ticketRepository) SaveBatch(ctx context.Context, tickets []domain.Ticket) (inserted, updated int, err error) {
	rows := DedupeTickets(tickets)
	if len(rows) == 0 {
		return 0, 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin ticket upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for start := 0; start < len(rows); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(rows))
		ins, upd, chunkErr := upsertTickets(ctx, tx, rows[start:end])
		if chunkErr != nil {
			err = chunkErr
			return 0, 0, err
		}
		inserted += ins
		updated += upd
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit ticket upsert: %w", err)
	}
	return inserted, updated, nil
}

func upsertTickets(ctx context.Context, tx pgx.Tx, rows []domain.Ticket) (inserted, updated int, err error) {
	builder := psql.Insert(ticketsTable).Columns(ticketColumns...)
	for i := range rows {
		builder = builder.Values(ticketValues(&rows[i])...)
	}
	query, args, err := builder.Suffix(upsertSuffix).ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build ticket upsert: %w", err)
	}

	result, err := tx.Query(ctx, query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("upsert tickets: %w", err)
	}
	defer result.Close()

	for result.Next() {
		var isInsert bool
		if err := result.Scan(&isInsert); err != nil {
			return 0, 0, fmt.Errorf("scan upsert result: %w", err)
		}
		if isInsert {
			inserted++
		} else {
			updated++
		}
	}
	if err := result.Err(); err != nil {
		return 0, 0, fmt.Errorf("upsert tickets: %w", err)
	}
	return inserted, updated, nil
}

func ticketValues(t *domain.Ticket) []any {
	return []any{
		t.TicketNumber, t.TicketID, t.Subject, t.Channel, t.Category,
		t.Reporter, t.Assignee, t.Department, t.Priority, t.LastStatus,
		t.TicketCreated, t.LastUpdate, t.Description,
		t.CustomerName, t.CustomerPhone, t.CustomerEmail,
		t.FirstResponseTime, t.ResolveTime, t.ClosedTime,
		t.LabelInRoom, t.EscalateTicket, t.Converse,
		t.AmountRevenue, t.MSISDNCount, t.Tags, t.RemedyID, t.EscalationRef,
		t.ReasonCode, t.ProjectID, t.CompanyName, t.Roaming,
		t.SubCategory, t.DetailCategory, t.IOT,
		string(t.ValidationStatus), t.IsValidForReporting, t.Product, t.InSLA, t.IsFCR,
		t.EscalationType, t.IsVIP, t.IsPareto, string(t.Source),
	}
}

// GetLastUpdates returns the stored last_update for exactly the given ticket
// numbers. Numbers without a row, or with a NULL last_update, are absent.
func (r *ticketRepository) GetLastUpdates(ctx context.Context, ticketNumbers []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(ticketNumbers))
	if len(ticketNumbers) == 0 {
		return result, nil
	}

	query, args, err := psql.Select("ticket_number", "last_update").
		From(ticketsTable).
		Where(sq.Eq{"ticket_number": ticketNumbers}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build last update query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query last updates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			number     string
			lastUpdate null.Time
		)
		if err := rows.Scan(&number, &lastUpdate); err != nil {
			return nil, fmt.Errorf("scan last update: %w", err)
		}
		if lastUpdate.Valid {
			result[number] = lastUpdate.Time
		}
	}
	return result, rows.Err()
}
