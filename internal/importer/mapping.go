package importer

import (
	"time"

	"github.com/helpdesk-insight/ticket-ingest/internal/classify"
	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

// Export column headers.
const (
	ColTicketNumber      = "Ticket Number"
	ColTicketSubject     = "Ticket Subject"
	ColChannel           = "Channel"
	ColCategory          = "Category"
	ColReporter          = "Reporter"
	ColAssignee          = "Assignee"
	ColDepartment        = "Department"
	ColPriority          = "Priority"
	ColLastStatus        = "Last Status"
	ColTicketCreated     = "Ticket Created"
	ColLastUpdate        = "Last Update"
	ColDescription       = "Description"
	ColCustomerName      = "Customer Name"
	ColCustomerPhone     = "Customer Phone"
	ColCustomerEmail     = "Customer Email"
	ColFirstResponseTime = "First Response Time"
	ColResolveTime       = "Resolve Time"
	ColClosedTime        = "Closed Time"
	ColLabelInRoom       = "Label In Room"
	ColEscalateTicket    = "Escalate Ticket"
	ColConverse          = "Converse"
	ColAmountRevenue     = "Amount Revenue"
	ColMSISDNCount       = "Jumlah MSISDN"
	ColTags              = "Tags"
	ColRemedyID          = "ID Remedy_NO"
	ColEscalationRef     = "Eskalasi/ID Remedy_IT/AO/EMS"
	ColReasonCode        = "Reason OSL"
	ColProjectID         = "Project ID"
	ColCompanyName       = "Nama Perusahaan"
	ColRoaming           = "Roaming"
	ColSubCategory       = "Sub Category"
	ColDetailCategory    = "Detail Category"
	ColIOT               = "IOT"
)

// ToTicket maps an export row onto an unclassified canonical ticket.
func ToTicket(row Row, loc *time.Location) domain.Ticket {
	return domain.Ticket{
		TicketNumber: row.Get(ColTicketNumber),
		Subject:      row.Get(ColTicketSubject),
		Channel:      row.Get(ColChannel),
		Category:     row.Get(ColCategory),
		Reporter:     row.Get(ColReporter),
		Assignee:     row.Get(ColAssignee),
		Department:   row.Get(ColDepartment),
		Priority:     row.Get(ColPriority),
		LastStatus:   row.Get(ColLastStatus),

		TicketCreated: domain.ParseExportTime(row.Get(ColTicketCreated), loc),
		LastUpdate:    domain.ParseExportTime(row.Get(ColLastUpdate), loc),

		Description:   row.Get(ColDescription),
		CustomerName:  row.Get(ColCustomerName),
		CustomerPhone: row.Get(ColCustomerPhone),
		CustomerEmail: row.Get(ColCustomerEmail),

		FirstResponseTime: domain.ParseExportTime(row.Get(ColFirstResponseTime), loc),
		ResolveTime:       domain.ParseExportTime(row.Get(ColResolveTime), loc),
		ClosedTime:        domain.ParseExportTime(row.Get(ColClosedTime), loc),

		LabelInRoom:    row.Get(ColLabelInRoom),
		EscalateTicket: row.Get(ColEscalateTicket),
		Converse:       row.Get(ColConverse),

		AmountRevenue:  domain.ParseAmount(row.Get(ColAmountRevenue)),
		MSISDNCount:    classify.ParseCount(row.Get(ColMSISDNCount)),
		Tags:           row.Get(ColTags),
		RemedyID:       row.Get(ColRemedyID),
		EscalationRef:  row.Get(ColEscalationRef),
		ReasonCode:     row.Get(ColReasonCode),
		ProjectID:      row.Get(ColProjectID),
		CompanyName:    row.Get(ColCompanyName),
		Roaming:        row.Get(ColRoaming),
		SubCategory:    row.Get(ColSubCategory),
		DetailCategory: row.Get(ColDetailCategory),
		IOT:            row.Get(ColIOT),

		Source: domain.TicketSourceExport,
	}
}

// TimeCell rewrites a parseable date cell as RFC 3339 so serial dates reach
// the classifier as timestamps. Anything else is returned unchanged.
func TimeCell(raw string, loc *time.Location) string {
	if t, ok := domain.ParseExportTimestamp(raw, loc); ok {
		return t.Format(time.RFC3339)
	}
	return raw
}
