package domain

import (
	"github.com/aarondl/null/v8"
)

// TicketSource records where a canonical ticket came from.
type TicketSource string

const (
	TicketSourceAPI    TicketSource = "api"
	TicketSourceExport TicketSource = "export"
)

// ValidationStatus is the verdict of the validity rulebook.
type ValidationStatus string

const (
	ValidationValid  ValidationStatus = "Valid"
	ValidationDouble ValidationStatus = "Double"
	ValidationEMS    ValidationStatus = "EMS"
	ValidationRPA    ValidationStatus = "RPA"
	ValidationHIA    ValidationStatus = "HIA"
)

// NamedRef is a nested {"name": ...} object in the ticket list payload.
type NamedRef struct {
	Name string `json:"name"`
}

// TicketTimes carries the lifecycle timestamps of the list payload.
type TicketTimes struct {
	FirstExecutedAt FlexString `json:"first_executed_at"`
	ResolvedAt      FlexString `json:"resolved_at"`
}

// TicketStub is a ticket as returned by the list endpoint. It only lives for the
// duration of one sync cycle and is the payload of batch jobs.
type TicketStub struct {
	TicketID     FlexString   `json:"ticket_id"`
	TicketNumber string       `json:"ticket_number"`
	Subject      string       `json:"ticket_subject"`
	Channel      string       `json:"channel"`
	Status       FlexString   `json:"status"`
	Priority     FlexString   `json:"priority"`
	CreatedAt    FlexString   `json:"created_at"`
	UpdatedAt    FlexString   `json:"updated_at"`
	Detail       string       `json:"detail"`
	ClientName   string       `json:"client_name"`
	PhoneNumber  FlexString   `json:"phone_number"`
	Assignee     *NamedRef    `json:"assigned_data,omitempty"`
	Department   *NamedRef    `json:"department_data,omitempty"`
	EscalationTo FlexString   `json:"escalation_to"`
	RoomID       FlexString   `json:"room"`
	Converse     FlexString   `json:"converse"`
	Lifecycle    *TicketTimes `json:"as_ticket,omitempty"`
}

// AssigneeName returns the assignee or the "-" placeholder.
func (s TicketStub) AssigneeName() string {
	if s.Assignee == nil || s.Assignee.Name == "" {
		return "-"
	}
	return s.Assignee.Name
}

// DepartmentName returns the department or the "-" placeholder.
func (s TicketStub) DepartmentName() string {
	if s.Department == nil || s.Department.Name == "" {
		return "-"
	}
	return s.Department.Name
}

// ResolvedAt returns the raw resolution timestamp, empty when the ticket is open.
func (s TicketStub) ResolvedAt() string {
	if s.Lifecycle == nil {
		return ""
	}
	return s.Lifecycle.ResolvedAt.String()
}

// FirstExecutedAt returns the raw first response timestamp.
func (s TicketStub) FirstExecutedAt() string {
	if s.Lifecycle == nil {
		return ""
	}
	return s.Lifecycle.FirstExecutedAt.String()
}

// Ticket is the canonical persisted record. TicketNumber is the natural key.
type Ticket struct {
	TicketNumber string
	TicketID     string
	Subject      string
	Channel      string
	Category     string
	Reporter     string
	Assignee     string
	Department   string
	Priority     string
	LastStatus   string

	TicketCreated null.Time
	LastUpdate    null.Time

	Description   string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	FirstResponseTime null.Time
	ResolveTime       null.Time
	ClosedTime        null.Time

	LabelInRoom    string
	EscalateTicket string
	Converse       string

	AmountRevenue  null.Int64
	MSISDNCount    int
	Tags           string
	RemedyID       string
	EscalationRef  string
	ReasonCode     string
	ProjectID      string
	CompanyName    string
	Roaming        string
	SubCategory    string
	DetailCategory string
	IOT            string

	ValidationStatus    ValidationStatus
	IsValidForReporting bool
	Product             null.String
	InSLA               bool
	IsFCR               bool
	EscalationType      string
	IsVIP               bool
	IsPareto            bool

	Source TicketSource
}
