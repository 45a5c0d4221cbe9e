package classify

// Field names addressable by rules.
const (
	FieldCustomerEmail  = "customer_email"
	FieldSubject        = "subject"
	FieldChannel        = "channel"
	FieldDepartment     = "department"
	FieldAssignee       = "assignee"
	FieldDescription    = "description"
	FieldCategory       = "category"
	FieldDetailCategory = "detail_category"
	FieldSubCategory    = "sub_category"
	FieldPriority       = "priority"
)

// Input is the view of a ticket the engine works on. Timestamps stay raw so
// that a missing value and an unparseable one can be told apart.
type Input struct {
	Subject        string
	Channel        string
	Department     string
	Assignee       string
	Priority       string
	Description    string
	CustomerEmail  string
	Category       string
	SubCategory    string
	DetailCategory string
	CompanyName    string

	CreatedAt  string
	ResolvedAt string

	RemedyID      string
	EscalationRef string
	MSISDNCount   int
}

// Field returns the value of a named field, or "" for unknown names.
func (in Input) Field(name string) string {
	switch name {
	case FieldCustomerEmail:
		return in.CustomerEmail
	case FieldSubject:
		return in.Subject
	case FieldChannel:
		return in.Channel
	case FieldDepartment:
		return in.Department
	case FieldAssignee:
		return in.Assignee
	case FieldDescription:
		return in.Description
	case FieldCategory:
		return in.Category
	case FieldDetailCategory:
		return in.DetailCategory
	case FieldSubCategory:
		return in.SubCategory
	case FieldPriority:
		return in.Priority
	}
	return ""
}

func knownField(name string) bool {
	switch name {
	case FieldCustomerEmail, FieldSubject, FieldChannel, FieldDepartment, FieldAssignee,
		FieldDescription, FieldCategory, FieldDetailCategory, FieldSubCategory, FieldPriority:
		return true
	}
	return false
}
