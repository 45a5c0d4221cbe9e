package domain

import "time"

// FieldChange is one field-level delta inside an activity.
type FieldChange struct {
	Field string
	From  string
	To    string
}

// Activity is one entry of a ticket's change log.
type Activity struct {
	Timestamp time.Time
	Actor     string
	Changes   []FieldChange
}
