package service

import (
	"sort"

	"github.com/helpdesk-insight/ticket-ingest/internal/domain"
)

// Custom fields reconstructed from the activity log. The names are the field
// labels used by the ticketing system.
const (
	fieldAmountRevenue  = "Amount Revenue"
	fieldRemedyID       = "ID Remedy_NO"
	fieldMSISDNCount    = "Jumlah MSISDN"
	fieldSubCategory    = "Sub Category"
	fieldCompanyName    = "Nama Perusahaan"
	fieldEscalationRef  = "Eskalasi/ID Remedy_IT/AO/EMS"
	fieldCategory       = "category"
	fieldReporter       = "Reporter"
	fieldTags           = "Tags"
	fieldReasonCode     = "Reason OSL"
	fieldProjectID      = "Project ID"
	fieldRoaming        = "Roaming"
	fieldDetailCategory = "Detail Category"
	fieldIOT            = "IOT"
)

func defaultFieldState() map[string]string {
	return map[string]string{
		fieldAmountRevenue:  "0",
		fieldRemedyID:       "",
		fieldMSISDNCount:    "0",
		fieldSubCategory:    "",
		fieldCompanyName:    "",
		fieldEscalationRef:  "",
		fieldCategory:       "",
		fieldReporter:       "",
		fieldTags:           "",
		fieldReasonCode:     "",
		fieldProjectID:      "",
		fieldRoaming:        "",
		fieldDetailCategory: "",
		fieldIOT:            "",
	}
}

// FieldState is the latest value of every tracked custom field.
type FieldState map[string]string

// Get returns the value of a tracked field.
func (s FieldState) Get(field string) string {
	return s[field]
}

// Reporter returns the creator of the most recent activity that named one.
func (s FieldState) Reporter() string {
	return s[fieldReporter]
}

// Replay applies the change log oldest first and returns the resulting state.
// Changes to untracked fields are ignored. The input is not modified.
func Replay(activities []domain.Activity) FieldState {
	ordered := make([]domain.Activity, len(activities))
	copy(ordered, activities)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	state := FieldState(defaultFieldState())
	for _, act := range ordered {
		for _, ch := range act.Changes {
			if _, tracked := state[ch.Field]; tracked {
				state[ch.Field] = ch.To
			}
		}
		if act.Actor != "" {
			state[fieldReporter] = act.Actor
		}
	}
	return state
}
