package service

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleRunning is returned when a sync cycle is requested while another
	// one is in progress.
	ErrCycleRunning = errors.New("sync cycle already running")

	// ErrImportPath is returned for import files outside the import directory.
	ErrImportPath = errors.New("import path not allowed")
)

// EnrichError describes why a single ticket could not be enriched.
type EnrichError struct {
	TicketID     string
	TicketNumber string
	Err          error
}

func (e *EnrichError) Error() string {
	return fmt.Sprintf("enrich ticket %s (%s): %v", e.TicketNumber, e.TicketID, e.Err)
}

func (e *EnrichError) Unwrap() error {
	return e.Err
}
