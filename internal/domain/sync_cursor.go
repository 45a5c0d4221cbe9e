package domain

import "time"

// SyncCursor is the singleton record of the last successful sync cycle.
type SyncCursor struct {
	LastSync time.Time
}
