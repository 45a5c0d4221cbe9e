package dto

import "time"

// FailedJobsQuery filters GET /jobs/failed.
type FailedJobsQuery struct {
	Limit int `query:"limit" validate:"omitempty,gte=1,lte=500"`
}

// FailedJob is a dead-lettered job.
type FailedJob struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error"`
}
