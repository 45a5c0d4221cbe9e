package dto

// ImportRequest queues an export file that is already in the import directory.
type ImportRequest struct {
	File string `json:"file" validate:"required,max=255"`
}

// JobAccepted acknowledges a queued job.
type JobAccepted struct {
	JobID string `json:"job_id"`
	Name  string `json:"name"`
}
