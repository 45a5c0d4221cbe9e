package dto

import "time"

// SyncRunRequest controls an on-demand sync cycle.
type SyncRunRequest struct {
	Wait bool `query:"wait"`
}

// SyncRunResponse is returned by POST /sync/run.
type SyncRunResponse struct {
	Status string          `json:"status"`
	Result *SyncCycleReply `json:"result,omitempty"`
}

// SyncCycleReply describes one finished cycle.
type SyncCycleReply struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
	PreviousSync *time.Time `json:"previous_sync,omitempty"`
	Pages        int        `json:"pages"`
	Fetched      int        `json:"fetched"`
	Changed      int        `json:"changed"`
	Dispatched   int        `json:"dispatched"`
	Duplicates   int        `json:"duplicates"`
	Jobs         []string   `json:"jobs"`
}

// SyncStatusResponse is returned by GET /sync/status.
type SyncStatusResponse struct {
	Running    bool            `json:"running"`
	LastSync   *time.Time      `json:"last_sync"`
	LastResult *SyncCycleReply `json:"last_result,omitempty"`
}
