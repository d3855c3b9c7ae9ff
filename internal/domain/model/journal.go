package model

import (
	"encoding/json"
	"time"
)

// JournalEntry is a completion a worker failed to report.
type JournalEntry struct {
	ID         string          `json:"id"`
	JobID      string          `json:"job_id"`
	Status     JobStatus       `json:"status"`
	Result     json.RawMessage `json:"result"`
	Reason     string          `json:"reason"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// CompleteRequest rebuilds the completion that was originally attempted.
func (e JournalEntry) CompleteRequest() CompleteJobRequest {
	return CompleteJobRequest{Status: e.Status, Result: e.Result}
}

// ReconcileResult summarizes one journal replay.
type ReconcileResult struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}
