package models

import "time"

// VoucherRecord is one spreadsheet row, already coerced to text
type VoucherRecord struct {
	OrderID      string `json:"order_id"`
	GuestName    string `json:"guest_name"`
	PropertyName string `json:"property_name"`
	ServiceName  string `json:"service_name"`
	CheckIn      string `json:"check_in"`
	CheckOut     string `json:"check_out"`
	Status       string `json:"status"`
}

// BatchRun is the ledger entry for one batch generation run.
// Only run metadata is stored, never document bytes.
type BatchRun struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"` // uploaded file name or CLI input path
	Total       int               `json:"total"`
	Succeeded   int               `json:"succeeded"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Cancelled   bool              `json:"cancelled"`
	ArchiveSize int64             `json:"archive_size"`
	LogoUsed    bool              `json:"logo_used"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Failures    []BatchRunFailure `json:"failures,omitempty"`
}

// BatchRunFailure records one record that could not be composed
type BatchRunFailure struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id"`
	OrderID   string `json:"order_id"`
	GuestName string `json:"guest_name"`
	Reason    string `json:"reason"`
}

// Batch run status values derived from counters
const (
	RunStatusCompleted      = "COMPLETED"
	RunStatusPartialFailure = "PARTIAL_FAILURE"
	RunStatusFailed         = "FAILED"
	RunStatusCancelled      = "CANCELLED"
)

// Status summarizes the run outcome
func (r *BatchRun) Status() string {
	switch {
	case r.Cancelled:
		return RunStatusCancelled
	case r.Total > 0 && r.Succeeded == 0:
		return RunStatusFailed
	case r.Failed > 0:
		return RunStatusPartialFailure
	default:
		return RunStatusCompleted
	}
}
