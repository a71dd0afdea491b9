package core

import "time"

// SubmissionStatus summarizes how a submission ended.
type SubmissionStatus string

const (
	StatusAccepted     SubmissionStatus = "accepted"
	StatusRejected     SubmissionStatus = "rejected"
	StatusFailed       SubmissionStatus = "failed"
	StatusNotAdmitted  SubmissionStatus = "not_admitted"
	StatusDryRun       SubmissionStatus = "dry_run"
	StatusEncodeFailed SubmissionStatus = "encode_failed"
)

// Receipt records the outcome of one submission. Document contents are never
// part of a receipt.
type Receipt struct {
	ID          string           `json:"id"`
	DocID       string           `json:"doc_id,omitempty"`
	DocType     string           `json:"doc_type,omitempty"`
	Source      string           `json:"source,omitempty"`
	Status      SubmissionStatus `json:"status"`
	StatusCode  int              `json:"status_code,omitempty"`
	Response    string           `json:"response,omitempty"`
	Error       string           `json:"error,omitempty"`
	Waited      time.Duration    `json:"waited_ns"`
	Duration    time.Duration    `json:"duration_ns"`
	SubmittedAt time.Time        `json:"submitted_at"`
	ToolVersion string           `json:"tool_version,omitempty"`
}

// Success reports whether the remote service accepted the document.
func (r *Receipt) Success() bool {
	return r != nil && r.Status == StatusAccepted
}

// BatchSummary totals a set of receipts.
type BatchSummary struct {
	Total       int           `json:"total"`
	Accepted    int           `json:"accepted"`
	Failed      int           `json:"failed"`
	MaxWaited   time.Duration `json:"max_waited_ns"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Summarize totals receipts, treating anything not accepted as failed.
func Summarize(receipts []*Receipt, now time.Time) BatchSummary {
	summary := BatchSummary{Total: len(receipts), CompletedAt: now}
	for _, r := range receipts {
		if r == nil {
			continue
		}
		if r.Success() {
			summary.Accepted++
		} else if r.Status != StatusDryRun {
			summary.Failed++
		}
		if r.Waited > summary.MaxWaited {
			summary.MaxWaited = r.Waited
		}
	}
	return summary
}
