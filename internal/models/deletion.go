package models

import (
	"math"
	"time"
)

// Severity classifies a deletion event for toast display.
type Severity string

const (
	SeverityDefault Severity = "default"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// DeletionCommand is the inbound batch-delete command.
type DeletionCommand struct {
	IDs  []string `json:"ids"`
	Path string   `json:"path"`
}

// DeletionBatch is an accepted command. It is immutable once submitted.
type DeletionBatch struct {
	ID          string
	IDs         []string
	Path        string
	Token       string
	SubmittedAt time.Time
}

// DeletionProgressEvent reports the progress of a batch after one item or at the end.
type DeletionProgressEvent struct {
	BatchID   string   `json:"batch_id"`
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
	Percent   int      `json:"percent"`
	Failed    int      `json:"failed"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Path      string   `json:"path,omitempty"`
	Terminal  bool     `json:"terminal"`
}

// DeletionEventMessage is the outbound wire shape consumed by the console UI.
type DeletionEventMessage struct {
	Message  string   `json:"message"`
	Variant  Severity `json:"variant"`
	Progress int      `json:"progress"`
	Path     string   `json:"path,omitempty"`
}

// Wire projects the event onto the UI protocol.
func (e DeletionProgressEvent) Wire() DeletionEventMessage {
	return DeletionEventMessage{
		Message:  e.Message,
		Variant:  e.Severity,
		Progress: e.Percent,
		Path:     e.Path,
	}
}

// ProgressPercent returns round(completed/total*100) clamped to 0..100.
func ProgressPercent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// DeletionBatchResponse acknowledges an accepted batch.
type DeletionBatchResponse struct {
	BatchID string `json:"batch_id"`
	Total   int    `json:"total"`
}

// DeletionAuditStatus is the recorded outcome of one item.
type DeletionAuditStatus string

const (
	DeletionAuditDeleted DeletionAuditStatus = "DELETED"
	DeletionAuditFailed  DeletionAuditStatus = "FAILED"
)

// DeletionAuditEntry is a persisted per-item outcome.
type DeletionAuditEntry struct {
	ID         int64               `db:"id" json:"id"`
	BatchID    string              `db:"batch_id" json:"batch_id"`
	DivisionID string              `db:"division_id" json:"division_id"`
	Path       string              `db:"path" json:"path"`
	Status     DeletionAuditStatus `db:"status" json:"status"`
	Message    string              `db:"message" json:"message"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
}
