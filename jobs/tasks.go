package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReorderScan triggers the nightly low-stock scan.
	TaskReorderScan = "stock:reorder_scan"
	// TaskParityAudit triggers the movement-vs-level parity audit.
	TaskParityAudit = "stock:parity_audit"
)

// ScanPayload carries scheduling metadata shared by the periodic scans.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReorderScanTask constructs the reorder scan task.
func NewReorderScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReorderScan, body, asynq.Queue(QueueDefault)), nil
}

// NewParityAuditTask constructs the parity audit task.
func NewParityAuditTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskParityAudit, body, asynq.Queue(QueueDefault)), nil
}
