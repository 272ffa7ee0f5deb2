package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNewReorderScanTask(t *testing.T) {
	at := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)
	task, err := NewReorderScanTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskReorderScan, task.Type())

	var payload ScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.ScheduledFor.Equal(at))
}

func TestNewParityAuditTask(t *testing.T) {
	task, err := NewParityAuditTask(time.Now())
	require.NoError(t, err)
	require.Equal(t, TaskParityAudit, task.Type())
}

func TestReorderScanHandleBadPayloadSkipsRetry(t *testing.T) {
	scanner := NewReorderScanner(nil, nil, nil)
	task := asynq.NewTask(TaskReorderScan, []byte("{not json"))
	err := scanner.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestParityAuditHandleBadPayloadSkipsRetry(t *testing.T) {
	auditor := NewParityAuditor(nil, nil, nil)
	task := asynq.NewTask(TaskParityAudit, []byte("{not json"))
	err := auditor.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
