package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-pos/meridian-pos/internal/jobs"
)

// ReorderScanner raises one alert per product per day for every product at
// or below its reorder level. The unique index on (product_id, alert_date)
// makes re-runs idempotent.
type ReorderScanner struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewReorderScanner constructs the scanner.
func NewReorderScanner(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanner {
	return &ReorderScanner{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes one reorder scan task.
func (s *ReorderScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("reorder_scan")
	return tracker.End(s.Run(ctx))
}

// Run executes the scan directly, outside the queue.
func (s *ReorderScanner) Run(ctx context.Context) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `INSERT INTO reorder_alerts (product_id, product_name, quantity_on_hand, reorder_level, alert_date, created_at)
SELECT sl.product_id, p.name, sl.quantity_on_hand, sl.reorder_level, CURRENT_DATE, NOW()
FROM stock_levels sl
JOIN products p ON p.id = sl.product_id
WHERE sl.reorder_level > 0 AND sl.quantity_on_hand <= sl.reorder_level
ON CONFLICT (product_id, alert_date) DO NOTHING`)
	if err != nil {
		s.logger.Error("reorder scan failed", slog.Any("error", err))
		return err
	}
	raised := int(tag.RowsAffected())
	s.metrics.AddReorderAlerts(raised)
	s.logger.Info("reorder scan finished",
		slog.Int("alerts_raised", raised),
		slog.Duration("took", time.Since(start)))
	return nil
}
