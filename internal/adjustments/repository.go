package adjustments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	InsertAdjustment(ctx context.Context, adjustment Adjustment) (int64, error)
	ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error)
}

// Repository persists adjustments in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	mutator *stock.Mutator
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, mutator *stock.Mutator) *Repository {
	return &Repository{pool: pool, mutator: mutator}
}

type txRepository struct {
	tx      pgx.Tx
	mutator *stock.Mutator
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("adjustments repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx, mutator: r.mutator}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepository) InsertAdjustment(ctx context.Context, adjustment Adjustment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_adjustments (product_id, product_name, quantity_change, adjustment_type, reason, reference_number, created_by, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		adjustment.ProductID, adjustment.ProductName, adjustment.QuantityChange, string(adjustment.Type),
		adjustment.Reason, adjustment.ReferenceNumber, adjustment.CreatedBy, adjustment.Notes, adjustment.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error) {
	return r.mutator.Apply(ctx, r.tx, delta)
}

// ListAdjustments lists adjustment history, newest first.
func (r *Repository) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, product_name, quantity_change, adjustment_type, reason, reference_number, created_by, notes, created_at
FROM stock_adjustments
WHERE ($1 = 0 OR product_id = $1)
  AND ($2 = '' OR adjustment_type = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, filter.ProductID, string(filter.Type), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	adjustments := []Adjustment{}
	for rows.Next() {
		var a Adjustment
		var adjType string
		if err := rows.Scan(&a.ID, &a.ProductID, &a.ProductName, &a.QuantityChange, &adjType, &a.Reason, &a.ReferenceNumber, &a.CreatedBy, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = AdjustmentType(adjType)
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}
