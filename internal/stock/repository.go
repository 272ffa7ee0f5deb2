package stock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads stock state from PostgreSQL. All writes go through the
// Mutator inside a caller-owned transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetLevel fetches the level row for one product.
func (r *Repository) GetLevel(ctx context.Context, productID int64) (Level, error) {
	var level Level
	var lastCounted sql.NullTime
	err := r.pool.QueryRow(ctx, `SELECT product_id, quantity_on_hand, quantity_reserved, reorder_level, reorder_quantity, last_counted_at, updated_at
FROM stock_levels WHERE product_id=$1`, productID).
		Scan(&level.ProductID, &level.QuantityOnHand, &level.QuantityReserved, &level.ReorderLevel, &level.ReorderQuantity, &lastCounted, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, ErrLevelNotFound
		}
		return Level{}, err
	}
	if lastCounted.Valid {
		level.LastCountedAt = lastCounted.Time
	}
	return level, nil
}

// OnHand returns the current on-hand quantity, used as the cache loader.
func (r *Repository) OnHand(ctx context.Context, productID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT quantity_on_hand FROM stock_levels WHERE product_id=$1`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLevelNotFound
		}
		return 0, err
	}
	return qty, nil
}

// ListLevels returns all level rows ordered by product.
func (r *Repository) ListLevels(ctx context.Context) ([]Level, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity_on_hand, quantity_reserved, reorder_level, reorder_quantity, last_counted_at, updated_at
FROM stock_levels ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := []Level{}
	for rows.Next() {
		var level Level
		var lastCounted sql.NullTime
		if err := rows.Scan(&level.ProductID, &level.QuantityOnHand, &level.QuantityReserved, &level.ReorderLevel, &level.ReorderQuantity, &lastCounted, &level.UpdatedAt); err != nil {
			return nil, err
		}
		if lastCounted.Valid {
			level.LastCountedAt = lastCounted.Time
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// ListMovements returns the append-only movement history for a product.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, product_name, movement_type, quantity, COALESCE(user_id, 0), notes, created_at
FROM stock_movements
WHERE product_id=$1 AND created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY created_at DESC, id DESC
LIMIT $4`, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Type, &m.Quantity, &m.UserID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListLowStock returns products at or below their reorder level.
func (r *Repository) ListLowStock(ctx context.Context) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.product_id, p.sku, p.name, l.quantity_on_hand, l.reorder_level, l.reorder_quantity
FROM stock_levels l
JOIN products p ON p.id = l.product_id
WHERE l.quantity_on_hand <= l.reorder_level
ORDER BY l.quantity_on_hand ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LowStockItem{}
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.QuantityOnHand, &item.ReorderLevel, &item.ReorderQuantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateReorderPolicy sets reorder thresholds for a product.
func (r *Repository) UpdateReorderPolicy(ctx context.Context, productID, reorderLevel, reorderQuantity int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_levels SET reorder_level=$2, reorder_quantity=$3, updated_at=NOW() WHERE product_id=$1`, productID, reorderLevel, reorderQuantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLevelNotFound
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
