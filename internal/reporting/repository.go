package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the aggregate queries behind the reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesSince sums completed sale transactions created at or after the cutoff.
func (r *Repository) SalesSince(ctx context.Context, since time.Time) (decimal.Decimal, int64, error) {
	var total decimal.Decimal
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0), COUNT(*)
FROM transactions
WHERE txn_type = 'SALE' AND status = 'COMPLETED' AND created_at >= $1`, since).Scan(&total, &count)
	return total, count, err
}

// StockValuation sums on-hand quantity times product cost across the catalog.
// Negative balances subtract, matching their meaning as committed backorders.
func (r *Repository) StockValuation(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(sl.quantity_on_hand * p.cost), 0)
FROM stock_levels sl
JOIN products p ON p.id = sl.product_id`).Scan(&total)
	return total, err
}

// LowStockCount counts products at or below their reorder level.
func (r *Repository) LowStockCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*)
FROM stock_levels sl
WHERE sl.reorder_level > 0 AND sl.quantity_on_hand <= sl.reorder_level`).Scan(&count)
	return count, err
}

// OutstandingCredit sums the unpaid portion of open credit records.
func (r *Repository) OutstandingCredit(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount - paid_amount), 0)
FROM credit_records
WHERE status <> 'PAID'`).Scan(&total)
	return total, err
}

// SalesByDay buckets completed sales per calendar day over the window.
func (r *Repository) SalesByDay(ctx context.Context, from, to time.Time) ([]SalesByDay, error) {
	rows, err := r.pool.Query(ctx, `SELECT date_trunc('day', created_at) AS day, COALESCE(SUM(total), 0), COUNT(*)
FROM transactions
WHERE txn_type = 'SALE' AND status = 'COMPLETED' AND created_at BETWEEN $1 AND $2
GROUP BY day
ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SalesByDay{}
	for rows.Next() {
		var bucket SalesByDay
		if err := rows.Scan(&bucket.Day, &bucket.Total, &bucket.Count); err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}
	return out, rows.Err()
}

// TopProducts ranks products by quantity sold over the window.
func (r *Repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT ti.product_id, ti.product_name, SUM(ti.quantity), COALESCE(SUM(ti.price * ti.quantity - ti.discount), 0)
FROM transaction_items ti
JOIN transactions t ON t.id = ti.transaction_id
WHERE t.txn_type = 'SALE' AND t.status = 'COMPLETED' AND t.created_at BETWEEN $1 AND $2
GROUP BY ti.product_id, ti.product_name
ORDER BY SUM(ti.quantity) DESC
LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TopProduct{}
	for rows.Next() {
		var row TopProduct
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.Quantity, &row.Revenue); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
