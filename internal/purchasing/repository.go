package purchasing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	CheckSupplier(ctx context.Context, supplierID int64) error
	InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertItems(ctx context.Context, orderID int64, items []ItemInput) ([]PurchaseOrderItem, error)
	DeleteItems(ctx context.Context, orderID int64) error
	ListItems(ctx context.Context, orderID int64) ([]PurchaseOrderItem, error)
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdateOrderHeader(ctx context.Context, id int64, total decimal.Decimal, notes string) error
	MarkReceived(ctx context.Context, id, by int64) error
	MarkCancelled(ctx context.Context, id int64) error
	UpdateProductCost(ctx context.Context, productID int64, cost decimal.Decimal) error
	ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error)
}

// Repository persists purchase orders in PostgreSQL.
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
		return errors.New("purchasing repository not initialised")
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

func (r *txRepository) CheckSupplier(ctx context.Context, supplierID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM suppliers WHERE id=$1`, supplierID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSupplierNotFound
	}
	return err
}

func (r *txRepository) InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (reference, supplier_id, status, total, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		order.Reference, order.SupplierID, string(order.Status), order.Total, order.Notes, order.CreatedBy, order.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItems(ctx context.Context, orderID int64, items []ItemInput) ([]PurchaseOrderItem, error) {
	out := make([]PurchaseOrderItem, 0, len(items))
	for _, item := range items {
		var name string
		err := r.tx.QueryRow(ctx, `SELECT name FROM products WHERE id=$1`, item.ProductID).Scan(&name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, stock.ErrProductNotFound
			}
			return nil, err
		}
		line := PurchaseOrderItem{
			OrderID:     orderID,
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			Cost:        item.Cost,
		}
		err = r.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (order_id, product_id, product_name, quantity, cost)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, line.OrderID, line.ProductID, line.ProductName, line.Quantity, line.Cost).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE order_id=$1`, orderID)
	return err
}

func (r *txRepository) ListItems(ctx context.Context, orderID int64) ([]PurchaseOrderItem, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, order_id, product_id, product_name, quantity, cost
FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx, `SELECT id, reference, supplier_id, status, total, COALESCE(notes,''), created_by, created_at, COALESCE(received_by,0), received_at, cancelled_at
FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return order, nil
}

func (r *txRepository) UpdateOrderHeader(ctx context.Context, id int64, total decimal.Decimal, notes string) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET total=$2, notes=$3 WHERE id=$1`, id, total, notes)
	return err
}

func (r *txRepository) MarkReceived(ctx context.Context, id, by int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$2, received_by=$3, received_at=NOW() WHERE id=$1`,
		id, string(StatusReceived), by)
	return err
}

func (r *txRepository) MarkCancelled(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$2, cancelled_at=NOW() WHERE id=$1`, id, string(StatusCancelled))
	return err
}

func (r *txRepository) UpdateProductCost(ctx context.Context, productID int64, cost decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET cost=$2, updated_at=NOW() WHERE id=$1`, productID, cost)
	return err
}

func (r *txRepository) ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error) {
	return r.mutator.Apply(ctx, r.tx, delta)
}

// GetOrder fetches one order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT id, reference, supplier_id, status, total, COALESCE(notes,''), created_by, created_at, COALESCE(received_by,0), received_at, cancelled_at
FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, product_name, quantity, cost
FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	order.Items, err = collectItems(rows)
	return order, err
}

// ListOrders lists order headers, newest first.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, reference, supplier_id, status, total, COALESCE(notes,''), created_by, created_at, COALESCE(received_by,0), received_at, cancelled_at
FROM purchase_orders
WHERE ($1 = '' OR status = $1)
  AND ($2 = 0 OR supplier_id = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, string(filter.Status), filter.SupplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []PurchaseOrder{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (PurchaseOrder, error) {
	var order PurchaseOrder
	var status string
	err := row.Scan(&order.ID, &order.Reference, &order.SupplierID, &status, &order.Total, &order.Notes,
		&order.CreatedBy, &order.CreatedAt, &order.ReceivedBy, &order.ReceivedAt, &order.CancelledAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Status = POStatus(status)
	return order, nil
}

func collectItems(rows pgx.Rows) ([]PurchaseOrderItem, error) {
	items := []PurchaseOrderItem{}
	for rows.Next() {
		var item PurchaseOrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Cost); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
