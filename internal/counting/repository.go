package counting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	InsertSession(ctx context.Context, name, notes string, createdBy int64) (int64, error)
	SnapshotLevels(ctx context.Context, sessionID int64) (int64, error)
	GetSessionForUpdate(ctx context.Context, id int64) (Session, error)
	UpdateSessionStatus(ctx context.Context, id int64, status SessionStatus, by int64) error
	MarkReconciled(ctx context.Context, id int64, by int64) error
	InsertItem(ctx context.Context, sessionID, productID int64) (Item, error)
	UpdateItemPhysical(ctx context.Context, sessionID, productID, physical int64) error
	ListItemsForUpdate(ctx context.Context, sessionID int64) ([]Item, error)
	ReconcileLevel(ctx context.Context, productID, physical, variance, userID int64, notes string) error
	TouchLastCounted(ctx context.Context, productID int64) error
}

// Repository persists count sessions in PostgreSQL.
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
		return errors.New("counting repository not initialised")
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

func (r *txRepository) InsertSession(ctx context.Context, name, notes string, createdBy int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO count_sessions (name, status, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id`, name, string(StatusInProgress), notes, createdBy).Scan(&id)
	return id, err
}

// SnapshotLevels copies every stock level into the session with a zero
// physical count. The snapshot is the variance baseline for the whole
// session.
func (r *txRepository) SnapshotLevels(ctx context.Context, sessionID int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `INSERT INTO count_items (session_id, product_id, product_name, quantity_in_stock, physical_quantity, variance, updated_at)
SELECT $1, sl.product_id, p.name, sl.quantity_on_hand, 0, -sl.quantity_on_hand, NOW()
FROM stock_levels sl
JOIN products p ON p.id = sl.product_id`, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) GetSessionForUpdate(ctx context.Context, id int64) (Session, error) {
	session, err := scanSession(r.tx.QueryRow(ctx, `SELECT id, name, status, COALESCE(notes,''), created_by, created_at, COALESCE(reconciled_by,0), reconciled_at
FROM count_sessions WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return session, nil
}

func (r *txRepository) UpdateSessionStatus(ctx context.Context, id int64, status SessionStatus, by int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE count_sessions SET status=$2 WHERE id=$1`, id, string(status))
	return err
}

func (r *txRepository) MarkReconciled(ctx context.Context, id int64, by int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE count_sessions SET status=$2, reconciled_by=$3, reconciled_at=NOW() WHERE id=$1`,
		id, string(StatusReconciled), by)
	return err
}

func (r *txRepository) InsertItem(ctx context.Context, sessionID, productID int64) (Item, error) {
	var name string
	var onHand int64
	err := r.tx.QueryRow(ctx, `SELECT p.name, COALESCE(sl.quantity_on_hand, 0)
FROM products p
LEFT JOIN stock_levels sl ON sl.product_id = p.id
WHERE p.id=$1`, productID).Scan(&name, &onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, stock.ErrProductNotFound
		}
		return Item{}, err
	}

	item := Item{
		SessionID:        sessionID,
		ProductID:        productID,
		ProductName:      name,
		QuantityInStock:  onHand,
		PhysicalQuantity: 0,
		Variance:         -onHand,
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO count_items (session_id, product_id, product_name, quantity_in_stock, physical_quantity, variance, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id, updated_at`,
		item.SessionID, item.ProductID, item.ProductName, item.QuantityInStock, item.PhysicalQuantity, item.Variance).
		Scan(&item.ID, &item.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Item{}, ErrDuplicateItem
		}
		return Item{}, err
	}
	return item, nil
}

func (r *txRepository) UpdateItemPhysical(ctx context.Context, sessionID, productID, physical int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE count_items
SET physical_quantity=$3, variance=$3 - quantity_in_stock, updated_at=NOW()
WHERE session_id=$1 AND product_id=$2`, sessionID, productID, physical)
	return err
}

func (r *txRepository) ListItemsForUpdate(ctx context.Context, sessionID int64) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, session_id, product_id, product_name, quantity_in_stock, physical_quantity, variance, updated_at
FROM count_items WHERE session_id=$1 ORDER BY product_id FOR UPDATE`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *txRepository) ReconcileLevel(ctx context.Context, productID, physical, variance, userID int64, notes string) error {
	_, err := r.mutator.ReconcileCount(ctx, r.tx, productID, physical, variance, userID, notes)
	return err
}

func (r *txRepository) TouchLastCounted(ctx context.Context, productID int64) error {
	return r.mutator.TouchLastCounted(ctx, r.tx, productID)
}

// GetSession fetches one session header with its line count.
func (r *Repository) GetSession(ctx context.Context, id int64) (Session, error) {
	session, err := scanSession(r.pool.QueryRow(ctx, `SELECT id, name, status, COALESCE(notes,''), created_by, created_at, COALESCE(reconciled_by,0), reconciled_at
FROM count_sessions WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM count_items WHERE session_id=$1`, id).Scan(&session.ItemCount)
	return session, err
}

// ListSessions lists sessions newest first, optionally by status.
func (r *Repository) ListSessions(ctx context.Context, status SessionStatus) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, status, COALESCE(notes,''), created_by, created_at, COALESCE(reconciled_by,0), reconciled_at
FROM count_sessions
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, id DESC
LIMIT 100`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := []Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ListItems lists a session's lines.
func (r *Repository) ListItems(ctx context.Context, sessionID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, session_id, product_id, product_name, quantity_in_stock, physical_quantity, variance, updated_at
FROM count_items WHERE session_id=$1 ORDER BY product_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var session Session
	var status string
	err := row.Scan(&session.ID, &session.Name, &status, &session.Notes, &session.CreatedBy, &session.CreatedAt, &session.ReconciledBy, &session.ReconciledAt)
	if err != nil {
		return Session{}, err
	}
	session.Status = SessionStatus(status)
	return session, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.SessionID, &item.ProductID, &item.ProductName, &item.QuantityInStock, &item.PhysicalQuantity, &item.Variance, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
