package sales

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	InsertTransaction(ctx context.Context, txn Transaction) (int64, error)
	InsertTransactionItems(ctx context.Context, txnID int64, items []TransactionItem) error
	GetClientCreditForUpdate(ctx context.Context, clientID int64) (ClientCredit, error)
	UpdateClientBalance(ctx context.Context, clientID int64, balance decimal.Decimal) error
	InsertCreditRecord(ctx context.Context, record CreditRecord) (int64, error)
	GetCreditRecordForUpdate(ctx context.Context, id int64) (CreditRecord, error)
	UpdateCreditRecord(ctx context.Context, id int64, paidAmount decimal.Decimal, status CreditStatus) error
	InsertCreditPayment(ctx context.Context, payment CreditPayment) error
	ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error)
}

// Repository persists sales data in PostgreSQL.
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
		return errors.New("sales repository not initialised")
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

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (txn_type, total, status, payment_method, client_id, user_id, reference, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		string(txn.Type), txn.Total, string(txn.Status), string(txn.PaymentMethod), nullInt(txn.ClientID), txn.UserID, txn.Reference, txn.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertTransactionItems(ctx context.Context, txnID int64, items []TransactionItem) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO transaction_items (transaction_id, product_id, product_name, quantity, price, discount)
VALUES ($1,$2,$3,$4,$5,$6)`, txnID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Discount); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetClientCreditForUpdate(ctx context.Context, clientID int64) (ClientCredit, error) {
	var credit ClientCredit
	err := r.tx.QueryRow(ctx, `SELECT id, credit_balance, credit_limit FROM clients WHERE id=$1 FOR UPDATE`, clientID).
		Scan(&credit.ClientID, &credit.Balance, &credit.Limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClientCredit{}, ErrClientNotFound
		}
		return ClientCredit{}, err
	}
	return credit, nil
}

func (r *txRepository) UpdateClientBalance(ctx context.Context, clientID int64, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE clients SET credit_balance=$2, updated_at=NOW() WHERE id=$1`, clientID, balance)
	return err
}

func (r *txRepository) InsertCreditRecord(ctx context.Context, record CreditRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO credit_records (client_id, transaction_id, amount, paid_amount, due_date, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		record.ClientID, record.TransactionID, record.Amount, record.PaidAmount, record.DueDate, string(record.Status), record.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) GetCreditRecordForUpdate(ctx context.Context, id int64) (CreditRecord, error) {
	var record CreditRecord
	var status string
	err := r.tx.QueryRow(ctx, `SELECT id, client_id, transaction_id, amount, paid_amount, due_date, status, created_at
FROM credit_records WHERE id=$1 FOR UPDATE`, id).
		Scan(&record.ID, &record.ClientID, &record.TransactionID, &record.Amount, &record.PaidAmount, &record.DueDate, &status, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditRecord{}, ErrNotFound
		}
		return CreditRecord{}, err
	}
	record.Status = CreditStatus(status)
	return record, nil
}

func (r *txRepository) UpdateCreditRecord(ctx context.Context, id int64, paidAmount decimal.Decimal, status CreditStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE credit_records SET paid_amount=$2, status=$3 WHERE id=$1`, id, paidAmount, string(status))
	return err
}

func (r *txRepository) InsertCreditPayment(ctx context.Context, payment CreditPayment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO credit_payments (credit_record_id, amount, transaction_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5)`, payment.CreditRecordID, payment.Amount, payment.TransactionID, payment.CreatedBy, payment.CreatedAt)
	return err
}

func (r *txRepository) ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error) {
	return r.mutator.Apply(ctx, r.tx, delta)
}

// GetTransaction fetches a transaction with its items.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	var txn Transaction
	var txnType, status, method string
	var clientID *int64
	err := r.pool.QueryRow(ctx, `SELECT id, txn_type, total, status, payment_method, client_id, user_id, reference, created_at
FROM transactions WHERE id=$1`, id).
		Scan(&txn.ID, &txnType, &txn.Total, &status, &method, &clientID, &txn.UserID, &txn.Reference, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	txn.Type = TransactionType(txnType)
	txn.Status = TransactionStatus(status)
	txn.PaymentMethod = PaymentMethod(method)
	if clientID != nil {
		txn.ClientID = *clientID
	}

	rows, err := r.pool.Query(ctx, `SELECT id, transaction_id, product_id, product_name, quantity, price, discount
FROM transaction_items WHERE transaction_id=$1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item TransactionItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Discount); err != nil {
			return Transaction{}, err
		}
		txn.Items = append(txn.Items, item)
	}
	return txn, rows.Err()
}

// ListTransactions lists transaction headers, newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, txn_type, total, status, payment_method, client_id, user_id, reference, created_at
FROM transactions
WHERE ($1 = '' OR txn_type = $1)
  AND ($2 = 0 OR client_id = $2)
  AND created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY created_at DESC, id DESC
LIMIT $5`, string(filter.Type), filter.ClientID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txns := []Transaction{}
	for rows.Next() {
		var txn Transaction
		var txnType, status, method string
		var clientID *int64
		if err := rows.Scan(&txn.ID, &txnType, &txn.Total, &status, &method, &clientID, &txn.UserID, &txn.Reference, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.Type = TransactionType(txnType)
		txn.Status = TransactionStatus(status)
		txn.PaymentMethod = PaymentMethod(method)
		if clientID != nil {
			txn.ClientID = *clientID
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// GetCreditRecord fetches one credit record.
func (r *Repository) GetCreditRecord(ctx context.Context, id int64) (CreditRecord, error) {
	var record CreditRecord
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, client_id, transaction_id, amount, paid_amount, due_date, status, created_at
FROM credit_records WHERE id=$1`, id).
		Scan(&record.ID, &record.ClientID, &record.TransactionID, &record.Amount, &record.PaidAmount, &record.DueDate, &status, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditRecord{}, ErrNotFound
		}
		return CreditRecord{}, err
	}
	record.Status = CreditStatus(status)
	return record, nil
}

// ListCreditRecords lists a client's credit records, newest first.
func (r *Repository) ListCreditRecords(ctx context.Context, clientID int64) ([]CreditRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_id, transaction_id, amount, paid_amount, due_date, status, created_at
FROM credit_records WHERE client_id=$1 ORDER BY created_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []CreditRecord{}
	for rows.Next() {
		var record CreditRecord
		var status string
		if err := rows.Scan(&record.ID, &record.ClientID, &record.TransactionID, &record.Amount, &record.PaidAmount, &record.DueDate, &status, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.Status = CreditStatus(status)
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
