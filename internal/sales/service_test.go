package sales

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/stock"
)

type memorySalesRepo struct {
	products      map[int64]string
	levels        map[int64]int64
	movements     []stock.Movement
	txns          map[int64]Transaction
	items         map[int64][]TransactionItem
	clients       map[int64]ClientCredit
	creditRecords map[int64]CreditRecord
	payments      []CreditPayment
	nextTxnID     int64
	nextRecordID  int64
	nextMoveID    int64
}

func newMemorySalesRepo() *memorySalesRepo {
	return &memorySalesRepo{
		products:      make(map[int64]string),
		levels:        make(map[int64]int64),
		txns:          make(map[int64]Transaction),
		items:         make(map[int64][]TransactionItem),
		clients:       make(map[int64]ClientCredit),
		creditRecords: make(map[int64]CreditRecord),
	}
}

func (r *memorySalesRepo) snapshot() *memorySalesRepo {
	clone := newMemorySalesRepo()
	for k, v := range r.products {
		clone.products[k] = v
	}
	for k, v := range r.levels {
		clone.levels[k] = v
	}
	clone.movements = append([]stock.Movement(nil), r.movements...)
	for k, v := range r.txns {
		clone.txns[k] = v
	}
	for k, v := range r.items {
		clone.items[k] = append([]TransactionItem(nil), v...)
	}
	for k, v := range r.clients {
		clone.clients[k] = v
	}
	for k, v := range r.creditRecords {
		clone.creditRecords[k] = v
	}
	clone.payments = append([]CreditPayment(nil), r.payments...)
	clone.nextTxnID, clone.nextRecordID, clone.nextMoveID = r.nextTxnID, r.nextRecordID, r.nextMoveID
	return clone
}

func (r *memorySalesRepo) restore(from *memorySalesRepo) {
	*r = *from
}

// WithTx emulates transactional behavior: on error all writes roll back.
func (r *memorySalesRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.restore(before)
		return err
	}
	return nil
}

func (r *memorySalesRepo) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	r.nextTxnID++
	txn.ID = r.nextTxnID
	r.txns[txn.ID] = txn
	return txn.ID, nil
}

func (r *memorySalesRepo) InsertTransactionItems(ctx context.Context, txnID int64, items []TransactionItem) error {
	r.items[txnID] = append([]TransactionItem(nil), items...)
	return nil
}

func (r *memorySalesRepo) GetClientCreditForUpdate(ctx context.Context, clientID int64) (ClientCredit, error) {
	credit, ok := r.clients[clientID]
	if !ok {
		return ClientCredit{}, ErrClientNotFound
	}
	return credit, nil
}

func (r *memorySalesRepo) UpdateClientBalance(ctx context.Context, clientID int64, balance decimal.Decimal) error {
	credit := r.clients[clientID]
	credit.Balance = balance
	r.clients[clientID] = credit
	return nil
}

func (r *memorySalesRepo) InsertCreditRecord(ctx context.Context, record CreditRecord) (int64, error) {
	r.nextRecordID++
	record.ID = r.nextRecordID
	r.creditRecords[record.ID] = record
	return record.ID, nil
}

func (r *memorySalesRepo) GetCreditRecordForUpdate(ctx context.Context, id int64) (CreditRecord, error) {
	record, ok := r.creditRecords[id]
	if !ok {
		return CreditRecord{}, ErrNotFound
	}
	return record, nil
}

func (r *memorySalesRepo) UpdateCreditRecord(ctx context.Context, id int64, paidAmount decimal.Decimal, status CreditStatus) error {
	record := r.creditRecords[id]
	record.PaidAmount = paidAmount
	record.Status = status
	r.creditRecords[id] = record
	return nil
}

func (r *memorySalesRepo) InsertCreditPayment(ctx context.Context, payment CreditPayment) error {
	r.payments = append(r.payments, payment)
	return nil
}

func (r *memorySalesRepo) ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error) {
	name, ok := r.products[delta.ProductID]
	if !ok {
		return stock.Applied{}, stock.ErrProductNotFound
	}
	if delta.Quantity == 0 {
		return stock.Applied{}, stock.ErrInvalidQuantity
	}
	r.levels[delta.ProductID] += delta.Quantity
	r.nextMoveID++
	movement := stock.Movement{
		ID:          r.nextMoveID,
		ProductID:   delta.ProductID,
		ProductName: name,
		Type:        delta.Type,
		Quantity:    delta.Quantity,
		UserID:      delta.UserID,
		Notes:       delta.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	r.movements = append(r.movements, movement)
	return stock.Applied{Movement: movement, OnHandAfter: r.levels[delta.ProductID]}, nil
}

func (r *memorySalesRepo) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	txn, ok := r.txns[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	txn.Items = r.items[id]
	return txn, nil
}

func (r *memorySalesRepo) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	out := []Transaction{}
	for _, txn := range r.txns {
		out = append(out, txn)
	}
	return out, nil
}

func (r *memorySalesRepo) GetCreditRecord(ctx context.Context, id int64) (CreditRecord, error) {
	return r.GetCreditRecordForUpdate(ctx, id)
}

func (r *memorySalesRepo) ListCreditRecords(ctx context.Context, clientID int64) ([]CreditRecord, error) {
	out := []CreditRecord{}
	for _, record := range r.creditRecords {
		if record.ClientID == clientID {
			out = append(out, record)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newSalesService(repo *memorySalesRepo, allowNeg bool) *Service {
	return NewService(repo, nil, nil, ServiceConfig{AllowNegativeStock: allowNeg, CreditDueDays: 30})
}

func TestPostTransactionCashSale(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.products[1] = "Sparkling Water"
	repo.levels[1] = 50
	svc := newSalesService(repo, true)

	txn, err := svc.PostTransaction(context.Background(), PostTransactionInput{
		Type:          TypeSale,
		PaymentMethod: PaymentCash,
		UserID:        7,
		Items:         []ItemInput{{ProductID: 1, Quantity: 8, Price: dec("1.50")}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, txn.Status)
	require.True(t, txn.Total.Equal(dec("12.00")))
	require.EqualValues(t, 42, repo.levels[1])
	require.Len(t, repo.movements, 1)
	require.Equal(t, stock.MovementSale, repo.movements[0].Type)
	require.EqualValues(t, -8, repo.movements[0].Quantity)
	require.Equal(t, "Sparkling Water", txn.Items[0].ProductName)
}

func TestPostTransactionPurchaseAddsStock(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.products[1] = "Cold Brew"
	repo.levels[1] = 10
	svc := newSalesService(repo, true)

	_, err := svc.PostTransaction(context.Background(), PostTransactionInput{
		Type:          TypePurchase,
		PaymentMethod: PaymentCash,
		UserID:        7,
		Items:         []ItemInput{{ProductID: 1, Quantity: 24, Price: dec("1.90")}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 34, repo.levels[1])
	require.Equal(t, stock.MovementPurchase, repo.movements[0].Type)
	require.EqualValues(t, 24, repo.movements[0].Quantity)
}

func TestPostTransactionTotalMismatch(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.products[1] = "Peanuts"
	repo.levels[1] = 10
	svc := newSalesService(repo, true)

	_, err := svc.PostTransaction(context.Background(), PostTransactionInput{
		Type:          TypeSale,
		PaymentMethod: PaymentCash,
		UserID:        7,
		Total:         dec("99.99"),
		Items:         []ItemInput{{ProductID: 1, Quantity: 2, Price: dec("2.10")}},
	})
	require.ErrorIs(t, err, ErrValidation)
	require.EqualValues(t, 10, repo.levels[1])
}

func TestPostTransactionCreditSaleWithinLimit(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.products[1] = "Dish Soap"
	repo.levels[1] = 30
	repo.clients[5] = ClientCredit{ClientID: 5, Balance: dec("100.00"), Limit: dec("150.00")}
	svc := newSalesService(repo, true)

	txn, err := svc.PostTransaction(context.Background(), PostTransactionInput{
		Type:          TypeSale,
		PaymentMethod: PaymentCredit,
		ClientID:      5,
		UserID:        7,
		Items:         []ItemInput{{ProductID: 1, Quantity: 10, Price: dec("3.90")}},
	})
	require.NoError(t, err)
	require.True(t, repo.clients[5].Balance.Equal(dec("139.00")))
	require.Len(t, repo.creditRecords, 1)
	record := repo.creditRecords[1]
	require.Equal(t, CreditPending, record.Status)
	require.True(t, record.Amount.Equal(txn.Total))
	require.True(t, record.PaidAmount.IsZero())
	require.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 30), record.DueDate, time.Minute)
}

func TestPostTransactionCreditLimitExceeded(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.products[1] = "Dish Soap"
	repo.levels[1] = 100
	repo.clients[5] = ClientCredit{ClientID: 5, Balance: dec("100.00"), Limit: dec("150.00")}
	svc := newSalesService(repo, true)

	_, err := svc.PostTransaction(context.Background(), PostTransactionInput{
		Type:          TypeSale,
		PaymentMethod: PaymentCredit,
		ClientID:      5,
		UserID:        7,
		Items:         []ItemInput{{ProductID: 1, Quantity: 20, Price: dec("3.00")}},
	})
	require.ErrorIs(t, err, ErrCreditLimitExceeded)
	require.True(t, repo.clients[5].Balance.Equal(dec("100.00")))
	require.EqualValues(t, 100, repo.levels[1])
	require.Empty(t, repo.movements)
	require.Empty(t, repo.creditRecords)
}

func TestPostTransactionOversellBlocked(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.products[1] = "Chocolate"
	repo.levels[1] = 3
	svc := newSalesService(repo, false)

	_, err := svc.PostTransaction(context.Background(), PostTransactionInput{
		Type:          TypeSale,
		PaymentMethod: PaymentCash,
		UserID:        7,
		Items:         []ItemInput{{ProductID: 1, Quantity: 5, Price: dec("2.80")}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualValues(t, 3, repo.levels[1])
	require.Empty(t, repo.movements)
	require.Empty(t, repo.txns)
}

func TestPostTransactionOversellAllowedByDefault(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.products[1] = "Chocolate"
	repo.levels[1] = 3
	svc := newSalesService(repo, true)

	_, err := svc.PostTransaction(context.Background(), PostTransactionInput{
		Type:          TypeSale,
		PaymentMethod: PaymentCash,
		UserID:        7,
		Items:         []ItemInput{{ProductID: 1, Quantity: 5, Price: dec("2.80")}},
	})
	require.NoError(t, err)
	require.EqualValues(t, -2, repo.levels[1])
}

func TestPostTransactionValidation(t *testing.T) {
	svc := newSalesService(newMemorySalesRepo(), true)
	ctx := context.Background()

	_, err := svc.PostTransaction(ctx, PostTransactionInput{Type: TypeCreditPayment, PaymentMethod: PaymentCash, UserID: 1, Items: []ItemInput{{ProductID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.PostTransaction(ctx, PostTransactionInput{Type: TypeSale, PaymentMethod: "CHECK", UserID: 1, Items: []ItemInput{{ProductID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.PostTransaction(ctx, PostTransactionInput{Type: TypeSale, PaymentMethod: PaymentCash, UserID: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.PostTransaction(ctx, PostTransactionInput{Type: TypeSale, PaymentMethod: PaymentCash, UserID: 1, Items: []ItemInput{{ProductID: 1, Quantity: -1}}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordCreditPaymentPartialThenPaid(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.clients[5] = ClientCredit{ClientID: 5, Balance: dec("80.00"), Limit: dec("200.00")}
	repo.creditRecords[1] = CreditRecord{ID: 1, ClientID: 5, Amount: dec("80.00"), PaidAmount: decimal.Zero, Status: CreditPending, DueDate: time.Now().Add(24 * time.Hour)}
	repo.nextRecordID = 1
	svc := newSalesService(repo, true)
	ctx := context.Background()

	_, err := svc.RecordCreditPayment(ctx, CreditPaymentInput{CreditRecordID: 1, Amount: dec("30.00"), PaymentMethod: PaymentCash, CreatedBy: 7})
	require.NoError(t, err)
	require.Equal(t, CreditPartial, repo.creditRecords[1].Status)
	require.True(t, repo.clients[5].Balance.Equal(dec("50.00")))

	_, err = svc.RecordCreditPayment(ctx, CreditPaymentInput{CreditRecordID: 1, Amount: dec("50.00"), PaymentMethod: PaymentCard, CreatedBy: 7})
	require.NoError(t, err)
	require.Equal(t, CreditPaid, repo.creditRecords[1].Status)
	require.True(t, repo.clients[5].Balance.IsZero())
	require.Len(t, repo.payments, 2)
}

func TestRecordCreditPaymentOverpayRejected(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.clients[5] = ClientCredit{ClientID: 5, Balance: dec("80.00"), Limit: dec("200.00")}
	repo.creditRecords[1] = CreditRecord{ID: 1, ClientID: 5, Amount: dec("80.00"), PaidAmount: dec("60.00"), Status: CreditPartial, DueDate: time.Now().Add(24 * time.Hour)}
	svc := newSalesService(repo, true)

	_, err := svc.RecordCreditPayment(context.Background(), CreditPaymentInput{CreditRecordID: 1, Amount: dec("30.00"), PaymentMethod: PaymentCash, CreatedBy: 7})
	require.ErrorIs(t, err, ErrValidation)
	require.True(t, repo.creditRecords[1].PaidAmount.Equal(dec("60.00")))
}

func TestRecordCreditPaymentRejectsCreditMethod(t *testing.T) {
	svc := newSalesService(newMemorySalesRepo(), true)
	_, err := svc.RecordCreditPayment(context.Background(), CreditPaymentInput{CreditRecordID: 1, Amount: dec("10.00"), PaymentMethod: PaymentCredit, CreatedBy: 7})
	require.ErrorIs(t, err, ErrValidation)
}

func TestListCreditRecordsDerivesOverdue(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.creditRecords[1] = CreditRecord{ID: 1, ClientID: 5, Amount: dec("80.00"), PaidAmount: dec("10.00"), Status: CreditPartial, DueDate: time.Now().Add(-48 * time.Hour)}
	svc := newSalesService(repo, true)

	records, err := svc.ListCreditRecords(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, CreditOverdue, records[0].Status)
}
