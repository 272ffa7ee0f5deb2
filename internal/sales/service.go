package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error)
	GetCreditRecord(ctx context.Context, id int64) (CreditRecord, error)
	ListCreditRecords(ctx context.Context, clientID int64) ([]CreditRecord, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates cached stock levels after a commit.
type CachePort interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

// ServiceConfig groups posting policies.
type ServiceConfig struct {
	// AllowNegativeStock keeps the source system's behavior of letting a
	// sale drive on-hand below zero (negative stock reads as a backorder
	// signal). When false the posting fails with ErrInsufficientStock.
	AllowNegativeStock bool
	// CreditDueDays is the payment term applied to credit sales.
	CreditDueDays int
}

// Service posts transactions atomically: header, items, stock deltas,
// client balance and credit record all commit or roll back together.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	levels   CachePort
	allowNeg bool
	dueDays  int
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, levels CachePort, cfg ServiceConfig) *Service {
	dueDays := cfg.CreditDueDays
	if dueDays <= 0 {
		dueDays = 30
	}
	return &Service{repo: repo, audit: audit, levels: levels, allowNeg: cfg.AllowNegativeStock, dueDays: dueDays}
}

// PostTransaction validates and commits a sale or purchase as one unit.
func (s *Service) PostTransaction(ctx context.Context, input PostTransactionInput) (Transaction, error) {
	if input.Type != TypeSale && input.Type != TypePurchase {
		return Transaction{}, fmt.Errorf("%w: type must be SALE or PURCHASE", ErrValidation)
	}
	if !input.PaymentMethod.Valid() {
		return Transaction{}, fmt.Errorf("%w: unknown payment method", ErrValidation)
	}
	if input.UserID == 0 {
		return Transaction{}, fmt.Errorf("%w: user required", ErrValidation)
	}
	if len(input.Items) == 0 {
		return Transaction{}, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	computed := decimal.Zero
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return Transaction{}, fmt.Errorf("%w: item requires product and positive quantity", ErrValidation)
		}
		if item.Price.IsNegative() || item.Discount.IsNegative() {
			return Transaction{}, fmt.Errorf("%w: item price and discount must be >= 0", ErrValidation)
		}
		line := item.Price.Mul(decimal.NewFromInt(item.Quantity)).Sub(item.Discount)
		computed = computed.Add(line)
	}
	total := input.Total
	if total.IsZero() {
		total = computed
	} else if !total.Equal(computed) {
		return Transaction{}, fmt.Errorf("%w: total does not match items", ErrValidation)
	}

	isCreditSale := input.Type == TypeSale && input.PaymentMethod == PaymentCredit && input.ClientID != 0
	now := time.Now().UTC()
	txn := Transaction{
		Type:          input.Type,
		Total:         total,
		Status:        StatusCompleted,
		PaymentMethod: input.PaymentMethod,
		ClientID:      input.ClientID,
		UserID:        input.UserID,
		Reference:     newReference(input.Type),
		CreatedAt:     now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var newBalance decimal.Decimal
		if isCreditSale {
			credit, err := tx.GetClientCreditForUpdate(ctx, input.ClientID)
			if err != nil {
				return err
			}
			newBalance = credit.Balance.Add(total)
			if newBalance.GreaterThan(credit.Limit) {
				return ErrCreditLimitExceeded
			}
		}

		txnID, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = txnID

		items := make([]TransactionItem, 0, len(input.Items))
		for _, item := range input.Items {
			delta := stock.Delta{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Type:      stock.MovementPurchase,
				UserID:    input.UserID,
				Notes:     fmt.Sprintf("Purchase %s", txn.Reference),
			}
			if input.Type == TypeSale {
				delta.Quantity = -item.Quantity
				delta.Type = stock.MovementSale
				delta.Notes = fmt.Sprintf("Sale %s", txn.Reference)
			}
			applied, err := tx.ApplyStockDelta(ctx, delta)
			if err != nil {
				return err
			}
			if input.Type == TypeSale && !s.allowNeg && applied.OnHandAfter < 0 {
				return ErrInsufficientStock
			}
			items = append(items, TransactionItem{
				TransactionID: txnID,
				ProductID:     item.ProductID,
				ProductName:   applied.Movement.ProductName,
				Quantity:      item.Quantity,
				Price:         item.Price,
				Discount:      item.Discount,
			})
		}
		if err := tx.InsertTransactionItems(ctx, txnID, items); err != nil {
			return err
		}
		txn.Items = items

		if isCreditSale {
			if err := tx.UpdateClientBalance(ctx, input.ClientID, newBalance); err != nil {
				return err
			}
			record := CreditRecord{
				ClientID:      input.ClientID,
				TransactionID: txnID,
				Amount:        total,
				PaidAmount:    decimal.Zero,
				DueDate:       now.AddDate(0, 0, s.dueDays),
				Status:        CreditPending,
				CreatedAt:     now,
			}
			if _, err := tx.InsertCreditRecord(ctx, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	s.invalidateItems(ctx, txn.Items)
	s.recordAudit(ctx, input.UserID, fmt.Sprintf("TXN_%s", txn.Type), txn.ID, map[string]any{
		"reference": txn.Reference,
		"total":     txn.Total.String(),
		"method":    string(txn.PaymentMethod),
	})
	return txn, nil
}

// RecordCreditPayment settles part of a credit record, posting a
// CREDIT_PAYMENT transaction and reducing the client balance atomically.
func (s *Service) RecordCreditPayment(ctx context.Context, input CreditPaymentInput) (Transaction, error) {
	if input.CreditRecordID == 0 {
		return Transaction{}, fmt.Errorf("%w: credit record required", ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	method := input.PaymentMethod
	if method == "" {
		method = PaymentCash
	}
	if method == PaymentCredit || !method.Valid() {
		return Transaction{}, fmt.Errorf("%w: payment method must be CASH or CARD", ErrValidation)
	}
	if input.CreatedBy == 0 {
		return Transaction{}, fmt.Errorf("%w: user required", ErrValidation)
	}

	now := time.Now().UTC()
	txn := Transaction{
		Type:          TypeCreditPayment,
		Total:         input.Amount,
		Status:        StatusCompleted,
		PaymentMethod: method,
		UserID:        input.CreatedBy,
		Reference:     newReference(TypeCreditPayment),
		CreatedAt:     now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := tx.GetCreditRecordForUpdate(ctx, input.CreditRecordID)
		if err != nil {
			return err
		}
		remaining := record.Amount.Sub(record.PaidAmount)
		if input.Amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: amount exceeds outstanding %s", ErrValidation, remaining.StringFixed(2))
		}

		txn.ClientID = record.ClientID
		txnID, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = txnID

		newPaid := record.PaidAmount.Add(input.Amount)
		status := CreditPartial
		if newPaid.GreaterThanOrEqual(record.Amount) {
			status = CreditPaid
		}
		if err := tx.UpdateCreditRecord(ctx, record.ID, newPaid, status); err != nil {
			return err
		}
		if err := tx.InsertCreditPayment(ctx, CreditPayment{
			CreditRecordID: record.ID,
			Amount:         input.Amount,
			TransactionID:  txnID,
			CreatedBy:      input.CreatedBy,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		credit, err := tx.GetClientCreditForUpdate(ctx, record.ClientID)
		if err != nil {
			return err
		}
		return tx.UpdateClientBalance(ctx, record.ClientID, credit.Balance.Sub(input.Amount))
	})
	if err != nil {
		return Transaction{}, err
	}

	s.recordAudit(ctx, input.CreatedBy, "CREDIT_PAYMENT", txn.ID, map[string]any{
		"reference":     txn.Reference,
		"credit_record": input.CreditRecordID,
		"amount":        input.Amount.String(),
	})
	return txn, nil
}

// GetTransaction fetches one transaction with its items.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions lists transaction headers.
func (s *Service) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// ListCreditRecords lists a client's credit records with derived statuses.
func (s *Service) ListCreditRecords(ctx context.Context, clientID int64) ([]CreditRecord, error) {
	if clientID == 0 {
		return nil, fmt.Errorf("%w: client required", ErrValidation)
	}
	records, err := s.repo.ListCreditRecords(ctx, clientID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range records {
		records[i].Status = records[i].EffectiveStatus(now)
	}
	return records, nil
}

func (s *Service) invalidateItems(ctx context.Context, items []TransactionItem) {
	if s.levels == nil {
		return
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	s.levels.Invalidate(ctx, ids...)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "transaction", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func newReference(t TransactionType) string {
	prefix := "TXN"
	switch t {
	case TypePurchase:
		prefix = "PUR"
	case TypeCreditPayment:
		prefix = "PAY"
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}
