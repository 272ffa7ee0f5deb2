package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates economic event kinds.
type TransactionType string

const (
	// TypeSale moves stock out and collects (or defers) payment.
	TypeSale TransactionType = "SALE"
	// TypePurchase moves stock in outside the purchase order flow.
	TypePurchase TransactionType = "PURCHASE"
	// TypeCreditPayment settles part of a client's outstanding balance.
	TypeCreditPayment TransactionType = "CREDIT_PAYMENT"
)

// PaymentMethod enumerates settlement methods.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCredit PaymentMethod = "CREDIT"
	PaymentCard   PaymentMethod = "CARD"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentCard:
		return true
	}
	return false
}

// TransactionStatus enumerates header states.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusPending   TransactionStatus = "PENDING"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is an immutable completed economic event.
type Transaction struct {
	ID            int64
	Type          TransactionType
	Total         decimal.Decimal
	Status        TransactionStatus
	PaymentMethod PaymentMethod
	ClientID      int64
	UserID        int64
	Reference     string
	CreatedAt     time.Time
	Items         []TransactionItem
}

// TransactionItem is one line of a transaction. ProductName is a snapshot
// taken at posting time.
type TransactionItem struct {
	ID            int64
	TransactionID int64
	ProductID     int64
	ProductName   string
	Quantity      int64
	Price         decimal.Decimal
	Discount      decimal.Decimal
}

// CreditStatus enumerates credit record states.
type CreditStatus string

const (
	CreditPending CreditStatus = "PENDING"
	CreditPartial CreditStatus = "PARTIAL"
	CreditPaid    CreditStatus = "PAID"
	CreditOverdue CreditStatus = "OVERDUE"
)

// CreditRecord tracks the amount owed for one credit sale.
type CreditRecord struct {
	ID            int64
	ClientID      int64
	TransactionID int64
	Amount        decimal.Decimal
	PaidAmount    decimal.Decimal
	DueDate       time.Time
	Status        CreditStatus
	CreatedAt     time.Time
}

// EffectiveStatus derives the display status, flagging overdue records.
func (r CreditRecord) EffectiveStatus(now time.Time) CreditStatus {
	if r.Status == CreditPaid {
		return CreditPaid
	}
	if !r.DueDate.IsZero() && now.After(r.DueDate) {
		return CreditOverdue
	}
	return r.Status
}

// CreditPayment is one settlement against a credit record.
type CreditPayment struct {
	ID             int64
	CreditRecordID int64
	Amount         decimal.Decimal
	TransactionID  int64
	CreatedBy      int64
	CreatedAt      time.Time
}

// ClientCredit is the locked credit state of a client during posting.
type ClientCredit struct {
	ClientID int64
	Balance  decimal.Decimal
	Limit    decimal.Decimal
}

// ItemInput describes one requested line.
type ItemInput struct {
	ProductID int64
	Quantity  int64
	Price     decimal.Decimal
	Discount  decimal.Decimal
}

// PostTransactionInput describes a sale or purchase posting.
type PostTransactionInput struct {
	Type          TransactionType
	PaymentMethod PaymentMethod
	ClientID      int64
	UserID        int64
	Items         []ItemInput
	Total         decimal.Decimal
}

// CreditPaymentInput describes a payment against a credit record.
type CreditPaymentInput struct {
	CreditRecordID int64
	Amount         decimal.Decimal
	PaymentMethod  PaymentMethod
	CreatedBy      int64
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	Type     TransactionType
	ClientID int64
	From     time.Time
	To       time.Time
	Limit    int
}

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("sales: invalid input")
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("sales: not found")
	// ErrClientNotFound indicates the referenced client does not exist.
	ErrClientNotFound = errors.New("sales: client not found")
	// ErrCreditLimitExceeded rejects a credit sale that would push the
	// client past their limit. Nothing is written when this fires.
	ErrCreditLimitExceeded = errors.New("sales: credit limit exceeded")
	// ErrInsufficientStock rejects a sale that would drive stock negative
	// when the oversell policy forbids it.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
)
