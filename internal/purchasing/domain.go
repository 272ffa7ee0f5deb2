package purchasing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// POStatus is the lifecycle state of a purchase order.
type POStatus string

const (
	StatusPending   POStatus = "PENDING"
	StatusReceived  POStatus = "RECEIVED"
	StatusCancelled POStatus = "CANCELLED"
)

// CanTransition reports whether an order may move from s to next.
// RECEIVED and CANCELLED are terminal.
func (s POStatus) CanTransition(next POStatus) bool {
	return s == StatusPending && (next == StatusReceived || next == StatusCancelled)
}

// PurchaseOrder is a replenishment order against a supplier.
type PurchaseOrder struct {
	ID          int64               `json:"id"`
	Reference   string              `json:"reference"`
	SupplierID  int64               `json:"supplier_id"`
	Status      POStatus            `json:"status"`
	Total       decimal.Decimal     `json:"total"`
	Notes       string              `json:"notes,omitempty"`
	CreatedBy   int64               `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	ReceivedBy  int64               `json:"received_by,omitempty"`
	ReceivedAt  *time.Time          `json:"received_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	Items       []PurchaseOrderItem `json:"items,omitempty"`
}

// PurchaseOrderItem is one product line on an order. Cost is the unit cost
// agreed with the supplier; on receipt it becomes the product's new cost.
type PurchaseOrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Cost        decimal.Decimal `json:"cost"`
}

// ItemInput is one order line in a create or update request.
type ItemInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
}

// CreateInput is the payload for opening a purchase order.
type CreateInput struct {
	SupplierID int64       `json:"supplier_id"`
	Notes      string      `json:"notes"`
	CreatedBy  int64       `json:"created_by"`
	Items      []ItemInput `json:"items"`
	// ReceiveImmediately posts the receipt in the same call, for walk-in
	// purchases where goods arrive with the invoice.
	ReceiveImmediately bool `json:"receive_immediately"`
}

// UpdateInput replaces a pending order's lines and notes.
type UpdateInput struct {
	Notes string      `json:"notes"`
	Items []ItemInput `json:"items"`
}

// ListFilter narrows ListOrders.
type ListFilter struct {
	Status     POStatus
	SupplierID int64
	Limit      int
}

var (
	ErrValidation       = errors.New("purchasing: validation failed")
	ErrNotFound         = errors.New("purchasing: purchase order not found")
	ErrSupplierNotFound = errors.New("purchasing: supplier not found")
	ErrInvalidState     = errors.New("purchasing: invalid order state")
)
