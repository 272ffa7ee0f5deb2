package stock

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementSale represents stock leaving through a sale.
	MovementSale MovementType = "SALE"
	// MovementPurchase represents stock entering through a purchase.
	MovementPurchase MovementType = "PURCHASE"
	// MovementAdjustment indicates manual corrections and count variances.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementSale, MovementPurchase, MovementAdjustment:
		return true
	}
	return false
}

// Level is the single source of truth for a product's on-hand quantity.
type Level struct {
	ProductID        int64
	QuantityOnHand   int64
	QuantityReserved int64
	ReorderLevel     int64
	ReorderQuantity  int64
	LastCountedAt    time.Time
	UpdatedAt        time.Time
}

// Movement is one append-only audit row recording a signed quantity change.
// ProductName is snapshotted at write time so renames do not rewrite history.
type Movement struct {
	ID          int64
	ProductID   int64
	ProductName string
	Type        MovementType
	Quantity    int64
	UserID      int64
	Notes       string
	CreatedAt   time.Time
}

// Delta describes one quantity change to apply.
type Delta struct {
	ProductID int64
	Quantity  int64
	Type      MovementType
	UserID    int64
	Notes     string
}

// Applied reports the movement written for a delta and the resulting
// on-hand quantity, so callers can enforce their own floor policies.
type Applied struct {
	Movement    Movement
	OnHandAfter int64
}

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// LowStockItem pairs a level with its product identity for reorder views.
type LowStockItem struct {
	ProductID       int64
	SKU             string
	Name            string
	QuantityOnHand  int64
	ReorderLevel    int64
	ReorderQuantity int64
}

var (
	// ErrProductNotFound indicates the delta references an unknown product.
	ErrProductNotFound = errors.New("stock: product not found")
	// ErrInvalidQuantity indicates a zero delta.
	ErrInvalidQuantity = errors.New("stock: quantity must be non zero")
	// ErrInvalidMovementType indicates an unknown movement type.
	ErrInvalidMovementType = errors.New("stock: invalid movement type")
	// ErrLevelNotFound indicates missing stock level row.
	ErrLevelNotFound = errors.New("stock: level not found")
)
