package adjustments

import (
	"errors"
	"time"
)

// AdjustmentType enumerates the allowed correction reasons.
type AdjustmentType string

const (
	TypeStockCount   AdjustmentType = "STOCK_COUNT"
	TypeDamage       AdjustmentType = "DAMAGE"
	TypeLoss         AdjustmentType = "LOSS"
	TypeReturn       AdjustmentType = "RETURN"
	TypeTransfer     AdjustmentType = "TRANSFER"
	TypeCorrection   AdjustmentType = "CORRECTION"
	TypeOpeningStock AdjustmentType = "OPENING_STOCK"
)

// Valid reports whether the adjustment type is known.
func (t AdjustmentType) Valid() bool {
	switch t {
	case TypeStockCount, TypeDamage, TypeLoss, TypeReturn, TypeTransfer, TypeCorrection, TypeOpeningStock:
		return true
	}
	return false
}

// Adjustment is an immutable record of one manual stock correction.
// Exactly one stock movement accompanies each adjustment.
type Adjustment struct {
	ID              int64
	ProductID       int64
	ProductName     string
	QuantityChange  int64
	Type            AdjustmentType
	Reason          string
	ReferenceNumber string
	CreatedBy       int64
	Notes           string
	CreatedAt       time.Time
}

// PostInput describes an adjustment request.
type PostInput struct {
	ProductID       int64
	QuantityChange  int64
	Type            AdjustmentType
	Reason          string
	ReferenceNumber string
	CreatedBy       int64
	Notes           string
}

// ListFilter narrows adjustment history queries.
type ListFilter struct {
	ProductID int64
	Type      AdjustmentType
	Limit     int
}

var (
	// ErrValidation indicates missing or malformed input. A reason is
	// always required; corrections without one are rejected before any
	// write.
	ErrValidation = errors.New("adjustments: invalid input")
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("adjustments: not found")
)
