package counting

import (
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of a count session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusReconciled SessionStatus = "RECONCILED"
)

// CanTransition reports whether a session may move from s to next.
// RECONCILED is terminal.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case StatusInProgress:
		return next == StatusCompleted || next == StatusReconciled
	case StatusCompleted:
		return next == StatusReconciled
	default:
		return false
	}
}

// Session is a physical inventory count.
type Session struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Status       SessionStatus `json:"status"`
	Notes        string        `json:"notes,omitempty"`
	CreatedBy    int64         `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	ReconciledBy int64         `json:"reconciled_by,omitempty"`
	ReconciledAt *time.Time    `json:"reconciled_at,omitempty"`
	ItemCount    int64         `json:"item_count,omitempty"`
}

// Item is one product line in a session. QuantityInStock is the on-hand
// snapshot taken when the line was added and never changes afterwards;
// Variance is always Physical - QuantityInStock.
type Item struct {
	ID               int64     `json:"id"`
	SessionID        int64     `json:"session_id"`
	ProductID        int64     `json:"product_id"`
	ProductName      string    `json:"product_name"`
	QuantityInStock  int64     `json:"quantity_in_stock"`
	PhysicalQuantity int64     `json:"physical_quantity"`
	Variance         int64     `json:"variance"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ItemUpdate carries one counted quantity in an UpdateItems call.
type ItemUpdate struct {
	ProductID        int64 `json:"product_id"`
	PhysicalQuantity int64 `json:"physical_quantity"`
}

// ReconcileResult summarizes what a reconciliation wrote.
type ReconcileResult struct {
	SessionID      int64 `json:"session_id"`
	ItemsAdjusted  int64 `json:"items_adjusted"`
	ItemsUnchanged int64 `json:"items_unchanged"`
}

var (
	ErrValidation        = errors.New("counting: validation failed")
	ErrSessionNotFound   = errors.New("counting: session not found")
	ErrInvalidState      = errors.New("counting: invalid session state")
	ErrAlreadyReconciled = errors.New("counting: session already reconciled")
	ErrDuplicateItem     = errors.New("counting: product already in session")
)
