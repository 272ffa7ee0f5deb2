package purchasing

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
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates cached stock levels after a commit.
type CachePort interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

// Service drives purchase orders from pending through receipt or
// cancellation.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	levels CachePort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, levels CachePort) *Service {
	return &Service{repo: repo, audit: audit, levels: levels}
}

// CreateOrder opens a purchase order in PENDING. With ReceiveImmediately the
// receipt posts in the same transaction, so stock and costs update atomically
// with the order itself.
func (s *Service) CreateOrder(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if input.SupplierID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier required", ErrValidation)
	}
	if input.CreatedBy == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: user required", ErrValidation)
	}
	total, err := validateItems(input.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}

	now := time.Now().UTC()
	order := PurchaseOrder{
		Reference:  fmt.Sprintf("PO-%s", uuid.NewString()[:8]),
		SupplierID: input.SupplierID,
		Status:     StatusPending,
		Total:      total,
		Notes:      input.Notes,
		CreatedBy:  input.CreatedBy,
		CreatedAt:  now,
	}

	var touched []int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CheckSupplier(ctx, input.SupplierID); err != nil {
			return err
		}
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		order.Items, err = tx.InsertItems(ctx, id, input.Items)
		if err != nil {
			return err
		}
		if input.ReceiveImmediately {
			if err := s.receiveLocked(ctx, tx, &order, input.CreatedBy); err != nil {
				return err
			}
			touched = productIDs(order.Items)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.invalidate(ctx, touched)
	s.recordAudit(ctx, input.CreatedBy, "PO_CREATE", order.ID, map[string]any{
		"reference": order.Reference,
		"total":     order.Total.String(),
		"received":  input.ReceiveImmediately,
	})
	return order, nil
}

// UpdateOrder replaces a pending order's lines. Lines on received or
// cancelled orders are immutable.
func (s *Service) UpdateOrder(ctx context.Context, id int64, input UpdateInput) (PurchaseOrder, error) {
	total, err := validateItems(input.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}

	var order PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusPending {
			return fmt.Errorf("%w: only PENDING orders can be edited", ErrInvalidState)
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		order.Items, err = tx.InsertItems(ctx, id, input.Items)
		if err != nil {
			return err
		}
		order.Total = total
		order.Notes = input.Notes
		return tx.UpdateOrderHeader(ctx, id, total, input.Notes)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

// ReceiveOrder posts the receipt: every line adds stock with a PURCHASE
// movement and sets the product's cost to the line cost. The order row is
// locked first, so a second receive sees RECEIVED and fails without
// touching stock.
func (s *Service) ReceiveOrder(ctx context.Context, id, receivedBy int64) (PurchaseOrder, error) {
	if receivedBy == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: user required", ErrValidation)
	}

	var order PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		order.Items, err = tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		return s.receiveLocked(ctx, tx, &order, receivedBy)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.invalidate(ctx, productIDs(order.Items))
	s.recordAudit(ctx, receivedBy, "PO_RECEIVE", order.ID, map[string]any{"reference": order.Reference})
	return order, nil
}

// CancelOrder closes a pending order without stock effects.
func (s *Service) CancelOrder(ctx context.Context, id, userID int64) (PurchaseOrder, error) {
	var order PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransition(StatusCancelled) {
			return fmt.Errorf("%w: cannot cancel from %s", ErrInvalidState, order.Status)
		}
		order.Status = StatusCancelled
		return tx.MarkCancelled(ctx, id)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordAudit(ctx, userID, "PO_CANCEL", order.ID, map[string]any{"reference": order.Reference})
	return order, nil
}

// GetOrder fetches one order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists order headers.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, filter)
}

// receiveLocked applies the receipt to an order already locked in tx.
func (s *Service) receiveLocked(ctx context.Context, tx TxRepository, order *PurchaseOrder, receivedBy int64) error {
	if !order.Status.CanTransition(StatusReceived) {
		return fmt.Errorf("%w: cannot receive from %s", ErrInvalidState, order.Status)
	}
	for _, item := range order.Items {
		if _, err := tx.ApplyStockDelta(ctx, stock.Delta{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Type:      stock.MovementPurchase,
			UserID:    receivedBy,
			Notes:     fmt.Sprintf("PO %s received", order.Reference),
		}); err != nil {
			return err
		}
		// Latest receipt wins: the line cost replaces the product cost.
		if err := tx.UpdateProductCost(ctx, item.ProductID, item.Cost); err != nil {
			return err
		}
	}
	if err := tx.MarkReceived(ctx, order.ID, receivedBy); err != nil {
		return err
	}
	order.Status = StatusReceived
	order.ReceivedBy = receivedBy
	now := time.Now().UTC()
	order.ReceivedAt = &now
	return nil
}

func validateItems(items []ItemInput) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	total := decimal.Zero
	for _, item := range items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return decimal.Zero, fmt.Errorf("%w: item requires product and positive quantity", ErrValidation)
		}
		if item.Cost.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: item cost must be >= 0", ErrValidation)
		}
		total = total.Add(item.Cost.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total, nil
}

func productIDs(items []PurchaseOrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (s *Service) invalidate(ctx context.Context, ids []int64) {
	if s.levels == nil || len(ids) == 0 {
		return
	}
	s.levels.Invalidate(ctx, ids...)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "purchase_order", EntityID: fmt.Sprintf("%d", orderID), Meta: meta})
}
