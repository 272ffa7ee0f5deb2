package adjustments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates cached stock levels after a commit.
type CachePort interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

// Service posts manual stock corrections. The adjustment record and its
// movement commit or roll back together. No magnitude limit applies:
// an adjustment may take stock negative, which reads as an audit signal.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	levels CachePort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, levels CachePort) *Service {
	return &Service{repo: repo, audit: audit, levels: levels}
}

// PostAdjustment validates and commits one adjustment.
func (s *Service) PostAdjustment(ctx context.Context, input PostInput) (Adjustment, error) {
	if input.ProductID == 0 {
		return Adjustment{}, fmt.Errorf("%w: product required", ErrValidation)
	}
	if input.QuantityChange == 0 {
		return Adjustment{}, fmt.Errorf("%w: quantity change must be non zero", ErrValidation)
	}
	if !input.Type.Valid() {
		return Adjustment{}, fmt.Errorf("%w: unknown adjustment type", ErrValidation)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return Adjustment{}, fmt.Errorf("%w: reason required", ErrValidation)
	}
	if input.CreatedBy == 0 {
		return Adjustment{}, fmt.Errorf("%w: user required", ErrValidation)
	}

	adjustment := Adjustment{
		ProductID:       input.ProductID,
		QuantityChange:  input.QuantityChange,
		Type:            input.Type,
		Reason:          input.Reason,
		ReferenceNumber: input.ReferenceNumber,
		CreatedBy:       input.CreatedBy,
		Notes:           input.Notes,
		CreatedAt:       time.Now().UTC(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.ApplyStockDelta(ctx, stock.Delta{
			ProductID: input.ProductID,
			Quantity:  input.QuantityChange,
			Type:      stock.MovementAdjustment,
			UserID:    input.CreatedBy,
			Notes:     fmt.Sprintf("%s: %s", input.Type, input.Reason),
		})
		if err != nil {
			return err
		}
		adjustment.ProductName = applied.Movement.ProductName
		id, err := tx.InsertAdjustment(ctx, adjustment)
		if err != nil {
			return err
		}
		adjustment.ID = id
		return nil
	})
	if err != nil {
		return Adjustment{}, err
	}

	if s.levels != nil {
		s.levels.Invalidate(ctx, input.ProductID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.CreatedBy,
			Action:   "STOCK_ADJUST",
			Entity:   "adjustment",
			EntityID: fmt.Sprintf("%d", adjustment.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"change":     input.QuantityChange,
				"type":       string(input.Type),
			},
		})
	}
	return adjustment, nil
}

// ListAdjustments lists adjustment history.
func (s *Service) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error) {
	return s.repo.ListAdjustments(ctx, filter)
}
