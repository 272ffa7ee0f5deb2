package stock

import (
	"context"
)

// RepositoryPort abstracts read access for the service.
type RepositoryPort interface {
	GetLevel(ctx context.Context, productID int64) (Level, error)
	OnHand(ctx context.Context, productID int64) (int64, error)
	ListLevels(ctx context.Context) ([]Level, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListLowStock(ctx context.Context) ([]LowStockItem, error)
	UpdateReorderPolicy(ctx context.Context, productID, reorderLevel, reorderQuantity int64) error
}

// Service exposes stock read paths. Mutations happen through the Mutator
// inside the owning module's transaction.
type Service struct {
	repo  RepositoryPort
	cache *LevelCache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *LevelCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// OnHand returns the cached on-hand quantity for a product.
func (s *Service) OnHand(ctx context.Context, productID int64) (int64, error) {
	return s.cache.OnHand(ctx, productID, func(ctx context.Context) (int64, error) {
		return s.repo.OnHand(ctx, productID)
	})
}

// GetLevel returns the full level row.
func (s *Service) GetLevel(ctx context.Context, productID int64) (Level, error) {
	return s.repo.GetLevel(ctx, productID)
}

// ListLevels lists levels for all products.
func (s *Service) ListLevels(ctx context.Context) ([]Level, error) {
	return s.repo.ListLevels(ctx)
}

// ListMovements lists the movement history for a product.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 {
		return nil, ErrProductNotFound
	}
	return s.repo.ListMovements(ctx, filter)
}

// ListLowStock lists products at or below their reorder level.
func (s *Service) ListLowStock(ctx context.Context) ([]LowStockItem, error) {
	return s.repo.ListLowStock(ctx)
}

// SetReorderPolicy updates reorder thresholds for a product.
func (s *Service) SetReorderPolicy(ctx context.Context, productID, reorderLevel, reorderQuantity int64) error {
	if reorderLevel < 0 || reorderQuantity < 0 {
		return ErrInvalidQuantity
	}
	return s.repo.UpdateReorderPolicy(ctx, productID, reorderLevel, reorderQuantity)
}

// Invalidate drops cached quantities after a committed mutation.
func (s *Service) Invalidate(ctx context.Context, productIDs ...int64) {
	s.cache.Invalidate(ctx, productIDs...)
}
