package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStockRepo struct {
	levels    map[int64]Level
	movements []Movement
	onHandHit int
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{levels: make(map[int64]Level)}
}

func (r *memoryStockRepo) GetLevel(ctx context.Context, productID int64) (Level, error) {
	level, ok := r.levels[productID]
	if !ok {
		return Level{}, ErrLevelNotFound
	}
	return level, nil
}

func (r *memoryStockRepo) OnHand(ctx context.Context, productID int64) (int64, error) {
	r.onHandHit++
	level, ok := r.levels[productID]
	if !ok {
		return 0, ErrLevelNotFound
	}
	return level.QuantityOnHand, nil
}

func (r *memoryStockRepo) ListLevels(ctx context.Context) ([]Level, error) {
	out := []Level{}
	for _, level := range r.levels {
		out = append(out, level)
	}
	return out, nil
}

func (r *memoryStockRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	out := []Movement{}
	for _, m := range r.movements {
		if m.ProductID != filter.ProductID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryStockRepo) ListLowStock(ctx context.Context) ([]LowStockItem, error) {
	out := []LowStockItem{}
	for id, level := range r.levels {
		if level.ReorderLevel > 0 && level.QuantityOnHand <= level.ReorderLevel {
			out = append(out, LowStockItem{
				ProductID:       id,
				QuantityOnHand:  level.QuantityOnHand,
				ReorderLevel:    level.ReorderLevel,
				ReorderQuantity: level.ReorderQuantity,
			})
		}
	}
	return out, nil
}

func (r *memoryStockRepo) UpdateReorderPolicy(ctx context.Context, productID, reorderLevel, reorderQuantity int64) error {
	level, ok := r.levels[productID]
	if !ok {
		return ErrLevelNotFound
	}
	level.ReorderLevel = reorderLevel
	level.ReorderQuantity = reorderQuantity
	r.levels[productID] = level
	return nil
}

func TestOnHandReadThroughCache(t *testing.T) {
	repo := newMemoryStockRepo()
	repo.levels[10] = Level{ProductID: 10, QuantityOnHand: 17}
	svc := NewService(repo, newTestLevelCache(t))
	ctx := context.Background()

	qty, err := svc.OnHand(ctx, 10)
	require.NoError(t, err)
	require.EqualValues(t, 17, qty)
	require.Equal(t, 1, repo.onHandHit)

	qty, err = svc.OnHand(ctx, 10)
	require.NoError(t, err)
	require.EqualValues(t, 17, qty)
	require.Equal(t, 1, repo.onHandHit)

	svc.Invalidate(ctx, 10)
	_, err = svc.OnHand(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, repo.onHandHit)
}

func TestListMovementsRequiresProduct(t *testing.T) {
	svc := NewService(newMemoryStockRepo(), nil)
	_, err := svc.ListMovements(context.Background(), MovementFilter{})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestListMovementsFiltersByProduct(t *testing.T) {
	repo := newMemoryStockRepo()
	repo.movements = []Movement{
		{ID: 1, ProductID: 10, Type: MovementSale, Quantity: -2, CreatedAt: time.Now()},
		{ID: 2, ProductID: 11, Type: MovementPurchase, Quantity: 5, CreatedAt: time.Now()},
	}
	svc := NewService(repo, nil)

	movements, err := svc.ListMovements(context.Background(), MovementFilter{ProductID: 10})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.EqualValues(t, 1, movements[0].ID)
}

func TestListLowStock(t *testing.T) {
	repo := newMemoryStockRepo()
	repo.levels[10] = Level{ProductID: 10, QuantityOnHand: 2, ReorderLevel: 5, ReorderQuantity: 20}
	repo.levels[11] = Level{ProductID: 11, QuantityOnHand: 50, ReorderLevel: 5}
	repo.levels[12] = Level{ProductID: 12, QuantityOnHand: 0}
	svc := NewService(repo, nil)

	items, err := svc.ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.EqualValues(t, 10, items[0].ProductID)
}

func TestSetReorderPolicy(t *testing.T) {
	repo := newMemoryStockRepo()
	repo.levels[10] = Level{ProductID: 10}
	svc := NewService(repo, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.SetReorderPolicy(ctx, 10, -1, 0), ErrInvalidQuantity)
	require.NoError(t, svc.SetReorderPolicy(ctx, 10, 5, 20))
	require.EqualValues(t, 5, repo.levels[10].ReorderLevel)
	require.EqualValues(t, 20, repo.levels[10].ReorderQuantity)
}

func TestMovementTypeValid(t *testing.T) {
	require.True(t, MovementSale.Valid())
	require.True(t, MovementPurchase.Valid())
	require.True(t, MovementAdjustment.Valid())
	require.False(t, MovementType("SHRINK").Valid())
}
