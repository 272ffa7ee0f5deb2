package adjustments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/stock"
)

type memoryAdjustmentsRepo struct {
	products    map[int64]string
	levels      map[int64]int64
	movements   []stock.Movement
	adjustments map[int64]Adjustment
	nextID      int64
	nextMoveID  int64
}

func newMemoryAdjustmentsRepo() *memoryAdjustmentsRepo {
	return &memoryAdjustmentsRepo{
		products:    make(map[int64]string),
		levels:      make(map[int64]int64),
		adjustments: make(map[int64]Adjustment),
	}
}

func (r *memoryAdjustmentsRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	levels := make(map[int64]int64, len(r.levels))
	for k, v := range r.levels {
		levels[k] = v
	}
	movements := append([]stock.Movement(nil), r.movements...)
	if err := fn(ctx, r); err != nil {
		r.levels = levels
		r.movements = movements
		return err
	}
	return nil
}

func (r *memoryAdjustmentsRepo) InsertAdjustment(ctx context.Context, adjustment Adjustment) (int64, error) {
	r.nextID++
	adjustment.ID = r.nextID
	r.adjustments[adjustment.ID] = adjustment
	return adjustment.ID, nil
}

func (r *memoryAdjustmentsRepo) ApplyStockDelta(ctx context.Context, delta stock.Delta) (stock.Applied, error) {
	name, ok := r.products[delta.ProductID]
	if !ok {
		return stock.Applied{}, stock.ErrProductNotFound
	}
	r.levels[delta.ProductID] += delta.Quantity
	r.nextMoveID++
	movement := stock.Movement{
		ID:          r.nextMoveID,
		ProductID:   delta.ProductID,
		ProductName: name,
		Type:        delta.Type,
		Quantity:    delta.Quantity,
		UserID:      delta.UserID,
		Notes:       delta.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	r.movements = append(r.movements, movement)
	return stock.Applied{Movement: movement, OnHandAfter: r.levels[delta.ProductID]}, nil
}

func (r *memoryAdjustmentsRepo) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error) {
	out := []Adjustment{}
	for _, a := range r.adjustments {
		if filter.ProductID != 0 && a.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func TestPostAdjustmentAppliesDeltaAndMovement(t *testing.T) {
	repo := newMemoryAdjustmentsRepo()
	repo.products[1] = "Dish Soap"
	repo.levels[1] = 20
	svc := NewService(repo, nil, nil)

	adjustment, err := svc.PostAdjustment(context.Background(), PostInput{
		ProductID:      1,
		QuantityChange: -4,
		Type:           TypeDamage,
		Reason:         "dropped pallet",
		CreatedBy:      3,
	})
	require.NoError(t, err)
	require.EqualValues(t, 16, repo.levels[1])
	require.Equal(t, "Dish Soap", adjustment.ProductName)
	require.Len(t, repo.movements, 1)
	require.Equal(t, stock.MovementAdjustment, repo.movements[0].Type)
	require.EqualValues(t, -4, repo.movements[0].Quantity)
	require.Contains(t, repo.movements[0].Notes, "DAMAGE")
	require.Contains(t, repo.movements[0].Notes, "dropped pallet")
}

func TestPostAdjustmentRequiresReason(t *testing.T) {
	repo := newMemoryAdjustmentsRepo()
	repo.products[1] = "Dish Soap"
	repo.levels[1] = 20
	svc := NewService(repo, nil, nil)

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := svc.PostAdjustment(context.Background(), PostInput{
			ProductID:      1,
			QuantityChange: -4,
			Type:           TypeDamage,
			Reason:         reason,
			CreatedBy:      3,
		})
		require.ErrorIs(t, err, ErrValidation)
	}
	require.EqualValues(t, 20, repo.levels[1])
	require.Empty(t, repo.movements)
}

func TestPostAdjustmentRejectsUnknownType(t *testing.T) {
	repo := newMemoryAdjustmentsRepo()
	repo.products[1] = "Dish Soap"
	svc := NewService(repo, nil, nil)

	_, err := svc.PostAdjustment(context.Background(), PostInput{
		ProductID:      1,
		QuantityChange: 2,
		Type:           "SHRINK",
		Reason:         "quarterly write-off",
		CreatedBy:      3,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPostAdjustmentRejectsZeroChange(t *testing.T) {
	svc := NewService(newMemoryAdjustmentsRepo(), nil, nil)
	_, err := svc.PostAdjustment(context.Background(), PostInput{
		ProductID: 1,
		Type:      TypeCorrection,
		Reason:    "noop",
		CreatedBy: 3,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPostAdjustmentUnknownProductRollsBack(t *testing.T) {
	repo := newMemoryAdjustmentsRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.PostAdjustment(context.Background(), PostInput{
		ProductID:      42,
		QuantityChange: 5,
		Type:           TypeReturn,
		Reason:         "customer return",
		CreatedBy:      3,
	})
	require.ErrorIs(t, err, stock.ErrProductNotFound)
	require.Empty(t, repo.movements)
}

func TestPostAdjustmentMayTakeStockNegative(t *testing.T) {
	repo := newMemoryAdjustmentsRepo()
	repo.products[1] = "Peanuts"
	repo.levels[1] = 2
	svc := NewService(repo, nil, nil)

	_, err := svc.PostAdjustment(context.Background(), PostInput{
		ProductID:      1,
		QuantityChange: -10,
		Type:           TypeLoss,
		Reason:         "theft",
		CreatedBy:      3,
	})
	require.NoError(t, err)
	require.EqualValues(t, -8, repo.levels[1])
}
