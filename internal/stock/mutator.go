package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Mutator is the single primitive through which stock quantities change.
// Every Apply writes exactly one movement row alongside the level update,
// inside the transaction owned by the caller. Mutator never begins or
// commits a transaction itself and does not enforce a quantity floor;
// callers inspect Applied.OnHandAfter for their own policies.
type Mutator struct{}

// NewMutator constructs a Mutator.
func NewMutator() *Mutator {
	return &Mutator{}
}

// Apply locks the product's level row, applies the signed delta and appends
// the movement record. A missing level row is created with the delta as the
// initial quantity.
func (m *Mutator) Apply(ctx context.Context, tx pgx.Tx, d Delta) (Applied, error) {
	if d.Quantity == 0 {
		return Applied{}, ErrInvalidQuantity
	}
	if !d.Type.Valid() {
		return Applied{}, ErrInvalidMovementType
	}

	var productName string
	err := tx.QueryRow(ctx, `SELECT name FROM products WHERE id=$1`, d.ProductID).Scan(&productName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Applied{}, ErrProductNotFound
		}
		return Applied{}, err
	}

	var onHand int64
	err = tx.QueryRow(ctx, `SELECT quantity_on_hand FROM stock_levels WHERE product_id=$1 FOR UPDATE`, d.ProductID).Scan(&onHand)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		onHand = d.Quantity
		if _, err := tx.Exec(ctx, `INSERT INTO stock_levels (product_id, quantity_on_hand, updated_at) VALUES ($1, $2, NOW())`, d.ProductID, onHand); err != nil {
			return Applied{}, err
		}
	case err != nil:
		return Applied{}, err
	default:
		onHand += d.Quantity
		if _, err := tx.Exec(ctx, `UPDATE stock_levels SET quantity_on_hand=$2, updated_at=NOW() WHERE product_id=$1`, d.ProductID, onHand); err != nil {
			return Applied{}, err
		}
	}

	now := time.Now().UTC()
	movement := Movement{
		ProductID:   d.ProductID,
		ProductName: productName,
		Type:        d.Type,
		Quantity:    d.Quantity,
		UserID:      d.UserID,
		Notes:       d.Notes,
		CreatedAt:   now,
	}
	err = tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, product_name, movement_type, quantity, user_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`, movement.ProductID, movement.ProductName, string(movement.Type), movement.Quantity, nullInt(movement.UserID), movement.Notes, movement.CreatedAt).Scan(&movement.ID)
	if err != nil {
		return Applied{}, err
	}

	return Applied{Movement: movement, OnHandAfter: onHand}, nil
}

// ReconcileCount sets the level to the physically counted quantity, stamps
// last_counted_at and appends one adjustment movement carrying the count
// variance. The movement quantity is the variance against the session
// snapshot, which is the audited figure even if live stock moved during
// the count.
func (m *Mutator) ReconcileCount(ctx context.Context, tx pgx.Tx, productID, countedQty, variance, userID int64, notes string) (Movement, error) {
	if variance == 0 {
		return Movement{}, ErrInvalidQuantity
	}

	var productName string
	err := tx.QueryRow(ctx, `SELECT name FROM products WHERE id=$1`, productID).Scan(&productName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrProductNotFound
		}
		return Movement{}, err
	}

	var onHand int64
	err = tx.QueryRow(ctx, `SELECT quantity_on_hand FROM stock_levels WHERE product_id=$1 FOR UPDATE`, productID).Scan(&onHand)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `INSERT INTO stock_levels (product_id, quantity_on_hand, last_counted_at, updated_at) VALUES ($1, $2, NOW(), NOW())`, productID, countedQty); err != nil {
			return Movement{}, err
		}
	case err != nil:
		return Movement{}, err
	default:
		if _, err := tx.Exec(ctx, `UPDATE stock_levels SET quantity_on_hand=$2, last_counted_at=NOW(), updated_at=NOW() WHERE product_id=$1`, productID, countedQty); err != nil {
			return Movement{}, err
		}
	}

	movement := Movement{
		ProductID:   productID,
		ProductName: productName,
		Type:        MovementAdjustment,
		Quantity:    variance,
		UserID:      userID,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
	err = tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, product_name, movement_type, quantity, user_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`, movement.ProductID, movement.ProductName, string(movement.Type), movement.Quantity, nullInt(movement.UserID), movement.Notes, movement.CreatedAt).Scan(&movement.ID)
	if err != nil {
		return Movement{}, err
	}
	return movement, nil
}

// TouchLastCounted refreshes last_counted_at without recording a movement,
// used for zero-variance count items.
func (m *Mutator) TouchLastCounted(ctx context.Context, tx pgx.Tx, productID int64) error {
	_, err := tx.Exec(ctx, `UPDATE stock_levels SET last_counted_at=NOW() WHERE product_id=$1`, productID)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
