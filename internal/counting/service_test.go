package counting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/stock"
)

type memoryCountingRepo struct {
	products    map[int64]string
	levels      map[int64]int64
	lastCounted map[int64]time.Time
	movements   []stock.Movement
	sessions    map[int64]Session
	items       map[int64]map[int64]Item
	nextSession int64
	nextItem    int64
	nextMoveID  int64
}

func newMemoryCountingRepo() *memoryCountingRepo {
	return &memoryCountingRepo{
		products:    make(map[int64]string),
		levels:      make(map[int64]int64),
		lastCounted: make(map[int64]time.Time),
		sessions:    make(map[int64]Session),
		items:       make(map[int64]map[int64]Item),
	}
}

func (r *memoryCountingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryCountingRepo) InsertSession(ctx context.Context, name, notes string, createdBy int64) (int64, error) {
	r.nextSession++
	r.sessions[r.nextSession] = Session{
		ID:        r.nextSession,
		Name:      name,
		Status:    StatusInProgress,
		Notes:     notes,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	r.items[r.nextSession] = make(map[int64]Item)
	return r.nextSession, nil
}

func (r *memoryCountingRepo) SnapshotLevels(ctx context.Context, sessionID int64) (int64, error) {
	var count int64
	for productID, onHand := range r.levels {
		r.nextItem++
		r.items[sessionID][productID] = Item{
			ID:              r.nextItem,
			SessionID:       sessionID,
			ProductID:       productID,
			ProductName:     r.products[productID],
			QuantityInStock: onHand,
			Variance:        -onHand,
		}
		count++
	}
	return count, nil
}

func (r *memoryCountingRepo) GetSessionForUpdate(ctx context.Context, id int64) (Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (r *memoryCountingRepo) UpdateSessionStatus(ctx context.Context, id int64, status SessionStatus, by int64) error {
	session := r.sessions[id]
	session.Status = status
	r.sessions[id] = session
	return nil
}

func (r *memoryCountingRepo) MarkReconciled(ctx context.Context, id int64, by int64) error {
	session := r.sessions[id]
	session.Status = StatusReconciled
	session.ReconciledBy = by
	now := time.Now().UTC()
	session.ReconciledAt = &now
	r.sessions[id] = session
	return nil
}

func (r *memoryCountingRepo) InsertItem(ctx context.Context, sessionID, productID int64) (Item, error) {
	name, ok := r.products[productID]
	if !ok {
		return Item{}, stock.ErrProductNotFound
	}
	if _, exists := r.items[sessionID][productID]; exists {
		return Item{}, ErrDuplicateItem
	}
	r.nextItem++
	item := Item{
		ID:              r.nextItem,
		SessionID:       sessionID,
		ProductID:       productID,
		ProductName:     name,
		QuantityInStock: r.levels[productID],
		Variance:        -r.levels[productID],
	}
	r.items[sessionID][productID] = item
	return item, nil
}

func (r *memoryCountingRepo) UpdateItemPhysical(ctx context.Context, sessionID, productID, physical int64) error {
	item, ok := r.items[sessionID][productID]
	if !ok {
		return nil
	}
	item.PhysicalQuantity = physical
	item.Variance = physical - item.QuantityInStock
	r.items[sessionID][productID] = item
	return nil
}

func (r *memoryCountingRepo) ListItemsForUpdate(ctx context.Context, sessionID int64) ([]Item, error) {
	out := []Item{}
	for _, item := range r.items[sessionID] {
		out = append(out, item)
	}
	return out, nil
}

func (r *memoryCountingRepo) ReconcileLevel(ctx context.Context, productID, physical, variance, userID int64, notes string) error {
	r.levels[productID] = physical
	r.lastCounted[productID] = time.Now().UTC()
	r.nextMoveID++
	r.movements = append(r.movements, stock.Movement{
		ID:          r.nextMoveID,
		ProductID:   productID,
		ProductName: r.products[productID],
		Type:        stock.MovementAdjustment,
		Quantity:    variance,
		UserID:      userID,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

func (r *memoryCountingRepo) TouchLastCounted(ctx context.Context, productID int64) error {
	r.lastCounted[productID] = time.Now().UTC()
	return nil
}

func (r *memoryCountingRepo) GetSession(ctx context.Context, id int64) (Session, error) {
	return r.GetSessionForUpdate(ctx, id)
}

func (r *memoryCountingRepo) ListSessions(ctx context.Context, status SessionStatus) ([]Session, error) {
	out := []Session{}
	for _, session := range r.sessions {
		if status != "" && session.Status != status {
			continue
		}
		out = append(out, session)
	}
	return out, nil
}

func (r *memoryCountingRepo) ListItems(ctx context.Context, sessionID int64) ([]Item, error) {
	return r.ListItemsForUpdate(ctx, sessionID)
}

func TestStartSessionSnapshotsLevels(t *testing.T) {
	repo := newMemoryCountingRepo()
	repo.products[1] = "Water"
	repo.products[2] = "Coffee"
	repo.levels[1] = 50
	repo.levels[2] = 12
	svc := NewService(repo, nil, nil)

	session, err := svc.StartSession(context.Background(), "August count", "pre-audit", 3)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, session.Status)
	require.Equal(t, "pre-audit", session.Notes)
	require.EqualValues(t, 2, session.ItemCount)

	item := repo.items[session.ID][1]
	require.EqualValues(t, 50, item.QuantityInStock)
	require.EqualValues(t, 0, item.PhysicalQuantity)
	require.EqualValues(t, -50, item.Variance)
}

func TestUpdateItemsRecomputesVariance(t *testing.T) {
	repo := newMemoryCountingRepo()
	repo.products[1] = "Water"
	repo.levels[1] = 50
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "count", "", 3)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateItems(ctx, session.ID, []ItemUpdate{{ProductID: 1, PhysicalQuantity: 42}}))
	require.EqualValues(t, -8, repo.items[session.ID][1].Variance)

	// A re-count replaces the previous figure instead of accumulating.
	require.NoError(t, svc.UpdateItems(ctx, session.ID, []ItemUpdate{{ProductID: 1, PhysicalQuantity: 55}}))
	require.EqualValues(t, 5, repo.items[session.ID][1].Variance)
	require.EqualValues(t, 50, repo.items[session.ID][1].QuantityInStock)
}

func TestAddItemDuplicateRejected(t *testing.T) {
	repo := newMemoryCountingRepo()
	repo.products[1] = "Water"
	repo.levels[1] = 50
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "count", "", 3)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, session.ID, 1)
	require.ErrorIs(t, err, ErrDuplicateItem)
}

func TestReconcileAppliesVarianceOnce(t *testing.T) {
	repo := newMemoryCountingRepo()
	repo.products[1] = "Water"
	repo.products[2] = "Coffee"
	repo.levels[1] = 50
	repo.levels[2] = 12
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "count", "", 3)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateItems(ctx, session.ID, []ItemUpdate{
		{ProductID: 1, PhysicalQuantity: 42},
		{ProductID: 2, PhysicalQuantity: 12},
	}))

	result, err := svc.Reconcile(ctx, session.ID, 9)
	require.NoError(t, err)
	require.EqualValues(t, 1, result.ItemsAdjusted)
	require.EqualValues(t, 1, result.ItemsUnchanged)

	require.EqualValues(t, 42, repo.levels[1])
	require.EqualValues(t, 12, repo.levels[2])
	require.Len(t, repo.movements, 1)
	require.EqualValues(t, -8, repo.movements[0].Quantity)
	require.Equal(t, stock.MovementAdjustment, repo.movements[0].Type)
	// The movement belongs to the user who ran the count, not the
	// reconciling actor.
	require.EqualValues(t, 3, repo.movements[0].UserID)
	require.False(t, repo.lastCounted[1].IsZero())
	require.False(t, repo.lastCounted[2].IsZero())
	require.Equal(t, StatusReconciled, repo.sessions[session.ID].Status)

	// A second reconcile must fail without touching stock again.
	_, err = svc.Reconcile(ctx, session.ID, 9)
	require.ErrorIs(t, err, ErrAlreadyReconciled)
	require.Len(t, repo.movements, 1)
	require.EqualValues(t, 42, repo.levels[1])
}

func TestUpdateItemsAfterReconcileRejected(t *testing.T) {
	repo := newMemoryCountingRepo()
	repo.products[1] = "Water"
	repo.levels[1] = 50
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "count", "", 3)
	require.NoError(t, err)
	_, err = svc.Reconcile(ctx, session.ID, 9)
	require.NoError(t, err)

	err = svc.UpdateItems(ctx, session.ID, []ItemUpdate{{ProductID: 1, PhysicalQuantity: 10}})
	require.ErrorIs(t, err, ErrAlreadyReconciled)
}

func TestCompleteThenReconcile(t *testing.T) {
	repo := newMemoryCountingRepo()
	repo.products[1] = "Water"
	repo.levels[1] = 50
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "count", "", 3)
	require.NoError(t, err)

	completed, err := svc.CompleteSession(ctx, session.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)

	_, err = svc.CompleteSession(ctx, session.ID, 3)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Reconcile(ctx, session.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusReconciled, repo.sessions[session.ID].Status)
}

func TestSessionStatusTransitions(t *testing.T) {
	require.True(t, StatusInProgress.CanTransition(StatusCompleted))
	require.True(t, StatusInProgress.CanTransition(StatusReconciled))
	require.True(t, StatusCompleted.CanTransition(StatusReconciled))
	require.False(t, StatusCompleted.CanTransition(StatusInProgress))
	require.False(t, StatusReconciled.CanTransition(StatusCompleted))
	require.False(t, StatusReconciled.CanTransition(StatusInProgress))
}

func TestStartSessionValidation(t *testing.T) {
	svc := NewService(newMemoryCountingRepo(), nil, nil)
	_, err := svc.StartSession(context.Background(), "count", "", 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestStartSessionDerivesNameWhenBlank(t *testing.T) {
	svc := NewService(newMemoryCountingRepo(), nil, nil)

	session, err := svc.StartSession(context.Background(), "   ", "", 3)
	require.NoError(t, err)
	require.Contains(t, session.Name, "Count ")
	require.Equal(t, StatusInProgress, session.Status)
}
