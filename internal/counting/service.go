package counting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSession(ctx context.Context, id int64) (Session, error)
	ListSessions(ctx context.Context, status SessionStatus) ([]Session, error)
	ListItems(ctx context.Context, sessionID int64) ([]Item, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates cached stock levels after a commit.
type CachePort interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

// Service runs count sessions from snapshot through one-shot reconciliation.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	levels CachePort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, levels CachePort) *Service {
	return &Service{repo: repo, audit: audit, levels: levels}
}

// StartSession opens a session and snapshots every stock level into it.
// Physical quantities start at zero, so the initial variance of each line
// is the negated snapshot. The name is optional; an unnamed session gets a
// timestamp label.
func (s *Service) StartSession(ctx context.Context, name, notes string, createdBy int64) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Count " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	if createdBy == 0 {
		return Session{}, fmt.Errorf("%w: user required", ErrValidation)
	}

	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSession(ctx, name, notes, createdBy)
		if err != nil {
			return err
		}
		count, err := tx.SnapshotLevels(ctx, id)
		if err != nil {
			return err
		}
		session, err = tx.GetSessionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		session.ItemCount = count
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	s.recordAudit(ctx, createdBy, "COUNT_START", session.ID, map[string]any{"name": name, "items": session.ItemCount})
	return session, nil
}

// AddItem appends one product line to an in-progress session, snapshotting
// the current on-hand quantity. A product already in the session is a
// conflict, not an update.
func (s *Service) AddItem(ctx context.Context, sessionID, productID int64) (Item, error) {
	if sessionID == 0 || productID == 0 {
		return Item{}, fmt.Errorf("%w: session and product required", ErrValidation)
	}

	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != StatusInProgress {
			return fmt.Errorf("%w: items can only be added while IN_PROGRESS", ErrInvalidState)
		}
		item, err = tx.InsertItem(ctx, sessionID, productID)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItems records counted quantities. Variance is recomputed from the
// stored snapshot each time, so re-counting a line replaces the previous
// figure instead of accumulating. Products absent from the session are
// skipped.
func (s *Service) UpdateItems(ctx context.Context, sessionID int64, updates []ItemUpdate) error {
	if sessionID == 0 {
		return fmt.Errorf("%w: session required", ErrValidation)
	}
	if len(updates) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for _, u := range updates {
		if u.ProductID == 0 || u.PhysicalQuantity < 0 {
			return fmt.Errorf("%w: item requires product and non-negative quantity", ErrValidation)
		}
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == StatusReconciled {
			return ErrAlreadyReconciled
		}
		for _, u := range updates {
			if err := tx.UpdateItemPhysical(ctx, sessionID, u.ProductID, u.PhysicalQuantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// CompleteSession marks counting as finished. Completion is informational;
// reconciliation may run from either IN_PROGRESS or COMPLETED.
func (s *Service) CompleteSession(ctx context.Context, sessionID, userID int64) (Session, error) {
	if sessionID == 0 {
		return Session{}, fmt.Errorf("%w: session required", ErrValidation)
	}

	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		session, err = tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.Status.CanTransition(StatusCompleted) {
			if session.Status == StatusReconciled {
				return ErrAlreadyReconciled
			}
			return fmt.Errorf("%w: cannot complete from %s", ErrInvalidState, session.Status)
		}
		session.Status = StatusCompleted
		return tx.UpdateSessionStatus(ctx, sessionID, StatusCompleted, 0)
	})
	if err != nil {
		return Session{}, err
	}

	s.recordAudit(ctx, userID, "COUNT_COMPLETE", sessionID, nil)
	return session, nil
}

// Reconcile applies the count to live stock exactly once. Each line with a
// non-zero variance has its level set to the physical quantity and one
// adjustment movement written for the variance, attributed to the user who
// ran the count; zero-variance lines only refresh last_counted_at. The
// session row is locked first, so a concurrent second reconcile observes
// RECONCILED and fails without writing.
func (s *Service) Reconcile(ctx context.Context, sessionID, reconciledBy int64) (ReconcileResult, error) {
	if sessionID == 0 {
		return ReconcileResult{}, fmt.Errorf("%w: session required", ErrValidation)
	}
	if reconciledBy == 0 {
		return ReconcileResult{}, fmt.Errorf("%w: user required", ErrValidation)
	}

	result := ReconcileResult{SessionID: sessionID}
	var touched []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == StatusReconciled {
			return ErrAlreadyReconciled
		}
		if !session.Status.CanTransition(StatusReconciled) {
			return fmt.Errorf("%w: cannot reconcile from %s", ErrInvalidState, session.Status)
		}

		items, err := tx.ListItemsForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		notes := fmt.Sprintf("Count session #%d reconciliation", sessionID)
		for _, item := range items {
			if item.Variance == 0 {
				if err := tx.TouchLastCounted(ctx, item.ProductID); err != nil {
					return err
				}
				result.ItemsUnchanged++
				continue
			}
			if err := tx.ReconcileLevel(ctx, item.ProductID, item.PhysicalQuantity, item.Variance, session.CreatedBy, notes); err != nil {
				return err
			}
			result.ItemsAdjusted++
			touched = append(touched, item.ProductID)
		}
		return tx.MarkReconciled(ctx, sessionID, reconciledBy)
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	s.invalidate(ctx, touched)
	s.recordAudit(ctx, reconciledBy, "COUNT_RECONCILE", sessionID, map[string]any{
		"adjusted":  result.ItemsAdjusted,
		"unchanged": result.ItemsUnchanged,
	})
	return result, nil
}

// GetSession fetches one session header.
func (s *Service) GetSession(ctx context.Context, id int64) (Session, error) {
	return s.repo.GetSession(ctx, id)
}

// ListSessions lists sessions, optionally filtered by status.
func (s *Service) ListSessions(ctx context.Context, status SessionStatus) ([]Session, error) {
	return s.repo.ListSessions(ctx, status)
}

// ListItems lists a session's lines.
func (s *Service) ListItems(ctx context.Context, sessionID int64) ([]Item, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, sessionID)
}

func (s *Service) invalidate(ctx context.Context, ids []int64) {
	if s.levels == nil || len(ids) == 0 {
		return
	}
	s.levels.Invalidate(ctx, ids...)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, sessionID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "count_session", EntityID: fmt.Sprintf("%d", sessionID), Meta: meta})
}
