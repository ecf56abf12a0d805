package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"

	"gorm.io/gorm"
)

// NullifierLedger records (scope, nullifier) pairs. Verification never touches it.
type NullifierLedger struct {
	s *store
}

func NewNullifierLedger(db *gorm.DB, reservationTTL time.Duration) *NullifierLedger {
	return &NullifierLedger{s: newStore(db, reservationTTL)}
}

// IsUsed is true for a consumed nullifier and for one reserved by an in-flight submission.
func (l *NullifierLedger) IsUsed(ctx context.Context, scope, nullifier string) (bool, error) {
	used, err := l.s.held(ctx, model.LedgerNullifier, scope, nullifier)
	if err != nil {
		return false, apperror.Internal(err)
	}
	return used, nil
}

// IsConsumed ignores live reservations.
func (l *NullifierLedger) IsConsumed(ctx context.Context, scope, nullifier string) (bool, error) {
	used, err := l.s.consumed(ctx, model.LedgerNullifier, scope, nullifier)
	if err != nil {
		return false, apperror.Internal(err)
	}
	return used, nil
}

func (l *NullifierLedger) Reserve(ctx context.Context, scope, nullifier string) (*Reservation, error) {
	r, err := l.s.reserve(ctx, model.LedgerNullifier, scope, nullifier)
	if errors.Is(err, ErrTaken) {
		return nil, apperror.NullifierReused()
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return r, nil
}

func (l *NullifierLedger) Consume(ctx context.Context, r *Reservation, reference string) error {
	if err := l.s.consume(ctx, r, reference); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (l *NullifierLedger) Release(ctx context.Context, r *Reservation) error {
	if err := l.s.release(ctx, r); err != nil {
		return apperror.Internal(err)
	}
	return nil
}
