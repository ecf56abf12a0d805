package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"

	"gorm.io/gorm"
)

const contentScope = "sha256"

// ContentIndex detects re-submitted evidence by content hash.
type ContentIndex struct {
	s *store
}

func NewContentIndex(db *gorm.DB, reservationTTL time.Duration) *ContentIndex {
	return &ContentIndex{s: newStore(db, reservationTTL)}
}

func (ci *ContentIndex) Exists(ctx context.Context, contentHash string) (bool, error) {
	seen, err := ci.s.held(ctx, model.LedgerContent, contentScope, contentHash)
	if err != nil {
		return false, apperror.Internal(err)
	}
	return seen, nil
}

func (ci *ContentIndex) Claim(ctx context.Context, contentHash string) (*Reservation, error) {
	r, err := ci.s.reserve(ctx, model.LedgerContent, contentScope, contentHash)
	if errors.Is(err, ErrTaken) {
		return nil, apperror.DuplicateContent()
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return r, nil
}

// Confirm makes the claim permanent, pointing at the stored record.
func (ci *ContentIndex) Confirm(ctx context.Context, r *Reservation, reference string) error {
	if err := ci.s.consume(ctx, r, reference); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (ci *ContentIndex) Release(ctx context.Context, r *Reservation) error {
	if err := ci.s.release(ctx, r); err != nil {
		return apperror.Internal(err)
	}
	return nil
}
