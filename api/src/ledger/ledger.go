// Package ledger holds the one-time-use sets shared by every submission: the nullifier
// ledger and the duplicate-content index. Both use reserve/consume/release so a value is
// only burned once the report is durably written.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultReservationTTL = 10 * time.Minute

var (
	ErrTaken           = errors.New("value already used or reserved")
	ErrReservationLost = errors.New("reservation no longer held")
)

type Reservation struct {
	Kind      model.LedgerKind
	Scope     string
	Value     string
	Token     string
	ExpiresAt time.Time
}

type store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func newStore(db *gorm.DB, ttl time.Duration) *store {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &store{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// reserve inserts a reserved row or takes over an expired reservation. Both paths are a
// single statement, so two racing callers cannot both win.
func (s *store) reserve(ctx context.Context, kind model.LedgerKind, scope, value string) (*Reservation, error) {
	now := s.now()
	r := &Reservation{
		Kind:      kind,
		Scope:     scope,
		Value:     value,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}

	entry := model.LedgerEntry{
		Kind:      kind,
		Scope:     scope,
		Value:     value,
		State:     model.LedgerReserved,
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return r, nil
	}

	res = s.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("kind = ? AND scope = ? AND value = ? AND state = ? AND expires_at < ?",
			kind, scope, value, model.LedgerReserved, now).
		Updates(map[string]any{"token": r.Token, "expires_at": r.ExpiresAt})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return r, nil
	}
	return nil, ErrTaken
}

func (s *store) consume(ctx context.Context, r *Reservation, reference string) error {
	now := s.now()
	res := s.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("token = ? AND state = ?", r.Token, model.LedgerReserved).
		Updates(map[string]any{
			"state":       model.LedgerConsumed,
			"reference":   reference,
			"consumed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReservationLost
	}
	return nil
}

func (s *store) release(ctx context.Context, r *Reservation) error {
	return s.db.WithContext(ctx).
		Where("token = ? AND state = ?", r.Token, model.LedgerReserved).
		Delete(&model.LedgerEntry{}).Error
}

// held reports whether value is consumed or under a live reservation.
func (s *store) held(ctx context.Context, kind model.LedgerKind, scope, value string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("kind = ? AND scope = ? AND value = ?", kind, scope, value).
		Where("state = ? OR expires_at >= ?", model.LedgerConsumed, s.now()).
		Count(&count).Error
	return count > 0, err
}

func (s *store) consumed(ctx context.Context, kind model.LedgerKind, scope, value string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("kind = ? AND scope = ? AND value = ? AND state = ?", kind, scope, value, model.LedgerConsumed).
		Count(&count).Error
	return count > 0, err
}
