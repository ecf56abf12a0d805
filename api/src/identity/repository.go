package identity

import (
	"context"
	"errors"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"

	"gorm.io/gorm"
)

var ErrDuplicate = errors.New("credential already exists")

type Repository interface {
	// CreatePending inserts a PENDING credential, returning ErrDuplicate when the owner,
	// document or commitment is already taken.
	CreatePending(ctx context.Context, cred *model.IdentityCredential) error
	MarkVerified(ctx context.Context, id int, groupIndex int, txHash string, at time.Time) error
	DeletePending(ctx context.Context, id int) error
	MarkRevoked(ctx context.Context, id int, reason, txHash string, at time.Time) error

	GetByOwner(ctx context.Context, ownerKey string) (*model.IdentityCredential, error)
	GetByCommitment(ctx context.Context, commitment string) (*model.IdentityCredential, error)
	ExistsByDocument(ctx context.Context, documentHash string) (bool, error)
	// Members returns every credential that reached the group, ordered by leaf index.
	Members(ctx context.Context) ([]model.IdentityCredential, error)
	Pending(ctx context.Context) ([]model.IdentityCredential, error)
}

type AttemptLog interface {
	RecordAttempt(ctx context.Context, attempt *model.IssuanceAttempt) error
	AttemptsSince(ctx context.Context, ownerKey string, since time.Time) ([]model.IssuanceAttempt, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) CreatePending(ctx context.Context, cred *model.IdentityCredential) error {
	cred.Status = model.CredentialPending
	err := r.db.WithContext(ctx).Create(cred).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *GormRepository) MarkVerified(ctx context.Context, id int, groupIndex int, txHash string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.IdentityCredential{}).
		Where("id = ? AND status = ?", id, model.CredentialPending).
		Updates(map[string]any{
			"status":           model.CredentialVerified,
			"group_index":      groupIndex,
			"issuance_tx_hash": txHash,
			"verified_at":      at,
		}).Error
}

func (r *GormRepository) DeletePending(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.CredentialPending).
		Delete(&model.IdentityCredential{}).Error
}

func (r *GormRepository) MarkRevoked(ctx context.Context, id int, reason, txHash string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.IdentityCredential{}).
		Where("id = ? AND status = ?", id, model.CredentialVerified).
		Updates(map[string]any{
			"status":             model.CredentialRevoked,
			"revoked_reason":     reason,
			"revocation_tx_hash": txHash,
			"revoked_at":         at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepository) GetByOwner(ctx context.Context, ownerKey string) (*model.IdentityCredential, error) {
	return r.first(ctx, "owner_key = ?", ownerKey)
}

func (r *GormRepository) GetByCommitment(ctx context.Context, commitment string) (*model.IdentityCredential, error) {
	return r.first(ctx, "commitment = ?", commitment)
}

// first returns nil without error when nothing matches.
func (r *GormRepository) first(ctx context.Context, query string, args ...any) (*model.IdentityCredential, error) {
	var cred model.IdentityCredential
	err := r.db.WithContext(ctx).Where(query, args...).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *GormRepository) ExistsByDocument(ctx context.Context, documentHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.IdentityCredential{}).
		Where("document_hash = ?", documentHash).Count(&count).Error
	return count > 0, err
}

func (r *GormRepository) Members(ctx context.Context) ([]model.IdentityCredential, error) {
	var creds []model.IdentityCredential
	err := r.db.WithContext(ctx).
		Where("status IN ?", []model.CredentialStatus{model.CredentialVerified, model.CredentialRevoked}).
		Order("group_index ASC").
		Find(&creds).Error
	return creds, err
}

func (r *GormRepository) Pending(ctx context.Context) ([]model.IdentityCredential, error) {
	var creds []model.IdentityCredential
	err := r.db.WithContext(ctx).
		Where("status = ?", model.CredentialPending).
		Order("id ASC").
		Find(&creds).Error
	return creds, err
}

func (r *GormRepository) RecordAttempt(ctx context.Context, attempt *model.IssuanceAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *GormRepository) AttemptsSince(ctx context.Context, ownerKey string, since time.Time) ([]model.IssuanceAttempt, error) {
	var attempts []model.IssuanceAttempt
	err := r.db.WithContext(ctx).
		Where("owner_key = ? AND created_at > ?", ownerKey, since).
		Order("created_at ASC").
		Find(&attempts).Error
	return attempts, err
}
