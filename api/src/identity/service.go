// Package identity issues, looks up and revokes the pseudonymous credentials that let a
// verified citizen join the membership group.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/group"
	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"
)

// Membership is the slice of the group the store drives.
type Membership interface {
	AddMember(ctx context.Context, commitment *big.Int) (*group.MembershipChange, error)
	RemoveMember(ctx context.Context, commitment *big.Int) (*group.MembershipChange, error)
}

// DocumentExtractor reads fields off a document photo. Its result is advisory only.
type DocumentExtractor interface {
	Extract(ctx context.Context, image []byte, contentType string) (*ExtractedDocument, error)
}

type ExtractedDocument struct {
	DocumentNumber string
	FirstName      string
	LastName       string
	Confidence     float64
}

type IssueRequest struct {
	OwnerKey       string
	DocumentNumber string
	Department     string
	FirstName      string
	LastName       string
	DateOfBirth    string
	Image          []byte
	ContentType    string
}

type Issued struct {
	Commitment string
	Secret     string
	Status     model.CredentialStatus
	VerifiedAt time.Time
	GroupIndex int
	TxHash     string
}

type Status struct {
	IsVerified bool
	CanSubmit  bool
	Status     model.CredentialStatus
	Commitment string
	VerifiedAt *time.Time
}

type Service struct {
	repo      Repository
	limiter   *RateLimiter
	members   Membership
	box       *SecretBox
	hasher    *DocumentHasher
	seedKey   []byte
	extractor DocumentExtractor
	log       *logger.Logger

	locks  *keyedLocks
	random io.Reader
	now    func() time.Time
}

func NewService(repo Repository, limiter *RateLimiter, members Membership, keys Keys, hasher *DocumentHasher, extractor DocumentExtractor, log *logger.Logger) (*Service, error) {
	box, err := NewSecretBox(keys.Encryption)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		limiter:   limiter,
		members:   members,
		box:       box,
		hasher:    hasher,
		seedKey:   keys.Seed,
		extractor: extractor,
		log:       log.Named("identity"),
		locks:     newKeyedLocks(),
		random:    rand.Reader,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue verifies a citizen and registers a fresh commitment in the group. The document
// number must already be normalized.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	// a broadcast addMember must be recorded even if the caller goes away
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(req.OwnerKey)
	defer unlock()

	if err := s.limiter.Check(ctx, req.OwnerKey); err != nil {
		return nil, err
	}

	issued, outcome, reason, err := s.issue(ctx, req)
	if recErr := s.limiter.Record(ctx, req.OwnerKey, outcome, reason); recErr != nil {
		s.log.Error(recErr, "Could not record issuance attempt")
	}
	return issued, err
}

func (s *Service) issue(ctx context.Context, req IssueRequest) (*Issued, model.AttemptOutcome, string, error) {
	existing, err := s.repo.GetByOwner(ctx, req.OwnerKey)
	if err != nil {
		return nil, model.AttemptFailed, "storage", apperror.Internal(err)
	}
	if existing != nil {
		return nil, model.AttemptDuplicate, "owner already registered",
			apperror.DuplicateCredential().WithDetail("field", "ownerKey")
	}

	documentHash := s.hasher.Hash(req.DocumentNumber)
	taken, err := s.repo.ExistsByDocument(ctx, documentHash)
	if err != nil {
		return nil, model.AttemptFailed, "storage", apperror.Internal(err)
	}
	if taken {
		return nil, model.AttemptDuplicate, "document already registered", apperror.DuplicateCredential()
	}

	s.checkDocument(ctx, req)

	id, err := zkp.DeriveIdentity(s.seedKey, req.OwnerKey, documentHash, s.random)
	if err != nil {
		return nil, model.AttemptFailed, "identity derivation", apperror.Internal(err)
	}
	secret := id.Secret()
	// the wallet rebuilds its identity from this secret alone
	if restored, err := zkp.ImportIdentity(secret); err != nil || restored.Commitment.Cmp(id.Commitment) != 0 {
		return nil, model.AttemptFailed, "identity derivation", apperror.Internal(errors.New("exported secret does not restore its commitment"))
	}
	sealed, err := s.box.Seal(req.OwnerKey, secret)
	if err != nil {
		return nil, model.AttemptFailed, "encryption", apperror.Internal(err)
	}

	cred := &model.IdentityCredential{
		OwnerKey:        req.OwnerKey,
		DocumentHash:    documentHash,
		Commitment:      id.Commitment.String(),
		EncryptedSecret: sealed,
	}
	if err := s.repo.CreatePending(ctx, cred); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, model.AttemptDuplicate, "document already registered", apperror.DuplicateCredential()
		}
		return nil, model.AttemptFailed, "storage", apperror.Internal(err)
	}

	change, err := s.members.AddMember(ctx, id.Commitment)
	if err != nil {
		if delErr := s.repo.DeletePending(ctx, cred.Id); delErr != nil {
			s.log.Error(delErr, "Could not drop pending credential after failed group registration")
		}
		return nil, model.AttemptFailed, "group registration", err
	}

	verifiedAt := s.now()
	var txHash string
	if change.Result != nil {
		txHash = change.Result.TxHash
	}
	if err := s.repo.MarkVerified(ctx, cred.Id, change.Index, txHash, verifiedAt); err != nil {
		// the member is on chain; Reconcile promotes the row on next start
		s.log.Errorf(err, "Credential %d joined the group but could not be marked verified", cred.Id)
		return nil, model.AttemptFailed, "storage", apperror.Internal(err)
	}

	s.log.Fields(map[string]any{
		"commitment": cred.Commitment,
		"groupIndex": change.Index,
		"txHash":     txHash,
	}).Info("Identity verified")

	return &Issued{
		Commitment: cred.Commitment,
		Secret:     secret,
		Status:     model.CredentialVerified,
		VerifiedAt: verifiedAt,
		GroupIndex: change.Index,
		TxHash:     txHash,
	}, model.AttemptSucceeded, "", nil
}

// checkDocument compares the photo against the form when an extractor is configured.
// Mismatches are logged and never block issuance.
func (s *Service) checkDocument(ctx context.Context, req IssueRequest) {
	if s.extractor == nil || len(req.Image) == 0 {
		return
	}
	doc, err := s.extractor.Extract(ctx, req.Image, req.ContentType)
	if err != nil {
		s.log.Warnf("Document extraction failed, using form data: %v", err)
		return
	}
	if n, ok := NormalizeCI(doc.DocumentNumber); ok && n != req.DocumentNumber {
		s.log.Warn("Extracted document number differs from the submitted one")
	}
	if doc.FirstName != "" && !namesMatch(doc.FirstName, req.FirstName) {
		s.log.Warn("Extracted first name differs from the submitted one")
	}
}

func namesMatch(a, b string) bool {
	a, b = foldName(a), foldName(b)
	return strings.Contains(a, b) || strings.Contains(b, a)
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func foldName(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// LookupStatus never fails for unknown owners; they read as PENDING.
func (s *Service) LookupStatus(ctx context.Context, ownerKey string) (*Status, error) {
	cred, err := s.repo.GetByOwner(ctx, ownerKey)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if cred == nil {
		return &Status{Status: model.CredentialPending}, nil
	}

	st := &Status{
		IsVerified: cred.Status == model.CredentialVerified,
		CanSubmit:  cred.Status == model.CredentialVerified,
		Status:     cred.Status,
	}
	if cred.Status != model.CredentialPending {
		st.Commitment = cred.Commitment
		verifiedAt := cred.VerifiedAt
		st.VerifiedAt = &verifiedAt
	}
	return st, nil
}

type Revocation struct {
	Commitment string
	RevokedAt  time.Time
	TxHash     string
}

// Revoke removes the commitment from the group and only then marks the credential REVOKED.
func (s *Service) Revoke(ctx context.Context, commitment, reason string) (*Revocation, error) {
	ctx = context.WithoutCancel(ctx)
	value, err := zkp.ParseFieldString(commitment)
	if err != nil {
		return nil, apperror.Validation("Commitment inválido", nil)
	}
	key := value.String()

	cred, err := s.repo.GetByCommitment(ctx, key)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if cred == nil {
		return nil, apperror.NotFound("identity")
	}

	unlock := s.locks.Lock(cred.OwnerKey)
	defer unlock()

	// re-read under the owner lock
	cred, err = s.repo.GetByCommitment(ctx, key)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	switch {
	case cred == nil || cred.Status == model.CredentialPending:
		return nil, apperror.NotFound("identity")
	case cred.Status == model.CredentialRevoked:
		return nil, apperror.Validation("La identidad ya fue revocada", nil)
	}

	change, err := s.members.RemoveMember(ctx, value)
	if err != nil {
		return nil, err
	}

	var txHash string
	if change.Result != nil {
		txHash = change.Result.TxHash
	}
	revokedAt := s.now()
	if err := s.repo.MarkRevoked(ctx, cred.Id, reason, txHash, revokedAt); err != nil {
		s.log.Errorf(err, "Credential %d left the group but could not be marked revoked", cred.Id)
		return nil, apperror.Internal(err)
	}

	s.log.Fields(map[string]any{"commitment": key, "txHash": txHash}).Info("Identity revoked")
	return &Revocation{Commitment: key, RevokedAt: revokedAt, TxHash: txHash}, nil
}
