package model

import "time"

type CredentialStatus string

const (
	CredentialPending  CredentialStatus = "PENDING"
	CredentialVerified CredentialStatus = "VERIFIED"
	CredentialRevoked  CredentialStatus = "REVOKED"
)

// IdentityCredential is never deleted; revocation is the only mutation.
type IdentityCredential struct {
	Id               int              `gorm:"primaryKey;autoIncrement"`
	OwnerKey         string           `gorm:"uniqueIndex;not null"`
	DocumentHash     string           `gorm:"uniqueIndex;not null"` // HMAC of the document number
	Commitment       string           `gorm:"uniqueIndex;not null"`
	EncryptedSecret  string           `gorm:"not null"`
	Status           CredentialStatus `gorm:"index;not null"`
	GroupIndex       int              // leaf position in the membership group
	IssuanceTxHash   string
	RevocationTxHash string
	RevokedReason    string
	RevokedAt        *time.Time
	VerifiedAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "success"
	AttemptDuplicate AttemptOutcome = "duplicate"
	AttemptFailed    AttemptOutcome = "failure"
)

// IssuanceAttempt feeds the per-owner rate limiter.
type IssuanceAttempt struct {
	Id        int            `gorm:"primaryKey;autoIncrement"`
	OwnerKey  string         `gorm:"index;not null"`
	Outcome   AttemptOutcome `gorm:"not null"`
	Reason    string
	CreatedAt time.Time `gorm:"index"`
}
