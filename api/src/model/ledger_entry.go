package model

import "time"

type LedgerKind string

const (
	LedgerNullifier LedgerKind = "nullifier"
	LedgerContent   LedgerKind = "content"
)

type LedgerState string

const (
	LedgerReserved LedgerState = "reserved"
	LedgerConsumed LedgerState = "consumed"
)

// LedgerEntry backs both the nullifier ledger and the duplicate-content index.
// (kind, scope, value) is unique so the insert itself is the atomic test-and-set.
type LedgerEntry struct {
	Id         int         `gorm:"primaryKey;autoIncrement"`
	Kind       LedgerKind  `gorm:"uniqueIndex:idx_ledger_key;not null"`
	Scope      string      `gorm:"uniqueIndex:idx_ledger_key;not null"`
	Value      string      `gorm:"uniqueIndex:idx_ledger_key;not null"`
	State      LedgerState `gorm:"index;not null"`
	Token      string      `gorm:"index"`
	ExpiresAt  time.Time
	Reference  string
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
