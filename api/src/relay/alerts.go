package relay

import (
	"time"

	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"
)

type AlertLevel string

const (
	AlertLow      AlertLevel = "low"
	AlertCritical AlertLevel = "critical"
)

// BalanceAlert is published when the operating account drops below a threshold.
type BalanceAlert struct {
	Level     AlertLevel `json:"level"`
	Address   string     `json:"address"`
	ChainId   string     `json:"chainId"`
	Balance   string     `json:"balanceWei"`
	Threshold string     `json:"thresholdWei"`
	Timestamp time.Time  `json:"timestamp"`
}

func (ba BalanceAlert) Serialize() ([]byte, error) {
	return utilities.Serialize[BalanceAlert](ba)
}
