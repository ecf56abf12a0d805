package relay

import (
	"math/big"
	"time"
)

var (
	DefaultMinBalance      = big.NewInt(10_000_000_000_000_000) // 0.01 ETH
	DefaultCriticalBalance = big.NewInt(1_000_000_000_000_000)  // 0.001 ETH
)

const (
	DefaultConfirmationTimeout = 120 * time.Second
	DefaultPollInterval        = 2 * time.Second
	gasBufferPercent           = 20
	balanceReadAttempts        = 3
)

type Config struct {
	MinBalance          *big.Int
	CriticalBalance     *big.Int
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	// BalanceRetryWait is the first backoff step between balance read attempts.
	BalanceRetryWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinBalance == nil {
		c.MinBalance = DefaultMinBalance
	}
	if c.CriticalBalance == nil {
		c.CriticalBalance = DefaultCriticalBalance
	}
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.BalanceRetryWait <= 0 {
		c.BalanceRetryWait = 500 * time.Millisecond
	}
	return c
}
