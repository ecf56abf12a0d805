// Package workers holds the background jobs of the API process.
package workers

import (
	"context"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/relay"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	"github.com/robfig/cron"
)

const (
	balanceMonitorName     = "RelayBalanceCronWorker"
	DefaultBalanceSchedule = "@every 5m"
	balanceCheckTimeout    = 30 * time.Second
)

type BalanceChecker interface {
	CheckBalance(ctx context.Context) (relay.BalanceStatus, error)
}

// BalanceMonitor refreshes the relay balance on a schedule. Alerts are raised by the
// signer itself when a threshold is crossed.
type BalanceMonitor struct {
	checker  BalanceChecker
	cron     *cron.Cron
	schedule string
	log      *logger.Logger
}

func NewBalanceMonitor(checker BalanceChecker, schedule string, log *logger.Logger) *BalanceMonitor {
	if schedule == "" {
		schedule = DefaultBalanceSchedule
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BalanceMonitor{
		checker:  checker,
		cron:     cron.New(),
		schedule: schedule,
		log:      log.Named("balance-monitor"),
	}
}

func (bm *BalanceMonitor) GetServiceName() string {
	return balanceMonitorName
}

func (bm *BalanceMonitor) StartService() {
	// first reading right away so /relayer/balance has data before the first tick
	bm.Check()

	if err := bm.cron.AddFunc(bm.schedule, func() { bm.Check() }); err != nil {
		bm.log.Errorf(err, "Could not add function to %s", balanceMonitorName)
		return
	}
	bm.cron.Start()
}

func (bm *BalanceMonitor) StopService() {
	bm.cron.Stop()
}

func (bm *BalanceMonitor) Check() {
	ctx, cancel := context.WithTimeout(context.Background(), balanceCheckTimeout)
	defer cancel()

	status, err := bm.checker.CheckBalance(ctx)
	if err != nil {
		bm.log.Warnf("Scheduled balance check failed: %v", err)
		return
	}
	bm.log.Fields(map[string]any{
		"balanceWei": status.Balance.String(),
		"isLow":      status.IsLow,
		"isCritical": status.IsCritical,
	}).Debug("Relayer balance checked")
}
