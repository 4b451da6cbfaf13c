// Package worker runs the periodic jobs of the wallet service.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/wallet_ledger/utils"
	"github.com/robfig/cron/v3"
)

type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ExpirySweeper expires overdue withdrawal requests on a cron schedule.
// Runs never overlap.
type ExpirySweeper struct {
	sweeper Sweeper
	cron    *cron.Cron
	logger  *utils.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewExpirySweeper(sweeper Sweeper, schedule string, logger *utils.Logger) (*ExpirySweeper, error) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &ExpirySweeper{
		sweeper: sweeper,
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: 2 * time.Minute,
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := w.cron.AddFunc(schedule, func() { w.RunOnce(w.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return w, nil
}

func (w *ExpirySweeper) Start() {
	w.logger.Info("⏱ Starting withdrawal expiry sweeper...")
	w.cron.Start()
}

// Stop cancels a running sweep and waits for it to return.
func (w *ExpirySweeper) Stop() {
	w.cancel()
	<-w.cron.Stop().Done()
	w.logger.Info("Withdrawal expiry sweeper stopped")
}

// RunOnce performs a single sweep and returns how many requests expired.
func (w *ExpirySweeper) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	count, err := w.sweeper.SweepExpired(ctx, time.Time{})
	if err != nil {
		w.logger.Errorf("Expiry sweep finished with errors after expiring %d requests: %v", count, err)
		return count
	}
	w.logger.Debugf("Expiry sweep done in %v, %d expired", time.Since(start), count)
	return count
}
