package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ducx-network/peer-rewards/rewards"
	"github.com/ducx-network/peer-rewards/storage"
)

// runEvery invokes fn on a fixed cadence until ctx is cancelled. A failing
// tick is logged and retried on the next one; the loop itself never dies.
func runEvery(ctx context.Context, clock clockwork.Clock, interval time.Duration, log *slog.Logger, name string, fn func(context.Context) error) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("loop stopped", "loop", name)
			return
		case <-ticker.Chan():
			if err := fn(ctx); err != nil {
				log.Warn("tick failed", "loop", name, "err", err)
			}
		}
	}
}

// StartLivenessLoop polls peer liveness on the configured cadence.
func StartLivenessLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration, log *slog.Logger, liveness *rewards.Liveness) {
	runEvery(ctx, clock, interval, log, "liveness", liveness.Ping)
}

// StartPendingCheckLoop reconciles in-flight airdrops against the chain.
func StartPendingCheckLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration, log *slog.Logger, engine *rewards.Engine) {
	runEvery(ctx, clock, interval, log, "pending-check", engine.CheckPendingAirdrops)
}

// StartWaitingCheckLoop retries relay for waiting airdrops.
func StartWaitingCheckLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration, log *slog.Logger, engine *rewards.Engine) {
	runEvery(ctx, clock, interval, log, "waiting-check", engine.CheckWaitingAirdrops)
}

// StartAddressBackfillLoop derives missing peer payout addresses.
func StartAddressBackfillLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration, log *slog.Logger, store *storage.Storage) {
	runEvery(ctx, clock, interval, log, "address-backfill", func(context.Context) error {
		return rewards.BackfillAddresses(store, log)
	})
}
