package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ducx-network/peer-rewards/rewards"
)

// SendRewards builds the day's candidate airdrop and relays it. An empty
// candidate set is expected and skips the cycle without an error.
func SendRewards(ctx context.Context, log *slog.Logger, aggregator *rewards.Aggregator, engine *rewards.Engine) error {
	airdrop, err := aggregator.BuildCandidate(ctx)
	if errors.Is(err, rewards.ErrNothingToAirdrop) {
		log.Info("no peers qualified for rewards this period")
		return nil
	}
	if err != nil {
		return err
	}
	return engine.Relay(ctx, airdrop.ID)
}

// StartDailyAirdropLoop fires SendRewards once per day at hour:10 local
// time. A failed run waits for the next day's slot; the waiting-check sweep
// picks up any airdrop the run left behind.
func StartDailyAirdropLoop(ctx context.Context, clock clockwork.Clock, hour int, log *slog.Logger, aggregator *rewards.Aggregator, engine *rewards.Engine) {
	for {
		now := clock.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 10, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		timer := clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("loop stopped", "loop", "daily-airdrop")
			return
		case <-timer.Chan():
			if err := SendRewards(ctx, log, aggregator, engine); err != nil {
				log.Warn("daily airdrop run failed", "err", err)
			}
		}
	}
}
