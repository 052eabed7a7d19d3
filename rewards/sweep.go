package rewards

import (
	"context"

	"github.com/ducx-network/peer-rewards/internal"
	"github.com/ducx-network/peer-rewards/storage"
)

// CheckPendingAirdrops reconciles every PENDING airdrop against the chain in
// one atomic block. The at-most-one-pending invariant means this normally
// touches zero or one row. A chain error on one airdrop is logged and the
// sweep moves on; the airdrop is re-polled next cycle.
func (e *Engine) CheckPendingAirdrops(ctx context.Context) error {
	return e.store.Transaction(func(tx *storage.Storage) error {
		airdrops, err := tx.AirdropRepo.FindByStatus(internal.AirdropPending)
		if err != nil {
			return err
		}
		e.log.Info("pending airdrops sweep", "count", len(airdrops))

		for _, airdrop := range airdrops {
			if err := e.checkRelayedTx(ctx, tx, airdrop.ID); err != nil {
				e.log.Warn("pending check failed", "airdrop_id", airdrop.ID, "err", err)
			}
		}
		return nil
	})
}

// CheckWaitingAirdrops re-attempts relay for airdrops stuck in
// WAITING_FOR_RELAY or INSUFFICIENT_BALANCE. At most the first one found is
// retried per sweep, so retries never pile up lock contention.
func (e *Engine) CheckWaitingAirdrops(ctx context.Context) error {
	airdrops, err := e.store.AirdropRepo.FindByStatus(
		internal.AirdropWaitingForRelay,
		internal.AirdropInsufficientBalance,
	)
	if err != nil {
		return err
	}
	e.log.Info("waiting airdrops sweep", "count", len(airdrops))

	if len(airdrops) == 0 {
		return nil
	}
	return e.Relay(ctx, airdrops[0].ID)
}
