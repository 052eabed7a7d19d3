package rewards

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ducx-network/peer-rewards/chain"
	"github.com/ducx-network/peer-rewards/internal"
	"github.com/ducx-network/peer-rewards/metrics"
	"github.com/ducx-network/peer-rewards/storage"
)

// ErrNothingToAirdrop is returned when no configured peer qualifies for a
// reward this period. Expected, not an operational error.
var ErrNothingToAirdrop = errors.New("nothing to airdrop")

// MinBucketSamples is the minimum number of observations a bucket needs
// before its percentage is trusted for payout decisions.
const MinBucketSamples = 10

// Aggregator scans the configured peers and builds a candidate airdrop from
// their uptime buckets.
type Aggregator struct {
	log             *slog.Logger
	store           *storage.Storage
	accounting      *Accounting
	enodes          []string
	minPercent      float64
	defaultInterest decimal.Decimal
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	Logger           *slog.Logger
	Store            *storage.Storage
	Accounting       *Accounting
	Enodes           []string
	RewardMinPercent float64

	// DefaultInterest is the reward interest assigned to peers on first
	// sighting: the configured default USD reward divided by 100.
	DefaultInterest decimal.Decimal
}

// NewAggregator builds an Aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	return &Aggregator{
		log:             cfg.Logger,
		store:           cfg.Store,
		accounting:      cfg.Accounting,
		enodes:          cfg.Enodes,
		minPercent:      cfg.RewardMinPercent,
		defaultInterest: cfg.DefaultInterest,
	}
}

// BuildCandidate creates an airdrop in WAITING_FOR_RELAY with one reward line
// item per qualifying peer. The whole build runs in one database transaction:
// a crash or an empty batch leaves no partial airdrop behind. Peers without a
// bucket of at least MinBucketSamples observations, or below the minimum
// uptime percentage, are skipped. A failure on one peer never aborts the
// batch.
func (g *Aggregator) BuildCandidate(ctx context.Context) (*internal.Airdrop, error) {
	var airdropID int64

	err := g.store.Transaction(func(tx *storage.Storage) error {
		airdrop, err := tx.AirdropRepo.Create()
		if err != nil {
			return err
		}
		airdropID = airdrop.ID

		acct := g.accounting.WithStore(tx)
		rewardCount := 0

		for _, enode := range g.enodes {
			peer, err := tx.PeerRepo.GetOrCreate(enode, g.defaultInterest)
			if err != nil {
				g.log.Warn("skipping peer, load failed", "enode", enode, "err", err)
				continue
			}

			bucket, err := tx.HealthcheckRepo.LatestEligibleBucket(enode, MinBucketSamples)
			if errors.Is(err, storage.ErrNotFound) {
				g.log.Debug("skipping peer, not enough samples", "enode", enode)
				continue
			}
			if err != nil {
				g.log.Warn("skipping peer, bucket lookup failed", "enode", enode, "err", err)
				continue
			}

			percent := bucket.OnlinePercent()
			g.log.Info("peer online percent", "enode", enode, "percent", percent)
			if percent < g.minPercent {
				continue
			}

			address, err := chain.PubkeyToAddress(enode)
			if err != nil {
				g.log.Warn("skipping peer, bad pubkey", "enode", enode, "err", err)
				continue
			}

			amount, err := acct.CountRewardAmount(ctx, peer.RewardInterest, percent)
			if err != nil {
				g.log.Warn("skipping peer, reward conversion failed", "enode", enode, "err", err)
				continue
			}

			if err := tx.AirdropRepo.AddReward(airdrop.ID, address.Hex(), amount); err != nil {
				g.log.Warn("skipping peer, reward insert failed", "enode", enode, "err", err)
				continue
			}
			rewardCount++
		}

		if rewardCount == 0 {
			return ErrNothingToAirdrop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AirdropsCreated.Inc()
	g.log.Info("airdrop created", "airdrop_id", airdropID)
	return g.store.AirdropRepo.FindByID(airdropID)
}
