package rewards

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ducx-network/peer-rewards/metrics"
	"github.com/ducx-network/peer-rewards/rates"
	"github.com/ducx-network/peer-rewards/storage"
)

// decimalsByCurrency maps currency codes to their fixed-point scale. Unknown
// currencies fall back to a scale of 0.
var decimalsByCurrency = map[string]int{
	"DUCX": 18,
	"DUC":  8,
	"ETH":  18,
	"BTC":  8,
}

// DecimalsFor returns the fixed-point scale for a currency code.
func DecimalsFor(currency string) int {
	return decimalsByCurrency[currency]
}

// Accounting converts uptime percentages and USD-denominated reward interests
// into amounts of the target currency. It is the sole conversion path, so
// currency and precision semantics stay in one place.
type Accounting struct {
	log      *slog.Logger
	store    *storage.Storage
	rates    *rates.Client
	currency string
}

// AccountingConfig configures Accounting.
type AccountingConfig struct {
	Logger   *slog.Logger
	Store    *storage.Storage
	Rates    *rates.Client
	Currency string
}

// NewAccounting builds an Accounting bound to a store and a rates source.
func NewAccounting(cfg AccountingConfig) *Accounting {
	return &Accounting{
		log:      cfg.Logger,
		store:    cfg.Store,
		rates:    cfg.Rates,
		currency: cfg.Currency,
	}
}

// WithStore returns a copy bound to a different store, typically a
// transaction-scoped one, so conversions can join an enclosing atomic block.
func (a *Accounting) WithStore(store *storage.Storage) *Accounting {
	clone := *a
	clone.store = store
	return &clone
}

// GetRate returns how many base units of currency equal one USD, scaled by
// 10^decimals and truncated: floor(10^decimals / usd_rate). It refreshes all
// known currencies from the rates API first; a refresh failure is logged and
// the last persisted rate is reused.
func (a *Accounting) GetRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	a.refresh(ctx)

	rate, err := a.store.RateRepo.Get(currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("no rate stored for %s: %w", currency, err)
	}
	if !rate.USDRate.IsPositive() {
		return decimal.Zero, fmt.Errorf("stored rate for %s is not positive", currency)
	}

	scale := decimal.New(1, int32(rate.Decimals))
	return scale.Div(rate.USDRate).Floor(), nil
}

// CountRewardAmount converts one peer's daily reward into the target
// currency: floor(percent * reward_interest * rate). All arithmetic happens
// in money-scaled fixed point, truncation is toward zero.
func (a *Accounting) CountRewardAmount(ctx context.Context, rewardInterest decimal.Decimal, percent float64) (decimal.Decimal, error) {
	rate, err := a.GetRate(ctx, a.currency)
	if err != nil {
		return decimal.Zero, err
	}

	amount := decimal.NewFromFloat(percent).
		Mul(rewardInterest).
		Mul(rate).
		Floor()
	return amount, nil
}

// refresh pulls fresh USD rates for every currency the API reports and
// persists them. Failure is never fatal to the caller: the last known good
// rates stay in place.
func (a *Accounting) refresh(ctx context.Context) {
	fetched, err := a.rates.Fetch(ctx)
	if err != nil {
		metrics.RateRefreshFailures.Inc()
		a.log.Warn("rate refresh failed, reusing stored rates", "err", err)
		return
	}

	for currency, usdRate := range fetched {
		if !usdRate.IsPositive() {
			a.log.Warn("skipping non-positive rate", "currency", currency, "usd_rate", usdRate)
			continue
		}
		if err := a.store.RateRepo.Upsert(currency, usdRate, DecimalsFor(currency)); err != nil {
			a.log.Warn("failed to persist rate", "currency", currency, "err", err)
		}
	}
}
