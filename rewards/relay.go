package rewards

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/ducx-network/peer-rewards/chain"
	"github.com/ducx-network/peer-rewards/internal"
	"github.com/ducx-network/peer-rewards/metrics"
	"github.com/ducx-network/peer-rewards/storage"
)

// ErrInvalidState signals a sequencing bug: an operation was invoked on an
// airdrop whose status does not permit it.
var ErrInvalidState = errors.New("operation not allowed in current airdrop status")

// ErrEmptyAirdrop rejects relaying an airdrop with no reward line items. The
// aggregator never produces one; hitting this means a caller bypassed it.
var ErrEmptyAirdrop = errors.New("airdrop has no rewards")

// Engine relays airdrops to the multisender contract and reconciles their
// outcome. At most one airdrop may be PENDING system-wide: every relay
// attempt runs under the process mutex plus a transaction-scoped write of the
// sentinel lock row, making the check-then-submit sequence a critical
// section.
type Engine struct {
	log         *slog.Logger
	store       *storage.Storage
	client      chain.Client
	multisender *chain.Multisender
	key         *ecdsa.PrivateKey
	fundingAddr common.Address

	gasPrice      *big.Int
	initialGas    uint64
	gasPerAddress uint64

	clock clockwork.Clock
	mu    sync.Mutex
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Logger      *slog.Logger
	Store       *storage.Storage
	Client      chain.Client
	Multisender *chain.Multisender
	Key         *ecdsa.PrivateKey
	FundingAddr common.Address

	GasPriceWei   *big.Int
	InitialGas    uint64
	GasPerAddress uint64

	Clock clockwork.Clock
}

// NewEngine builds a relay engine.
func NewEngine(cfg EngineConfig) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		log:           cfg.Logger,
		store:         cfg.Store,
		client:        cfg.Client,
		multisender:   cfg.Multisender,
		key:           cfg.Key,
		fundingAddr:   cfg.FundingAddr,
		gasPrice:      cfg.GasPriceWei,
		initialGas:    cfg.InitialGas,
		gasPerAddress: cfg.GasPerAddress,
		clock:         clock,
	}
}

// Relay attempts to submit the airdrop's batched payout on chain.
//
// The attempt is serialized process-wide: it silently aborts when another
// airdrop is already PENDING, moves to INSUFFICIENT_BALANCE when the funding
// account cannot cover total + gas, and otherwise broadcasts the multisender
// call and persists hash, nonce, gas price and PENDING as one transactional
// unit. A chain error aborts only this attempt; the airdrop stays safe to
// retry.
func (e *Engine) Relay(ctx context.Context, airdropID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.Transaction(func(tx *storage.Storage) error {
		if err := tx.AcquireRelayLock(e.clock.Now()); err != nil {
			return err
		}

		airdrop, err := tx.AirdropRepo.FindByID(airdropID)
		if err != nil {
			return err
		}
		if airdrop.Status != internal.AirdropWaitingForRelay &&
			airdrop.Status != internal.AirdropInsufficientBalance {
			return fmt.Errorf("%w: relay from %s", ErrInvalidState, airdrop.Status)
		}

		pending, err := tx.AirdropRepo.CountPendingExcluding(airdrop.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			e.log.Info("relay skipped, another airdrop is pending", "airdrop_id", airdrop.ID)
			return nil
		}

		if len(airdrop.Rewards) == 0 {
			return ErrEmptyAirdrop
		}

		addresses := make([]common.Address, 0, len(airdrop.Rewards))
		amounts := make([]*big.Int, 0, len(airdrop.Rewards))
		total := new(big.Int)
		for _, reward := range airdrop.Rewards {
			addresses = append(addresses, common.HexToAddress(reward.Address))
			amount := reward.Amount.BigInt()
			amounts = append(amounts, amount)
			total.Add(total, amount)
		}

		gasLimit := e.initialGas + e.gasPerAddress*uint64(len(amounts))
		gasCost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), e.gasPrice)
		required := new(big.Int).Add(total, gasCost)

		balance, err := e.client.BalanceAt(ctx, e.fundingAddr, nil)
		if err != nil {
			return fmt.Errorf("balance check: %w", err)
		}
		if balance.Cmp(required) < 0 {
			e.log.Warn("insufficient balance for airdrop",
				"airdrop_id", airdrop.ID, "balance", balance, "required", required)
			return tx.AirdropRepo.SetStatus(airdrop.ID, internal.AirdropInsufficientBalance)
		}

		nonce, err := e.client.PendingNonceAt(ctx, e.fundingAddr)
		if err != nil {
			return fmt.Errorf("nonce fetch: %w", err)
		}

		data, err := e.multisender.PackSend(addresses, amounts)
		if err != nil {
			return err
		}

		unsigned := types.NewTransaction(nonce, e.multisender.Address, total, gasLimit, e.gasPrice, data)

		chainID, err := e.client.NetworkID(ctx)
		if err != nil {
			return fmt.Errorf("chain id fetch: %w", err)
		}
		signed, err := types.SignTx(unsigned, types.NewEIP155Signer(chainID), e.key)
		if err != nil {
			return fmt.Errorf("sign transaction: %w", err)
		}

		if err := e.client.SendTransaction(ctx, signed); err != nil {
			return fmt.Errorf("broadcast transaction: %w", err)
		}

		txHash := signed.Hash().Hex()
		e.log.Info("airdrop relayed",
			"airdrop_id", airdrop.ID, "tx_hash", txHash,
			"nonce", nonce, "recipients", len(amounts), "total", total)
		metrics.AirdropsRelayed.Inc()

		return tx.AirdropRepo.MarkPending(airdrop.ID, txHash, nonce, decimal.NewFromBigInt(e.gasPrice, 0))
	})
	if err != nil && !errors.Is(err, ErrInvalidState) && !errors.Is(err, ErrEmptyAirdrop) {
		metrics.RelayFailures.Inc()
	}
	return err
}

// CheckRelayedTx reconciles a PENDING airdrop against the chain. A missing
// receipt, or one without a block number yet, is a no-op; a mined receipt
// moves the airdrop to SUCCESS or REVERT. Calling it on a non-pending airdrop
// returns ErrInvalidState.
func (e *Engine) CheckRelayedTx(ctx context.Context, airdropID int64) error {
	return e.store.Transaction(func(tx *storage.Storage) error {
		return e.checkRelayedTx(ctx, tx, airdropID)
	})
}

func (e *Engine) checkRelayedTx(ctx context.Context, tx *storage.Storage, airdropID int64) error {
	airdrop, err := tx.AirdropRepo.FindByID(airdropID)
	if err != nil {
		return err
	}
	if airdrop.Status != internal.AirdropPending {
		return fmt.Errorf("%w: receipt check from %s", ErrInvalidState, airdrop.Status)
	}

	receipt, err := e.client.TransactionReceipt(ctx, common.HexToHash(airdrop.TxHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("receipt fetch: %w", err)
	}
	if receipt.BlockNumber == nil {
		return nil
	}

	status := internal.AirdropRevert
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = internal.AirdropSuccess
	}
	e.log.Info("airdrop finalized",
		"airdrop_id", airdrop.ID, "tx_hash", airdrop.TxHash, "status", status)
	metrics.AirdropsFinalized.WithLabelValues(string(status)).Inc()

	return tx.AirdropRepo.SetStatus(airdrop.ID, status)
}
