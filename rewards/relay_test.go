package rewards

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ducx-network/peer-rewards/chain"
	"github.com/ducx-network/peer-rewards/internal"
	"github.com/ducx-network/peer-rewards/storage"
)

const (
	testInitialGas    = 150_000
	testGasPerAddress = 35_000
)

type relayFixture struct {
	store  *storage.Storage
	client *mockChainClient
	engine *Engine
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	store := newTestStorage(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	multisender, err := chain.NewMultisender("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	client := &mockChainClient{balance: big.NewInt(0)}

	engine := NewEngine(EngineConfig{
		Logger:        testLogger(),
		Store:         store,
		Client:        client,
		Multisender:   multisender,
		Key:           key,
		FundingAddr:   crypto.PubkeyToAddress(key.PublicKey),
		GasPriceWei:   big.NewInt(1),
		InitialGas:    testInitialGas,
		GasPerAddress: testGasPerAddress,
	})

	return &relayFixture{store: store, client: client, engine: engine}
}

// newWaitingAirdrop creates an airdrop with the given reward amounts.
func (f *relayFixture) newWaitingAirdrop(t *testing.T, amounts ...int64) *internal.Airdrop {
	t.Helper()
	airdrop, err := f.store.AirdropRepo.Create()
	require.NoError(t, err)
	for _, amount := range amounts {
		_, address := newTestEnode(t)
		require.NoError(t, f.store.AirdropRepo.AddReward(airdrop.ID, address.Hex(), decimal.NewFromInt(amount)))
	}
	loaded, err := f.store.AirdropRepo.FindByID(airdrop.ID)
	require.NoError(t, err)
	return loaded
}

func (f *relayFixture) status(t *testing.T, id int64) internal.AirdropStatus {
	t.Helper()
	airdrop, err := f.store.AirdropRepo.FindByID(id)
	require.NoError(t, err)
	return airdrop.Status
}

func TestEngine_Relay(t *testing.T) {
	ctx := context.Background()

	// Two recipients: gas cost = (initial + 2*perAddress) * gasPrice(1).
	gasCost := int64(testInitialGas + 2*testGasPerAddress)

	t.Run("broadcasts and marks pending when funded", func(t *testing.T) {
		f := newRelayFixture(t)
		airdrop := f.newWaitingAirdrop(t, 100, 200)
		f.client.balance = big.NewInt(300 + gasCost)
		f.client.nonce = 42

		require.NoError(t, f.engine.Relay(ctx, airdrop.ID))

		loaded, err := f.store.AirdropRepo.FindByID(airdrop.ID)
		require.NoError(t, err)
		require.Equal(t, internal.AirdropPending, loaded.Status)
		require.NotEmpty(t, loaded.TxHash)
		require.NotNil(t, loaded.Nonce)
		require.EqualValues(t, 42, *loaded.Nonce)

		require.Equal(t, 1, f.client.sentCount())
		sent := f.client.sent[0]
		require.EqualValues(t, 42, sent.Nonce())
		require.Equal(t, big.NewInt(300), sent.Value())
		require.EqualValues(t, testInitialGas+2*testGasPerAddress, sent.Gas())
	})

	t.Run("balance exactly equal to requirement permits submission", func(t *testing.T) {
		f := newRelayFixture(t)
		airdrop := f.newWaitingAirdrop(t, 100, 200)
		f.client.balance = big.NewInt(300 + gasCost)

		require.NoError(t, f.engine.Relay(ctx, airdrop.ID))
		require.Equal(t, internal.AirdropPending, f.status(t, airdrop.ID))
	})

	t.Run("one wei short moves to insufficient balance", func(t *testing.T) {
		f := newRelayFixture(t)
		airdrop := f.newWaitingAirdrop(t, 100, 200)
		f.client.balance = big.NewInt(300 + gasCost - 1)

		require.NoError(t, f.engine.Relay(ctx, airdrop.ID))
		require.Equal(t, internal.AirdropInsufficientBalance, f.status(t, airdrop.ID))
		require.Equal(t, 0, f.client.sentCount())
	})

	t.Run("insufficient balance airdrops are retryable", func(t *testing.T) {
		f := newRelayFixture(t)
		airdrop := f.newWaitingAirdrop(t, 100)
		f.client.balance = big.NewInt(0)

		require.NoError(t, f.engine.Relay(ctx, airdrop.ID))
		require.Equal(t, internal.AirdropInsufficientBalance, f.status(t, airdrop.ID))

		f.client.balance = big.NewInt(1_000_000_000)
		require.NoError(t, f.engine.Relay(ctx, airdrop.ID))
		require.Equal(t, internal.AirdropPending, f.status(t, airdrop.ID))
	})

	t.Run("silently aborts when another airdrop is pending", func(t *testing.T) {
		f := newRelayFixture(t)
		f.client.balance = big.NewInt(1_000_000_000)

		first := f.newWaitingAirdrop(t, 100)
		require.NoError(t, f.engine.Relay(ctx, first.ID))
		require.Equal(t, internal.AirdropPending, f.status(t, first.ID))

		second := f.newWaitingAirdrop(t, 100)
		require.NoError(t, f.engine.Relay(ctx, second.ID))
		require.Equal(t, internal.AirdropWaitingForRelay, f.status(t, second.ID))
		require.Equal(t, 1, f.client.sentCount())
	})

	t.Run("rejects an airdrop with no rewards", func(t *testing.T) {
		f := newRelayFixture(t)
		f.client.balance = big.NewInt(1_000_000_000)
		airdrop := f.newWaitingAirdrop(t)

		err := f.engine.Relay(ctx, airdrop.ID)
		require.ErrorIs(t, err, ErrEmptyAirdrop)
		require.Equal(t, 0, f.client.sentCount())
	})

	t.Run("rejects relay from a terminal state", func(t *testing.T) {
		f := newRelayFixture(t)
		airdrop := f.newWaitingAirdrop(t, 100)
		require.NoError(t, f.store.AirdropRepo.SetStatus(airdrop.ID, internal.AirdropSuccess))

		err := f.engine.Relay(ctx, airdrop.ID)
		require.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("a chain error leaves the airdrop retryable", func(t *testing.T) {
		f := newRelayFixture(t)
		airdrop := f.newWaitingAirdrop(t, 100)
		f.client.balanceErr = context.DeadlineExceeded

		require.Error(t, f.engine.Relay(ctx, airdrop.ID))
		require.Equal(t, internal.AirdropWaitingForRelay, f.status(t, airdrop.ID))
	})

	t.Run("concurrent relays submit exactly one transaction", func(t *testing.T) {
		f := newRelayFixture(t)
		f.client.balance = big.NewInt(1_000_000_000)

		const n = 8
		ids := make([]int64, 0, n)
		for i := 0; i < n; i++ {
			ids = append(ids, f.newWaitingAirdrop(t, 100).ID)
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_ = f.engine.Relay(ctx, id)
			}(id)
		}
		wg.Wait()

		pending := 0
		for _, id := range ids {
			if f.status(t, id) == internal.AirdropPending {
				pending++
			}
		}
		require.Equal(t, 1, pending)
		require.Equal(t, 1, f.client.sentCount())
	})
}

func TestEngine_CheckRelayedTx(t *testing.T) {
	ctx := context.Background()

	relayed := func(t *testing.T) (*relayFixture, int64) {
		f := newRelayFixture(t)
		f.client.balance = big.NewInt(1_000_000_000)
		airdrop := f.newWaitingAirdrop(t, 100)
		require.NoError(t, f.engine.Relay(ctx, airdrop.ID))
		return f, airdrop.ID
	}

	t.Run("missing receipt is a no-op", func(t *testing.T) {
		f, id := relayed(t)
		f.client.receipt = nil

		require.NoError(t, f.engine.CheckRelayedTx(ctx, id))
		require.Equal(t, internal.AirdropPending, f.status(t, id))
	})

	t.Run("receipt without a block number is a no-op", func(t *testing.T) {
		f, id := relayed(t)
		f.client.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful}

		require.NoError(t, f.engine.CheckRelayedTx(ctx, id))
		require.Equal(t, internal.AirdropPending, f.status(t, id))
	})

	t.Run("mined success finalizes to SUCCESS", func(t *testing.T) {
		f, id := relayed(t)
		f.client.receipt = &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(1200),
		}

		require.NoError(t, f.engine.CheckRelayedTx(ctx, id))
		require.Equal(t, internal.AirdropSuccess, f.status(t, id))
	})

	t.Run("mined failure finalizes to REVERT", func(t *testing.T) {
		f, id := relayed(t)
		f.client.receipt = &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			BlockNumber: big.NewInt(1200),
		}

		require.NoError(t, f.engine.CheckRelayedTx(ctx, id))
		require.Equal(t, internal.AirdropRevert, f.status(t, id))
	})

	t.Run("second check after finalization is rejected", func(t *testing.T) {
		f, id := relayed(t)
		f.client.receipt = &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(1200),
		}

		require.NoError(t, f.engine.CheckRelayedTx(ctx, id))
		err := f.engine.CheckRelayedTx(ctx, id)
		require.ErrorIs(t, err, ErrInvalidState)
		require.Equal(t, internal.AirdropSuccess, f.status(t, id))
	})

	t.Run("checking a waiting airdrop is rejected", func(t *testing.T) {
		f := newRelayFixture(t)
		airdrop := f.newWaitingAirdrop(t, 100)

		err := f.engine.CheckRelayedTx(ctx, airdrop.ID)
		require.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestEngine_Sweeps(t *testing.T) {
	ctx := context.Background()

	t.Run("pending sweep finalizes mined airdrops", func(t *testing.T) {
		f := newRelayFixture(t)
		f.client.balance = big.NewInt(1_000_000_000)
		airdrop := f.newWaitingAirdrop(t, 100)
		require.NoError(t, f.engine.Relay(ctx, airdrop.ID))

		f.client.receipt = &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(1200),
		}
		require.NoError(t, f.engine.CheckPendingAirdrops(ctx))
		require.Equal(t, internal.AirdropSuccess, f.status(t, airdrop.ID))
	})

	t.Run("waiting sweep retries only the first airdrop", func(t *testing.T) {
		f := newRelayFixture(t)
		f.client.balance = big.NewInt(1_000_000_000)

		first := f.newWaitingAirdrop(t, 100)
		second := f.newWaitingAirdrop(t, 100)

		require.NoError(t, f.engine.CheckWaitingAirdrops(ctx))
		require.Equal(t, internal.AirdropPending, f.status(t, first.ID))
		require.Equal(t, internal.AirdropWaitingForRelay, f.status(t, second.ID))
	})

	t.Run("waiting sweep is a no-op with nothing queued", func(t *testing.T) {
		f := newRelayFixture(t)
		require.NoError(t, f.engine.CheckWaitingAirdrops(ctx))
		require.Equal(t, 0, f.client.sentCount())
	})
}
