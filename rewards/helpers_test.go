package rewards

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/ducx-network/peer-rewards/chain"
	"github.com/ducx-network/peer-rewards/rates"
	"github.com/ducx-network/peer-rewards/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.NewDBStorage(filepath.Join(t.TempDir(), "rewards.db"))
	require.NoError(t, err)
	return store
}

// newTestEnode returns a fresh 128-hex enode public key and its derived
// payout address.
func newTestEnode(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	enode := hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)[1:])
	return enode, crypto.PubkeyToAddress(key.PublicKey)
}

// failingRatesServer answers every rate fetch with a 500, forcing the
// last-known-good path.
func failingRatesServer(t *testing.T) *rates.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return rates.NewClient(srv.URL, time.Second)
}

func ratesServer(t *testing.T, body string) *rates.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return rates.NewClient(srv.URL, time.Second)
}

// mockChainClient implements chain.Client for relay tests.
type mockChainClient struct {
	mu sync.Mutex

	balance    *big.Int
	balanceErr error
	nonce      uint64
	nonceErr   error
	receipt    *types.Receipt
	receiptErr error
	sendErr    error

	sent []*types.Transaction
}

var _ chain.Client = (*mockChainClient)(nil)

func (m *mockChainClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return new(big.Int).Set(m.balance), nil
}

func (m *mockChainClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return m.nonce, m.nonceErr
}

func (m *mockChainClient) NetworkID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (m *mockChainClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, tx)
	return nil
}

func (m *mockChainClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if m.receiptErr != nil {
		return nil, m.receiptErr
	}
	if m.receipt == nil {
		return nil, ethereum.NotFound
	}
	return m.receipt, nil
}

func (m *mockChainClient) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
