package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/ducx-network/peer-rewards/metrics"
	"github.com/ducx-network/peer-rewards/storage"
)

// RPCCaller is the JSON-RPC surface the liveness poll needs. *rpc.Client
// satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// DialFunc opens a JSON-RPC connection to one endpoint.
type DialFunc func(ctx context.Context, url string) (RPCCaller, error)

// DialRPC is the production DialFunc.
func DialRPC(ctx context.Context, url string) (RPCCaller, error) {
	return rpc.DialContext(ctx, url)
}

type netPeer struct {
	ID        string                     `json:"id"`
	Protocols map[string]json.RawMessage `json:"protocols"`
}

type netPeersResult struct {
	Peers []netPeer `json:"peers"`
}

// Liveness polls the chain nodes for their connected peer sets and feeds the
// uptime ledger: one sample per configured peer per tick, present in the
// aggregate active set meaning online.
type Liveness struct {
	log             *slog.Logger
	store           *storage.Storage
	dial            DialFunc
	urls            []string
	enodes          []string
	timeout         time.Duration
	maxRetries      int
	defaultInterest decimal.Decimal
	clock           clockwork.Clock
}

// LivenessConfig configures a Liveness poller.
type LivenessConfig struct {
	Logger          *slog.Logger
	Store           *storage.Storage
	Dial            DialFunc
	JSONRPCURLs     []string
	Enodes          []string
	Timeout         time.Duration
	MaxRetries      int
	DefaultInterest decimal.Decimal
	Clock           clockwork.Clock
}

// NewLiveness builds a Liveness poller.
func NewLiveness(cfg LivenessConfig) *Liveness {
	dial := cfg.Dial
	if dial == nil {
		dial = DialRPC
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Liveness{
		log:             cfg.Logger,
		store:           cfg.Store,
		dial:            dial,
		urls:            cfg.JSONRPCURLs,
		enodes:          cfg.Enodes,
		timeout:         cfg.Timeout,
		maxRetries:      retries,
		defaultInterest: cfg.DefaultInterest,
		clock:           clock,
	}
}

// ActiveEnodes queries every configured endpoint for its connected peers and
// returns the union of enode IDs speaking the eth protocol. An unreachable
// endpoint is skipped; the call fails only when every endpoint failed.
func (l *Liveness) ActiveEnodes(ctx context.Context) (map[string]struct{}, error) {
	active := make(map[string]struct{})
	reached := 0

	for _, url := range l.urls {
		peers, err := l.queryPeers(ctx, url)
		if err != nil {
			l.log.Warn("liveness endpoint unreachable", "url", url, "err", err)
			continue
		}
		reached++
		for _, peer := range peers {
			raw, ok := peer.Protocols["eth"]
			if !ok || string(raw) == "null" {
				continue
			}
			active[strings.ToLower(strings.TrimPrefix(peer.ID, "0x"))] = struct{}{}
		}
	}

	if reached == 0 {
		return nil, fmt.Errorf("liveness: all %d endpoints unreachable", len(l.urls))
	}
	return active, nil
}

func (l *Liveness) queryPeers(ctx context.Context, url string) ([]netPeer, error) {
	var lastErr error
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, l.timeout)
		peers, err := l.queryPeersOnce(callCtx, url)
		cancel()
		if err == nil {
			return peers, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (l *Liveness) queryPeersOnce(ctx context.Context, url string) ([]netPeer, error) {
	client, err := l.dial(ctx, url)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var result netPeersResult
	if err := client.CallContext(ctx, &result, "parity_netPeers"); err != nil {
		return nil, err
	}
	return result.Peers, nil
}

// Ping runs one liveness tick: fetches the active set and records a sample
// for every configured peer, creating peer rows on first sighting. A total
// poll failure skips the tick without touching the ledger.
func (l *Liveness) Ping(ctx context.Context) error {
	active, err := l.ActiveEnodes(ctx)
	if err != nil {
		return err
	}

	now := l.clock.Now()
	for _, enode := range l.enodes {
		if _, err := l.store.PeerRepo.GetOrCreate(enode, l.defaultInterest); err != nil {
			l.log.Warn("peer create failed", "enode", enode, "err", err)
			continue
		}

		_, online := active[enode]
		if err := l.store.HealthcheckRepo.RecordSample(enode, online, now); err != nil {
			l.log.Warn("sample record failed", "enode", enode, "err", err)
			continue
		}
		if err := l.store.PeerRepo.SetOnline(enode, online, now); err != nil {
			l.log.Warn("online flag update failed", "enode", enode, "err", err)
		}

		state := "offline"
		if online {
			state = "online"
		}
		metrics.SamplesRecorded.WithLabelValues(state).Inc()
	}

	metrics.LivenessTicks.Inc()
	return nil
}
