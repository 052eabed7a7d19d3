package api

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ducx-network/peer-rewards/chain"
	"github.com/ducx-network/peer-rewards/internal"
	"github.com/ducx-network/peer-rewards/rewards"
	"github.com/ducx-network/peer-rewards/storage"
)

// Handler struct to hold dependencies
type Handler struct {
	Log              *slog.Logger
	Storage          *storage.Storage
	Accounting       *rewards.Accounting
	RewardMinPercent float64
}

// PeerStatus is the status-query response body.
type PeerStatus struct {
	OnlineStatus    bool    `json:"online_status"`
	OnlinePercent   float64 `json:"online_percent"`
	ExpectedRewards string  `json:"expected_rewards"`
}

// NewRouter wires the status endpoint and the metrics exporter.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.Default()
	router.POST("/api/v1/status/:id", h.GetPeerStatus)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// GetPeerStatus answers a status query for one peer, identified by a 64-hex
// node ID, a 128-hex public key, or an address.
func (h *Handler) GetPeerStatus(c *gin.Context) {
	id := strings.ToLower(strings.TrimPrefix(c.Param("id"), "0x"))

	peer, ok := h.resolvePeer(c, id)
	if !ok {
		return
	}

	percent, err := h.Storage.HealthcheckRepo.OnlinePercent(peer.Enode)
	if err != nil {
		h.Log.Warn("online percent lookup failed", "enode", peer.Enode, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute online percent"})
		return
	}

	expected := "0"
	if percent >= h.RewardMinPercent {
		amount, err := h.Accounting.CountRewardAmount(c.Request.Context(), peer.RewardInterest, percent)
		if err != nil {
			h.Log.Warn("expected reward computation failed", "enode", peer.Enode, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute expected rewards"})
			return
		}
		expected = amount.String()
	}

	c.JSON(http.StatusOK, PeerStatus{
		OnlineStatus:    peer.IsOnline,
		OnlinePercent:   percent,
		ExpectedRewards: expected,
	})
}

// resolvePeer maps the request identifier to a stored peer, writing the 400
// or 401 response itself when it cannot.
func (h *Handler) resolvePeer(c *gin.Context, id string) (*internal.Peer, bool) {
	var (
		peer *internal.Peer
		err  error
	)

	switch {
	case len(id) == 128 && isHex(id):
		// Full public key; must parse as a curve point.
		if _, derr := chain.PubkeyToAddress(id); derr != nil {
			h.invalidInput(c)
			return nil, false
		}
		peer, err = h.Storage.PeerRepo.FindByEnode(id)

	case len(id) == 64 && isHex(id):
		peer, err = h.findByNodeID(id)

	case common.IsHexAddress(id):
		peer, err = h.Storage.PeerRepo.FindByAddress(common.HexToAddress(id).Hex())

	default:
		h.invalidInput(c)
		return nil, false
	}

	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "This public key is not recognized by the backend",
			})
			return nil, false
		}
		h.Log.Warn("peer lookup failed", "id", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up peer"})
		return nil, false
	}
	return peer, true
}

// findByNodeID matches a 32-byte node ID, the keccak hash of the enode
// public key, against the stored peers.
func (h *Handler) findByNodeID(id string) (*internal.Peer, error) {
	peers, err := h.Storage.PeerRepo.FindAll()
	if err != nil {
		return nil, err
	}
	for i := range peers {
		raw, err := hex.DecodeString(peers[i].Enode)
		if err != nil {
			continue
		}
		if hex.EncodeToString(crypto.Keccak256(raw)) == id {
			return &peers[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (h *Handler) invalidInput(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request: not a public key nor DUCX address",
	})
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
