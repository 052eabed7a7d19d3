package storage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ducx-network/peer-rewards/internal"
)

// PeerRepository defines methods for interacting with peers.
type PeerRepository interface {
	// GetOrCreate returns the peer for enode, creating it with the given
	// default reward interest on first sighting.
	GetOrCreate(enode string, defaultInterest decimal.Decimal) (*internal.Peer, error)

	FindAll() ([]internal.Peer, error)
	FindByEnode(enode string) (*internal.Peer, error)
	FindByAddress(address string) (*internal.Peer, error)

	// FindWithoutAddress lists peers whose payout address has not been
	// derived yet.
	FindWithoutAddress() ([]internal.Peer, error)

	SetAddress(enode, address string) error

	// SetOnline records the result of one liveness tick for the peer.
	SetOnline(enode string, online bool, at time.Time) error
}

type peerRepo struct {
	db *gorm.DB
}

// NewPeerRepository returns a new instance of PeerRepository.
func NewPeerRepository(db *gorm.DB) PeerRepository {
	return &peerRepo{db: db}
}

func (r *peerRepo) GetOrCreate(enode string, defaultInterest decimal.Decimal) (*internal.Peer, error) {
	var peer internal.Peer
	err := r.db.Where("enode = ?", enode).First(&peer).Error
	if err == nil {
		return &peer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	peer = internal.Peer{Enode: enode, RewardInterest: defaultInterest}
	if err := r.db.Create(&peer).Error; err != nil {
		return nil, err
	}
	return &peer, nil
}

func (r *peerRepo) FindAll() ([]internal.Peer, error) {
	var peers []internal.Peer
	if err := r.db.Find(&peers).Error; err != nil {
		return nil, err
	}
	return peers, nil
}

func (r *peerRepo) FindByEnode(enode string) (*internal.Peer, error) {
	var peer internal.Peer
	if err := r.db.Where("enode = ?", enode).First(&peer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &peer, nil
}

func (r *peerRepo) FindByAddress(address string) (*internal.Peer, error) {
	var peer internal.Peer
	if err := r.db.Where("pubkey_address = ?", address).First(&peer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &peer, nil
}

func (r *peerRepo) FindWithoutAddress() ([]internal.Peer, error) {
	var peers []internal.Peer
	if err := r.db.Where("pubkey_address = '' OR pubkey_address IS NULL").Find(&peers).Error; err != nil {
		return nil, err
	}
	return peers, nil
}

func (r *peerRepo) SetAddress(enode, address string) error {
	return r.db.Model(&internal.Peer{}).
		Where("enode = ?", enode).
		Update("pubkey_address", address).Error
}

func (r *peerRepo) SetOnline(enode string, online bool, at time.Time) error {
	updates := map[string]interface{}{"is_online": online}
	if online {
		updates["last_seen_at"] = at
	}
	return r.db.Model(&internal.Peer{}).
		Where("enode = ?", enode).
		Updates(updates).Error
}
