package storage

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ducx-network/peer-rewards/internal"
)

// AirdropRepository defines methods to interact with airdrop records and
// their reward line items.
type AirdropRepository interface {
	// Create inserts a new airdrop in WAITING_FOR_RELAY.
	Create() (*internal.Airdrop, error)

	// AddReward appends one recipient line item to an airdrop.
	AddReward(airdropID int64, address string, amount decimal.Decimal) error

	// FindByID loads an airdrop with its rewards, or ErrNotFound.
	FindByID(id int64) (*internal.Airdrop, error)

	// FindByStatus lists airdrops in any of the given states, oldest first,
	// rewards included.
	FindByStatus(statuses ...internal.AirdropStatus) ([]internal.Airdrop, error)

	// CountPendingExcluding counts PENDING airdrops other than id.
	CountPendingExcluding(id int64) (int64, error)

	// SetStatus moves an airdrop to the given state.
	SetStatus(id int64, status internal.AirdropStatus) error

	// MarkPending records a broadcast transaction: hash, consumed nonce and
	// gas price, and the PENDING state, as one update.
	MarkPending(id int64, txHash string, nonce uint64, gasPrice decimal.Decimal) error
}

type airdropRepo struct {
	db *gorm.DB
}

// NewAirdropRepository returns a new instance of AirdropRepository.
func NewAirdropRepository(db *gorm.DB) AirdropRepository {
	return &airdropRepo{db: db}
}

func (r *airdropRepo) Create() (*internal.Airdrop, error) {
	airdrop := internal.Airdrop{Status: internal.AirdropWaitingForRelay}
	if err := r.db.Create(&airdrop).Error; err != nil {
		return nil, err
	}
	return &airdrop, nil
}

func (r *airdropRepo) AddReward(airdropID int64, address string, amount decimal.Decimal) error {
	reward := internal.Reward{
		AirdropID: airdropID,
		Address:   address,
		Amount:    amount,
	}
	return r.db.Create(&reward).Error
}

func (r *airdropRepo) FindByID(id int64) (*internal.Airdrop, error) {
	var airdrop internal.Airdrop
	err := r.db.Preload("Rewards").Where("id = ?", id).First(&airdrop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &airdrop, nil
}

func (r *airdropRepo) FindByStatus(statuses ...internal.AirdropStatus) ([]internal.Airdrop, error) {
	var airdrops []internal.Airdrop
	err := r.db.Preload("Rewards").
		Where("status IN ?", statuses).
		Order("id ASC").
		Find(&airdrops).Error
	if err != nil {
		return nil, err
	}
	return airdrops, nil
}

func (r *airdropRepo) CountPendingExcluding(id int64) (int64, error) {
	var count int64
	err := r.db.Model(&internal.Airdrop{}).
		Where("status = ? AND id <> ?", internal.AirdropPending, id).
		Count(&count).Error
	return count, err
}

func (r *airdropRepo) SetStatus(id int64, status internal.AirdropStatus) error {
	return r.db.Model(&internal.Airdrop{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *airdropRepo) MarkPending(id int64, txHash string, nonce uint64, gasPrice decimal.Decimal) error {
	return r.db.Model(&internal.Airdrop{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    internal.AirdropPending,
			"tx_hash":   txHash,
			"nonce":     nonce,
			"gas_price": gasPrice,
		}).Error
}
