package storage

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ducx-network/peer-rewards/internal"
)

// RateRepository stores last-known-good exchange rates per currency.
type RateRepository interface {
	// Upsert writes the freshly fetched USD rate for a currency, creating
	// the row with the given fixed-point scale on first sight.
	Upsert(currency string, usdRate decimal.Decimal, decimals int) error

	Get(currency string) (*internal.Rate, error)
}

type rateRepo struct {
	db *gorm.DB
}

// NewRateRepository returns a new instance of RateRepository.
func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepo{db: db}
}

func (r *rateRepo) Upsert(currency string, usdRate decimal.Decimal, decimals int) error {
	var rate internal.Rate
	err := r.db.Where("currency = ?", currency).First(&rate).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rate = internal.Rate{Currency: currency, USDRate: usdRate, Decimals: decimals}
		return r.db.Create(&rate).Error
	case err != nil:
		return err
	}

	return r.db.Model(&internal.Rate{}).
		Where("currency = ?", currency).
		Update("usd_rate", usdRate).Error
}

func (r *rateRepo) Get(currency string) (*internal.Rate, error) {
	var rate internal.Rate
	if err := r.db.Where("currency = ?", currency).First(&rate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rate, nil
}
