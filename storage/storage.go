package storage

import (
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ducx-network/peer-rewards/internal"
)

// ErrNotFound is returned when a record is not found in the database.
var ErrNotFound = errors.New("record not found")

// Storage encapsulates the database connection and repositories.
type Storage struct {
	db *gorm.DB

	PeerRepo        PeerRepository
	HealthcheckRepo HealthcheckRepository
	AirdropRepo     AirdropRepository
	RateRepo        RateRepository
}

// NewDBStorage creates a GORM connection, migrates the schema, seeds the
// sentinel lock row and returns a *Storage struct.
func NewDBStorage(dbFilePath string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&internal.Peer{},
		&internal.Healthcheck{},
		&internal.Airdrop{},
		&internal.Reward{},
		&internal.Rate{},
		&internal.RelayLock{},
	); err != nil {
		return nil, err
	}

	// The sentinel row must exist before the first relay attempt.
	lock := internal.RelayLock{ID: 1, LockedAt: time.Unix(0, 0)}
	if err := db.FirstOrCreate(&lock, internal.RelayLock{ID: 1}).Error; err != nil {
		return nil, err
	}

	return newStorage(db), nil
}

func newStorage(db *gorm.DB) *Storage {
	return &Storage{
		db:              db,
		PeerRepo:        NewPeerRepository(db),
		HealthcheckRepo: NewHealthcheckRepository(db),
		AirdropRepo:     NewAirdropRepository(db),
		RateRepo:        NewRateRepository(db),
	}
}

// Transaction runs fn with every repository bound to one database
// transaction. A non-nil error from fn rolls the whole block back.
func (s *Storage) Transaction(fn func(tx *Storage) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(newStorage(tx))
	})
}

// AcquireRelayLock writes the sentinel row inside the current transaction,
// taking the store's write lock until the transaction ends. Only meaningful
// when called through Transaction.
func (s *Storage) AcquireRelayLock(now time.Time) error {
	return s.db.Model(&internal.RelayLock{}).
		Where("id = ?", 1).
		Update("locked_at", now).Error
}
