package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ducx-network/peer-rewards/internal"
)

// HealthcheckRepository is the uptime ledger: rolling online/total counters in
// day-partitioned buckets, one bucket chain per peer.
type HealthcheckRepository interface {
	// RecordSample appends one liveness observation to the peer's current
	// bucket, creating a fresh bucket when the newest one is older than 24h.
	RecordSample(enode string, online bool, now time.Time) error

	// LatestBucket returns the peer's most recent bucket, or ErrNotFound.
	LatestBucket(enode string) (*internal.Healthcheck, error)

	// LatestEligibleBucket returns the most recent bucket that has collected
	// at least minSamples observations, or ErrNotFound.
	LatestEligibleBucket(enode string, minSamples int64) (*internal.Healthcheck, error)

	// OnlinePercent returns the uptime share of the latest bucket in
	// [0, 100], or 0.0 when the peer has no bucket yet. Never errors on
	// missing data.
	OnlinePercent(enode string) (float64, error)
}

type healthcheckRepo struct {
	db *gorm.DB
}

// NewHealthcheckRepository returns a new instance of HealthcheckRepository.
func NewHealthcheckRepository(db *gorm.DB) HealthcheckRepository {
	return &healthcheckRepo{db: db}
}

func (r *healthcheckRepo) RecordSample(enode string, online bool, now time.Time) error {
	cutoff := now.Add(-24 * time.Hour)

	var bucket internal.Healthcheck
	err := r.db.Where("peer_enode = ? AND timestamp >= ?", enode, cutoff).
		Order("timestamp DESC").
		First(&bucket).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		bucket = internal.Healthcheck{PeerEnode: enode, Timestamp: now}
	case err != nil:
		return err
	}

	if online {
		bucket.OnlineCounter++
	}
	bucket.TotalCounter++
	return r.db.Save(&bucket).Error
}

func (r *healthcheckRepo) LatestBucket(enode string) (*internal.Healthcheck, error) {
	var bucket internal.Healthcheck
	err := r.db.Where("peer_enode = ?", enode).
		Order("timestamp DESC").
		First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (r *healthcheckRepo) LatestEligibleBucket(enode string, minSamples int64) (*internal.Healthcheck, error) {
	var bucket internal.Healthcheck
	err := r.db.Where("peer_enode = ? AND total_counter >= ?", enode, minSamples).
		Order("timestamp DESC").
		First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (r *healthcheckRepo) OnlinePercent(enode string) (float64, error) {
	bucket, err := r.LatestBucket(enode)
	if errors.Is(err, ErrNotFound) {
		return 0.0, nil
	}
	if err != nil {
		return 0.0, err
	}
	return bucket.OnlinePercent(), nil
}
