package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

// AirdropStatus is the lifecycle state of one batched payout attempt.
type AirdropStatus string

const (
	AirdropWaitingForRelay     AirdropStatus = "WAITING_FOR_RELAY"
	AirdropInsufficientBalance AirdropStatus = "INSUFFICIENT_BALANCE"
	AirdropPending             AirdropStatus = "PENDING"
	AirdropSuccess             AirdropStatus = "SUCCESS"
	AirdropRevert              AirdropStatus = "REVERT"
)

// Terminal reports whether no further transition is allowed from s.
func (s AirdropStatus) Terminal() bool {
	return s == AirdropSuccess || s == AirdropRevert
}

// Peer represents one configured network node, keyed by its enode public key.
type Peer struct {
	Enode          string          `gorm:"primaryKey" json:"enode"`
	PubkeyAddress  string          `json:"pubkey_address"`
	RewardInterest decimal.Decimal `gorm:"type:numeric" json:"reward_interest"`
	IsOnline       bool            `json:"is_online"`
	LastSeenAt     time.Time       `json:"last_seen_at"`

	Healthchecks []Healthcheck `gorm:"foreignKey:PeerEnode" json:"-"`
}

// Healthcheck is a day-scoped uptime bucket: one row per peer per 24h window.
type Healthcheck struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PeerEnode     string    `gorm:"index;not null" json:"peer_enode"`
	Timestamp     time.Time `json:"timestamp"`
	OnlineCounter int64     `json:"online_counter"`
	TotalCounter  int64     `json:"total_counter"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// OnlinePercent returns the bucket's uptime share in [0, 100], rounded to two
// decimal places. A bucket that has not accumulated samples yet counts as 0.
func (h Healthcheck) OnlinePercent() float64 {
	if h.TotalCounter == 0 {
		return 0.0
	}
	p := decimal.NewFromInt(h.OnlineCounter * 100).
		Div(decimal.NewFromInt(h.TotalCounter)).
		Round(2)
	f, _ := p.Float64()
	return f
}

// Airdrop is one batched multisender submission and its audit record.
type Airdrop struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Status    AirdropStatus   `gorm:"not null;default:WAITING_FOR_RELAY" json:"status"`
	Nonce     *uint64         `json:"nonce"`
	GasPrice  decimal.Decimal `gorm:"type:numeric" json:"gas_price"`
	TxHash    string          `gorm:"default:''" json:"tx_hash"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	Rewards []Reward `gorm:"foreignKey:AirdropID" json:"rewards"`
}

// Reward is one recipient line item of an Airdrop. Address and amount are
// immutable once the airdrop leaves WAITING_FOR_RELAY.
type Reward struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AirdropID int64           `gorm:"index;not null" json:"airdrop_id"`
	Address   string          `gorm:"not null" json:"address"`
	Amount    decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
}

// Rate is the last known exchange rate for one currency: how many USD one
// unit of the currency is worth, plus the currency's fixed-point scale.
type Rate struct {
	Currency  string          `gorm:"primaryKey" json:"currency"`
	USDRate   decimal.Decimal `gorm:"type:numeric" json:"usd_rate"`
	Decimals  int             `json:"decimals"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// RelayLock is the sentinel row serializing relay attempts. It carries no
// business data; writing it inside a transaction takes the store's write lock
// for the duration of that transaction.
type RelayLock struct {
	ID       int64     `gorm:"primaryKey"`
	LockedAt time.Time `json:"locked_at"`
}
