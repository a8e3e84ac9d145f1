package game

import (
	"time"

	"coinfactory/internal/factory"
)

type FactoryView struct {
	UserID        string           `json:"user_id"`
	Balance       int64            `json:"balance"`
	WalletBalance int64            `json:"wallet_balance"`
	Forecast      factory.Forecast `json:"forecast"`
	Pipeline      []UpgradeView    `json:"pipeline"`
}

type UpgradeView struct {
	Position    int    `json:"position"`
	Kind        string `json:"kind"`
	Track       string `json:"track"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Level       int    `json:"level"`
	Cost        int64  `json:"cost"`
	RefundValue int64  `json:"refund_value"`
	Owned       bool   `json:"owned"`
	Random      bool   `json:"random"`
	IsMax       bool   `json:"is_max,omitempty"`
}

type TrackView struct {
	Name     string        `json:"name"`
	Flavor   string        `json:"flavor"`
	Started  bool          `json:"started"`
	Upgrades []UpgradeView `json:"upgrades"`
	Next     *UpgradeView  `json:"next,omitempty"`
}

type CycleResult struct {
	CycleID    string         `json:"cycle_id"`
	Seed       int64          `json:"seed"`
	Starting   int64          `json:"starting"`
	Base       int64          `json:"base"`
	Working    int64          `json:"working"`
	Produced   int64          `json:"produced"`
	Delta      int64          `json:"delta"`
	Balance    int64          `json:"balance"`
	WipedCoins int64          `json:"wiped_coins"`
	Wipes      []factory.Wipe `json:"wipes"`
}

type UpgradeInput struct {
	UserID         string
	Track          string
	Upgrade        string
	IdempotencyKey string
}

type UpgradeResult struct {
	Upgrade UpgradeView `json:"upgrade"`
	Amount  int64       `json:"amount"`
	Balance int64       `json:"balance"`
}

type SwapInput struct {
	UserID         string
	Track          string
	Upgrade        string
	Index          int
	IdempotencyKey string
}

type TransferInput struct {
	UserID         string
	Direction      string
	Amount         int64
	IdempotencyKey string
}

type TransferResult struct {
	Direction     string `json:"direction"`
	Amount        int64  `json:"amount"`
	Balance       int64  `json:"balance"`
	WalletBalance int64  `json:"wallet_balance"`
}

// ReplayCommand is one write queued by an offline client.
type ReplayCommand struct {
	Action         string    `json:"action"`
	Track          string    `json:"track,omitempty"`
	Upgrade        string    `json:"upgrade,omitempty"`
	Index          int       `json:"index,omitempty"`
	Amount         int64     `json:"amount,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	QueuedAt       time.Time `json:"queued_at"`
}

type ReplayResult struct {
	Action         string `json:"action"`
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

type CycleLogRow struct {
	ID         string    `json:"id"`
	Seed       int64     `json:"seed"`
	Working    int64     `json:"working"`
	Delta      int64     `json:"delta"`
	WipedCoins int64     `json:"wiped_coins"`
	RanAt      time.Time `json:"ran_at"`
}
