package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementRecord is the crash-safe per-bot monetary state (§3, §6).
// It is the only durable record of realized P&L across restarts; an
// OpenPosition surfaces a crash-recovered position for manual review
// (§4.8) and is never auto-reopened.
type SettlementRecord struct {
	RealizedPnLUSD decimal.Decimal `json:"realized_pnl_usd"`
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	LastExitTime   time.Time       `json:"last_exit_time"`
	OpenPosition   *Position       `json:"open_position,omitempty"`
}

// BotStatus is the lifecycle state of a BotSession (§3).
type BotStatus string

const (
	BotStatusCreated BotStatus = "created"
	BotStatusRunning BotStatus = "running"
	BotStatusPaused  BotStatus = "paused"
	BotStatusStopped BotStatus = "stopped"
	BotStatusError   BotStatus = "error"
)

// PricePoint is a single (timestamp, price) sample (§3). History rings
// require timestamps to be non-decreasing across consecutive entries.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}
