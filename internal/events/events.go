// Package events defines the broadcast-bus event taxonomy (§4.9, §6).
package events

import (
	"time"

	"github.com/betbot/gobet/internal/domain"
)

// Type is the discriminator carried on every bus event and every push
// frame sent to a dashboard client.
type Type string

const (
	TypePriceUpdate    Type = "price_update"
	TypePositionUpdate Type = "position_update"
	TypeSpikeDetected  Type = "spike_detected"
	TypeTargetUpdate   Type = "target_update"
	TypeActivity       Type = "activity"
	TypeTradeExecuted  Type = "trade_executed"
	TypePositionClosed Type = "position_closed"
	TypeBotCreated     Type = "bot_created"
	TypeBotUpdated     Type = "bot_updated"
	TypeBotDeleted     Type = "bot_deleted"
	TypeBotStarted     Type = "bot_started"
	TypeBotStopped     Type = "bot_stopped"
	TypeBotPaused      Type = "bot_paused"
	TypeBotResumed     Type = "bot_resumed"
	TypeSettingsUpdated Type = "settings_updated"
	TypeError          Type = "error"
	TypeInit           Type = "init"
	TypeSubscriberLagged Type = "subscriber_lagged"
)

// Event is the envelope published on the broadcast bus and mirrored,
// verbatim, as a push frame: {type, bot_id?, timestamp, data}.
type Event struct {
	Type      Type        `json:"type"`
	BotID     string      `json:"bot_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// PriceUpdateData is the payload of a price_update event.
type PriceUpdateData struct {
	Price    string `json:"price"`
	BestBid  string `json:"best_bid,omitempty"`
	BestAsk  string `json:"best_ask,omitempty"`
}

// SpikeDetectedData is the payload of a spike_detected event.
type SpikeDetectedData struct {
	MaxChangePct string `json:"max_change_pct"`
	WindowSec    int64  `json:"window_sec"`
	Direction    string `json:"direction"`
}

// TradeExecutedData is the payload of a trade_executed event.
type TradeExecutedData struct {
	Side      domain.Side `json:"side"`
	AmountUSD string      `json:"amount_usd"`
	FillPrice string      `json:"fill_price"`
	OrderID   string      `json:"order_id"`
	Simulated bool        `json:"simulated"`
}

// PositionClosedData is the payload of a position_closed event.
type PositionClosedData struct {
	PnLUSD string `json:"pnl_usd"`
	PnLPct string `json:"pnl_pct"`
	Reason string `json:"reason"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// BotSnapshot is the minimal bot summary attached to bot_* lifecycle events.
type BotSnapshot struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Status domain.BotStatus `json:"status"`
}

// New builds an Event, stamping the supplied time.
func New(typ Type, botID string, at time.Time, data interface{}) Event {
	return Event{Type: typ, BotID: botID, Timestamp: at, Data: data}
}
