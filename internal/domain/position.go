package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an open Position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is the at-most-one-per-bot open trade (§3).
type Position struct {
	Side             Side            `json:"side"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	EntryTime        time.Time       `json:"entry_time"`
	AmountUSD        decimal.Decimal `json:"amount_usd"`
	Shares           decimal.Decimal `json:"shares"`
	TakeProfitPrice  decimal.Decimal `json:"take_profit_price"`
	StopLossPrice    decimal.Decimal `json:"stop_loss_price"`
	Deadline         time.Time       `json:"deadline"`
	PendingSettlement bool           `json:"pending_settlement"`
}

// Valid enforces the §3 position invariant: an entry price strictly inside
// (0,1) and a strictly positive notional.
func (p *Position) Valid() bool {
	if p == nil {
		return true
	}
	zero := decimal.Zero
	one := decimal.NewFromInt(1)
	return p.EntryPrice.GreaterThan(zero) && p.EntryPrice.LessThan(one) && p.AmountUSD.GreaterThan(zero)
}

// Condition is the comparison a Target's price must satisfy to fire.
type Condition string

const (
	ConditionLE Condition = "<="
	ConditionGE Condition = ">="
)

// Action is the order side a Target intends to submit once its condition
// holds.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Target is the at-most-one-per-bot next intended trade (§3).
type Target struct {
	Action    Action          `json:"action"`
	Price     decimal.Decimal `json:"price"`
	Condition Condition       `json:"condition"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// Holds reports whether price satisfies the target's condition.
func (t *Target) Holds(price decimal.Decimal) bool {
	if t == nil {
		return false
	}
	switch t.Condition {
	case ConditionLE:
		return price.LessThanOrEqual(t.Price)
	case ConditionGE:
		return price.GreaterThanOrEqual(t.Price)
	default:
		return false
	}
}

// Valid enforces the §3/§8 target-consistency invariant: the condition
// must match the action, and the price must be a valid outcome price.
func (t *Target) Valid() bool {
	if t == nil {
		return true
	}
	zero := decimal.Zero
	one := decimal.NewFromInt(1)
	if !(t.Price.GreaterThan(zero) && t.Price.LessThan(one)) {
		return false
	}
	switch t.Action {
	case ActionBuy:
		return t.Condition == ConditionLE
	case ActionSell:
		return t.Condition == ConditionGE
	default:
		return false
	}
}

// NewBuyTarget builds a BUY target at price with condition <=.
func NewBuyTarget(price decimal.Decimal, reason string, now time.Time) *Target {
	return &Target{Action: ActionBuy, Price: price, Condition: ConditionLE, Reason: reason, CreatedAt: now}
}

// NewSellTarget builds a SELL target at price with condition >=.
func NewSellTarget(price decimal.Decimal, reason string, now time.Time) *Target {
	return &Target{Action: ActionSell, Price: price, Condition: ConditionGE, Reason: reason, CreatedAt: now}
}
