// Package strategy implements the Train-of-Trade / Spike-fade state
// machine (§4.5): at any time a Strategy owns at most one Target and at
// most one Position, and decides entries, exits, and rebuys from price
// updates and spike signals.
package strategy

import (
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/spike"
	"github.com/betbot/gobet/internal/strategy/targetstate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decision is a proposed trade, carrying a monotonically increasing
// decision_id for idempotent execution (§4.5).
type Decision struct {
	ID         string
	BotID      string
	Action     domain.Action
	Side       domain.Side // intended Position side for an opening decision
	IsOpening  bool
	AmountUSD  decimal.Decimal
	LimitPrice decimal.Decimal
	Reason     string
	CreatedAt  time.Time
}

// ExecutionOutcome is the strategy-facing mirror of an executor result;
// the execution package's richer Outcome is translated into this by the
// bot session to avoid a strategy<->execution import cycle.
type ExecutionOutcome struct {
	Decision     *Decision
	Filled       bool
	FillPrice    decimal.Decimal
	FillShares   decimal.Decimal
	Simulated    bool
	Rejected     bool
	RejectReason string
}

// Strategy is the per-bot decision engine.
type Strategy interface {
	OnWarm(now time.Time, price decimal.Decimal) *Decision
	OnPriceUpdate(now time.Time, price decimal.Decimal) *Decision
	OnSpike(now time.Time, price decimal.Decimal, result spike.Result) *Decision
	OnExecutionOutcome(now time.Time, outcome ExecutionOutcome)
	State() targetstate.State
	Position() *domain.Position
	Target() *domain.Target
}

// Config is the subset of BotConfig the strategy needs.
type Config struct {
	BotID               string
	TakeProfitPct       decimal.Decimal
	StopLossPct         decimal.Decimal
	MaxHoldSeconds      int64
	TradeSizeUSD        decimal.Decimal
	RebuyStrategy       domain.RebuyStrategy
	RebuyDelaySeconds   int64
	RebuyDropPct        decimal.Decimal
	EntryMode           domain.EntryMode
	EntryDelaySeconds   int64
	SpikeThresholdPct   decimal.Decimal
}

// core holds the shared mutable state and exit-check logic used by both
// strategy modes.
type core struct {
	cfg     Config
	machine *targetstate.Machine
	pos     *domain.Position
	tgt     *domain.Target

	entryArmedAt time.Time
	pendingEntryAt time.Time
	warmedAt     time.Time
}

func newCore(cfg Config) *core {
	return &core{cfg: cfg, machine: targetstate.New()}
}

func (c *core) State() targetstate.State { return c.machine.State() }
func (c *core) Position() *domain.Position { return c.pos }
func (c *core) Target() *domain.Target     { return c.tgt }

func newDecisionID() string { return uuid.NewString() }

// openLongDecision builds a BUY decision that would open a LONG position.
func openDecision(botID string, side domain.Side, amount, price decimal.Decimal, reason string, now time.Time) *Decision {
	action := domain.ActionBuy
	if side == domain.SideShort {
		action = domain.ActionSell
	}
	return &Decision{
		ID: newDecisionID(), BotID: botID, Action: action, Side: side, IsOpening: true,
		AmountUSD: amount, LimitPrice: price, Reason: reason, CreatedAt: now,
	}
}

// closeDecision builds the closing order's decision for the current
// position.
func (c *core) closeDecision(price decimal.Decimal, reason string, now time.Time) *Decision {
	action := domain.ActionSell
	if c.pos.Side == domain.SideShort {
		action = domain.ActionBuy
	}
	return &Decision{
		ID: newDecisionID(), BotID: c.cfg.BotID, Action: action, Side: c.pos.Side, IsOpening: false,
		AmountUSD: c.pos.AmountUSD, LimitPrice: price, Reason: reason, CreatedAt: now,
	}
}

// checkExit implements the §4.5 HOLDING exit ladder: take-profit,
// stop-loss, then time exit, in that order.
func (c *core) checkExit(now time.Time, price decimal.Decimal) *Decision {
	if c.pos == nil {
		return nil
	}
	p := c.pos
	switch p.Side {
	case domain.SideLong:
		if price.GreaterThanOrEqual(p.TakeProfitPrice) {
			return c.closeDecision(price, "take_profit", now)
		}
		if price.LessThanOrEqual(p.StopLossPrice) {
			return c.closeDecision(price, "stop_loss", now)
		}
	case domain.SideShort:
		if price.LessThanOrEqual(p.TakeProfitPrice) {
			return c.closeDecision(price, "take_profit", now)
		}
		if price.GreaterThanOrEqual(p.StopLossPrice) {
			return c.closeDecision(price, "stop_loss", now)
		}
	}
	if !now.Before(p.Deadline) {
		return c.closeDecision(price, "time_exit", now)
	}
	return nil
}

// openPosition constructs the Position for a newly filled opening order,
// computing TP/SL prices and the max-hold deadline (§3).
func openPosition(side domain.Side, entryPrice, amountUSD decimal.Decimal, tpPct, slPct decimal.Decimal, maxHoldSeconds int64, now time.Time) *domain.Position {
	shares := amountUSD.Div(entryPrice)
	var tp, sl decimal.Decimal
	hundred := decimal.NewFromInt(100)
	if side == domain.SideLong {
		tp = entryPrice.Mul(decimal.NewFromInt(1).Add(tpPct.Div(hundred)))
		sl = entryPrice.Mul(decimal.NewFromInt(1).Sub(slPct.Div(hundred)))
	} else {
		tp = entryPrice.Mul(decimal.NewFromInt(1).Sub(tpPct.Div(hundred)))
		sl = entryPrice.Mul(decimal.NewFromInt(1).Add(slPct.Div(hundred)))
	}
	return &domain.Position{
		Side: side, EntryPrice: entryPrice, EntryTime: now, AmountUSD: amountUSD, Shares: shares,
		TakeProfitPrice: tp, StopLossPrice: sl, Deadline: now.Add(time.Duration(maxHoldSeconds) * time.Second),
	}
}
