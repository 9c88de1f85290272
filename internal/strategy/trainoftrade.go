package strategy

import (
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/spike"
	"github.com/betbot/gobet/internal/strategy/targetstate"
	"github.com/shopspring/decimal"
)

// TrainOfTradeStrategy always keeps an explicit Target: after every exit it
// re-arms the next entry per rebuy_strategy, cycling
// ARMED -> HOLDING -> EXITING -> COOLDOWN -> ARMED (§4.5).
type TrainOfTradeStrategy struct {
	*core
	cooldownUntil time.Time
	// firedTarget holds the target fireArmedTarget consumed to build its
	// decision, so a rejected fire can restore it instead of stranding the
	// bot in ARMED with a nil target.
	firedTarget *domain.Target
}

func NewTrainOfTrade(cfg Config) *TrainOfTradeStrategy {
	return &TrainOfTradeStrategy{core: newCore(cfg)}
}

func (t *TrainOfTradeStrategy) OnWarm(now time.Time, price decimal.Decimal) *Decision {
	t.warmedAt = now
	switch t.cfg.EntryMode {
	case domain.EntryImmediateBuy:
		return t.enterLong(price, now, "immediate_buy")
	case domain.EntryDelayedBuy:
		t.pendingEntryAt = now.Add(time.Duration(t.cfg.EntryDelaySeconds) * time.Second)
	}
	return nil
}

func (t *TrainOfTradeStrategy) OnPriceUpdate(now time.Time, price decimal.Decimal) *Decision {
	switch t.machine.State() {
	case targetstate.StateHolding:
		if d := t.checkExit(now, price); d != nil {
			t.machine.Transition(targetstate.StateExiting)
			return d
		}
	case targetstate.StateArmed:
		if t.tgt != nil && t.tgt.Holds(price) {
			return t.fireArmedTarget(now, price)
		}
	case targetstate.StateFlat:
		if t.cfg.EntryMode == domain.EntryDelayedBuy && !t.pendingEntryAt.IsZero() && !now.Before(t.pendingEntryAt) {
			t.pendingEntryAt = time.Time{}
			return t.enterLong(price, now, "delayed_buy")
		}
	case targetstate.StateCooldown:
		if !now.Before(t.cooldownUntil) {
			t.machine.Transition(targetstate.StateArmed)
		}
	}
	return nil
}

func (t *TrainOfTradeStrategy) OnSpike(now time.Time, price decimal.Decimal, result spike.Result) *Decision {
	if !result.Detected || t.cfg.EntryMode != domain.EntryWaitForSpike || !t.machine.Is(targetstate.StateFlat) {
		return nil
	}
	if result.Direction == spike.DirectionDown {
		return t.enterLong(price, now, "spike_entry_long")
	}
	return nil
}

func (t *TrainOfTradeStrategy) enterLong(price decimal.Decimal, now time.Time, reason string) *Decision {
	t.machine.Transition(targetstate.StateArmed)
	t.tgt = domain.NewBuyTarget(price, reason, now)
	return openDecision(t.cfg.BotID, domain.SideLong, t.cfg.TradeSizeUSD, price, reason, now)
}

func (t *TrainOfTradeStrategy) fireArmedTarget(now time.Time, price decimal.Decimal) *Decision {
	tgt := t.tgt
	t.tgt = nil
	t.firedTarget = tgt
	return openDecision(t.cfg.BotID, domain.SideLong, t.cfg.TradeSizeUSD, tgt.Price, "target_hit", now)
}

func (t *TrainOfTradeStrategy) OnExecutionOutcome(now time.Time, outcome ExecutionOutcome) {
	if !outcome.Filled {
		switch {
		case t.machine.Is(targetstate.StateExiting):
			t.machine.Transition(targetstate.StateHolding)
		case t.machine.Is(targetstate.StateArmed):
			if t.tgt == nil && t.firedTarget != nil {
				t.tgt = t.firedTarget
			}
		}
		t.firedTarget = nil
		return
	}
	t.firedTarget = nil
	if outcome.Decision != nil && outcome.Decision.IsOpening {
		t.pos = openPosition(domain.SideLong, outcome.FillPrice, t.cfg.TradeSizeUSD, t.cfg.TakeProfitPct, t.cfg.StopLossPct, t.cfg.MaxHoldSeconds, now)
		t.tgt = domain.NewSellTarget(t.pos.TakeProfitPrice, "take_profit_exit", now)
		t.machine.Transition(targetstate.StateHolding)
		return
	}
	// closing fill: compute the next rebuy target per rebuy_strategy and
	// drop into COOLDOWN (the risk validator still gates the next decision
	// on cooldown_seconds / settlement_delay_seconds).
	exitPrice := outcome.FillPrice
	t.pos = nil
	switch t.cfg.RebuyStrategy {
	case domain.RebuyWaitForDrop:
		hundred := decimal.NewFromInt(100)
		dropPrice := exitPrice.Mul(decimal.NewFromInt(1).Sub(t.cfg.RebuyDropPct.Div(hundred)))
		t.tgt = domain.NewBuyTarget(dropPrice, "rebuy_wait_for_drop", now)
	default:
		t.tgt = domain.NewBuyTarget(exitPrice, "rebuy_immediate", now)
	}
	t.cooldownUntil = now.Add(time.Duration(t.cfg.RebuyDelaySeconds) * time.Second)
	t.machine.Transition(targetstate.StateCooldown)
}
