package strategy

import (
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/spike"
	"github.com/betbot/gobet/internal/strategy/targetstate"
	"github.com/shopspring/decimal"
)

// SpikeFadeStrategy enters opposite the direction of a detected spike and
// exits on TP/SL/time, then returns to waiting for the next spike (§4.5).
type SpikeFadeStrategy struct {
	*core
}

func NewSpikeFade(cfg Config) *SpikeFadeStrategy {
	return &SpikeFadeStrategy{core: newCore(cfg)}
}

func (s *SpikeFadeStrategy) OnWarm(now time.Time, price decimal.Decimal) *Decision {
	s.warmedAt = now
	switch s.cfg.EntryMode {
	case domain.EntryImmediateBuy:
		return s.enter(domain.SideLong, price, now, "immediate_buy")
	case domain.EntryDelayedBuy:
		s.pendingEntryAt = now.Add(time.Duration(s.cfg.EntryDelaySeconds) * time.Second)
	}
	return nil
}

func (s *SpikeFadeStrategy) OnPriceUpdate(now time.Time, price decimal.Decimal) *Decision {
	if s.machine.Is(targetstate.StateHolding) {
		if d := s.checkExit(now, price); d != nil {
			s.machine.Transition(targetstate.StateExiting)
			return d
		}
		return nil
	}
	if s.machine.Is(targetstate.StateFlat) && s.cfg.EntryMode == domain.EntryDelayedBuy &&
		!s.pendingEntryAt.IsZero() && !now.Before(s.pendingEntryAt) {
		s.pendingEntryAt = time.Time{}
		return s.enter(domain.SideLong, price, now, "delayed_buy")
	}
	return nil
}

func (s *SpikeFadeStrategy) OnSpike(now time.Time, price decimal.Decimal, result spike.Result) *Decision {
	if !result.Detected || !s.machine.Is(targetstate.StateFlat) {
		return nil
	}
	switch result.Direction {
	case spike.DirectionUp:
		return s.enter(domain.SideShort, price, now, "spike_fade_short")
	case spike.DirectionDown:
		return s.enter(domain.SideLong, price, now, "spike_fade_long")
	}
	return nil
}

func (s *SpikeFadeStrategy) enter(side domain.Side, price decimal.Decimal, now time.Time, reason string) *Decision {
	s.machine.Transition(targetstate.StateArmed)
	return openDecision(s.cfg.BotID, side, s.cfg.TradeSizeUSD, price, reason, now)
}

func (s *SpikeFadeStrategy) OnExecutionOutcome(now time.Time, outcome ExecutionOutcome) {
	if !outcome.Filled {
		if s.machine.Is(targetstate.StateArmed) || s.machine.Is(targetstate.StateExiting) {
			s.machine.Transition(targetstate.StateFlat)
		}
		return
	}
	if outcome.Decision != nil && outcome.Decision.IsOpening {
		s.pos = openPosition(outcome.Decision.Side, outcome.FillPrice, s.cfg.TradeSizeUSD, s.cfg.TakeProfitPct, s.cfg.StopLossPct, s.cfg.MaxHoldSeconds, now)
		s.machine.Transition(targetstate.StateHolding)
		return
	}
	// closing fill
	s.pos = nil
	s.machine.Transition(targetstate.StateFlat)
}
