package strategy

import (
	"testing"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/spike"
	"github.com/betbot/gobet/internal/strategy/targetstate"
	"github.com/shopspring/decimal"
)

func fadeConfig() Config {
	return Config{
		BotID: "bot-2", TakeProfitPct: decimal.NewFromInt(5), StopLossPct: decimal.NewFromInt(5),
		MaxHoldSeconds: 3600, TradeSizeUSD: decimal.NewFromInt(10), EntryMode: domain.EntryWaitForSpike,
	}
}

func TestSpikeFade_EntersShortOnUpSpike(t *testing.T) {
	s := NewSpikeFade(fadeConfig())
	now := time.Now()
	d := s.OnSpike(now, decimal.NewFromFloat(0.6), spike.Result{Detected: true, Direction: spike.DirectionUp})
	if d == nil || d.Side != domain.SideShort || d.Action != domain.ActionSell {
		t.Fatalf("expected SHORT entry fading an up-spike, got %+v", d)
	}
}

func TestSpikeFade_EntersLongOnDownSpike(t *testing.T) {
	s := NewSpikeFade(fadeConfig())
	now := time.Now()
	d := s.OnSpike(now, decimal.NewFromFloat(0.4), spike.Result{Detected: true, Direction: spike.DirectionDown})
	if d == nil || d.Side != domain.SideLong || d.Action != domain.ActionBuy {
		t.Fatalf("expected LONG entry fading a down-spike, got %+v", d)
	}
}

func TestSpikeFade_IgnoresUndetectedSpike(t *testing.T) {
	s := NewSpikeFade(fadeConfig())
	now := time.Now()
	d := s.OnSpike(now, decimal.NewFromFloat(0.5), spike.Result{Detected: false})
	if d != nil {
		t.Fatalf("expected no decision for undetected spike, got %+v", d)
	}
}

func TestSpikeFade_IgnoresSpikeWhileNotFlat(t *testing.T) {
	s := NewSpikeFade(fadeConfig())
	now := time.Now()
	s.OnSpike(now, decimal.NewFromFloat(0.6), spike.Result{Detected: true, Direction: spike.DirectionUp})
	// still ARMED, not FLAT: a second spike should be ignored.
	d := s.OnSpike(now, decimal.NewFromFloat(0.4), spike.Result{Detected: true, Direction: spike.DirectionDown})
	if d != nil {
		t.Fatalf("expected no re-entry while not FLAT, got %+v", d)
	}
}

func TestSpikeFade_UnfilledEntryReturnsToFlat(t *testing.T) {
	s := NewSpikeFade(fadeConfig())
	now := time.Now()
	d := s.OnSpike(now, decimal.NewFromFloat(0.6), spike.Result{Detected: true, Direction: spike.DirectionUp})
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: d, Filled: false, Rejected: true})
	if s.State() != targetstate.StateFlat {
		t.Fatalf("expected FLAT after rejected entry, got %s", s.State())
	}
}

func TestSpikeFade_ClosingFillReturnsToFlatAndClearsPosition(t *testing.T) {
	s := NewSpikeFade(fadeConfig())
	now := time.Now()
	openDec := s.OnSpike(now, decimal.NewFromFloat(0.6), spike.Result{Detected: true, Direction: spike.DirectionUp})
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: openDec, Filled: true, FillPrice: decimal.NewFromFloat(0.6)})
	if s.State() != targetstate.StateHolding {
		t.Fatalf("expected HOLDING after entry fill, got %s", s.State())
	}

	sl := s.Position().StopLossPrice
	exitDec := s.OnPriceUpdate(now, sl)
	if exitDec == nil {
		t.Fatal("expected exit decision at stop-loss price")
	}
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: exitDec, Filled: true, FillPrice: sl})

	if s.State() != targetstate.StateFlat {
		t.Fatalf("expected FLAT after closing fill, got %s", s.State())
	}
	if s.Position() != nil {
		t.Fatal("expected position cleared after closing fill")
	}
}
