package strategy

import (
	"testing"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/spike"
	"github.com/betbot/gobet/internal/strategy/targetstate"
	"github.com/shopspring/decimal"
)

func totConfig() Config {
	return Config{
		BotID: "bot-1", TakeProfitPct: decimal.NewFromInt(5), StopLossPct: decimal.NewFromInt(5),
		MaxHoldSeconds: 3600, TradeSizeUSD: decimal.NewFromInt(10),
		RebuyStrategy: domain.RebuyImmediate, RebuyDelaySeconds: 30,
		EntryMode: domain.EntryImmediateBuy, SpikeThresholdPct: decimal.NewFromInt(3),
	}
}

func TestTrainOfTrade_ImmediateBuyOnWarm(t *testing.T) {
	s := NewTrainOfTrade(totConfig())
	now := time.Now()
	d := s.OnWarm(now, decimal.NewFromFloat(0.5))
	if d == nil || d.Action != domain.ActionBuy {
		t.Fatalf("expected immediate BUY decision, got %+v", d)
	}
	if s.State() != targetstate.StateArmed {
		t.Fatalf("expected ARMED state, got %s", s.State())
	}
}

func TestTrainOfTrade_WaitForSpikeEntersOnlyOnDownSpike(t *testing.T) {
	cfg := totConfig()
	cfg.EntryMode = domain.EntryWaitForSpike
	s := NewTrainOfTrade(cfg)
	now := time.Now()

	up := spike.Result{Detected: true, Direction: spike.DirectionUp}
	if d := s.OnSpike(now, decimal.NewFromFloat(0.6), up); d != nil {
		t.Fatalf("expected no entry on up-spike, got %+v", d)
	}
	down := spike.Result{Detected: true, Direction: spike.DirectionDown}
	d := s.OnSpike(now, decimal.NewFromFloat(0.4), down)
	if d == nil || d.Action != domain.ActionBuy {
		t.Fatalf("expected BUY entry on down-spike, got %+v", d)
	}
}

func TestTrainOfTrade_ArmedFiresWhenTargetHolds(t *testing.T) {
	cfg := totConfig()
	cfg.EntryMode = domain.EntryWaitForSpike
	s := NewTrainOfTrade(cfg)
	now := time.Now()
	s.OnSpike(now, decimal.NewFromFloat(0.5), spike.Result{Detected: true, Direction: spike.DirectionDown})

	if d := s.OnPriceUpdate(now, decimal.NewFromFloat(0.6)); d != nil {
		t.Fatalf("expected no fire above target price, got %+v", d)
	}
	d := s.OnPriceUpdate(now, decimal.NewFromFloat(0.5))
	if d == nil || d.Reason != "target_hit" {
		t.Fatalf("expected target_hit decision at target price, got %+v", d)
	}
}

func TestTrainOfTrade_ExecutionOutcomeOpensPositionAndSetsSellTarget(t *testing.T) {
	s := NewTrainOfTrade(totConfig())
	now := time.Now()
	d := s.OnWarm(now, decimal.NewFromFloat(0.5))
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: d, Filled: true, FillPrice: decimal.NewFromFloat(0.5)})

	if s.Position() == nil {
		t.Fatal("expected position opened after fill")
	}
	if s.State() != targetstate.StateHolding {
		t.Fatalf("expected HOLDING, got %s", s.State())
	}
	if s.Target() == nil || s.Target().Action != domain.ActionSell {
		t.Fatalf("expected SELL take-profit target set, got %+v", s.Target())
	}
}

func TestTrainOfTrade_TakeProfitExitFiresAtThreshold(t *testing.T) {
	s := NewTrainOfTrade(totConfig())
	now := time.Now()
	openDec := s.OnWarm(now, decimal.NewFromFloat(0.5))
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: openDec, Filled: true, FillPrice: decimal.NewFromFloat(0.5)})

	tp := s.Position().TakeProfitPrice
	d := s.OnPriceUpdate(now, tp)
	if d == nil || d.Reason != "take_profit" {
		t.Fatalf("expected take_profit exit at tp price, got %+v", d)
	}
	if s.State() != targetstate.StateExiting {
		t.Fatalf("expected EXITING after exit fires, got %s", s.State())
	}
}

func TestTrainOfTrade_StopLossExitFiresAtThreshold(t *testing.T) {
	s := NewTrainOfTrade(totConfig())
	now := time.Now()
	openDec := s.OnWarm(now, decimal.NewFromFloat(0.5))
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: openDec, Filled: true, FillPrice: decimal.NewFromFloat(0.5)})

	sl := s.Position().StopLossPrice
	d := s.OnPriceUpdate(now, sl)
	if d == nil || d.Reason != "stop_loss" {
		t.Fatalf("expected stop_loss exit at sl price, got %+v", d)
	}
}

func TestTrainOfTrade_TimeExitFiresAtDeadline(t *testing.T) {
	cfg := totConfig()
	cfg.MaxHoldSeconds = 60
	s := NewTrainOfTrade(cfg)
	now := time.Now()
	openDec := s.OnWarm(now, decimal.NewFromFloat(0.5))
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: openDec, Filled: true, FillPrice: decimal.NewFromFloat(0.5)})

	later := now.Add(61 * time.Second)
	d := s.OnPriceUpdate(later, decimal.NewFromFloat(0.5))
	if d == nil || d.Reason != "time_exit" {
		t.Fatalf("expected time_exit at deadline, got %+v", d)
	}
}

func TestTrainOfTrade_RebuysImmediatelyAfterExit(t *testing.T) {
	s := NewTrainOfTrade(totConfig())
	now := time.Now()
	openDec := s.OnWarm(now, decimal.NewFromFloat(0.5))
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: openDec, Filled: true, FillPrice: decimal.NewFromFloat(0.5)})
	tp := s.Position().TakeProfitPrice
	exitDec := s.OnPriceUpdate(now, tp)
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: exitDec, Filled: true, FillPrice: tp})

	if s.State() != targetstate.StateCooldown {
		t.Fatalf("expected COOLDOWN after closing fill, got %s", s.State())
	}
	if s.Position() != nil {
		t.Fatal("expected position cleared after closing fill")
	}
	if s.Target() == nil || !s.Target().Price.Equal(tp) {
		t.Fatalf("expected rebuy_immediate target at exit price, got %+v", s.Target())
	}

	// once cooldown elapses, the machine re-arms
	after := now.Add(31 * time.Second)
	s.OnPriceUpdate(after, tp)
	if s.State() != targetstate.StateArmed {
		t.Fatalf("expected ARMED after cooldown elapses, got %s", s.State())
	}
}

func TestTrainOfTrade_RebuyWaitForDropSetsLowerTarget(t *testing.T) {
	cfg := totConfig()
	cfg.RebuyStrategy = domain.RebuyWaitForDrop
	cfg.RebuyDropPct = decimal.NewFromInt(10)
	s := NewTrainOfTrade(cfg)
	now := time.Now()
	openDec := s.OnWarm(now, decimal.NewFromFloat(0.5))
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: openDec, Filled: true, FillPrice: decimal.NewFromFloat(0.5)})
	tp := s.Position().TakeProfitPrice
	exitDec := s.OnPriceUpdate(now, tp)
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: exitDec, Filled: true, FillPrice: tp})

	want := tp.Mul(decimal.NewFromFloat(0.9))
	if !s.Target().Price.Equal(want) {
		t.Fatalf("got rebuy target=%s want=%s", s.Target().Price, want)
	}
}

func TestTrainOfTrade_RejectedCloseReturnsToHolding(t *testing.T) {
	s := NewTrainOfTrade(totConfig())
	now := time.Now()
	openDec := s.OnWarm(now, decimal.NewFromFloat(0.5))
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: openDec, Filled: true, FillPrice: decimal.NewFromFloat(0.5)})
	tp := s.Position().TakeProfitPrice
	exitDec := s.OnPriceUpdate(now, tp)
	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: exitDec, Filled: false, Rejected: true})

	if s.State() != targetstate.StateHolding {
		t.Fatalf("expected HOLDING after rejected exit, got %s", s.State())
	}
	if s.Position() == nil {
		t.Fatal("expected position to remain open after rejected exit")
	}
}

func TestTrainOfTrade_RejectedArmedEntryRestoresTarget(t *testing.T) {
	s := NewTrainOfTrade(totConfig())
	now := time.Now()
	price := decimal.NewFromFloat(0.5)

	s.OnWarm(now, price) // ARMED, tgt = buy target at 0.5
	wantPrice := s.Target().Price

	fireDec := s.OnPriceUpdate(now, price) // target holds, fires and clears tgt
	if fireDec == nil {
		t.Fatal("expected the armed target to fire")
	}
	if s.Target() != nil {
		t.Fatal("expected tgt cleared once the armed target fires")
	}

	s.OnExecutionOutcome(now, ExecutionOutcome{Decision: fireDec, Filled: false, Rejected: true})

	if s.State() != targetstate.StateArmed {
		t.Fatalf("expected to remain ARMED after a rejected entry, got %s", s.State())
	}
	if s.Target() == nil || !s.Target().Price.Equal(wantPrice) {
		t.Fatalf("expected target restored at %s after rejection, got %+v", wantPrice, s.Target())
	}

	// the restored target can still fire on the next matching price update.
	if d := s.OnPriceUpdate(now, price); d == nil {
		t.Fatal("expected the restored target to fire again")
	}
}
