package risk

import (
	"context"
	"testing"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/shopspring/decimal"
)

func healthyBook() exchange.OrderBook {
	return exchange.OrderBook{
		Bids: []exchange.BookLevel{{Price: decimal.NewFromFloat(0.49), Size: decimal.NewFromInt(1000)}},
		Asks: []exchange.BookLevel{{Price: decimal.NewFromFloat(0.51), Size: decimal.NewFromInt(1000)}},
	}
}

func baseSnapshot(now time.Time) Snapshot {
	return Snapshot{
		Now:                now,
		DryRun:             true,
		Book:               healthyBook(),
		MinBidLiquidityUSD: decimal.NewFromInt(10),
		MinAskLiquidityUSD: decimal.NewFromInt(10),
		MaxSpreadPct:       decimal.NewFromInt(50),
	}
}

func openingDecision() *strategy.Decision {
	return &strategy.Decision{
		Action: domain.ActionBuy, IsOpening: true,
		AmountUSD: decimal.NewFromInt(10), LimitPrice: decimal.NewFromFloat(0.51),
	}
}

func TestValidator_AdmitsHealthyDecision(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	verdict, err := v.Check(context.Background(), openingDecision(), baseSnapshot(time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Admitted {
		t.Fatalf("expected admitted, got %+v", verdict)
	}
}

func TestValidator_RejectsWhenKillswitchOn(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.Killswitch = true
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonKillswitch {
		t.Fatalf("expected killswitch rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsAtSessionCap(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.MaxTradesPerSession = 3
	snap.TradesThisSession = 3
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonSessionCap {
		t.Fatalf("expected session_cap rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsAtSessionLossLimit(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.SessionLossLimitUSD = decimal.NewFromInt(50)
	snap.RealizedPnLUSD = decimal.NewFromInt(-50)
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonSessionLossLimit {
		t.Fatalf("expected session_loss_limit rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsDuringCooldown(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	now := time.Now()
	snap := baseSnapshot(now)
	snap.CooldownSeconds = 30
	snap.LastSignalTime = now.Add(-5 * time.Second)
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonCooldown {
		t.Fatalf("expected cooldown rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsDuringSettlementDelay(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	now := time.Now()
	snap := baseSnapshot(now)
	snap.SettlementDelaySeconds = 5
	snap.LastExitTime = now.Add(-1 * time.Second)
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonSettlementDelay {
		t.Fatalf("expected settlement_delay rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsConcurrentPosition(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.HasPosition = true
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonConcurrentPosition {
		t.Fatalf("expected concurrent_position rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsInsufficientBalanceWhenLive(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.DryRun = false
	snap.BalanceUSD = decimal.NewFromInt(1)
	snap.AllowanceUSD = decimal.NewFromInt(100)
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonInsufficientBalance {
		t.Fatalf("expected insufficient_balance rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsThinLiquidity(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.MinAskLiquidityUSD = decimal.NewFromInt(100000)
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonNoLiquidity {
		t.Fatalf("expected no_liquidity rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsWideSpread(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.MaxSpreadPct = decimal.NewFromFloat(0.1)
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonSpreadTooWide {
		t.Fatalf("expected spread_too_wide rejection, got %+v", verdict)
	}
}

func TestValidator_RejectsSlippageBreach(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	snap.ReferencePrice = decimal.NewFromFloat(0.50)
	snap.SlippageTolerance = decimal.NewFromFloat(0.01)
	d := openingDecision()
	d.LimitPrice = decimal.NewFromFloat(0.60)
	verdict, _ := v.Check(context.Background(), d, snap)
	if verdict.Admitted || verdict.Reason != ReasonSlippageEnvelope {
		t.Fatalf("expected slippage_envelope rejection, got %+v", verdict)
	}
}

func TestValidator_CircuitBreakerOpenBlocksEverythingElse(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	cb.Halt()
	v := NewValidator(cb)
	snap := baseSnapshot(time.Now())
	snap.Killswitch = true // would otherwise fail on killswitch first
	verdict, _ := v.Check(context.Background(), openingDecision(), snap)
	if verdict.Admitted || verdict.Reason != ReasonCircuitBreakerOpen {
		t.Fatalf("expected circuit_breaker_open to take priority, got %+v", verdict)
	}
}

func TestValidator_OnFillSuccessClearsConsecutiveErrors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveErrors: 2})
	v := NewValidator(cb)
	v.OnFillError()
	v.OnFillSuccess()
	v.OnFillError()
	if err := cb.AllowTrading(); err != nil {
		t.Fatalf("expected trading still allowed after reset, got %v", err)
	}
}

func TestValidator_ConsecutiveErrorsTripsBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveErrors: 2})
	v := NewValidator(cb)
	v.OnFillError()
	v.OnFillError()
	if err := cb.AllowTrading(); err == nil {
		t.Fatalf("expected breaker to trip after 2 consecutive errors")
	}
}

func TestValidator_DeterministicOnIdenticalInputs(t *testing.T) {
	v := NewValidator(NewCircuitBreaker(CircuitBreakerConfig{}))
	snap := baseSnapshot(time.Now())
	d := openingDecision()
	v1, _ := v.Check(context.Background(), d, snap)
	v2, _ := v.Check(context.Background(), d, snap)
	if v1.Admitted != v2.Admitted || v1.Reason != v2.Reason {
		t.Fatalf("expected deterministic verdicts, got %+v vs %+v", v1, v2)
	}
}
