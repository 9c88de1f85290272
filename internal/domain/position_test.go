package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPosition_ValidNilIsValid(t *testing.T) {
	var p *Position
	if !p.Valid() {
		t.Fatalf("nil position should be valid (no position invariant)")
	}
}

func TestPosition_ValidRejectsBoundaryEntryPrice(t *testing.T) {
	p := &Position{EntryPrice: decimal.NewFromInt(1), AmountUSD: decimal.NewFromInt(10)}
	if p.Valid() {
		t.Fatalf("entry_price=1 should be invalid (must be strictly inside (0,1))")
	}
	p.EntryPrice = decimal.Zero
	if p.Valid() {
		t.Fatalf("entry_price=0 should be invalid")
	}
}

func TestPosition_ValidRejectsNonPositiveAmount(t *testing.T) {
	p := &Position{EntryPrice: decimal.NewFromFloat(0.5), AmountUSD: decimal.Zero}
	if p.Valid() {
		t.Fatalf("amount_usd=0 should be invalid")
	}
}

func TestTarget_HoldsBuyCondition(t *testing.T) {
	tg := NewBuyTarget(decimal.NewFromFloat(0.5), "test", time.Now())
	if !tg.Holds(decimal.NewFromFloat(0.5)) {
		t.Fatalf("expected <= condition to hold at exact price")
	}
	if !tg.Holds(decimal.NewFromFloat(0.4)) {
		t.Fatalf("expected <= condition to hold below target price")
	}
	if tg.Holds(decimal.NewFromFloat(0.6)) {
		t.Fatalf("expected <= condition not to hold above target price")
	}
}

func TestTarget_HoldsSellCondition(t *testing.T) {
	tg := NewSellTarget(decimal.NewFromFloat(0.5), "test", time.Now())
	if !tg.Holds(decimal.NewFromFloat(0.6)) {
		t.Fatalf("expected >= condition to hold above target price")
	}
	if tg.Holds(decimal.NewFromFloat(0.4)) {
		t.Fatalf("expected >= condition not to hold below target price")
	}
}

func TestTarget_NilHoldsFalse(t *testing.T) {
	var tg *Target
	if tg.Holds(decimal.NewFromFloat(0.5)) {
		t.Fatalf("nil target should never hold")
	}
}

func TestTarget_ValidEnforcesActionConditionPairing(t *testing.T) {
	tg := &Target{Action: ActionBuy, Condition: ConditionGE, Price: decimal.NewFromFloat(0.5)}
	if tg.Valid() {
		t.Fatalf("BUY target with >= condition should be invalid")
	}
	tg.Condition = ConditionLE
	if !tg.Valid() {
		t.Fatalf("BUY target with <= condition should be valid")
	}
}

func TestTarget_ValidRejectsOutOfRangePrice(t *testing.T) {
	tg := NewBuyTarget(decimal.NewFromInt(1), "x", time.Now())
	if tg.Valid() {
		t.Fatalf("price=1 should be invalid")
	}
}
