package execution

import (
	"context"
	"testing"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/shopspring/decimal"
)

// fakeClient is a minimal exchange.Client stub whose PlaceOrder behavior is
// scripted per test.
type fakeClient struct {
	placeOrder func(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error)
	calls      int
}

func (f *fakeClient) ResolveTokenID(ctx context.Context, marketSlug string, outcomeIndex int) (string, error) {
	return "", nil
}
func (f *fakeClient) GetOrderBook(ctx context.Context, tokenID string, depth int) (exchange.OrderBook, error) {
	return exchange.OrderBook{}, nil
}
func (f *fakeClient) GetMarketPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (f *fakeClient) GetBalanceAndAllowance(ctx context.Context, w exchange.Wallet) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}
func (f *fakeClient) PlaceOrder(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error) {
	f.calls++
	return f.placeOrder(ctx, w, tokenID, side, amountUSD, limitPrice)
}
func (f *fakeClient) SubscribeMarket(ctx context.Context, tokenID string) (<-chan exchange.MarketEvent, error) {
	return nil, nil
}
func (f *fakeClient) SubscribeUser(ctx context.Context, w exchange.Wallet) (<-chan exchange.OrderEvent, error) {
	return nil, nil
}

func openingDecision(id string) *strategy.Decision {
	return &strategy.Decision{
		ID: id, Action: domain.ActionBuy, Side: domain.SideLong, IsOpening: true,
		AmountUSD: decimal.NewFromInt(10), LimitPrice: decimal.NewFromFloat(0.5), CreatedAt: time.Now(),
	}
}

func TestExecutor_DryRunSynthesizesFill(t *testing.T) {
	fc := &fakeClient{}
	e := NewExecutor(fc, exchange.Wallet{}, "tok", true)
	out, err := e.Execute(context.Background(), openingDecision("d1"), decimal.NewFromFloat(0.5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Filled || !out.Simulated {
		t.Fatalf("expected simulated fill, got %+v", out)
	}
	if fc.calls != 0 {
		t.Fatalf("expected no live calls in dry-run, got %d", fc.calls)
	}
}

func TestExecutor_LiveFillSucceeds(t *testing.T) {
	fc := &fakeClient{placeOrder: func(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error) {
		return exchange.PlaceOrderResult{Kind: exchange.ResultFilled, FillPrice: decimal.NewFromFloat(0.5), FillShares: decimal.NewFromInt(20), OrderID: "o1"}, nil
	}}
	e := NewExecutor(fc, exchange.Wallet{}, "tok", false)
	out, err := e.Execute(context.Background(), openingDecision("d2"), decimal.NewFromFloat(0.5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Filled || out.OrderID != "o1" {
		t.Fatalf("expected live fill, got %+v", out)
	}
}

func TestExecutor_PermanentRejectionDoesNotRetry(t *testing.T) {
	fc := &fakeClient{placeOrder: func(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error) {
		return exchange.PlaceOrderResult{}, &exchange.ErrPermanent{Reason: exchange.ReasonOther, Detail: "bad request"}
	}}
	e := NewExecutor(fc, exchange.Wallet{}, "tok", false)
	out, err := e.Execute(context.Background(), openingDecision("d3"), decimal.NewFromFloat(0.5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Rejected {
		t.Fatalf("expected rejected outcome, got %+v", out)
	}
	if fc.calls != 1 {
		t.Fatalf("expected exactly one attempt on permanent rejection, got %d", fc.calls)
	}
}

func TestExecutor_TransientRetriesThenSucceeds(t *testing.T) {
	attempt := 0
	fc := &fakeClient{placeOrder: func(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error) {
		attempt++
		if attempt < 2 {
			return exchange.PlaceOrderResult{}, &exchange.ErrTransient{}
		}
		return exchange.PlaceOrderResult{Kind: exchange.ResultFilled, FillPrice: decimal.NewFromFloat(0.5), FillShares: decimal.NewFromInt(20), OrderID: "o2"}, nil
	}}
	e := NewExecutor(fc, exchange.Wallet{}, "tok", false)
	out, err := e.Execute(context.Background(), openingDecision("d4"), decimal.NewFromFloat(0.5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Filled {
		t.Fatalf("expected eventual fill after transient retry, got %+v", out)
	}
	if attempt != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempt)
	}
}

func TestExecutor_DuplicateDecisionIDIsRejectedWithoutCallingClient(t *testing.T) {
	fc := &fakeClient{placeOrder: func(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error) {
		return exchange.PlaceOrderResult{Kind: exchange.ResultFilled, FillPrice: decimal.NewFromFloat(0.5), FillShares: decimal.NewFromInt(20)}, nil
	}}
	e := NewExecutor(fc, exchange.Wallet{}, "tok", false)
	d := openingDecision("d5")
	if _, err := e.Execute(context.Background(), d, decimal.NewFromFloat(0.5), nil); err != nil {
		t.Fatalf("unexpected error on first execute: %v", err)
	}
	out, err := e.Execute(context.Background(), d, decimal.NewFromFloat(0.5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Filled || out.RejectReason != "duplicate_decision_id" {
		t.Fatalf("expected duplicate rejection on second execute of same decision, got %+v", out)
	}
	if fc.calls != 1 {
		t.Fatalf("expected client called exactly once across both executes, got %d", fc.calls)
	}
}

func TestExecutor_AppliesPnLOnClosingLongFill(t *testing.T) {
	fc := &fakeClient{}
	e := NewExecutor(fc, exchange.Wallet{}, "tok", true)
	prev := &domain.Position{Side: domain.SideLong, EntryPrice: decimal.NewFromFloat(0.5), Shares: decimal.NewFromInt(20)}
	closeDec := &strategy.Decision{ID: "d6", Action: domain.ActionSell, IsOpening: false, AmountUSD: decimal.NewFromInt(10), LimitPrice: decimal.NewFromFloat(0.6)}
	out, err := e.Execute(context.Background(), closeDec, decimal.NewFromFloat(0.6), prev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.NewFromInt(20).Mul(decimal.NewFromFloat(0.1))
	if !out.PnLUSD.Equal(want) {
		t.Fatalf("got pnl_usd=%s want=%s", out.PnLUSD, want)
	}
}

func TestInFlightDeduper_RejectsWithinTTL(t *testing.T) {
	d := NewInFlightDeduper(time.Minute, 4)
	if err := d.TryAcquire("k1"); err != nil {
		t.Fatalf("unexpected error on first acquire: %v", err)
	}
	if err := d.TryAcquire("k1"); err != ErrDuplicateInFlight {
		t.Fatalf("expected duplicate error on second acquire, got %v", err)
	}
	d.Release("k1")
	if err := d.TryAcquire("k1"); err != nil {
		t.Fatalf("expected acquire to succeed after release, got %v", err)
	}
}
