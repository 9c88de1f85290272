package pricestream

import (
	"context"
	"testing"
	"time"

	"github.com/betbot/gobet/internal/exchange"
	"github.com/shopspring/decimal"
)

type fakeStreamClient struct {
	marketCh chan exchange.MarketEvent
	polled   decimal.Decimal
	pollErr  error
}

func (f *fakeStreamClient) ResolveTokenID(ctx context.Context, marketSlug string, outcomeIndex int) (string, error) {
	return "", nil
}
func (f *fakeStreamClient) GetOrderBook(ctx context.Context, tokenID string, depth int) (exchange.OrderBook, error) {
	return exchange.OrderBook{}, nil
}
func (f *fakeStreamClient) GetMarketPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return f.polled, f.pollErr
}
func (f *fakeStreamClient) GetBalanceAndAllowance(ctx context.Context, w exchange.Wallet) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}
func (f *fakeStreamClient) PlaceOrder(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error) {
	return exchange.PlaceOrderResult{}, nil
}
func (f *fakeStreamClient) SubscribeMarket(ctx context.Context, tokenID string) (<-chan exchange.MarketEvent, error) {
	return f.marketCh, nil
}
func (f *fakeStreamClient) SubscribeUser(ctx context.Context, w exchange.Wallet) (<-chan exchange.OrderEvent, error) {
	return nil, nil
}

func TestStream_PublishAcceptsPriceChangeImmediately(t *testing.T) {
	s := New(&fakeStreamClient{}, "tok")
	now := time.Now()
	s.publish(decimal.NewFromFloat(0.5), now, false)
	s.publish(decimal.NewFromFloat(0.6), now.Add(time.Millisecond), false)

	price, ts := s.Current()
	if !price.Equal(decimal.NewFromFloat(0.6)) {
		t.Fatalf("got price=%s want=0.6", price)
	}
	if !ts.After(now) {
		t.Fatalf("expected updated timestamp to advance")
	}
}

func TestStream_PublishDedupsSamePriceWithinInterval(t *testing.T) {
	s := New(&fakeStreamClient{}, "tok")
	now := time.Now()
	s.publish(decimal.NewFromFloat(0.5), now, false)
	s.publish(decimal.NewFromFloat(0.5), now.Add(100*time.Millisecond), false)

	price, ts := s.Current()
	if !price.Equal(decimal.NewFromFloat(0.5)) || !ts.Equal(now) {
		t.Fatalf("expected second same-price update within 1s to be dropped, got price=%s ts=%v", price, ts)
	}
}

func TestStream_PublishClampsNonAdvancingTimestamp(t *testing.T) {
	s := New(&fakeStreamClient{}, "tok")
	now := time.Now()
	s.publish(decimal.NewFromFloat(0.5), now, false)
	s.publish(decimal.NewFromFloat(0.7), now, false)

	_, ts := s.Current()
	if !ts.After(now) {
		t.Fatalf("expected clamped timestamp to advance past the previous one, got %v", ts)
	}
}

func TestStream_WarmChClosesOnFirstPublish(t *testing.T) {
	s := New(&fakeStreamClient{}, "tok")
	if s.IsWarm() {
		t.Fatal("expected not warm before any publish")
	}
	s.publish(decimal.NewFromFloat(0.5), time.Now(), false)
	select {
	case <-s.WarmCh():
	default:
		t.Fatal("expected warmCh to be closed after first publish")
	}
	if !s.IsWarm() {
		t.Fatal("expected warm after first publish")
	}
}

func TestStream_SubscribeReceivesUpdates(t *testing.T) {
	s := New(&fakeStreamClient{}, "tok")
	sub := s.Subscribe()
	s.publish(decimal.NewFromFloat(0.42), time.Now(), false)

	select {
	case u := <-sub:
		if !u.Price.Equal(decimal.NewFromFloat(0.42)) {
			t.Fatalf("got price=%s want=0.42", u.Price)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber update")
	}
}

func TestStream_RunStreamForwardsMarketEventsToPoll(t *testing.T) {
	ch := make(chan exchange.MarketEvent, 1)
	fc := &fakeStreamClient{marketCh: ch, polled: decimal.NewFromFloat(0.5)}
	s := New(fc, "tok")
	sub := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runStream(ctx)

	ch <- exchange.MarketEvent{Kind: exchange.MarketEventLastTrade, Price: decimal.NewFromFloat(0.77), Timestamp: time.Now()}

	select {
	case u := <-sub:
		if !u.Price.Equal(decimal.NewFromFloat(0.77)) {
			t.Fatalf("got price=%s want=0.77", u.Price)
		}
		if u.FromPoll {
			t.Fatal("expected stream-sourced update to not be marked FromPoll")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for streamed update")
	}
}

func TestStream_RunStreamIgnoresWideBookSpread(t *testing.T) {
	ch := make(chan exchange.MarketEvent, 1)
	fc := &fakeStreamClient{marketCh: ch}
	s := New(fc, "tok")
	sub := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runStream(ctx)

	ch <- exchange.MarketEvent{Kind: exchange.MarketEventBook, Timestamp: time.Now(), Book: &exchange.OrderBook{
		Bids: []exchange.BookLevel{{Price: decimal.NewFromFloat(0.3), Size: decimal.NewFromInt(10)}},
		Asks: []exchange.BookLevel{{Price: decimal.NewFromFloat(0.6), Size: decimal.NewFromInt(10)}},
	}}

	select {
	case u := <-sub:
		t.Fatalf("expected no update from a wide-spread book event, got %+v", u)
	case <-time.After(200 * time.Millisecond):
	}
}
