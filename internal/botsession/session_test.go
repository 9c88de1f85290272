package botsession

import (
	"context"
	"testing"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/events"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/risk"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/shopspring/decimal"
)

type fakeSessionClient struct {
	price decimal.Decimal
	book  exchange.OrderBook
}

func (f *fakeSessionClient) ResolveTokenID(ctx context.Context, marketSlug string, outcomeIndex int) (string, error) {
	return "tok", nil
}
func (f *fakeSessionClient) GetOrderBook(ctx context.Context, tokenID string, depth int) (exchange.OrderBook, error) {
	return f.book, nil
}
func (f *fakeSessionClient) GetMarketPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return f.price, nil
}
func (f *fakeSessionClient) GetBalanceAndAllowance(ctx context.Context, w exchange.Wallet) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(1000), decimal.NewFromInt(1000), nil
}
func (f *fakeSessionClient) PlaceOrder(ctx context.Context, w exchange.Wallet, tokenID string, side exchange.OrderSide, amountUSD, limitPrice decimal.Decimal) (exchange.PlaceOrderResult, error) {
	return exchange.PlaceOrderResult{Kind: exchange.ResultFilled, FillPrice: limitPrice, FillShares: amountUSD.Div(limitPrice), OrderID: "o1"}, nil
}
func (f *fakeSessionClient) SubscribeMarket(ctx context.Context, tokenID string) (<-chan exchange.MarketEvent, error) {
	return make(chan exchange.MarketEvent), nil
}
func (f *fakeSessionClient) SubscribeUser(ctx context.Context, w exchange.Wallet) (<-chan exchange.OrderEvent, error) {
	return nil, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) { p.events = append(p.events, ev) }

func healthyOrderBook() exchange.OrderBook {
	return exchange.OrderBook{
		Bids: []exchange.BookLevel{{Price: decimal.NewFromFloat(0.49), Size: decimal.NewFromInt(1000)}},
		Asks: []exchange.BookLevel{{Price: decimal.NewFromFloat(0.51), Size: decimal.NewFromInt(1000)}},
	}
}

func testConfig() domain.BotConfig {
	return domain.BotConfig{
		ID: "bot-1", Name: "test", TokenID: "tok",
		SignatureMode:  domain.SignatureModeDirect,
		StrategyMode:   domain.StrategyTrainOfTrade,
		EntryMode:      domain.EntryImmediateBuy,
		TakeProfitPct:  decimal.NewFromInt(5),
		StopLossPct:    decimal.NewFromInt(5),
		MaxHoldSeconds: 3600,
		TradeSizeUSD:   decimal.NewFromInt(10),
		MaxBalanceUSD:  decimal.NewFromInt(1000),
		DryRun:         true,
		SpikeWindowsSeconds: []int64{30},
		SpikeThresholdPct:   decimal.NewFromInt(3),
		MinBidLiquidityUSD:  decimal.NewFromInt(5),
		MinAskLiquidityUSD:  decimal.NewFromInt(5),
		MaxSpreadPct:        decimal.NewFromInt(10),
	}
}

func newTestSession(cfg domain.BotConfig, pub Publisher) (*Session, *fakeSessionClient) {
	fc := &fakeSessionClient{price: decimal.NewFromFloat(0.5), book: healthyOrderBook()}
	return newTestSessionWithClient(cfg, pub, fc), fc
}

func newTestSessionWithClient(cfg domain.BotConfig, pub Publisher, fc *fakeSessionClient) *Session {
	strat := strategy.NewTrainOfTrade(strategy.Config{
		BotID: cfg.ID, TakeProfitPct: cfg.TakeProfitPct, StopLossPct: cfg.StopLossPct,
		MaxHoldSeconds: cfg.MaxHoldSeconds, TradeSizeUSD: cfg.TradeSizeUSD,
		RebuyStrategy: cfg.RebuyStrategy, RebuyDelaySeconds: cfg.RebuyDelaySeconds, RebuyDropPct: cfg.RebuyDropPct,
		EntryMode: cfg.EntryMode, EntryDelaySeconds: cfg.EntryDelaySeconds, SpikeThresholdPct: cfg.SpikeThresholdPct,
	})
	breaker := risk.NewCircuitBreaker(risk.CircuitBreakerConfig{})
	validator := risk.NewValidator(breaker)
	return New(cfg, "deadbeef", fc, validator, strat, pub, Shared{})
}

func TestSession_IDAndInitialStatus(t *testing.T) {
	s, _ := newTestSession(testConfig(), nil)
	if s.ID() != "bot-1" {
		t.Fatalf("got id=%s want=bot-1", s.ID())
	}
	if s.Status() != domain.BotStatusCreated {
		t.Fatalf("got status=%s want=created", s.Status())
	}
}

func TestSession_RecoverSettlementRestoresCountersAndEmitsActivity(t *testing.T) {
	s, _ := newTestSession(testConfig(), nil)
	rec := domain.SettlementRecord{
		RealizedPnLUSD: decimal.NewFromInt(7), WinningTrades: 2, LosingTrades: 1,
		OpenPosition: &domain.Position{Side: domain.SideLong, EntryPrice: decimal.NewFromFloat(0.5), AmountUSD: decimal.NewFromInt(10)},
	}
	s.RecoverSettlement(rec)

	got := s.Settlement()
	if !got.RealizedPnLUSD.Equal(decimal.NewFromInt(7)) || got.WinningTrades != 2 || got.LosingTrades != 1 {
		t.Fatalf("got settlement=%+v want RealizedPnLUSD=7 WinningTrades=2 LosingTrades=1", got)
	}
	activities := s.Activities()
	if len(activities) != 1 || activities[0].Message != "recovered-open-position" {
		t.Fatalf("expected one recovered-open-position activity, got %+v", activities)
	}
}

func TestSession_StartRunsDecisionLoopAndOpensOnWarm(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newTestSession(testConfig(), pub)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if s.Position() != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for warm entry to open a position")
		case <-time.After(10 * time.Millisecond):
		}
	}
	pos := s.Position()
	if pos.Side != domain.SideLong {
		t.Fatalf("got side=%s want=long", pos.Side)
	}
	cancel()
	s.Stop()
}

func TestSession_StartTwiceReturnsError(t *testing.T) {
	s, _ := newTestSession(testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected error starting an already-running session")
	}
	s.Stop()
}

func TestSession_PauseAndResumeTransitionStatus(t *testing.T) {
	s, _ := newTestSession(testConfig(), nil)
	s.Pause()
	if s.Status() != domain.BotStatusPaused {
		t.Fatalf("got status=%s want=paused", s.Status())
	}
	s.Resume()
	if s.Status() != domain.BotStatusRunning {
		t.Fatalf("got status=%s want=running", s.Status())
	}
}

func TestSession_ChartDataReturnsSamplesInRange(t *testing.T) {
	s, _ := newTestSession(testConfig(), nil)
	now := time.Now()
	s.ring.Append(domain.PricePoint{Timestamp: now, Price: decimal.NewFromFloat(0.5)})
	got := s.ChartData(now.Add(-time.Minute), now.Add(time.Minute))
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
}

func TestSession_PreCheckRejectionRevertsStrategyStateWithoutOpeningAPosition(t *testing.T) {
	cfg := testConfig()
	// an empty order book trips the validator's no-liquidity check before
	// the decision ever reaches the executor.
	fc := &fakeSessionClient{price: decimal.NewFromFloat(0.5)}
	s := newTestSessionWithClient(cfg, nil, fc)

	price := decimal.NewFromFloat(0.5)
	d := s.strat.OnWarm(time.Now(), price)
	if d == nil {
		t.Fatal("expected an immediate-buy decision on warm")
	}
	if s.Target() == nil {
		t.Fatal("expected the strategy to arm a target for the pending entry")
	}

	if _, err := s.runDecision(context.Background(), d, price); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Position() != nil {
		t.Fatal("expected no position to open after a pre-check rejection")
	}
	if s.Target() == nil {
		t.Fatal("expected the strategy's target to survive a pre-check rejection so the bot can retry")
	}
}
