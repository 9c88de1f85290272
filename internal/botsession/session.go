// Package botsession implements one bound instance of C2-C7: one bot
// config, one wallet, one token (§4.8). A Session owns its lifecycle, the
// single decision task that is the sole writer of its strategy state, and
// a bounded activity log.
package botsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/events"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/execution"
	"github.com/betbot/gobet/internal/pricering"
	"github.com/betbot/gobet/internal/pricestream"
	"github.com/betbot/gobet/internal/risk"
	"github.com/betbot/gobet/internal/settings"
	"github.com/betbot/gobet/internal/spike"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/betbot/gobet/internal/xsync"
	"github.com/betbot/gobet/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shared is the set of process-wide, read-mostly collaborators every
// session needs but none of them owns (§5 Shared resources).
type Shared struct {
	Settings         *settings.Store
	Killswitch       *settings.Killswitch
	DailyLossAcrossBots func() decimal.Decimal // realized PnL across all bots today, negated
}

// Publisher is the narrow interface a Session needs from the broadcast
// bus; defined here (not imported from the registry) so botsession has no
// dependency on its owner (§9 Ownership: sessions hold only a weak,
// publish-only reference to the bus).
type Publisher interface {
	Publish(events.Event)
}

// Command is sent on the session's command channel by external callers
// (HTTP handlers); the decision task is the only goroutine that acts on it.
type Command struct {
	Kind    CommandKind
	Reply   chan error
	Decision *strategy.Decision // for Kind == CmdManualTrade
}

type CommandKind string

const (
	CmdStart CommandKind = "start"
	CmdStop  CommandKind = "stop"
	CmdPause CommandKind = "pause"
	CmdResume CommandKind = "resume"
	CmdManualTrade CommandKind = "manual_trade"
	CmdClose CommandKind = "close"
)

const activityRingCapacity = 1000

// ActivityRing is a bounded, append-only ring of the most recent activities.
type ActivityRing struct {
	mu  sync.Mutex
	buf []domain.Activity
	cap int
}

func newActivityRing(cap int) *ActivityRing {
	return &ActivityRing{cap: cap}
}

func (r *ActivityRing) Append(a domain.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, a)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

func (r *ActivityRing) Snapshot() []domain.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Activity, len(r.buf))
	copy(out, r.buf)
	return out
}

// Session is one running bot.
type Session struct {
	cfg domain.BotConfig
	pub Publisher

	client   exchange.Client
	wallet   exchange.Wallet
	stream   *pricestream.Stream
	ring     *pricering.Ring
	detector *spike.Detector
	strat    strategy.Strategy
	executor *execution.Executor
	validator *risk.Validator

	mu             sync.RWMutex
	status         domain.BotStatus
	lastSignalTime time.Time
	lastExitTime   time.Time
	tradesThisSession int
	realizedPnLUSD decimal.Decimal
	winningTrades  int
	losingTrades   int
	lastErr        error

	activity *ActivityRing
	inFlight *xsync.InFlightLimiter

	shared Shared

	cmdCh  chan Command
	cancel context.CancelFunc
	wg     sync.WaitGroup

	seq int
}

// New constructs a Session. walletPrivateKeyHex is the already-decrypted
// signing key (the registry owns the secretstore and decrypts
// WalletSecretEncrypted before calling New; botsession never touches
// ciphertext).
func New(cfg domain.BotConfig, walletPrivateKeyHex string, client exchange.Client, validator *risk.Validator, strat strategy.Strategy, pub Publisher, shared Shared) *Session {
	windows := cfg.SpikeWindowsSeconds
	det := spike.New(spike.Config{WindowsSeconds: windows, ThresholdPct: cfg.SpikeThresholdPct, MaxVolatilityCV: cfg.MaxVolatilityCV})

	tokenID := cfg.TokenID
	s := &Session{
		cfg: cfg, pub: pub, client: client,
		ring:     pricering.New(pricering.DefaultCapacity),
		detector: det,
		strat:    strat,
		validator: validator,
		status:   domain.BotStatusCreated,
		activity: newActivityRing(activityRingCapacity),
		inFlight: xsync.NewInFlightLimiter(1),
		shared:   shared,
		cmdCh:    make(chan Command, 32),
	}
	wallet := exchange.Wallet{PrivateKeyHex: walletPrivateKeyHex, SignatureMode: string(cfg.SignatureMode), FunderAddress: cfg.FunderAddress}
	s.wallet = wallet
	s.executor = execution.NewExecutor(client, wallet, tokenID, cfg.DryRun)
	s.stream = pricestream.New(client, tokenID)
	return s
}

func (s *Session) ID() string { return s.cfg.ID }

func (s *Session) Status() domain.BotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RecoverSettlement surfaces a persisted open position as a
// system: recovered-open-position activity, never auto-reopening it (§4.8).
func (s *Session) RecoverSettlement(rec domain.SettlementRecord) {
	s.mu.Lock()
	s.realizedPnLUSD = rec.RealizedPnLUSD
	s.winningTrades = rec.WinningTrades
	s.losingTrades = rec.LosingTrades
	s.lastExitTime = rec.LastExitTime
	s.mu.Unlock()

	if rec.OpenPosition != nil {
		s.emitActivity(domain.ActivitySystem, "recovered-open-position", map[string]interface{}{
			"side": rec.OpenPosition.Side, "entry_price": rec.OpenPosition.EntryPrice.String(),
			"amount_usd": rec.OpenPosition.AmountUSD.String(),
		})
	}
}

// Start transitions created/stopped -> running and launches the price
// sources and the single decision task (§4.8, §5).
func (s *Session) Start(parent context.Context) error {
	s.mu.Lock()
	if s.status == domain.BotStatusRunning {
		s.mu.Unlock()
		return fmt.Errorf("botsession: already running")
	}
	s.status = domain.BotStatusRunning
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.stream.Run(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.decisionLoop(ctx)
	}()

	s.publishBotEvent(events.TypeBotStarted)
	return nil
}

// Stop cancels the decision loop and price sources, waiting up to
// exit_grace_seconds if EXITING (§5).
func (s *Session) Stop() {
	s.mu.Lock()
	s.status = domain.BotStatusStopped
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		logger.Warnf("[botsession] bot=%s stop grace period exceeded", s.cfg.ID)
	}
	s.publishBotEvent(events.TypeBotStopped)
}

func (s *Session) Pause() {
	s.mu.Lock()
	s.status = domain.BotStatusPaused
	s.mu.Unlock()
	s.publishBotEvent(events.TypeBotPaused)
}

func (s *Session) Resume() {
	s.mu.Lock()
	s.status = domain.BotStatusRunning
	s.mu.Unlock()
	s.publishBotEvent(events.TypeBotResumed)
}

// Enqueue submits a command from an HTTP handler; handlers never touch
// strategy state directly (§4.10).
func (s *Session) Enqueue(cmd Command) bool {
	return xsync.TrySend(s.cmdCh, cmd)
}

// decisionLoop is the sole writer of Target, Position, and counters (§4.8).
// It suspends on: the next price update, the next command, or a timer.
func (s *Session) decisionLoop(ctx context.Context) {
	prices := s.stream.Subscribe()
	warmed := false

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmdCh:
			s.handleCommand(ctx, cmd)
		case pu, ok := <-prices:
			if !ok {
				return
			}
			s.ring.Append(domain.PricePoint{Timestamp: pu.Timestamp, Price: pu.Price})
			s.publish(events.TypePriceUpdate, events.PriceUpdateData{Price: pu.Price.String()})

			if s.Status() != domain.BotStatusRunning {
				continue
			}

			if !warmed {
				warmed = true
				if d := s.strat.OnWarm(pu.Timestamp, pu.Price); d != nil {
					s.tryDecide(ctx, d, pu.Price)
				}
				continue
			}

			result := s.detector.Evaluate(s.ring, pu.Timestamp, pu.Price)
			if result.Detected {
				s.publish(events.TypeSpikeDetected, events.SpikeDetectedData{
					MaxChangePct: result.MaxChangePct.String(), WindowSec: result.MaxChangeWindowSec, Direction: string(result.Direction),
				})
				if d := s.strat.OnSpike(pu.Timestamp, pu.Price, result); d != nil {
					s.tryDecide(ctx, d, pu.Price)
					continue
				}
			} else if result.IsVolatilityFiltered {
				s.emitActivity(domain.ActivitySpike, "volatility filtered", map[string]interface{}{"is_volatility_filtered": true, "cv": result.CV.String()})
			}

			if d := s.strat.OnPriceUpdate(pu.Timestamp, pu.Price); d != nil {
				s.tryDecide(ctx, d, pu.Price)
			}
		}
	}
}

func (s *Session) handleCommand(ctx context.Context, cmd Command) {
	var err error
	switch cmd.Kind {
	case CmdPause:
		s.Pause()
	case CmdResume:
		s.Resume()
	case CmdManualTrade:
		if cmd.Decision != nil {
			_, err = s.runDecision(ctx, cmd.Decision, cmd.Decision.LimitPrice)
		}
	case CmdClose:
		if pos := s.strat.Position(); pos != nil {
			price, _ := s.stream.Current()
			d := &strategy.Decision{ID: uuid.NewString(), BotID: s.cfg.ID, Side: pos.Side, Action: domain.ActionSell, IsOpening: false, AmountUSD: pos.AmountUSD, LimitPrice: price, Reason: "force_close", CreatedAt: time.Now()}
			if pos.Side == domain.SideShort {
				d.Action = domain.ActionBuy
			}
			_, err = s.runDecision(ctx, d, price)
		}
	}
	if cmd.Reply != nil {
		cmd.Reply <- err
	}
}

func (s *Session) tryDecide(ctx context.Context, d *strategy.Decision, price decimal.Decimal) {
	if !s.inFlight.TryAcquire() {
		return
	}
	defer s.inFlight.Release()
	s.mu.Lock()
	s.lastSignalTime = d.CreatedAt
	s.mu.Unlock()
	if _, err := s.runDecision(ctx, d, price); err != nil {
		logger.Warnf("[botsession] bot=%s decision error: %v", s.cfg.ID, err)
	}
}

// runDecision runs the full pipeline: build a Snapshot, validate, execute,
// and apply the outcome. Position is updated only on a confirmed Filled
// outcome (§4.7, §8 invariant 2).
func (s *Session) runDecision(ctx context.Context, d *strategy.Decision, price decimal.Decimal) (*execution.Outcome, error) {
	snap := s.buildSnapshot(ctx, d)
	verdict, err := s.validator.Check(ctx, d, snap)
	if err != nil {
		return nil, err
	}
	if !verdict.Admitted {
		s.emitActivity(domain.ActivityError, "PRE_CHECK_FAILED: "+string(verdict.Reason), map[string]interface{}{"decision_id": d.ID, "reason": verdict.Reason})
		now := time.Now()
		s.strat.OnExecutionOutcome(now, strategy.ExecutionOutcome{Decision: d, Filled: false, Rejected: true, RejectReason: string(verdict.Reason)})
		s.publish(events.TypePositionUpdate, s.strat.Position())
		s.publish(events.TypeTargetUpdate, s.strat.Target())
		return nil, nil
	}

	s.emitActivity(domain.ActivityOrder, fmt.Sprintf("submitting %s", d.Action), map[string]interface{}{"decision_id": d.ID, "amount_usd": d.AmountUSD.String()})

	prevPos := s.strat.Position()
	outcome, err := s.executor.Execute(ctx, d, price, prevPos)
	if err != nil {
		return nil, err
	}
	s.applyOutcome(outcome)
	return outcome, nil
}

func (s *Session) applyOutcome(outcome *execution.Outcome) {
	now := time.Now()
	if outcome.Filled {
		s.emitActivity(domain.ActivityFill, "order filled", map[string]interface{}{
			"decision_id": outcome.Decision.ID, "price": outcome.FillPrice.String(), "shares": outcome.FillShares.String(), "simulated": outcome.Simulated,
		})
		s.publish(events.TypeTradeExecuted, events.TradeExecutedData{
			Side: outcome.Decision.Side, AmountUSD: outcome.Decision.AmountUSD.String(), FillPrice: outcome.FillPrice.String(), OrderID: outcome.OrderID, Simulated: outcome.Simulated,
		})
		s.validator.OnFillSuccess()

		if !outcome.Decision.IsOpening {
			s.mu.Lock()
			s.realizedPnLUSD = s.realizedPnLUSD.Add(outcome.PnLUSD)
			s.tradesThisSession++
			s.lastExitTime = now
			if outcome.PnLUSD.IsPositive() {
				s.winningTrades++
			} else if outcome.PnLUSD.IsNegative() {
				s.losingTrades++
			}
			s.mu.Unlock()
			s.validator.RecordPnL(outcome.PnLUSD)
			s.emitActivity(domain.ActivityPnL, "position closed", map[string]interface{}{"pnl_usd": outcome.PnLUSD.String(), "pnl_pct": outcome.PnLPct.String()})
			s.publish(events.TypePositionClosed, events.PositionClosedData{PnLUSD: outcome.PnLUSD.String(), PnLPct: outcome.PnLPct.String(), Reason: outcome.Decision.Reason})
		}
	} else if outcome.Rejected {
		s.validator.OnFillError()
		s.emitActivity(domain.ActivityError, "ORDER_REJECTED: "+outcome.RejectReason, map[string]interface{}{"decision_id": outcome.Decision.ID})
	} else if outcome.Err != nil {
		s.validator.OnFillError()
		s.emitActivity(domain.ActivityError, "ORDER_TRANSIENT_FAIL", map[string]interface{}{"decision_id": outcome.Decision.ID, "error": outcome.Err.Error()})
	}

	s.strat.OnExecutionOutcome(now, outcome.ToStrategyOutcome())
	s.publish(events.TypePositionUpdate, s.strat.Position())
	s.publish(events.TypeTargetUpdate, s.strat.Target())
}

func (s *Session) buildSnapshot(ctx context.Context, d *strategy.Decision) risk.Snapshot {
	price, _ := s.stream.Current()
	book, _ := s.client.GetOrderBook(ctx, s.cfg.TokenID, 10)
	bal, allow := decimal.Zero, decimal.Zero
	if !s.cfg.DryRun {
		bal, allow, _ = s.client.GetBalanceAndAllowance(ctx, s.wallet)
	} else {
		bal, allow = s.cfg.MaxBalanceUSD, s.cfg.MaxBalanceUSD
	}

	gs := domain.DefaultGlobalSettings()
	if s.shared.Settings != nil {
		gs = s.shared.Settings.Load()
	}
	killswitch := s.shared.Killswitch != nil && s.shared.Killswitch.On()
	dailyLoss := decimal.Zero
	if s.shared.DailyLossAcrossBots != nil {
		dailyLoss = s.shared.DailyLossAcrossBots()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return risk.Snapshot{
		Now:        time.Now(),
		Killswitch: killswitch,
		TradesThisSession: s.tradesThisSession, MaxTradesPerSession: s.cfg.MaxTradesPerSession,
		RealizedPnLUSD: s.realizedPnLUSD, SessionLossLimitUSD: s.cfg.SessionLossLimitUSD,
		DailyLossAcrossBotsUSD: dailyLoss, DailyLossLimitUSD: gs.DailyLossLimitUSD,
		LastSignalTime: s.lastSignalTime, CooldownSeconds: s.cfg.CooldownSeconds,
		LastExitTime: s.lastExitTime, SettlementDelaySeconds: s.cfg.SettlementDelaySeconds,
		HasPosition: s.strat.Position() != nil,
		DryRun: s.cfg.DryRun, BalanceUSD: bal, AllowanceUSD: allow,
		Book: book, MinBidLiquidityUSD: s.cfg.MinBidLiquidityUSD, MinAskLiquidityUSD: s.cfg.MinAskLiquidityUSD, MaxSpreadPct: s.cfg.MaxSpreadPct,
		ReferencePrice: price, SlippageTolerance: gs.SlippageTolerance,
	}
}

func (s *Session) emitActivity(kind domain.ActivityKind, message string, details map[string]interface{}) {
	s.seq++
	a := domain.Activity{ID: fmt.Sprintf("%s-%d", s.cfg.ID, s.seq), Timestamp: time.Now(), BotID: s.cfg.ID, Kind: kind, Message: message, Details: details}
	s.activity.Append(a)
	s.publish(events.TypeActivity, a)
}

func (s *Session) publish(typ events.Type, data interface{}) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(events.New(typ, s.cfg.ID, time.Now(), data))
}

func (s *Session) publishBotEvent(typ events.Type) {
	s.publish(typ, events.BotSnapshot{ID: s.cfg.ID, Name: s.cfg.Name, Status: s.Status()})
}

// Settlement returns the current settlement record for persistence.
func (s *Session) Settlement() domain.SettlementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SettlementRecord{
		RealizedPnLUSD: s.realizedPnLUSD, TotalTrades: s.tradesThisSession,
		WinningTrades: s.winningTrades, LosingTrades: s.losingTrades,
		LastExitTime: s.lastExitTime, OpenPosition: s.strat.Position(),
	}
}

// Activities returns a snapshot of the activity ring.
func (s *Session) Activities() []domain.Activity { return s.activity.Snapshot() }

// ChartData returns price samples in [from, to] for the control surface's
// chart-data endpoint (§4.10).
func (s *Session) ChartData(from, to time.Time) []domain.PricePoint {
	return s.ring.SamplesInRange(from, to)
}

// OrderBook returns the current order book for the control surface's
// orderbook endpoint.
func (s *Session) OrderBook(ctx context.Context) (exchange.OrderBook, error) {
	return s.client.GetOrderBook(ctx, s.cfg.TokenID, 10)
}

// Target returns the current strategy target, if any.
func (s *Session) Target() *domain.Target { return s.strat.Target() }

// Position returns the current open position, if any.
func (s *Session) Position() *domain.Position { return s.strat.Position() }

// SpikeStatus evaluates the detector against the current ring without
// side effects, for the control surface's spike-status endpoint.
func (s *Session) SpikeStatus() spike.Result {
	price, _ := s.stream.Current()
	return s.detector.Evaluate(s.ring, time.Now(), price)
}

// Config returns the bot's static configuration.
func (s *Session) Config() domain.BotConfig { return s.cfg }
