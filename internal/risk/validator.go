// Package risk implements the pre-trade validator (§4.6): ten ordered
// checks plus a process-wide circuit breaker, evaluated first.
package risk

import (
	"context"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/betbot/gobet/internal/xsync"
	"github.com/shopspring/decimal"
)

// FailureReason is the stable, loggable name of a failed check (§4.6, §7).
type FailureReason string

const (
	ReasonCircuitBreakerOpen  FailureReason = "circuit_breaker_open"
	ReasonKillswitch          FailureReason = "killswitch"
	ReasonSessionCap          FailureReason = "session_cap"
	ReasonSessionLossLimit    FailureReason = "session_loss_limit"
	ReasonDailyLossLimit      FailureReason = "daily_loss_limit"
	ReasonCooldown            FailureReason = "cooldown"
	ReasonSettlementDelay     FailureReason = "settlement_delay"
	ReasonConcurrentPosition  FailureReason = "concurrent_position"
	ReasonInsufficientBalance FailureReason = "insufficient_balance"
	ReasonNoLiquidity         FailureReason = "no_liquidity"
	ReasonSpreadTooWide       FailureReason = "spread_too_wide"
	ReasonSlippageEnvelope    FailureReason = "slippage_envelope"
)

// Verdict is the outcome of one Check call.
type Verdict struct {
	Admitted bool
	Reason   FailureReason
	Detail   string
}

// Snapshot is the point-in-time state the validator reads; the caller
// (BotSession's decision task) assembles it fresh for every decision so
// that repeated calls with identical inputs are deterministic (§8 invariant 4).
type Snapshot struct {
	Now time.Time

	Killswitch bool

	TradesThisSession int
	MaxTradesPerSession int

	RealizedPnLUSD      decimal.Decimal
	SessionLossLimitUSD decimal.Decimal

	DailyLossAcrossBotsUSD decimal.Decimal
	DailyLossLimitUSD      decimal.Decimal

	LastSignalTime time.Time
	CooldownSeconds int64

	LastExitTime time.Time
	SettlementDelaySeconds int64

	HasPosition bool

	DryRun bool
	BalanceUSD   decimal.Decimal
	AllowanceUSD decimal.Decimal

	Book exchange.OrderBook
	MinBidLiquidityUSD decimal.Decimal
	MinAskLiquidityUSD decimal.Decimal
	MaxSpreadPct       decimal.Decimal

	ReferencePrice    decimal.Decimal
	SlippageTolerance decimal.Decimal
}

// Validator implements Check per §4.6, composing a process-wide
// CircuitBreaker as the first check evaluated (the §9 supplemented
// daily-PnL-rollover breaker, distinct from rule 1's explicit killswitch).
type Validator struct {
	breaker *CircuitBreaker
}

func NewValidator(breaker *CircuitBreaker) *Validator {
	return &Validator{breaker: breaker}
}

// Check runs all checks in order, returning on the first failure.
func (v *Validator) Check(ctx context.Context, decision *strategy.Decision, snap Snapshot) (*Verdict, error) {
	if err := v.breaker.AllowTrading(); err != nil {
		return &Verdict{Admitted: false, Reason: ReasonCircuitBreakerOpen, Detail: string(v.breaker.TripReason())}, nil
	}
	if snap.Killswitch {
		return &Verdict{Admitted: false, Reason: ReasonKillswitch}, nil
	}
	if snap.MaxTradesPerSession > 0 && snap.TradesThisSession >= snap.MaxTradesPerSession {
		return &Verdict{Admitted: false, Reason: ReasonSessionCap}, nil
	}
	if snap.SessionLossLimitUSD.IsPositive() && snap.RealizedPnLUSD.LessThanOrEqual(snap.SessionLossLimitUSD.Neg()) {
		return &Verdict{Admitted: false, Reason: ReasonSessionLossLimit}, nil
	}
	if snap.DailyLossLimitUSD.IsPositive() && snap.DailyLossAcrossBotsUSD.GreaterThan(snap.DailyLossLimitUSD) {
		return &Verdict{Admitted: false, Reason: ReasonDailyLossLimit}, nil
	}
	if snap.CooldownSeconds > 0 && !snap.LastSignalTime.IsZero() {
		if snap.Now.Sub(snap.LastSignalTime) < time.Duration(snap.CooldownSeconds)*time.Second {
			return &Verdict{Admitted: false, Reason: ReasonCooldown}, nil
		}
	}
	if snap.SettlementDelaySeconds == 0 {
		snap.SettlementDelaySeconds = 2
	}
	if !snap.LastExitTime.IsZero() {
		if snap.Now.Sub(snap.LastExitTime) < time.Duration(snap.SettlementDelaySeconds)*time.Second {
			return &Verdict{Admitted: false, Reason: ReasonSettlementDelay}, nil
		}
	}
	if snap.HasPosition && decision.IsOpening {
		return &Verdict{Admitted: false, Reason: ReasonConcurrentPosition}, nil
	}
	if !snap.DryRun {
		if snap.BalanceUSD.LessThan(decision.AmountUSD) || snap.AllowanceUSD.LessThan(decision.AmountUSD) {
			return &Verdict{Admitted: false, Reason: ReasonInsufficientBalance}, nil
		}
	}
	if verdict, ok := v.checkBookHealth(decision, snap); !ok {
		return verdict, nil
	}
	if verdict, ok := v.checkSlippage(decision, snap); !ok {
		return verdict, nil
	}
	return &Verdict{Admitted: true}, nil
}

func (v *Validator) checkBookHealth(decision *strategy.Decision, snap Snapshot) (*Verdict, bool) {
	if len(snap.Book.Bids) == 0 && len(snap.Book.Asks) == 0 {
		return &Verdict{Admitted: false, Reason: ReasonNoLiquidity}, false
	}
	if decision.Action == domain.ActionBuy {
		depth := exchange.DepthUSD(snap.Book.Asks)
		if depth.LessThan(snap.MinAskLiquidityUSD) {
			return &Verdict{Admitted: false, Reason: ReasonNoLiquidity, Detail: "ask depth"}, false
		}
	} else {
		depth := exchange.DepthUSD(snap.Book.Bids)
		if depth.LessThan(snap.MinBidLiquidityUSD) {
			return &Verdict{Admitted: false, Reason: ReasonNoLiquidity, Detail: "bid depth"}, false
		}
	}
	bid, hasBid := snap.Book.BestBid()
	ask, hasAsk := snap.Book.BestAsk()
	if !hasBid || !hasAsk || bid.IsZero() {
		return &Verdict{Admitted: false, Reason: ReasonNoLiquidity}, false
	}
	spreadPct := ask.Sub(bid).Div(bid).Mul(decimal.NewFromInt(100))
	if snap.MaxSpreadPct.IsPositive() && spreadPct.GreaterThan(snap.MaxSpreadPct) {
		return &Verdict{Admitted: false, Reason: ReasonSpreadTooWide}, false
	}
	return nil, true
}

func (v *Validator) checkSlippage(decision *strategy.Decision, snap Snapshot) (*Verdict, bool) {
	if snap.ReferencePrice.IsZero() {
		return nil, true
	}
	tolerance := decimal.NewFromInt(1).Add(snap.SlippageTolerance)
	if decision.Action == domain.ActionBuy {
		ceiling := snap.ReferencePrice.Mul(tolerance)
		if decision.LimitPrice.GreaterThan(ceiling) {
			return &Verdict{Admitted: false, Reason: ReasonSlippageEnvelope}, false
		}
	} else {
		floor := snap.ReferencePrice.Mul(decimal.NewFromInt(1).Sub(snap.SlippageTolerance))
		if decision.LimitPrice.LessThan(floor) {
			return &Verdict{Admitted: false, Reason: ReasonSlippageEnvelope}, false
		}
	}
	return nil, true
}

// CooldownGuard is a convenience Debouncer-backed helper components may use
// to enforce cooldown_seconds locally before even building a Decision.
func NewCooldownGuard(seconds int64) *xsync.Debouncer {
	return xsync.NewDebouncer(time.Duration(seconds) * time.Second)
}

// OnFillSuccess clears the circuit breaker's consecutive-error count after
// a confirmed fill.
func (v *Validator) OnFillSuccess() { v.breaker.OnSuccess() }

// OnFillError records an execution failure against the circuit breaker.
func (v *Validator) OnFillError() { v.breaker.OnError() }

// RecordPnL feeds a closed position's realized P&L into the circuit
// breaker's daily-loss tracking (§9 supplemented breaker, independent of
// the per-bot session_loss_limit_usd check).
func (v *Validator) RecordPnL(usd decimal.Decimal) {
	cents := usd.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	v.breaker.AddPnLCents(cents)
}
