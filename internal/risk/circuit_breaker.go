package risk

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ErrCircuitBreakerOpen is returned by AllowTrading while the breaker is
// tripped, whatever the cause; callers that need the cause read TripReason.
var ErrCircuitBreakerOpen = fmt.Errorf("circuit breaker open")

// TripReason names why the breaker halted trading, using the same stable,
// loggable vocabulary as the validator's FailureReason values (§7).
type TripReason string

const (
	TripNone              TripReason = ""
	TripManual            TripReason = "manual_halt"
	TripConsecutiveErrors TripReason = "consecutive_errors"
	TripDailyLoss         TripReason = "daily_loss_limit"
)

// CircuitBreakerConfig configures the process-wide breaker (§9 supplemented
// breaker, distinct from a bot's own session_loss_limit_usd check). A
// threshold <= 0 disables that limit.
type CircuitBreakerConfig struct {
	// MaxConsecutiveErrors is the run of order-placement/execution failures,
	// across every bot, that trips the breaker.
	MaxConsecutiveErrors int64

	// DailyLossLimitCents is the cross-bot realized daily loss, in cents,
	// that trips the breaker once crossed.
	DailyLossLimitCents int64
}

// CircuitBreaker gates every decision behind a process-wide halt,
// independent of any single bot's own risk limits. The hot path
// (AllowTrading) is lock-free; config updates are infrequent.
type CircuitBreaker struct {
	halted atomic.Bool
	reason atomic.Value // TripReason

	consecutiveErrors atomic.Int64
	dailyPnlCents     atomic.Int64
	dayKey            atomic.Int64 // YYYYMMDD

	maxConsecutiveErrors atomic.Int64
	dailyLossLimitCents  atomic.Int64
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}
	cb.reason.Store(TripNone)
	cb.SetConfig(cfg)
	return cb
}

func (cb *CircuitBreaker) SetConfig(cfg CircuitBreakerConfig) {
	if cb == nil {
		return
	}
	cb.maxConsecutiveErrors.Store(cfg.MaxConsecutiveErrors)
	cb.dailyLossLimitCents.Store(cfg.DailyLossLimitCents)
}

// Halt trips the breaker manually, e.g. from the control surface's kill
// endpoint or an operator reacting to anomalous behavior.
func (cb *CircuitBreaker) Halt() {
	if cb == nil {
		return
	}
	cb.trip(TripManual)
}

// Resume clears a halt, the trip reason, and the consecutive-error count.
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.halted.Store(false)
	cb.reason.Store(TripNone)
	cb.consecutiveErrors.Store(0)
}

// AllowTrading is the hot-path check every decision passes through first,
// ahead of any bot-level rule (§4.6 rule 0).
func (cb *CircuitBreaker) AllowTrading() error {
	if cb == nil {
		return nil
	}

	if cb.halted.Load() {
		return ErrCircuitBreakerOpen
	}

	maxErr := cb.maxConsecutiveErrors.Load()
	if maxErr > 0 && cb.consecutiveErrors.Load() >= maxErr {
		cb.trip(TripConsecutiveErrors)
		return ErrCircuitBreakerOpen
	}

	limit := cb.dailyLossLimitCents.Load()
	if limit > 0 {
		cb.rollDayIfNeeded()
		if cb.dailyPnlCents.Load() <= -limit {
			cb.trip(TripDailyLoss)
			return ErrCircuitBreakerOpen
		}
	}

	return nil
}

// TripReason reports why the breaker last halted trading, or TripNone if
// it is not currently halted.
func (cb *CircuitBreaker) TripReason() TripReason {
	if cb == nil || !cb.halted.Load() {
		return TripNone
	}
	r, _ := cb.reason.Load().(TripReason)
	return r
}

func (cb *CircuitBreaker) trip(reason TripReason) {
	cb.halted.Store(true)
	cb.reason.Store(reason)
}

// OnSuccess clears the consecutive-error count after a confirmed fill.
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Store(0)
}

// OnError records an execution failure toward the consecutive-error trip.
func (cb *CircuitBreaker) OnError() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Add(1)
}

// AddPnLCents applies a realized fill's P&L, in cents, to the day's
// running total; negative deltas are losses.
func (cb *CircuitBreaker) AddPnLCents(delta int64) {
	if cb == nil {
		return
	}
	cb.rollDayIfNeeded()
	cb.dailyPnlCents.Add(delta)
}

func (cb *CircuitBreaker) rollDayIfNeeded() {
	now := time.Now()
	key := int64(now.Year()*10000 + int(now.Month())*100 + now.Day())
	prev := cb.dayKey.Load()
	if prev == key {
		return
	}
	// whichever caller wins the CAS is responsible for zeroing the day's PnL.
	if cb.dayKey.CompareAndSwap(prev, key) {
		cb.dailyPnlCents.Store(0)
	}
}
