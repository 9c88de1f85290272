// Package execution implements the single-leg order executor (§4.7):
// retrying, idempotent, and position-state-update-only-on-confirmed-fill.
package execution

import (
	"context"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/betbot/gobet/pkg/logger"
	"github.com/shopspring/decimal"
)

var retryBackoff = []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second}

// Outcome is the executor-facing result of one Execute call.
type Outcome struct {
	Decision     *strategy.Decision
	Filled       bool
	Simulated    bool
	FillPrice    decimal.Decimal
	FillShares   decimal.Decimal
	OrderID      string
	Rejected     bool
	RejectReason string
	Err          error

	// PnL is populated only on a close-position fill (§4.7 post-fill actions).
	PnLUSD decimal.Decimal
	PnLPct decimal.Decimal
}

// ToStrategyOutcome translates an Outcome into the strategy package's
// narrower ExecutionOutcome, breaking the execution<->strategy import cycle.
func (o *Outcome) ToStrategyOutcome() strategy.ExecutionOutcome {
	return strategy.ExecutionOutcome{
		Decision: o.Decision, Filled: o.Filled, FillPrice: o.FillPrice, FillShares: o.FillShares,
		Simulated: o.Simulated, Rejected: o.Rejected, RejectReason: o.RejectReason,
	}
}

// Executor wraps the Exchange Client with retry, idempotency, and dry-run
// synthesis.
type Executor struct {
	client  exchange.Client
	wallet  exchange.Wallet
	tokenID string
	dryRun  bool
	dedup   *InFlightDeduper
	acted   map[string]struct{} // decision_id -> already acted upon (idempotency)
}

func NewExecutor(client exchange.Client, wallet exchange.Wallet, tokenID string, dryRun bool) *Executor {
	return &Executor{
		client: client, wallet: wallet, tokenID: tokenID, dryRun: dryRun,
		dedup: NewInFlightDeduper(5*time.Second, 16),
		acted: make(map[string]struct{}),
	}
}

// Execute submits decision, retrying on ErrTransient up to 4 attempts with
// exponential backoff. A prior position, if any, is supplied only to
// compute post-fill PnL on a closing decision.
func (e *Executor) Execute(ctx context.Context, decision *strategy.Decision, currentPrice decimal.Decimal, prevPosition *domain.Position) (*Outcome, error) {
	if _, already := e.acted[decision.ID]; already {
		return &Outcome{Decision: decision, Filled: false, RejectReason: "duplicate_decision_id"}, nil
	}
	if err := e.dedup.TryAcquire(decision.ID); err != nil {
		return &Outcome{Decision: decision, Filled: false, RejectReason: "duplicate_decision_id"}, nil
	}
	defer e.dedup.Release(decision.ID)

	if e.dryRun {
		out := &Outcome{
			Decision: decision, Filled: true, Simulated: true,
			FillPrice: currentPrice, FillShares: decision.AmountUSD.Div(currentPrice),
			OrderID: "sim-" + decision.ID,
		}
		e.acted[decision.ID] = struct{}{}
		e.applyPnL(out, decision, prevPosition)
		return out, nil
	}

	side := exchange.OrderBuy
	if decision.Action == domain.ActionSell {
		side = exchange.OrderSell
	}

	var lastErr error
	for attempt := 0; attempt < len(retryBackoff)+1; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff[attempt-1]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		res, err := e.client.PlaceOrder(ctx, e.wallet, e.tokenID, side, decision.AmountUSD, decision.LimitPrice)
		if err == nil {
			out := &Outcome{
				Decision: decision, Filled: true, FillPrice: res.FillPrice, FillShares: res.FillShares, OrderID: res.OrderID,
			}
			e.acted[decision.ID] = struct{}{}
			e.applyPnL(out, decision, prevPosition)
			return out, nil
		}

		if perm, ok := exchange.IsPermanent(err); ok {
			e.acted[decision.ID] = struct{}{}
			logger.Warnf("[execution] order rejected decision=%s reason=%s", decision.ID, perm.Reason)
			return &Outcome{Decision: decision, Rejected: true, RejectReason: string(perm.Reason), Err: err}, nil
		}

		lastErr = err
		logger.Debugf("[execution] transient failure decision=%s attempt=%d err=%v", decision.ID, attempt, err)
	}

	e.acted[decision.ID] = struct{}{}
	return &Outcome{Decision: decision, RejectReason: "transient_exhausted", Err: lastErr}, nil
}

// applyPnL implements the §4.7 post-fill P&L formulas on a close-position
// fill.
func (e *Executor) applyPnL(out *Outcome, decision *strategy.Decision, prev *domain.Position) {
	if decision.IsOpening || prev == nil {
		return
	}
	switch prev.Side {
	case domain.SideLong:
		out.PnLUSD = prev.Shares.Mul(out.FillPrice.Sub(prev.EntryPrice))
		out.PnLPct = out.FillPrice.Div(prev.EntryPrice).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
	case domain.SideShort:
		out.PnLUSD = prev.Shares.Mul(prev.EntryPrice.Sub(out.FillPrice))
		out.PnLPct = prev.EntryPrice.Div(out.FillPrice).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
	}
}
