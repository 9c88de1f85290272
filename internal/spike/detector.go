// Package spike implements the multi-window change detector with a
// volatility gate (§4.4).
package spike

import (
	"math"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/pricering"
	"github.com/shopspring/decimal"
)

// Direction is the sign of a detected spike's change.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = ""
)

// Result is the outcome of one detector evaluation.
type Result struct {
	Detected             bool
	MaxChangePct         decimal.Decimal
	MaxChangeWindowSec   int64
	Direction            Direction
	IsVolatilityFiltered bool
	CV                   decimal.Decimal
}

// Config carries the per-bot parameters the detector evaluates against.
type Config struct {
	WindowsSeconds    []int64
	ThresholdPct      decimal.Decimal
	MaxVolatilityCV   decimal.Decimal
}

// Detector reads from a Ring; it holds no state of its own beyond config.
type Detector struct {
	cfg Config
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Evaluate implements the §4.4 algorithm: compute change_pct for every
// window that has history, pick the largest by magnitude (shorter window
// wins ties), then apply the CV volatility gate over the shortest window.
func (d *Detector) Evaluate(ring *pricering.Ring, now time.Time, price decimal.Decimal) Result {
	type candidate struct {
		changePct decimal.Decimal
		window    int64
	}
	var best *candidate

	windows := append([]int64(nil), d.cfg.WindowsSeconds...)
	for _, w := range windows {
		base, ok := ring.PriceAtOrBefore(now.Add(-time.Duration(w) * time.Second))
		if !ok || base.Price.IsZero() {
			continue
		}
		changePct := price.Sub(base.Price).Div(base.Price).Mul(decimal.NewFromInt(100))
		if best == nil {
			best = &candidate{changePct: changePct, window: w}
			continue
		}
		absNew := changePct.Abs()
		absBest := best.changePct.Abs()
		if absNew.GreaterThan(absBest) {
			best = &candidate{changePct: changePct, window: w}
		} else if absNew.Equal(absBest) && w < best.window {
			// tie-break: shorter window wins
			best = &candidate{changePct: changePct, window: w}
		}
	}

	if best == nil {
		return Result{Detected: false, Direction: DirectionNone}
	}

	shortest := windows[0]
	for _, w := range windows {
		if w < shortest {
			shortest = w
		}
	}
	samples := ring.SamplesInRange(now.Add(-time.Duration(shortest)*time.Second), now)
	cv := coefficientOfVariation(samples)
	filtered := d.cfg.MaxVolatilityCV.GreaterThan(decimal.Zero) && cv.GreaterThan(d.cfg.MaxVolatilityCV)

	dir := DirectionNone
	if best.changePct.IsPositive() {
		dir = DirectionUp
	} else if best.changePct.IsNegative() {
		dir = DirectionDown
	}

	detected := best.changePct.Abs().GreaterThanOrEqual(d.cfg.ThresholdPct) && !filtered

	return Result{
		Detected:             detected,
		MaxChangePct:         best.changePct,
		MaxChangeWindowSec:   best.window,
		Direction:            dir,
		IsVolatilityFiltered: filtered,
		CV:                   cv,
	}
}

// coefficientOfVariation computes 100*stdev/mean over the supplied samples.
// Fewer than 2 samples yields zero (never divides by zero, never panics).
func coefficientOfVariation(samples []domain.PricePoint) decimal.Decimal {
	if len(samples) < 2 {
		return decimal.Zero
	}
	vals := make([]float64, len(samples))
	var sum float64
	for i, s := range samples {
		f, _ := s.Price.Float64()
		vals[i] = f
		sum += f
	}
	mean := sum / float64(len(vals))
	if mean == 0 {
		return decimal.Zero
	}
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	stdev := math.Sqrt(sq / float64(len(vals)))
	cv := 100 * stdev / math.Abs(mean)
	return decimal.NewFromFloat(cv)
}
