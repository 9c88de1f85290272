package spike

import (
	"testing"
	"time"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/pricering"
	"github.com/shopspring/decimal"
)

func seedRing(now time.Time, points map[int64]float64) *pricering.Ring {
	r := pricering.New(100)
	for secAgo, price := range points {
		r.Append(domain.PricePoint{
			Timestamp: now.Add(-time.Duration(secAgo) * time.Second),
			Price:     decimal.NewFromFloat(price),
		})
	}
	return r
}

func TestDetector_DetectsUpSpike(t *testing.T) {
	now := time.Now()
	r := seedRing(now, map[int64]float64{60: 0.50})
	r.Append(domain.PricePoint{Timestamp: now, Price: decimal.NewFromFloat(0.60)})

	d := New(Config{
		WindowsSeconds: []int64{60},
		ThresholdPct:   decimal.NewFromInt(10),
	})
	res := d.Evaluate(r, now, decimal.NewFromFloat(0.60))
	if !res.Detected {
		t.Fatalf("expected spike detected, got %+v", res)
	}
	if res.Direction != DirectionUp {
		t.Fatalf("got direction=%s want=up", res.Direction)
	}
	if res.MaxChangeWindowSec != 60 {
		t.Fatalf("got window=%d want=60", res.MaxChangeWindowSec)
	}
}

func TestDetector_BelowThresholdNotDetected(t *testing.T) {
	now := time.Now()
	r := seedRing(now, map[int64]float64{60: 0.50})
	r.Append(domain.PricePoint{Timestamp: now, Price: decimal.NewFromFloat(0.51)})

	d := New(Config{WindowsSeconds: []int64{60}, ThresholdPct: decimal.NewFromInt(10)})
	res := d.Evaluate(r, now, decimal.NewFromFloat(0.51))
	if res.Detected {
		t.Fatalf("expected no spike, got %+v", res)
	}
}

func TestDetector_ShorterWindowWinsTie(t *testing.T) {
	now := time.Now()
	r := pricering.New(100)
	r.Append(domain.PricePoint{Timestamp: now.Add(-120 * time.Second), Price: decimal.NewFromFloat(0.50)})
	r.Append(domain.PricePoint{Timestamp: now.Add(-60 * time.Second), Price: decimal.NewFromFloat(0.50)})
	r.Append(domain.PricePoint{Timestamp: now, Price: decimal.NewFromFloat(0.55)})

	d := New(Config{WindowsSeconds: []int64{120, 60}, ThresholdPct: decimal.NewFromInt(5)})
	res := d.Evaluate(r, now, decimal.NewFromFloat(0.55))
	if !res.Detected || res.MaxChangeWindowSec != 60 {
		t.Fatalf("expected 60s window to win tie, got %+v", res)
	}
}

func TestDetector_NoHistoryYieldsUndetected(t *testing.T) {
	now := time.Now()
	r := pricering.New(10)
	d := New(Config{WindowsSeconds: []int64{60}, ThresholdPct: decimal.NewFromInt(10)})
	res := d.Evaluate(r, now, decimal.NewFromFloat(0.5))
	if res.Detected || res.Direction != DirectionNone {
		t.Fatalf("expected undetected/no-direction with empty ring, got %+v", res)
	}
}

func TestDetector_VolatilityGateFiltersSpike(t *testing.T) {
	now := time.Now()
	r := pricering.New(100)
	// Highly volatile samples within the shortest window so CV exceeds MaxVolatilityCV.
	for i := int64(0); i <= 60; i += 10 {
		price := 0.5
		if (i/10)%2 == 0 {
			price = 0.9
		}
		r.Append(domain.PricePoint{Timestamp: now.Add(-time.Duration(60-i) * time.Second), Price: decimal.NewFromFloat(price)})
	}
	r.Append(domain.PricePoint{Timestamp: now, Price: decimal.NewFromFloat(0.9)})

	d := New(Config{
		WindowsSeconds:  []int64{60},
		ThresholdPct:    decimal.NewFromInt(1),
		MaxVolatilityCV: decimal.NewFromInt(5),
	})
	res := d.Evaluate(r, now, decimal.NewFromFloat(0.9))
	if !res.IsVolatilityFiltered {
		t.Fatalf("expected volatility filter to trip, got %+v", res)
	}
	if res.Detected {
		t.Fatalf("expected filtered result to be undetected, got %+v", res)
	}
}
