// Package pricestream maintains the current price for one token, merging a
// streaming source with a REST poll fallback (§4.2).
package pricestream

import (
	"context"
	"sync"
	"time"

	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/pkg/logger"
	"github.com/shopspring/decimal"
)

// PriceUpdate is one monotonic update published on the subscription
// channel.
type PriceUpdate struct {
	Seq       uint64
	Timestamp time.Time
	Price     decimal.Decimal
	FromPoll  bool
}

const (
	defaultPollIntervalLive    = 30 * time.Second
	defaultPollIntervalOffline = time.Second
	defaultStalenessThreshold  = 10 * time.Second
	dedupMinInterval           = time.Second
)

// Stream runs the dual stream+poll sourcing described in §4.2 and exposes
// the latest price plus a fan-out subscription channel.
type Stream struct {
	client  exchange.Client
	tokenID string

	mu          sync.RWMutex
	current     PriceUpdate
	warm        bool
	lastStreamAt time.Time

	seq uint64

	subsMu sync.Mutex
	subs   []chan PriceUpdate

	warmCh   chan struct{}
	warmOnce sync.Once
}

func New(client exchange.Client, tokenID string) *Stream {
	return &Stream{client: client, tokenID: tokenID, warmCh: make(chan struct{})}
}

// Current returns the latest known price and its timestamp.
func (s *Stream) Current() (decimal.Decimal, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Price, s.current.Timestamp
}

// IsWarm reports whether a usable price has ever been observed (§4.2).
func (s *Stream) IsWarm() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warm
}

// WarmCh is closed exactly once, the first time the stream becomes warm.
func (s *Stream) WarmCh() <-chan struct{} { return s.warmCh }

// Subscribe returns a channel of future PriceUpdates. The channel is
// buffered; slow subscribers may miss updates but never block the stream.
func (s *Stream) Subscribe() <-chan PriceUpdate {
	ch := make(chan PriceUpdate, 64)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

// Run drives both sources until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runStream(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runPoll(ctx)
	}()
	wg.Wait()
}

func (s *Stream) runStream(ctx context.Context) {
	events, err := s.client.SubscribeMarket(ctx, s.tokenID)
	if err != nil {
		logger.Warnf("[pricestream] subscribe failed token=%s err=%v", s.tokenID, err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var price decimal.Decimal
			switch ev.Kind {
			case exchange.MarketEventLastTrade, exchange.MarketEventPriceChange:
				price = ev.Price
			case exchange.MarketEventBook:
				if ev.Book == nil {
					continue
				}
				bid, hasBid := ev.Book.BestBid()
				ask, hasAsk := ev.Book.BestAsk()
				if !hasBid || !hasAsk {
					continue
				}
				if ask.Sub(bid).LessThanOrEqual(decimal.NewFromFloat(0.10)) {
					price = bid.Add(ask).Div(decimal.NewFromInt(2))
				} else {
					continue
				}
			default:
				continue
			}
			s.mu.Lock()
			s.lastStreamAt = time.Now()
			s.mu.Unlock()
			s.publish(price, ev.Timestamp, false)
		}
	}
}

func (s *Stream) runPoll(ctx context.Context) {
	interval := defaultPollIntervalLive
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.mu.RLock()
		stale := time.Since(s.lastStreamAt) > defaultStalenessThreshold
		s.mu.RUnlock()
		if stale {
			interval = defaultPollIntervalOffline
		} else {
			interval = defaultPollIntervalLive
		}

		price, err := s.client.GetMarketPrice(ctx, s.tokenID)
		if err == nil {
			// polled value is authoritative when the stream has gone stale.
			s.publish(price, time.Now(), stale)
		} else {
			logger.Debugf("[pricestream] poll error token=%s err=%v", s.tokenID, err)
		}
		timer.Reset(interval)
	}
}

// publish applies dedup (price-diff-or->=1s), a monotonic sequence number
// with back-to-back-timestamp clamping, marks warm, and fans out.
func (s *Stream) publish(price decimal.Decimal, ts time.Time, fromPoll bool) {
	s.mu.Lock()
	prev := s.current
	if !prev.Timestamp.IsZero() {
		if !price.Equal(prev.Price) {
			// price changed: always accept.
		} else if ts.Sub(prev.Timestamp) < dedupMinInterval {
			s.mu.Unlock()
			return
		}
		if !ts.After(prev.Timestamp) {
			ts = prev.Timestamp.Add(time.Millisecond)
		}
	}
	s.seq++
	update := PriceUpdate{Seq: s.seq, Timestamp: ts, Price: price, FromPoll: fromPoll}
	s.current = update
	wasWarm := s.warm
	s.warm = true
	s.mu.Unlock()

	if !wasWarm {
		s.warmOnce.Do(func() { close(s.warmCh) })
	}

	s.subsMu.Lock()
	subs := append([]chan PriceUpdate(nil), s.subs...)
	s.subsMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- update:
		default:
		}
	}
}
