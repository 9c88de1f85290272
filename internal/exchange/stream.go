package exchange

import (
	"context"
	"time"

	wsclient "github.com/betbot/gobet/pkg/sdk/websocket"
	"github.com/shopspring/decimal"
)

// StreamClient adapts the gorilla/websocket-based market client into the
// Client.SubscribeMarket contract, with exponential-backoff auto-reconnect
// bounded by [minBackoff, maxBackoff] (§4.1).
type StreamClient struct {
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewStreamClient(minBackoff, maxBackoff time.Duration) *StreamClient {
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &StreamClient{minBackoff: minBackoff, maxBackoff: maxBackoff}
}

// SubscribeMarket starts a MarketClient for tokenID and translates its raw
// messages into MarketEvent. The returned channel is closed when ctx is
// cancelled.
func (s *StreamClient) SubscribeMarket(ctx context.Context, tokenID string) (<-chan MarketEvent, error) {
	out := make(chan MarketEvent, 256)

	mc := wsclient.NewMarketClient(func(ev wsclient.TradeEvent) {
		price := decimal.NewFromFloat(ev.Price)
		select {
		case out <- MarketEvent{Kind: MarketEventLastTrade, TokenID: ev.AssetID, Timestamp: ev.Timestamp, Price: price}:
		default:
		}
	})

	if err := mc.Start(ctx); err != nil {
		return nil, &ErrTransient{Cause: err}
	}
	if err := mc.Subscribe(tokenID); err != nil {
		return nil, &ErrTransient{Cause: err}
	}

	go s.reconnectLoop(ctx, mc, tokenID)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				mc.Stop()
				return
			case msg, ok := <-mc.Messages():
				if !ok {
					return
				}
				if ev, ok := toMarketEvent(tokenID, msg); ok {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// reconnectLoop watches the underlying client's error channel and restarts
// it with exponential backoff, bounded by [minBackoff, maxBackoff].
func (s *StreamClient) reconnectLoop(ctx context.Context, mc *wsclient.MarketClient, tokenID string) {
	backoff := s.minBackoff
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-mc.Errors():
			if !ok {
				return
			}
			if mc.IsRunning() {
				backoff = s.minBackoff
				continue
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if err := mc.Start(ctx); err == nil {
				_ = mc.Subscribe(tokenID)
				backoff = s.minBackoff
			} else {
				backoff *= 2
				if backoff > s.maxBackoff {
					backoff = s.maxBackoff
				}
			}
		}
	}
}

func toMarketEvent(tokenID string, raw interface{}) (MarketEvent, bool) {
	msg, ok := raw.(wsclient.MarketMessage)
	if !ok {
		return MarketEvent{}, false
	}
	ts := time.Unix(0, msg.Timestamp*int64(time.Millisecond))
	switch msg.EventType {
	case wsclient.EventLastTradePrice, wsclient.EventPriceChange:
		price, err := decimal.NewFromString(msg.Price)
		if err != nil {
			return MarketEvent{}, false
		}
		kind := MarketEventLastTrade
		if msg.EventType == wsclient.EventPriceChange {
			kind = MarketEventPriceChange
		}
		return MarketEvent{Kind: kind, TokenID: tokenID, Timestamp: ts, Price: price}, true
	default:
		return MarketEvent{}, false
	}
}

// SubscribeUser is not implemented by the stream-only client; a composite
// Client wires user-stream confirmation only when api credentials are
// configured (§4.1, optional).
func (s *StreamClient) SubscribeUser(ctx context.Context, w Wallet) (<-chan OrderEvent, error) {
	return nil, nil
}
