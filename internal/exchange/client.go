// Package exchange is the single narrow boundary over the exchange's REST,
// market-stream, and user-stream surfaces (§4.1). Nothing outside this
// package speaks the exchange wire protocol.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide mirrors the exchange's BUY/SELL vocabulary at the adapter
// boundary, independent of the strategy's LONG/SHORT Position.Side.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// BookLevel is one resting order at a price.
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal // in shares
}

// OrderBook is sorted best-first on both sides.
type OrderBook struct {
	TokenID   string
	Timestamp time.Time
	Bids      []BookLevel
	Asks      []BookLevel
}

// BestBid returns the highest bid, or zero+false if the book is empty.
func (b OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask, or zero+false if the book is empty.
func (b OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price, true
}

// DepthUSD sums price*size across levels, in USD notional.
func DepthUSD(levels []BookLevel) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Price.Mul(l.Size))
	}
	return total
}

// Wallet identifies the signing identity for an order; the adapter
// translates SignatureMode into the underlying proxy/direct call shape.
type Wallet struct {
	PrivateKeyHex string
	SignatureMode string // domain.SignatureModeDirect | domain.SignatureModeProxy
	FunderAddress string
}

// ResultKind discriminates a PlaceOrder outcome.
type ResultKind string

const (
	ResultFilled   ResultKind = "filled"
	ResultRejected ResultKind = "rejected"
	ResultTransient ResultKind = "transient"
)

// PlaceOrderResult is the outcome of a PlaceOrder call (§4.1).
type PlaceOrderResult struct {
	Kind        ResultKind
	FillPrice   decimal.Decimal
	FillShares  decimal.Decimal
	OrderID     string
	RejectReason string
}

// MarketEventKind discriminates a streamed MarketEvent.
type MarketEventKind string

const (
	MarketEventBook       MarketEventKind = "book"
	MarketEventPriceChange MarketEventKind = "price_change"
	MarketEventLastTrade  MarketEventKind = "last_trade"
)

// MarketEvent is one message from SubscribeMarket.
type MarketEvent struct {
	Kind      MarketEventKind
	TokenID   string
	Timestamp time.Time
	Price     decimal.Decimal // meaningful for LastTrade and PriceChange
	Book      *OrderBook      // meaningful for Book
}

// OrderEventKind discriminates a streamed user OrderEvent.
type OrderEventKind string

const (
	OrderEventFilled  OrderEventKind = "filled"
	OrderEventCanceled OrderEventKind = "canceled"
)

// OrderEvent is one authoritative fill/cancel confirmation from the user
// stream (§4.1, optional).
type OrderEvent struct {
	Kind      OrderEventKind
	OrderID   string
	Timestamp time.Time
	FillPrice decimal.Decimal
	FillShares decimal.Decimal
}

// Client is the exchange adapter contract every component above it depends
// on. Any implementation satisfying this interface may swap the concrete
// exchange (§6).
type Client interface {
	ResolveTokenID(ctx context.Context, marketSlug string, outcomeIndex int) (string, error)
	GetOrderBook(ctx context.Context, tokenID string, depth int) (OrderBook, error)
	GetMarketPrice(ctx context.Context, tokenID string) (decimal.Decimal, error)
	GetBalanceAndAllowance(ctx context.Context, w Wallet) (balanceUSD, allowanceUSD decimal.Decimal, err error)
	PlaceOrder(ctx context.Context, w Wallet, tokenID string, side OrderSide, amountUSD, limitPrice decimal.Decimal) (PlaceOrderResult, error)
	SubscribeMarket(ctx context.Context, tokenID string) (<-chan MarketEvent, error)
	SubscribeUser(ctx context.Context, w Wallet) (<-chan OrderEvent, error)
}
