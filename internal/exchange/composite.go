package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// CompositeClient satisfies Client by delegating REST operations to a
// RESTClient and streaming operations to a StreamClient. This is the
// concrete Client every BotSession is constructed with.
type CompositeClient struct {
	*RESTClient
	stream *StreamClient
}

func NewCompositeClient(rest *RESTClient, stream *StreamClient) *CompositeClient {
	return &CompositeClient{RESTClient: rest, stream: stream}
}

func (c *CompositeClient) SubscribeMarket(ctx context.Context, tokenID string) (<-chan MarketEvent, error) {
	return c.stream.SubscribeMarket(ctx, tokenID)
}

func (c *CompositeClient) SubscribeUser(ctx context.Context, w Wallet) (<-chan OrderEvent, error) {
	return c.stream.SubscribeUser(ctx, w)
}

var _ Client = (*CompositeClient)(nil)

// zeroPrice is a convenience constant used by callers constructing
// no-price sentinel results.
var zeroPrice = decimal.Zero
