package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	clobclient "github.com/betbot/gobet/clob/client"
	"github.com/betbot/gobet/clob/types"
	"github.com/betbot/gobet/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const gammaMarketsURL = "https://gamma-api.polymarket.com/markets"

// TokenIDCacheTTL is the default TTL for ResolveTokenId's cache (§4.1).
const TokenIDCacheTTL = 10 * time.Minute

// RESTClient is the REST-backed Client implementation: it resolves token
// ids against the Gamma API via resty (with its own timeout/retry policy,
// independent of the underlying CLOB client) and delegates order book,
// pricing, balance, and order placement to the signed CLOB client.
type RESTClient struct {
	clob *clobclient.Client
	http *resty.Client

	mu        sync.Mutex
	tokenIDs  map[string]tokenIDCacheEntry
	cacheTTL  time.Duration
}

type tokenIDCacheEntry struct {
	tokenID   string
	expiresAt time.Time
}

// NewRESTClient wraps an already-authenticated CLOB client.
func NewRESTClient(clob *clobclient.Client) *RESTClient {
	return &RESTClient{
		clob:     clob,
		http:     resty.New().SetTimeout(10 * time.Second).SetRetryCount(2).SetRetryWaitTime(250 * time.Millisecond),
		tokenIDs: make(map[string]tokenIDCacheEntry),
		cacheTTL: TokenIDCacheTTL,
	}
}

type gammaMarket struct {
	Slug         string `json:"slug"`
	ClobTokenIDs string `json:"clobTokenIds"`
}

// ResolveTokenID resolves a market slug + outcome index to a token id,
// caching the result for cacheTTL.
func (r *RESTClient) ResolveTokenID(ctx context.Context, marketSlug string, outcomeIndex int) (string, error) {
	cacheKey := fmt.Sprintf("%s#%d", marketSlug, outcomeIndex)
	r.mu.Lock()
	if e, ok := r.tokenIDs[cacheKey]; ok && time.Now().Before(e.expiresAt) {
		r.mu.Unlock()
		return e.tokenID, nil
	}
	r.mu.Unlock()

	var markets []gammaMarket
	resp, err := r.http.R().
		SetContext(ctx).
		SetQueryParam("slug", marketSlug).
		SetResult(&markets).
		Get(gammaMarketsURL)
	if err != nil {
		return "", classifyHTTPError(err)
	}
	if resp.IsError() {
		return "", classifyStatusError(resp.StatusCode())
	}
	if len(markets) == 0 {
		return "", &ErrPermanent{Reason: ReasonMarketClosed, Detail: "market not found: " + marketSlug}
	}

	var ids []string
	if err := json.Unmarshal([]byte(markets[0].ClobTokenIDs), &ids); err != nil {
		return "", &ErrPermanent{Reason: ReasonOther, Detail: "malformed clobTokenIds"}
	}
	if outcomeIndex < 0 || outcomeIndex >= len(ids) {
		return "", &ErrPermanent{Reason: ReasonOther, Detail: "outcome_index out of range"}
	}

	tokenID := ids[outcomeIndex]
	r.mu.Lock()
	r.tokenIDs[cacheKey] = tokenIDCacheEntry{tokenID: tokenID, expiresAt: time.Now().Add(r.cacheTTL)}
	r.mu.Unlock()
	return tokenID, nil
}

func (r *RESTClient) GetOrderBook(ctx context.Context, tokenID string, depth int) (OrderBook, error) {
	summary, err := r.clob.GetOrderBook(ctx, tokenID, nil)
	if err != nil {
		return OrderBook{}, classifyHTTPError(err)
	}
	ob := OrderBook{TokenID: tokenID, Timestamp: time.Now()}
	ob.Bids = toLevels(summary.Bids, depth)
	ob.Asks = toLevels(summary.Asks, depth)
	return ob, nil
}

func toLevels(in []types.OrderSummary, depth int) []BookLevel {
	out := make([]BookLevel, 0, len(in))
	for i, l := range in {
		if depth > 0 && i >= depth {
			break
		}
		p, err1 := decimal.NewFromString(l.Price)
		s, err2 := decimal.NewFromString(l.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, BookLevel{Price: p, Size: s})
	}
	return out
}

// GetMarketPrice implements the exchange's published pricing rule locally:
// midpoint when the spread is tight, else last trade price.
func (r *RESTClient) GetMarketPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	book, err := r.GetOrderBook(ctx, tokenID, 1)
	if err != nil {
		return decimal.Zero, err
	}
	bid, hasBid := book.BestBid()
	ask, hasAsk := book.BestAsk()
	if hasBid && hasAsk {
		spread := ask.Sub(bid)
		if spread.LessThanOrEqual(decimal.NewFromFloat(0.10)) {
			return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
		}
	}

	mp, err := r.clob.GetPrice(ctx, tokenID)
	if err != nil || mp == nil {
		return decimal.Zero, &ErrPermanent{Reason: ReasonNoPrice}
	}
	return decimal.NewFromFloat(mp.Price), nil
}

func (r *RESTClient) GetBalanceAndAllowance(ctx context.Context, w Wallet) (decimal.Decimal, decimal.Decimal, error) {
	resp, err := r.clob.GetBalanceAllowance(ctx, &types.BalanceAllowanceParams{AssetType: types.AssetTypeCollateral})
	if err != nil {
		return decimal.Zero, decimal.Zero, classifyHTTPError(err)
	}
	bal, _ := decimal.NewFromString(resp.Balance)
	allow, _ := decimal.NewFromString(resp.Allowance)
	return bal, allow, nil
}

func (r *RESTClient) PlaceOrder(ctx context.Context, w Wallet, tokenID string, side OrderSide, amountUSD, limitPrice decimal.Decimal) (PlaceOrderResult, error) {
	price, _ := limitPrice.Float64()
	if price <= 0 {
		return PlaceOrderResult{}, &ErrPermanent{Reason: ReasonNoPrice}
	}
	shares := amountUSD.Div(limitPrice)
	sharesF, _ := shares.Float64()

	clobSide := types.SideBuy
	if side == OrderSell {
		clobSide = types.SideSell
	}

	var resp *types.OrderResponse
	var err error
	if w.SignatureMode == "proxy" && w.FunderAddress != "" {
		resp, err = r.clob.PlaceOrderFAKWithFunder(ctx, tokenID, clobSide, sharesF, price, nil, w.FunderAddress, types.SignatureTypeGnosisSafe)
	} else {
		resp, err = r.clob.PlaceOrderFOK(ctx, tokenID, clobSide, sharesF, price, nil)
	}
	if err != nil {
		return PlaceOrderResult{}, classifyHTTPError(err)
	}
	if resp == nil || !resp.Success {
		reason := ReasonOther
		msg := ""
		if resp != nil {
			msg = resp.ErrorMsg
			reason = classifyRejectReason(msg)
		}
		return PlaceOrderResult{Kind: ResultRejected, RejectReason: msg}, &ErrPermanent{Reason: reason, Detail: msg}
	}

	filledShares := shares
	if resp.TakingAmount != "" {
		if v, perr := decimal.NewFromString(resp.TakingAmount); perr == nil {
			filledShares = v
		}
	}
	logger.Debugf("[exchange] order filled tokenID=%s orderID=%s price=%s shares=%s", tokenID, resp.OrderID, limitPrice.String(), filledShares.String())
	return PlaceOrderResult{
		Kind:       ResultFilled,
		FillPrice:  limitPrice,
		FillShares: filledShares,
		OrderID:    resp.OrderID,
	}, nil
}

func (r *RESTClient) SubscribeMarket(ctx context.Context, tokenID string) (<-chan MarketEvent, error) {
	return nil, fmt.Errorf("exchange: REST client does not support streaming; use StreamClient")
}

func (r *RESTClient) SubscribeUser(ctx context.Context, w Wallet) (<-chan OrderEvent, error) {
	return nil, fmt.Errorf("exchange: REST client does not support streaming; use StreamClient")
}

func classifyRejectReason(msg string) PermanentReason {
	switch {
	case containsAny(msg, "insufficient balance", "not enough balance"):
		return ReasonInsufficientBalance
	case containsAny(msg, "insufficient allowance", "not enough allowance"):
		return ReasonInsufficientAllowance
	case containsAny(msg, "market closed", "market is closed"):
		return ReasonMarketClosed
	case containsAny(msg, "invalid signature"):
		return ReasonInvalidSignature
	default:
		return ReasonOther
	}
}

func containsAny(s string, subs ...string) bool {
	lower := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	ls := string(lower)
	for _, sub := range subs {
		if len(sub) == 0 {
			continue
		}
		if indexOf(ls, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}

// classifyHTTPError maps a low-level transport error to the §4.1 taxonomy:
// network errors, timeouts, and 5xx are Transient.
func classifyHTTPError(err error) error {
	if err == nil {
		return nil
	}
	return &ErrTransient{Cause: err}
}

func classifyStatusError(status int) error {
	if status >= 500 {
		return &ErrTransient{Cause: fmt.Errorf("http %d", status)}
	}
	return &ErrPermanent{Reason: ReasonOther, Detail: strconv.Itoa(status)}
}
