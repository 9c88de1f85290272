package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SignatureMode selects how a bot's orders are signed and routed.
type SignatureMode string

const (
	SignatureModeDirect SignatureMode = "direct"
	SignatureModeProxy  SignatureMode = "proxy"
)

// RebuyStrategy selects how the Train-of-Trade cycle re-arms its entry target
// after an exit.
type RebuyStrategy string

const (
	RebuyImmediate   RebuyStrategy = "immediate"
	RebuyWaitForDrop RebuyStrategy = "wait_for_drop"
)

// EntryMode selects startup behavior for a freshly started bot session.
type EntryMode string

const (
	EntryImmediateBuy  EntryMode = "immediate_buy"
	EntryWaitForSpike  EntryMode = "wait_for_spike"
	EntryDelayedBuy    EntryMode = "delayed_buy"
)

// StrategyMode selects which Strategy implementation a bot runs.
type StrategyMode string

const (
	StrategySpikeFade    StrategyMode = "spike_fade"
	StrategyTrainOfTrade StrategyMode = "train_of_trade"
)

// BotConfig is the persisted, operator-editable configuration for one bot.
// wallet_secret is never logged or broadcast; only WalletSecretEncrypted is
// ever written to disk or sent over the wire.
type BotConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	MarketSlug   string `json:"market_slug,omitempty"`
	TokenID      string `json:"token_id,omitempty"`
	OutcomeIndex int    `json:"outcome_index"`

	SignatureMode         SignatureMode `json:"signature_mode"`
	FunderAddress         string        `json:"funder_address,omitempty"`
	WalletSecretEncrypted string        `json:"wallet_secret_encrypted"`

	StrategyMode StrategyMode `json:"strategy_mode"`

	SpikeThresholdPct decimal.Decimal `json:"spike_threshold_pct"`
	TakeProfitPct     decimal.Decimal `json:"take_profit_pct"`
	StopLossPct       decimal.Decimal `json:"stop_loss_pct"`
	MaxHoldSeconds    int64           `json:"max_hold_seconds"`
	CooldownSeconds   int64           `json:"cooldown_seconds"`
	TradeSizeUSD      decimal.Decimal `json:"trade_size_usd"`
	MaxBalanceUSD     decimal.Decimal `json:"max_balance_usd"`

	RebuyStrategy     RebuyStrategy   `json:"rebuy_strategy"`
	RebuyDelaySeconds int64           `json:"rebuy_delay_seconds"`
	RebuyDropPct      decimal.Decimal `json:"rebuy_drop_pct"`

	EntryMode         EntryMode `json:"entry_mode"`
	EntryDelaySeconds int64     `json:"entry_delay_seconds"`

	MaxTradesPerSession  int             `json:"max_trades_per_session"`
	SessionLossLimitUSD  decimal.Decimal `json:"session_loss_limit_usd"`
	SettlementDelaySeconds int64         `json:"settlement_delay_seconds"`

	DryRun bool `json:"dry_run"`

	SpikeWindowsSeconds []int64         `json:"spike_windows_seconds"`
	MaxVolatilityCV     decimal.Decimal `json:"max_volatility_cv"`

	MinBidLiquidityUSD decimal.Decimal `json:"min_bid_liquidity_usd"`
	MinAskLiquidityUSD decimal.Decimal `json:"min_ask_liquidity_usd"`
	MaxSpreadPct       decimal.Decimal `json:"max_spread_pct"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExchangeMinimumOrderUSD is the smallest notional the exchange will accept
// for a single order. Validate rejects configs below it.
const ExchangeMinimumOrderUSD = "1"

// Validate enforces the invariants of §3: strictly positive risk parameters,
// a minimum trade size, and proxy signing requiring a funder address.
func (c *BotConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("config: id is required")
	}
	if c.MarketSlug == "" && c.TokenID == "" {
		return fmt.Errorf("config: either market_slug or token_id is required")
	}
	if !c.StopLossPct.IsPositive() {
		return fmt.Errorf("config: stop_loss_pct must be > 0")
	}
	if !c.TakeProfitPct.IsPositive() {
		return fmt.Errorf("config: take_profit_pct must be > 0")
	}
	minOrder, _ := decimal.NewFromString(ExchangeMinimumOrderUSD)
	if c.TradeSizeUSD.LessThan(minOrder) {
		return fmt.Errorf("config: trade_size_usd must be >= %s", ExchangeMinimumOrderUSD)
	}
	if c.SignatureMode == SignatureModeProxy && c.FunderAddress == "" {
		return fmt.Errorf("config: signature_mode=proxy requires funder_address")
	}
	if len(c.SpikeWindowsSeconds) == 0 {
		return fmt.Errorf("config: spike_windows_seconds must have at least one entry")
	}
	for i, w := range c.SpikeWindowsSeconds {
		if w <= 0 {
			return fmt.Errorf("config: spike_windows_seconds[%d] must be positive", i)
		}
	}
	if c.SettlementDelaySeconds == 0 {
		c.SettlementDelaySeconds = 2
	}
	if c.StrategyMode == "" {
		c.StrategyMode = StrategyTrainOfTrade
	}
	if c.EntryMode == "" {
		c.EntryMode = EntryWaitForSpike
	}
	return nil
}

// GlobalSettings is the single process-wide mutable object (§9). Readers
// obtain an immutable snapshot via Settings.Load; writers install a new
// snapshot atomically (read-copy-update).
type GlobalSettings struct {
	SlippageTolerance         decimal.Decimal `json:"slippage_tolerance"`
	MinBidLiquidityUSD        decimal.Decimal `json:"min_bid_liquidity_usd"`
	MinAskLiquidityUSD        decimal.Decimal `json:"min_ask_liquidity_usd"`
	MaxSpreadPct              decimal.Decimal `json:"max_spread_pct"`
	StreamEnabled             bool            `json:"stream_enabled"`
	StreamReconnectMinSeconds int64           `json:"stream_reconnect_min_seconds"`
	StreamReconnectMaxSeconds int64           `json:"stream_reconnect_max_seconds"`
	KillswitchOnShutdown      bool            `json:"killswitch_on_shutdown"`
	LogLevel                  string          `json:"log_level"`
	DailyLossLimitUSD         decimal.Decimal `json:"daily_loss_limit_usd"`
}

// DefaultGlobalSettings returns sane defaults for a fresh install.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		SlippageTolerance:         decimal.NewFromFloat(0.01),
		MinBidLiquidityUSD:        decimal.NewFromInt(20),
		MinAskLiquidityUSD:        decimal.NewFromInt(20),
		MaxSpreadPct:              decimal.NewFromInt(5),
		StreamEnabled:             true,
		StreamReconnectMinSeconds: 1,
		StreamReconnectMaxSeconds: 30,
		KillswitchOnShutdown:      false,
		LogLevel:                  "info",
		DailyLossLimitUSD:         decimal.NewFromInt(100),
	}
}
