package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validConfig() BotConfig {
	return BotConfig{
		ID:                "bot-1",
		TokenID:           "12345",
		StopLossPct:       decimal.NewFromInt(5),
		TakeProfitPct:     decimal.NewFromInt(5),
		TradeSizeUSD:      decimal.NewFromInt(10),
		SpikeWindowsSeconds: []int64{60},
	}
}

func TestBotConfig_ValidateOK(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.StrategyMode != StrategyTrainOfTrade {
		t.Fatalf("expected default strategy_mode, got %s", c.StrategyMode)
	}
	if c.EntryMode != EntryWaitForSpike {
		t.Fatalf("expected default entry_mode, got %s", c.EntryMode)
	}
	if c.SettlementDelaySeconds != 2 {
		t.Fatalf("expected default settlement_delay_seconds=2, got %d", c.SettlementDelaySeconds)
	}
}

func TestBotConfig_ValidateRejectsMissingMarket(t *testing.T) {
	c := validConfig()
	c.TokenID = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when neither market_slug nor token_id set")
	}
}

func TestBotConfig_ValidateRejectsBelowMinimumTradeSize(t *testing.T) {
	c := validConfig()
	c.TradeSizeUSD = decimal.NewFromFloat(0.5)
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for trade_size_usd below exchange minimum")
	}
}

func TestBotConfig_ValidateRequiresFunderForProxySigning(t *testing.T) {
	c := validConfig()
	c.SignatureMode = SignatureModeProxy
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when proxy signing has no funder_address")
	}
	c.FunderAddress = "0xabc"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error once funder_address set: %v", err)
	}
}

func TestBotConfig_ValidateRejectsNonPositiveWindow(t *testing.T) {
	c := validConfig()
	c.SpikeWindowsSeconds = []int64{60, 0}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for non-positive spike window")
	}
}

func TestBotConfig_ValidateRejectsEmptyWindows(t *testing.T) {
	c := validConfig()
	c.SpikeWindowsSeconds = nil
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for empty spike_windows_seconds")
	}
}
