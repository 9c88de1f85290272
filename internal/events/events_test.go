package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNew_StampsFields(t *testing.T) {
	now := time.Now()
	ev := New(TypeSpikeDetected, "bot-1", now, SpikeDetectedData{MaxChangePct: "5.5", WindowSec: 60, Direction: "up"})
	if ev.Type != TypeSpikeDetected || ev.BotID != "bot-1" || !ev.Timestamp.Equal(now) {
		t.Fatalf("unexpected event envelope: %+v", ev)
	}
}

func TestEvent_RoundTripsThroughJSON(t *testing.T) {
	ev := New(TypeTradeExecuted, "bot-2", time.Now(), TradeExecutedData{
		AmountUSD: "10", FillPrice: "0.5", OrderID: "o1",
	})
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var got Event
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if got.Type != ev.Type || got.BotID != ev.BotID {
		t.Fatalf("round-trip mismatch: got=%+v want=%+v", got, ev)
	}
}

func TestEvent_OmitsEmptyBotID(t *testing.T) {
	ev := New(TypeSettingsUpdated, "", time.Now(), nil)
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if _, present := raw["bot_id"]; present {
		t.Fatalf("expected bot_id omitted when empty, got %v", raw)
	}
}
