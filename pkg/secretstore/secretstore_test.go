package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func TestParseKey_EmptyReturnsNil(t *testing.T) {
	k, err := ParseKey("")
	if err != nil || k != nil {
		t.Fatalf("expected nil,nil for empty input, got %v,%v", k, err)
	}
}

func TestParseKey_HexRoundTrip(t *testing.T) {
	raw := strings.Repeat("ab", 32)
	k, err := ParseKey(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(k) != 32 {
		t.Fatalf("got len=%d want=32", len(k))
	}
	want, _ := hex.DecodeString(raw)
	if string(k) != string(want) {
		t.Fatalf("decoded bytes mismatch")
	}
}

func TestParseKey_HexWith0xPrefix(t *testing.T) {
	raw := "0x" + strings.Repeat("cd", 32)
	k, err := ParseKey(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(k) != 32 {
		t.Fatalf("got len=%d want=32", len(k))
	}
}

func TestParseKey_Base64RoundTrip(t *testing.T) {
	raw32 := make([]byte, 32)
	for i := range raw32 {
		raw32[i] = byte(i)
	}
	enc := base64.StdEncoding.EncodeToString(raw32)
	k, err := ParseKey(enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(k) != string(raw32) {
		t.Fatalf("decoded bytes mismatch")
	}
}

func TestParseKey_RejectsWrongLength(t *testing.T) {
	if _, err := ParseKey("deadbeef"); err == nil {
		t.Fatal("expected error for short hex key")
	}
}

func TestParseKey_RejectsGarbage(t *testing.T) {
	if _, err := ParseKey("not-a-valid-key-!!!"); err == nil {
		t.Fatal("expected error for unparseable key")
	}
}
