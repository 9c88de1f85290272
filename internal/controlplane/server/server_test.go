package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/registry"
	"github.com/betbot/gobet/internal/settings"
)

func newTestServer() *Server {
	reg := registry.New(registry.Deps{
		Settings:   settings.NewStore(domain.DefaultGlobalSettings()),
		Killswitch: settings.NewKillswitch(),
	})
	return New(Config{}, reg, settings.NewStore(domain.DefaultGlobalSettings()), settings.NewKillswitch())
}

func TestServer_HealthzOK(t *testing.T) {
	s := newTestServer()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got status=%d want=200", rr.Code)
	}
}

func TestServer_BotsListEmpty(t *testing.T) {
	s := newTestServer()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/bots", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got status=%d want=200", rr.Code)
	}
	var out []botSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty bot list, got %d", len(out))
	}
}

func TestServer_BotGetMissingReturns404(t *testing.T) {
	s := newTestServer()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/bots/nope", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got status=%d want=404", rr.Code)
	}
}

func TestServer_SettingsRoundTrip(t *testing.T) {
	s := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	s.Router().ServeHTTP(rr, req)
	var got domain.GlobalSettings
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if got.LogLevel != "info" {
		t.Fatalf("got log_level=%s want=info", got.LogLevel)
	}

	updated := got
	updated.LogLevel = "debug"
	body, _ := json.Marshal(updated)
	rr2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/settings", bytes.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusNoContent {
		t.Fatalf("got status=%d want=204", rr2.Code)
	}

	rr3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/settings", nil)
	s.Router().ServeHTTP(rr3, req3)
	var got2 domain.GlobalSettings
	if err := json.Unmarshal(rr3.Body.Bytes(), &got2); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if got2.LogLevel != "debug" {
		t.Fatalf("got log_level=%s want=debug after update", got2.LogLevel)
	}
}

func TestServer_ProfilesListsEnums(t *testing.T) {
	s := newTestServer()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/profiles", nil)
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got status=%d want=200", rr.Code)
	}
	var out map[string][]string
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(out["strategy_modes"]) != 2 {
		t.Fatalf("got strategy_modes=%v want 2 entries", out["strategy_modes"])
	}
}

func TestServer_KillTogglesKillswitch(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string]bool{"on": true})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/kill", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("got status=%d want=204", rr.Code)
	}
	if !s.kill.On() {
		t.Fatal("expected killswitch to be on after /kill with on=true")
	}
}

func TestServer_BotsCreateRejectsInvalidConfig(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string]string{"name": "missing required fields"})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got status=%d want=400", rr.Code)
	}
}
