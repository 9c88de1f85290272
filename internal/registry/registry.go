// Package registry owns the map of running bot sessions and the broadcast
// bus; it is the only writer of per-bot configuration files on disk (§4.9).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/betbot/gobet/internal/botsession"
	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/events"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/risk"
	"github.com/betbot/gobet/internal/settings"
	"github.com/betbot/gobet/internal/strategy"
	"github.com/betbot/gobet/pkg/logger"
	"github.com/betbot/gobet/pkg/persistence"
	"github.com/betbot/gobet/pkg/secretstore"
	"github.com/shopspring/decimal"
)

// Registry is the process-wide owner of every bot session (§5 Ownership).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*botsession.Session
	configs  map[string]domain.BotConfig

	configDir string
	dataDir   string
	// configFiles and settlementFiles persist BotConfig / SettlementRecord
	// as JSON, 0600 with .prev versioning since a config carries a wallet
	// secret reference (§4.9, §6 persisted file layout).
	configFiles     *persistence.JSONFileService
	settlementFiles *persistence.JSONFileService

	secrets  *secretstore.Store
	client   exchange.Client
	breaker  *risk.CircuitBreaker
	bus      *Bus
	settings *settings.Store
	kill     *settings.Killswitch
}

// Deps bundles the process singletons a Registry wires into every session.
type Deps struct {
	ConfigDir  string
	DataDir    string
	Secrets    *secretstore.Store
	Client     exchange.Client
	Breaker    *risk.CircuitBreaker
	Settings   *settings.Store
	Killswitch *settings.Killswitch
}

func New(deps Deps) *Registry {
	return &Registry{
		sessions:        make(map[string]*botsession.Session),
		configs:         make(map[string]domain.BotConfig),
		configDir:       deps.ConfigDir,
		dataDir:         deps.DataDir,
		configFiles:     persistence.NewJSONFileServiceWithOptions(deps.ConfigDir, 0o600, true),
		settlementFiles: persistence.NewJSONFileServiceWithOptions(deps.DataDir, 0o600, true),
		secrets:         deps.Secrets,
		client:          deps.Client,
		breaker:         deps.Breaker,
		bus:             NewBus(),
		settings:        deps.Settings,
		kill:            deps.Killswitch,
	}
}

// Bus returns the broadcast bus dashboards subscribe to.
func (r *Registry) Bus() *Bus { return r.bus }

func (r *Registry) configStore(id string) *persistence.JSONFileStore {
	return r.configFiles.NewStore("bot", id, "config").(*persistence.JSONFileStore)
}

func (r *Registry) settlementStore(id string) *persistence.JSONFileStore {
	return r.settlementFiles.NewStore("bot", id, "settlement").(*persistence.JSONFileStore)
}

// Load scans configDir for persisted bot configs and constructs (but does
// not start) a Session for each, performing crash recovery from the
// matching settlement record (§4.8).
func (r *Registry) Load(ctx context.Context) error {
	entries, err := os.ReadDir(r.configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var cfg domain.BotConfig
		path := filepath.Join(r.configDir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			logger.Warnf("[registry] skipping unreadable config %s: %v", e.Name(), err)
			continue
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			logger.Warnf("[registry] skipping invalid config %s: %v", e.Name(), err)
			continue
		}
		if err := r.instantiate(cfg); err != nil {
			logger.Warnf("[registry] skipping bot %s: %v", cfg.ID, err)
			continue
		}
	}
	return nil
}

// Create validates, persists, and instantiates a new bot (stopped until
// Start is called explicitly).
func (r *Registry) Create(cfg domain.BotConfig) error {
	r.mu.Lock()
	if _, exists := r.configs[cfg.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("registry: bot %s already exists", cfg.ID)
	}
	r.mu.Unlock()

	now := time.Now()
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := r.configStore(cfg.ID).Save(cfg); err != nil {
		return err
	}
	if err := r.instantiate(cfg); err != nil {
		return err
	}
	r.bus.Publish(r.snapshotEvent(cfg.ID, events.TypeBotCreated))
	return nil
}

// instantiate decrypts the wallet secret, builds the strategy/validator
// stack, and registers a not-yet-started Session.
func (r *Registry) instantiate(cfg domain.BotConfig) error {
	var walletKey string
	if cfg.WalletSecretEncrypted != "" && r.secrets != nil {
		key, found, err := r.secrets.GetString(cfg.WalletSecretEncrypted)
		if err != nil {
			return fmt.Errorf("registry: decrypt wallet secret for %s: %w", cfg.ID, err)
		}
		if !found {
			return fmt.Errorf("registry: wallet secret key %s not found for %s", cfg.WalletSecretEncrypted, cfg.ID)
		}
		walletKey = key
	}

	stratCfg := strategy.Config{
		BotID: cfg.ID, TakeProfitPct: cfg.TakeProfitPct, StopLossPct: cfg.StopLossPct,
		MaxHoldSeconds: cfg.MaxHoldSeconds, TradeSizeUSD: cfg.TradeSizeUSD,
		RebuyStrategy: cfg.RebuyStrategy, RebuyDelaySeconds: cfg.RebuyDelaySeconds, RebuyDropPct: cfg.RebuyDropPct,
		EntryMode: cfg.EntryMode, EntryDelaySeconds: cfg.EntryDelaySeconds, SpikeThresholdPct: cfg.SpikeThresholdPct,
	}
	var strat strategy.Strategy
	if cfg.StrategyMode == domain.StrategySpikeFade {
		strat = strategy.NewSpikeFade(stratCfg)
	} else {
		strat = strategy.NewTrainOfTrade(stratCfg)
	}

	validator := risk.NewValidator(r.breaker)
	shared := botsession.Shared{
		Settings: r.settings, Killswitch: r.kill,
		DailyLossAcrossBots: r.dailyLossAcrossBots,
	}
	sess := botsession.New(cfg, walletKey, r.client, validator, strat, r.bus, shared)

	var rec domain.SettlementRecord
	if err := r.settlementStore(cfg.ID).Load(&rec); err == nil {
		sess.RecoverSettlement(rec)
	}

	r.mu.Lock()
	r.configs[cfg.ID] = cfg
	r.sessions[cfg.ID] = sess
	r.mu.Unlock()
	return nil
}

// PersistSettlement writes the session's current settlement record to disk;
// called after every fill and periodically by the caller (§4.9).
func (r *Registry) PersistSettlement(id string) error {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registry: unknown bot %s", id)
	}
	return r.settlementStore(id).Save(sess.Settlement())
}

// dailyLossAcrossBots sums realized PnL across all sessions for the
// daily_loss_limit_usd check (§4.6 rule 5); a future-dated/day-rollover
// reset is the caller's (GlobalSettings) responsibility via the circuit
// breaker's own day-key tracking for the breaker path, and via settlement
// records here for the explicit rule.
func (r *Registry) dailyLossAcrossBots() decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, sess := range r.sessions {
		pnl := sess.Settlement().RealizedPnLUSD
		if pnl.IsNegative() {
			total = total.Sub(pnl)
		}
	}
	return total
}

func (r *Registry) Get(id string) (*botsession.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) List() []*botsession.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*botsession.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Update rejects while the bot is running (§4.9).
func (r *Registry) Update(cfg domain.BotConfig) error {
	r.mu.RLock()
	sess, ok := r.sessions[cfg.ID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registry: unknown bot %s", cfg.ID)
	}
	if sess.Status() == domain.BotStatusRunning {
		return fmt.Errorf("registry: cannot update bot %s while running", cfg.ID)
	}
	cfg.UpdatedAt = time.Now()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := r.configStore(cfg.ID).Save(cfg); err != nil {
		return err
	}
	if err := r.instantiate(cfg); err != nil {
		return err
	}
	r.bus.Publish(r.snapshotEvent(cfg.ID, events.TypeBotUpdated))
	return nil
}

// Delete rejects while running unless force is set, in which case the
// session is stopped first and its settlement record is left on disk
// (§4.9).
func (r *Registry) Delete(id string, force bool) error {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registry: unknown bot %s", id)
	}
	if sess.Status() == domain.BotStatusRunning {
		if !force {
			return fmt.Errorf("registry: cannot delete bot %s while running", id)
		}
		sess.Stop()
	}
	_ = r.PersistSettlement(id)

	r.mu.Lock()
	delete(r.sessions, id)
	delete(r.configs, id)
	r.mu.Unlock()

	_ = os.Remove(r.configStore(id).Path())
	r.bus.Publish(r.snapshotEvent(id, events.TypeBotDeleted))
	return nil
}

func (r *Registry) snapshotEvent(id string, typ events.Type) events.Event {
	cfg := r.configs[id]
	status := domain.BotStatusStopped
	if sess, ok := r.sessions[id]; ok {
		status = sess.Status()
	}
	return events.New(typ, id, time.Now(), events.BotSnapshot{ID: id, Name: cfg.Name, Status: status})
}

// ShutdownAll stops every running session, optionally closing open
// positions first when killswitch_on_shutdown is set (§5).
func (r *Registry) ShutdownAll(ctx context.Context) {
	closeFirst := r.settings != nil && r.settings.Load().KillswitchOnShutdown
	var wg sync.WaitGroup
	for _, sess := range r.List() {
		wg.Add(1)
		go func(s *botsession.Session) {
			defer wg.Done()
			if closeFirst {
				reply := make(chan error, 1)
				s.Enqueue(botsession.Command{Kind: botsession.CmdClose, Reply: reply})
				select {
				case <-reply:
				case <-time.After(15 * time.Second):
				}
			}
			s.Stop()
			_ = r.PersistSettlement(s.ID())
		}(sess)
	}
	wg.Wait()
}
