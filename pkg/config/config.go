// Package config bootstraps process-wide dependencies at startup: the
// global settings snapshot, the secret store, and the exchange client.
// Per-bot configuration is owned entirely by internal/registry once the
// process is running.
package config

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	clobclient "github.com/betbot/gobet/clob/client"
	"github.com/betbot/gobet/clob/types"
	"github.com/betbot/gobet/internal/domain"
	"github.com/betbot/gobet/internal/exchange"
	"github.com/betbot/gobet/internal/risk"
	"github.com/betbot/gobet/internal/settings"
	"github.com/betbot/gobet/pkg/secretstore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ProcessConfig holds the environment-derived values needed to construct
// the process singletons (exchange client, secret store, settings store).
type ProcessConfig struct {
	ClobHost   string
	ChainID    types.Chain
	PrivateKey string // hex; signs CLOB API key derivation and any order
	// placed by the process wallet. Per-bot wallets are looked up in the
	// secret store by wallet_secret_encrypted instead.
	APIKey        string
	APISecret     string
	APIPassphrase string

	SecretStorePath string
	SecretStoreKey  string // hex or base64, 32 bytes

	ConfigDir string
	DataDir   string

	SettingsPath string
	ListenAddr   string

	LogLevel string
	LogFile  string
}

// Load reads a .env file (if present) and environment variables into a
// ProcessConfig, applying the same defaults a fresh install ships with.
func Load(envFile string) (ProcessConfig, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg := ProcessConfig{
		ClobHost:        getEnv("CLOB_HOST", "https://clob.polymarket.com"),
		ChainID:         types.Chain(getEnvInt("CLOB_CHAIN_ID", int(types.ChainPolygon))),
		PrivateKey:      os.Getenv("CLOB_PRIVATE_KEY"),
		APIKey:          os.Getenv("CLOB_API_KEY"),
		APISecret:       os.Getenv("CLOB_API_SECRET"),
		APIPassphrase:   os.Getenv("CLOB_API_PASSPHRASE"),
		SecretStorePath: getEnv("SECRETSTORE_PATH", "data/secrets"),
		SecretStoreKey:  os.Getenv("SECRETSTORE_KEY"),
		ConfigDir:       getEnv("BOT_CONFIG_DIR", "data/bots"),
		DataDir:         getEnv("BOT_DATA_DIR", "data/state"),
		SettingsPath:    getEnv("SETTINGS_PATH", "data/settings.json"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", "logs/combined.log"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// OpenSecretStore opens the Badger-backed secret store the process wallet
// keys are decrypted from.
func (c ProcessConfig) OpenSecretStore() (*secretstore.Store, error) {
	key, err := secretstore.ParseKey(c.SecretStoreKey)
	if err != nil {
		return nil, fmt.Errorf("config: parse secretstore key: %w", err)
	}
	return secretstore.Open(secretstore.OpenOptions{
		Path:          c.SecretStorePath,
		EncryptionKey: key,
	})
}

// NewExchangeClient builds the CLOB REST+stream composite client the
// registry hands to every bot session.
func (c ProcessConfig) NewExchangeClient() (exchange.Client, error) {
	var privKey *ecdsa.PrivateKey
	if c.PrivateKey != "" {
		pk, err := crypto.HexToECDSA(trimHexPrefix(c.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("config: parse clob private key: %w", err)
		}
		privKey = pk
	}

	var creds *types.ApiKeyCreds
	if c.APIKey != "" {
		creds = &types.ApiKeyCreds{Key: c.APIKey, Secret: c.APISecret, Passphrase: c.APIPassphrase}
	}

	clob := clobclient.NewClient(c.ClobHost, c.ChainID, privKey, creds)
	rest := exchange.NewRESTClient(clob)
	stream := exchange.NewStreamClient(time.Second, 30*time.Second)
	return exchange.NewCompositeClient(rest, stream), nil
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// NewCircuitBreaker builds the process-wide breaker from GlobalSettings
// (§9 supplemented breaker; max_consecutive_errors is not a GlobalSettings
// field, so it keeps the teacher's fixed default).
func NewCircuitBreaker(gs domain.GlobalSettings) *risk.CircuitBreaker {
	cents := gs.DailyLossLimitUSD.Mul(decimal.NewFromInt(100)).IntPart()
	return risk.NewCircuitBreaker(risk.CircuitBreakerConfig{
		MaxConsecutiveErrors: 5,
		DailyLossLimitCents:  cents,
	})
}

// LoadSettings reads GlobalSettings from path, falling back to and
// persisting domain.DefaultGlobalSettings() if the file does not exist.
func LoadSettings(path string) (domain.GlobalSettings, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		gs := domain.DefaultGlobalSettings()
		return gs, SaveSettings(path, gs)
	}
	if err != nil {
		return domain.GlobalSettings{}, err
	}
	var gs domain.GlobalSettings
	if err := json.Unmarshal(b, &gs); err != nil {
		return domain.GlobalSettings{}, err
	}
	return gs, nil
}

// SaveSettings persists GlobalSettings to path, overwriting any previous
// revision (settings updates are infrequent; no .prev versioning here,
// unlike registry's per-bot configs which carry a wallet secret reference).
func SaveSettings(path string, gs domain.GlobalSettings) error {
	b, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// NewSettingsStore loads GlobalSettings from path and wraps it in a
// settings.Store for read-copy-update access by the rest of the process.
func NewSettingsStore(path string) (*settings.Store, error) {
	gs, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(gs), nil
}
