// Package config loads the settings of the folio server and commands from the
// environment, an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds every setting. Fields map to environment variables.
type Config struct {
	Binance struct {
		APIKey     string `envconfig:"BINANCE_API_KEY"`
		SecretKey  string `envconfig:"BINANCE_SECRET_KEY"`
		BaseURL    string `envconfig:"BINANCE_BASE_URL" default:"https://api.binance.com"`
		RecvWindow int    `envconfig:"BINANCE_RECV_WINDOW" default:"5000"`
	}

	CoinGecko struct {
		BaseURL  string `envconfig:"COINGECKO_BASE_URL" default:"https://api.coingecko.com/api/v3"`
		APIKey   string `envconfig:"COINGECKO_API_KEY"`
		CacheDir string `envconfig:"HTTP_CACHE_DIR"`
	}

	App struct {
		Fiat            string        `envconfig:"FIAT" default:"eur"`
		Port            int           `envconfig:"PORT" default:"3000"`
		LedgerFile      string        `envconfig:"LEDGER_FILE" default:"transactions.json"`
		LedgerBackend   string        `envconfig:"LEDGER_BACKEND" default:"file"`
		StaticDir       string        `envconfig:"STATIC_DIR" default:"dist"`
		HistoryDays     int           `envconfig:"HISTORY_DAYS" default:"30"`
		UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
		LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	}

	// Assets maps exchange symbols to price ids. Only set from YAML.
	Assets []Asset `ignored:"true"`
}

// Asset is a tracked asset.
type Asset struct {
	Symbol string `yaml:"symbol"` // exchange symbol, e.g. "BTC"
	ID     string `yaml:"id"`     // price id, e.g. "bitcoin"
}

// DefaultAssets are the assets tracked when the YAML file has none.
var DefaultAssets = []Asset{
	{"BTC", "bitcoin"},
	{"ETH", "ethereum"},
	{"BNB", "binancecoin"},
	{"SOL", "solana"},
	{"XRP", "ripple"},
	{"ADA", "cardano"},
	{"DOGE", "dogecoin"},
	{"DOT", "polkadot"},
	{"AVAX", "avalanche-2"},
	{"LINK", "chainlink"},
	{"USDT", "tether"},
	{"USDC", "usd-coin"},
}

// file is the YAML overlay.
type file struct {
	Fiat        string  `yaml:"fiat"`
	HistoryDays int     `yaml:"history_days"`
	Assets      []Asset `yaml:"assets"`
}

// Load reads the .env file at envFile if it exists (".env" if empty), the
// environment, then the YAML file at yamlFile if not empty. YAML values win.
func Load(envFile, yamlFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	// the .env file is optional, and never overrides the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("cannot process environment: %w", err)
	}
	cfg.Assets = DefaultAssets

	if yamlFile != "" {
		if err := cfg.overlay(yamlFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	if f.Fiat != "" {
		c.App.Fiat = f.Fiat
	}
	if f.HistoryDays != 0 {
		c.App.HistoryDays = f.HistoryDays
	}
	if len(f.Assets) > 0 {
		c.Assets = f.Assets
	}
	return nil
}

// Validate checks the settings ranges. Missing exchange keys are not an
// error here: only the balance feature needs them, and it reports them.
func (c *Config) Validate() error {
	if c.App.Port < 1 || c.App.Port > 65535 {
		return &cryptofolio.ConfigurationError{Msg: fmt.Sprintf("PORT must be in 1..65535, got %d", c.App.Port)}
	}
	if c.App.HistoryDays < 1 {
		return &cryptofolio.ConfigurationError{Msg: fmt.Sprintf("HISTORY_DAYS must be positive, got %d", c.App.HistoryDays)}
	}
	if c.App.UpstreamTimeout <= 0 {
		return &cryptofolio.ConfigurationError{Msg: "UPSTREAM_TIMEOUT must be positive"}
	}
	if c.Binance.RecvWindow < 1 || c.Binance.RecvWindow > 60000 {
		return &cryptofolio.ConfigurationError{Msg: fmt.Sprintf("BINANCE_RECV_WINDOW must be in 1..60000, got %d", c.Binance.RecvWindow)}
	}
	if len(c.App.Fiat) != 3 {
		return &cryptofolio.ConfigurationError{Msg: fmt.Sprintf("FIAT must be a currency code, got %q", c.App.Fiat)}
	}
	switch c.App.LedgerBackend {
	case "file", "wal":
	default:
		return &cryptofolio.ConfigurationError{Msg: fmt.Sprintf("LEDGER_BACKEND must be file or wal, got %q", c.App.LedgerBackend)}
	}
	for _, a := range c.Assets {
		if a.Symbol == "" || a.ID == "" {
			return &cryptofolio.ConfigurationError{Msg: fmt.Sprintf("asset %+v needs a symbol and an id", a)}
		}
	}
	return nil
}

// Credential returns the exchange credential, possibly incomplete.
func (c *Config) Credential() cryptofolio.Credential {
	return cryptofolio.Credential{
		APIKey:    strings.TrimSpace(c.Binance.APIKey),
		SecretKey: strings.TrimSpace(c.Binance.SecretKey),
	}
}

// Symbols returns the exchange symbol to price id table.
func (c *Config) Symbols() map[string]string {
	m := make(map[string]string, len(c.Assets))
	for _, a := range c.Assets {
		m[strings.ToUpper(a.Symbol)] = a.ID
	}
	return m
}

// Addr returns the listen address of the server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.App.Port) }
