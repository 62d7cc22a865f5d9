// Package cmd implements the folio CLI application: the commands over the
// transaction ledger, the reconciliation passes and the HTTP server.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/binance"
	"github.com/etnz/cryptofolio/coingecko"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/metrics"
	"github.com/etnz/cryptofolio/store"
	"github.com/google/subcommands"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var envFile = flag.String("env", ".env", "Path to the .env file, ignored if it does not exist")
var configFile = flag.String("config", "", "Path to the YAML file with the tracked assets")
var ledgerFile = flag.String("ledger-file", "", "Path to the ledger, overrides LEDGER_FILE")

// loadConfig loads the configuration of the application.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		return nil, err
	}
	if *ledgerFile != "" {
		cfg.App.LedgerFile = *ledgerFile
	}
	return cfg, nil
}

// newLogger returns a production logger, or a development one at debug level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.App.LogLevel)
	if err != nil {
		return nil, &cryptofolio.ConfigurationError{Msg: fmt.Sprintf("LOG_LEVEL: %v", err)}
	}
	zc := zap.NewProductionConfig()
	if level.Level() == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// openLedger opens the ledger of the configured backend. The returned closer
// releases the backend.
func openLedger(cfg *config.Config) (*cryptofolio.Ledger, io.Closer, error) {
	backend, err := store.Open(cfg.App.LedgerBackend, cfg.App.LedgerFile)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := cryptofolio.OpenLedger(backend)
	if err != nil {
		return nil, nil, errors.Join(err, backend.Close())
	}
	return ledger, backend, nil
}

// newTracker wires the remote clients to ledger. Upstream requests are
// recorded in m if not nil.
func newTracker(cfg *config.Config, ledger *cryptofolio.Ledger, logger *zap.Logger, m *metrics.Metrics) *cryptofolio.Tracker {
	transport := func(service string) http.RoundTripper {
		if m == nil {
			return http.DefaultTransport
		}
		return m.InstrumentTransport(service, http.DefaultTransport)
	}

	exchange := binance.NewClient(
		binance.WithBaseURL(cfg.Binance.BaseURL),
		binance.WithRecvWindow(cfg.Binance.RecvWindow),
		binance.WithHTTPClient(&http.Client{Timeout: cfg.App.UpstreamTimeout, Transport: transport(binance.Service)}),
		binance.WithLogger(logger.Named(binance.Service)),
	)
	market := coingecko.NewClient(
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithFiat(cfg.App.Fiat),
		coingecko.WithAPIKey(cfg.CoinGecko.APIKey),
		coingecko.WithCacheDir(cfg.CoinGecko.CacheDir),
		coingecko.WithHTTPClient(&http.Client{Timeout: cfg.App.UpstreamTimeout, Transport: transport(coingecko.Service)}),
		coingecko.WithLogger(logger.Named(coingecko.Service)),
	)

	return &cryptofolio.Tracker{
		Ledger:      ledger,
		Exchange:    exchange,
		Market:      market,
		Credential:  cfg.Credential(),
		Symbols:     cfg.Symbols(),
		Timeout:     cfg.App.UpstreamTimeout,
		HistoryDays: cfg.App.HistoryDays,
		Logger:      logger,
	}
}

// session is everything a command needs to run a pass.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	tracker *cryptofolio.Tracker
	closer  io.Closer
}

// openSession loads the configuration, the logger and the ledger.
func openSession(m *metrics.Metrics) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	ledger, closer, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:     cfg,
		logger:  logger,
		tracker: newTracker(cfg, ledger, logger, m),
		closer:  closer,
	}, nil
}

func (s *session) Close() error {
	_ = s.logger.Sync()
	return s.closer.Close()
}

// printMarkdown renders md for the terminal, or prints it as is when it
// cannot be rendered.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}

// fail prints err and returns the failure status of a command.
func fail(what string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	return subcommands.ExitFailure
}
