package cmd

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/etnz/cryptofolio/metrics"
	"github.com/etnz/cryptofolio/server"
	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

type serveCmd struct {
	port int
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the portfolio API and the frontend" }
func (*serveCmd) Usage() string {
	return `folio serve [-port <port>]

  Serves the JSON API under /api, the report on /report, the metrics on
  /metrics and the frontend files of STATIC_DIR. Stops on SIGINT or SIGTERM.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.port, "port", 0, "Port to listen on. Defaults to PORT.")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	m := metrics.New()
	s, err := openSession(m)
	if err != nil {
		return fail("starting", err)
	}
	defer s.Close()

	addr := s.cfg.Addr()
	if c.port > 0 {
		addr = fmt.Sprintf(":%d", c.port)
	}
	m.LedgerSize.Set(float64(s.tracker.Ledger.Len()))

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(s.tracker,
		server.WithFiat(s.cfg.App.Fiat),
		server.WithStaticDir(s.cfg.App.StaticDir),
		server.WithMetrics(m),
		server.WithLogger(s.logger),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.logger.Info("starting",
		zap.String("ledger", s.cfg.App.LedgerFile),
		zap.String("backend", s.cfg.App.LedgerBackend),
		zap.String("fiat", s.cfg.App.Fiat),
		zap.Bool("exchange_configured", s.tracker.Credential.Validate() == nil),
	)
	if err := srv.Start(ctx, addr); err != nil {
		return fail("serving", err)
	}
	s.logger.Info("stopped")
	return subcommands.ExitSuccess
}
