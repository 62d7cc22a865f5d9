// Package server exposes the portfolio over HTTP: exchange balances, the
// transaction ledger, its valuation and price charts, plus the static
// frontend.
//
// The package is organized as follows:
//   - server.go: Server, its options and the routes
//   - handler.go: HTTP request handlers
//   - middleware.go: middleware functions
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ServiceName         = "folio"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"

	shutdownTimeout = 5 * time.Second
)

// Server serves the portfolio API.
type Server struct {
	tracker   *cryptofolio.Tracker
	fiat      string
	staticDir string
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithFiat sets the currency of the transactions posted to the API ("EUR" by
// default).
func WithFiat(fiat string) Option {
	return func(s *Server) { s.fiat = fiat }
}

// WithStaticDir serves the frontend files of dir, with a fallback to its
// index.html for unknown paths.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithMetrics records the HTTP, ledger and tracker metrics, and serves them on
// /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server running its passes on tracker.
func New(tracker *cryptofolio.Tracker, opts ...Option) *Server {
	s := &Server{
		tracker: tracker,
		fiat:    "EUR",
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes configures the router with all the routes.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(s.accessLogMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	api := router.Group("/api")
	api.GET("/portfolio", s.GetPortfolio)
	api.GET("/transactions", s.ListTransactions)
	api.POST("/transactions", s.AddTransaction)
	api.DELETE("/transactions/:id", s.RemoveTransaction)
	api.GET("/holdings", s.GetHoldings)
	api.GET("/chart/:asset", s.GetChart)

	router.GET("/health", s.HealthCheck)
	router.GET("/report", s.GetReport)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	if s.staticDir != "" {
		router.NoRoute(s.serveStatic)
	}
	return router
}

// Start runs the HTTP server on addr (blocking) and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
