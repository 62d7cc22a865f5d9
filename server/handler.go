package server

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// GetPortfolio handles GET /api/portfolio: the exchange balances.
func (s *Server) GetPortfolio(c *gin.Context) {
	rows, err := s.tracker.Balances(c.Request.Context())
	s.recordPass("balances", err)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListTransactions handles GET /api/transactions. With order=desc the latest
// added transactions come first.
func (s *Server) ListTransactions(c *gin.Context) {
	switch order := c.DefaultQuery("order", "asc"); order {
	case "asc":
		c.JSON(http.StatusOK, s.tracker.Ledger.List())
	case "desc":
		c.JSON(http.StatusOK, s.tracker.Ledger.Reversed())
	default:
		s.handleError(c, &cryptofolio.ValidationError{Field: "order", Msg: fmt.Sprintf("must be asc or desc, got %q", order)})
	}
}

// transactionRequest is the body of POST /api/transactions. The unit price is
// in the server fiat.
type transactionRequest struct {
	Asset     string           `json:"asset"`
	Amount    decimal.Decimal  `json:"amount"`
	UnitPrice decimal.Decimal  `json:"unitPrice"`
	Date      cryptofolio.Date `json:"date"`
	Memo      string           `json:"memo"`
}

// AddTransaction handles POST /api/transactions.
func (s *Server) AddTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, &cryptofolio.ValidationError{Msg: "malformed transaction: " + err.Error()})
		return
	}
	tx := cryptofolio.NewBuy(req.Date, req.Asset, cryptofolio.Q(req.Amount), cryptofolio.M(req.UnitPrice, s.fiat))
	tx.Memo = req.Memo

	tx, err := s.tracker.Ledger.Add(tx)
	s.recordMutation("add", err)
	if err != nil {
		s.handleError(c, err)
		return
	}
	s.logger.Info("transaction added", zap.Int64("id", tx.ID), zap.String("asset", tx.Asset))
	c.JSON(http.StatusCreated, tx)
}

// RemoveTransaction handles DELETE /api/transactions/:id. Removing an unknown
// transaction succeeds.
func (s *Server) RemoveTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.handleError(c, &cryptofolio.ValidationError{Field: "id", Msg: fmt.Sprintf("not a transaction id: %q", c.Param("id"))})
		return
	}
	err = s.tracker.Ledger.Remove(id)
	s.recordMutation("remove", err)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetHoldings handles GET /api/holdings: the ledger valued at spot prices.
func (s *Server) GetHoldings(c *gin.Context) {
	h, err := s.tracker.Holdings(c.Request.Context())
	s.recordPass("holdings", err)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

// GetChart handles GET /api/chart/:asset?days=N.
func (s *Server) GetChart(c *gin.Context) {
	days := 0
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.handleError(c, &cryptofolio.ValidationError{Field: "days", Msg: fmt.Sprintf("must be a positive number, got %q", v)})
			return
		}
		days = n
	}
	chart, err := s.tracker.Chart(c.Request.Context(), c.Param("asset"), days)
	s.recordPass("chart", err)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, chart)
}

// GetReport handles GET /report: the markdown report rendered as HTML.
// Missing balances are reported in the page instead of failing it.
func (s *Server) GetReport(c *gin.Context) {
	ctx := c.Request.Context()
	h, err := s.tracker.Holdings(ctx)
	s.recordPass("holdings", err)
	if err != nil {
		s.handleError(c, err)
		return
	}
	report := renderer.Report{On: cryptofolio.DateOf(s.now()), Holdings: h}
	report.Balances, err = s.tracker.Balances(ctx)
	s.recordPass("balances", err)
	if err != nil {
		report.BalancesError = err.Error()
	}

	var body bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(renderer.RenderReport(report)), &body); err != nil {
		s.handleError(c, err)
		return
	}
	page := "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Portfolio report</title></head><body>\n" +
		body.String() + "</body></html>\n"
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "OK",
		"service":      ServiceName,
		"timestamp":    s.now().UTC().Format(time.RFC3339),
		"transactions": s.tracker.Ledger.Len(),
	})
}

// serveStatic serves the frontend files. Unknown paths get index.html so that
// the frontend can route them, except under /api.
func (s *Server) serveStatic(c *gin.Context) {
	p := path.Clean("/" + c.Request.URL.Path)
	isRead := c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead
	if !isRead || p == "/api" || strings.HasPrefix(p, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "request_id": c.GetString(RequestIDContextKey)})
		return
	}
	file := filepath.Join(s.staticDir, filepath.FromSlash(p))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}
	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "request_id": c.GetString(RequestIDContextKey)})
		return
	}
	c.File(index)
}

// statusOf maps an error to the HTTP status and the message returned to the
// client.
func statusOf(err error) (int, string) {
	switch {
	case cryptofolio.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case cryptofolio.IsConfiguration(err):
		return http.StatusInternalServerError, err.Error()
	}
	if _, ok := cryptofolio.AsUpstream(err); ok {
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// handleError logs the error and sends the matching HTTP response.
func (s *Server) handleError(c *gin.Context, err error) {
	status, msg := statusOf(err)
	requestID := c.GetString(RequestIDContextKey)

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status_code", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("API error", fields...)
	} else {
		s.logger.Warn("API error", fields...)
	}

	c.JSON(status, gin.H{
		"error":      msg,
		"request_id": requestID,
	})
}

func (s *Server) recordPass(kind string, err error) {
	if s.metrics == nil {
		return
	}
	// a missing configuration is not a failed pass.
	if cryptofolio.IsConfiguration(err) {
		return
	}
	s.metrics.RecordPass(kind, err)
}

func (s *Server) recordMutation(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordMutation(op, s.tracker.Ledger.Len(), err)
	}
}
