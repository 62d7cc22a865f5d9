package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/binance"
	"github.com/etnz/cryptofolio/metrics"
	"github.com/etnz/cryptofolio/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockExchange implements cryptofolio.BalanceSource for testing.
type MockExchange struct {
	mock.Mock
}

func (m *MockExchange) FetchBalances(ctx context.Context, cred cryptofolio.Credential) ([]cryptofolio.Balance, error) {
	args := m.Called(ctx, cred)
	balances, _ := args.Get(0).([]cryptofolio.Balance)
	return balances, args.Error(1)
}

// MockMarket implements cryptofolio.PriceSource for testing.
type MockMarket struct {
	mock.Mock
}

func (m *MockMarket) FetchSpot(ctx context.Context, ids []string) (cryptofolio.Prices, error) {
	args := m.Called(ctx, ids)
	prices, _ := args.Get(0).(cryptofolio.Prices)
	return prices, args.Error(1)
}

func (m *MockMarket) FetchHistory(ctx context.Context, id string, days int) (cryptofolio.Series, error) {
	args := m.Called(ctx, id, days)
	series, _ := args.Get(0).(cryptofolio.Series)
	return series, args.Error(1)
}

var testCredential = cryptofolio.Credential{APIKey: "api-key", SecretKey: "secret"}

func setupGinTestMode() {
	gin.SetMode(gin.TestMode)
}

func newTestTracker(t *testing.T, ex cryptofolio.BalanceSource, market cryptofolio.PriceSource) *cryptofolio.Tracker {
	t.Helper()
	ledger, err := cryptofolio.OpenLedger(&store.Memory{})
	require.NoError(t, err)
	return &cryptofolio.Tracker{
		Ledger:     ledger,
		Exchange:   ex,
		Market:     market,
		Credential: testCredential,
		Symbols:    map[string]string{"BTC": "bitcoin"},
		Timeout:    time.Second,
	}
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func buy(asset string, amount, unitPrice float64, on string) cryptofolio.Transaction {
	return cryptofolio.NewBuy(cryptofolio.MustParseDate(on), asset, cryptofolio.Q(amount), cryptofolio.M(unitPrice, "EUR"))
}

func TestGetPortfolio_MissingCredentials(t *testing.T) {
	setupGinTestMode()

	var hits atomic.Int32
	exchange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer exchange.Close()

	tracker := newTestTracker(t, binance.NewClient(binance.WithBaseURL(exchange.URL)), &MockMarket{})
	tracker.Credential = cryptofolio.Credential{APIKey: "api-key"}
	router := New(tracker).Routes()

	w := do(router, http.MethodGet, "/api/portfolio", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[map[string]string](t, w)
	assert.Contains(t, body["error"], "configuration error")
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, int32(0), hits.Load(), "no request may reach the exchange")
}

func TestGetPortfolio(t *testing.T) {
	setupGinTestMode()

	ex := &MockExchange{}
	ex.On("FetchBalances", mock.Anything, testCredential).Return([]cryptofolio.Balance{
		{Asset: "BTC", Free: decimal.NewFromInt(1), Locked: decimal.RequireFromString("0.5")},
		{Asset: "XYZ", Free: decimal.NewFromInt(3), Locked: decimal.Zero},
	}, nil)
	market := &MockMarket{}
	market.On("FetchSpot", mock.Anything, []string{"bitcoin"}).Return(cryptofolio.Prices{"bitcoin": cryptofolio.M(100, "EUR")}, nil)

	router := New(newTestTracker(t, ex, market)).Routes()
	w := do(router, http.MethodGet, "/api/portfolio", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := decode[[]map[string]any](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, "BTC", rows[0]["symbol"])
	assert.Equal(t, 1.5, rows[0]["total"])
	assert.Equal(t, map[string]any{"amount": 150.0, "currency": "EUR"}, rows[0]["value"])
	assert.Equal(t, "XYZ", rows[1]["symbol"])
	assert.NotContains(t, rows[1], "value")
	ex.AssertExpectations(t)
	market.AssertExpectations(t)
}

func TestGetPortfolio_UpstreamErrors(t *testing.T) {
	setupGinTestMode()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"auth", &cryptofolio.UpstreamError{Service: "binance", Status: 401, Code: -2015, Message: "Invalid API-key"}, http.StatusBadGateway},
		{"unavailable", &cryptofolio.UpstreamError{Service: "binance", Status: 503, Message: "maintenance"}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &MockExchange{}
			ex.On("FetchBalances", mock.Anything, testCredential).Return(nil, tt.err)

			router := New(newTestTracker(t, ex, &MockMarket{})).Routes()
			w := do(router, http.MethodGet, "/api/portfolio", "")

			assert.Equal(t, tt.want, w.Code)
			body := decode[map[string]string](t, w)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body["error"], "api-key")
		})
	}
}

func TestTransactions(t *testing.T) {
	setupGinTestMode()

	tracker := newTestTracker(t, &MockExchange{}, &MockMarket{})
	m := metrics.New()
	router := New(tracker, WithMetrics(m)).Routes()

	w := do(router, http.MethodPost, "/api/transactions", `{"asset":"bitcoin","amount":2,"unitPrice":"100","date":"2024-01-01","memo":"dca"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[map[string]any](t, w)
	assert.Equal(t, "bitcoin", first["asset"])
	assert.Equal(t, 2.0, first["amount"])
	assert.Equal(t, map[string]any{"amount": 100.0, "currency": "EUR"}, first["unitPrice"])
	assert.Equal(t, "2024-01-01", first["date"])
	assert.Positive(t, first["id"])

	w = do(router, http.MethodPost, "/api/transactions", `{"asset":"solana","amount":1,"unitPrice":50,"date":"2024-02-01"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	t.Run("invalid input leaves the ledger untouched", func(t *testing.T) {
		for _, body := range []string{
			`{"asset":"bitcoin","amount":0,"unitPrice":100,"date":"2024-01-01"}`,
			`{"asset":"bitcoin","amount":1,"unitPrice":-1,"date":"2024-01-01"}`,
			`{"asset":"","amount":1,"unitPrice":1,"date":"2024-01-01"}`,
			`{"asset":"bitcoin","amount":1,"unitPrice":1}`,
			`{"asset":"bitcoin","amount":1,"unitPrice":1,"date":"yesterday"}`,
			`not json`,
		} {
			w := do(router, http.MethodPost, "/api/transactions", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		assert.Equal(t, 2, tracker.Ledger.Len())
	})

	t.Run("list", func(t *testing.T) {
		w := do(router, http.MethodGet, "/api/transactions", "")
		require.Equal(t, http.StatusOK, w.Code)
		txs := decode[[]map[string]any](t, w)
		require.Len(t, txs, 2)
		assert.Equal(t, "bitcoin", txs[0]["asset"])
		assert.Equal(t, "dca", txs[0]["memo"])

		w = do(router, http.MethodGet, "/api/transactions?order=desc", "")
		txs = decode[[]map[string]any](t, w)
		require.Len(t, txs, 2)
		assert.Equal(t, "solana", txs[0]["asset"])

		w = do(router, http.MethodGet, "/api/transactions?order=random", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("remove", func(t *testing.T) {
		target := "/api/transactions/" + strconv.FormatInt(tracker.Ledger.List()[0].ID, 10)

		w := do(router, http.MethodDelete, target, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, 1, tracker.Ledger.Len())

		// idempotent
		w = do(router, http.MethodDelete, target, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, 1, tracker.Ledger.Len())

		w = do(router, http.MethodDelete, "/api/transactions/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `folio_ledger_mutations_total{operation="add",result="ok"} 2`)
	assert.Contains(t, w.Body.String(), `folio_ledger_mutations_total{operation="add",result="error"} 4`)
	assert.Contains(t, w.Body.String(), `folio_ledger_transactions 1`)
	assert.Contains(t, w.Body.String(), `folio_http_requests_total{route="/api/transactions",status="201"} 2`)
}

func TestGetHoldings(t *testing.T) {
	setupGinTestMode()

	market := &MockMarket{}
	market.On("FetchSpot", mock.Anything, []string{"bitcoin"}).Return(cryptofolio.Prices{"bitcoin": cryptofolio.M(150, "EUR")}, nil)
	tracker := newTestTracker(t, &MockExchange{}, market)
	_, err := tracker.Ledger.Add(buy("bitcoin", 2, 100, "2024-01-01"))
	require.NoError(t, err)

	w := do(New(tracker).Routes(), http.MethodGet, "/api/holdings", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var h struct {
		Positions []struct {
			Pending bool `json:"pending"`
			PnL     struct {
				Value   map[string]any `json:"value"`
				Percent float64        `json:"percent"`
				IsGain  bool           `json:"isGain"`
			} `json:"pnl"`
		} `json:"positions"`
		Pending int `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	require.Len(t, h.Positions, 1)
	assert.False(t, h.Positions[0].Pending)
	assert.Equal(t, 100.0, h.Positions[0].PnL.Value["amount"])
	assert.Equal(t, 50.0, h.Positions[0].PnL.Percent)
	assert.True(t, h.Positions[0].PnL.IsGain)
	assert.Equal(t, 0, h.Pending)
}

func TestGetHoldings_PricesUnavailable(t *testing.T) {
	setupGinTestMode()

	market := &MockMarket{}
	market.On("FetchSpot", mock.Anything, []string{"bitcoin"}).Return(nil, &cryptofolio.UpstreamError{Service: "coingecko", Status: 429, Message: "rate limited"})
	tracker := newTestTracker(t, &MockExchange{}, market)
	_, err := tracker.Ledger.Add(buy("bitcoin", 2, 100, "2024-01-01"))
	require.NoError(t, err)

	w := do(New(tracker).Routes(), http.MethodGet, "/api/holdings", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, 1.0, body["pending"])
	assert.Contains(t, body["warning"], "rate limited")
}

func TestGetChart(t *testing.T) {
	setupGinTestMode()

	day := cryptofolio.MustParseDate("2024-01-01")
	series := cryptofolio.Series{
		{Timestamp: day.UnixMilli(), Price: decimal.NewFromInt(100)},
		{Timestamp: day.Add(1).UnixMilli(), Price: decimal.NewFromInt(110)},
	}
	market := &MockMarket{}
	market.On("FetchHistory", mock.Anything, "bitcoin", 7).Return(series, nil)
	market.On("FetchSpot", mock.Anything, []string{"bitcoin"}).Return(nil, errors.New("spot down"))
	tracker := newTestTracker(t, &MockExchange{}, market)
	tx, err := tracker.Ledger.Add(buy("bitcoin", 1, 95, "2024-01-02"))
	require.NoError(t, err)
	router := New(tracker).Routes()

	w := do(router, http.MethodGet, "/api/chart/bitcoin?days=7", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var chart cryptofolio.Chart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chart))
	assert.Len(t, chart.Points, 2)
	require.Len(t, chart.Purchases, 1)
	assert.Equal(t, tx.ID, chart.Purchases[0].TransactionID)
	assert.Equal(t, day.Add(1).UnixMilli(), chart.Purchases[0].Timestamp)
	assert.Nil(t, chart.Spot)

	for _, days := range []string{"0", "-3", "week"} {
		w := do(router, http.MethodGet, "/api/chart/bitcoin?days="+days, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, days)
	}
	market.AssertNumberOfCalls(t, "FetchHistory", 1)
}

func TestGetChart_HistoryUnavailable(t *testing.T) {
	setupGinTestMode()

	market := &MockMarket{}
	market.On("FetchHistory", mock.Anything, "bitcoin", 30).Return(nil, &cryptofolio.UpstreamError{Service: "coingecko", Status: 404, Message: "coin not found"})
	market.On("FetchSpot", mock.Anything, []string{"bitcoin"}).Return(cryptofolio.Prices{}, nil)
	tracker := newTestTracker(t, &MockExchange{}, market)

	w := do(New(tracker).Routes(), http.MethodGet, "/api/chart/bitcoin", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "coin not found")
}

func TestGetReport(t *testing.T) {
	setupGinTestMode()

	market := &MockMarket{}
	market.On("FetchSpot", mock.Anything, []string{"bitcoin"}).Return(cryptofolio.Prices{"bitcoin": cryptofolio.M(150, "EUR")}, nil)
	tracker := newTestTracker(t, &MockExchange{}, market)
	tracker.Credential = cryptofolio.Credential{}
	_, err := tracker.Ledger.Add(buy("bitcoin", 2, 100, "2024-01-01"))
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	w := do(New(tracker, WithClock(now)).Routes(), http.MethodGet, "/report", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	page := w.Body.String()
	assert.Contains(t, page, "<h1>Portfolio report 2024-06-01</h1>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "+50.00%")
	assert.Contains(t, page, "Balances are unavailable: configuration error")
}

func TestMiddleware(t *testing.T) {
	setupGinTestMode()

	router := New(newTestTracker(t, &MockExchange{}, &MockMarket{})).Routes()

	t.Run("request id is generated", func(t *testing.T) {
		w := do(router, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeaderKey))
		assert.Equal(t, "OK", decode[map[string]any](t, w)["status"])
	})

	t.Run("request id is propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions?order=bad", nil)
		req.Header.Set(RequestIDHeaderKey, "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeaderKey))
		assert.Equal(t, "req-42", decode[map[string]string](t, w)["request_id"])
	})

	t.Run("cors preflight", func(t *testing.T) {
		w := do(router, http.MethodOptions, "/api/transactions", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})
}

func TestStaticFiles(t *testing.T) {
	setupGinTestMode()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("console.log(1)"), 0o644))
	router := New(newTestTracker(t, &MockExchange{}, &MockMarket{}), WithStaticDir(dir)).Routes()

	w := do(router, http.MethodGet, "/main.js", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = do(router, http.MethodGet, "/portfolio/bitcoin", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>app</html>", w.Body.String())

	w = do(router, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&cryptofolio.ValidationError{Field: "amount", Msg: "must be positive"}, http.StatusBadRequest},
		{&cryptofolio.ConfigurationError{Msg: "missing key"}, http.StatusInternalServerError},
		{&cryptofolio.UpstreamError{Service: "coingecko", Status: 500}, http.StatusBadGateway},
		{errors.Join(errors.New("context"), &cryptofolio.UpstreamError{Service: "binance"}), http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, msg := statusOf(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
	_, msg := statusOf(errors.New("open /secret/path: permission denied"))
	assert.Equal(t, "internal server error", msg)
}
