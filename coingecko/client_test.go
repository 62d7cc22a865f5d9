package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchHistory(t *testing.T) {
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "eur", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		assert.Equal(t, "daily", r.URL.Query().Get("interval"))
		assert.Equal(t, "demo-key", r.Header.Get(apiKeyHeader))
		// out of order on purpose
		reply(200, `{"prices":[[1704153600000,43000.5],[1704067200000,42000.25],[1704240000000,44000]],"market_caps":[]}`)(w, r)
	})
	client := NewClient(WithBaseURL(srv.URL), WithAPIKey("demo-key"))

	series, err := client.FetchHistory(context.Background(), "bitcoin", 30)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, int64(1704067200000), series[0].Timestamp)
	assert.True(t, series[0].Price.Equal(decimal.RequireFromString("42000.25")))
	assert.Equal(t, int64(1704153600000), series[1].Timestamp)
	assert.Equal(t, int64(1704240000000), series[2].Timestamp)
}

func TestFetchHistory_InvalidShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no prices", `{"market_caps":[]}`},
		{"short row", `{"prices":[[1704067200000]]}`},
		{"long row", `{"prices":[[1704067200000,1,2]]}`},
		{"string price", `{"prices":[[1704067200000,"high"]]}`},
		{"not an object", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := serve(t, reply(200, tt.body))
			_, err := NewClient(WithBaseURL(srv.URL)).FetchHistory(context.Background(), "bitcoin", 7)
			_, ok := cryptofolio.AsUpstream(err)
			assert.True(t, ok, "got %v", err)
		})
	}
}

func TestFetchHistory_Validation(t *testing.T) {
	srv, hits := serve(t, reply(200, `{"prices":[]}`))
	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchHistory(context.Background(), "", 7)
	assert.True(t, cryptofolio.IsValidation(err))
	_, err = client.FetchHistory(context.Background(), "bitcoin", 0)
	assert.True(t, cryptofolio.IsValidation(err))
	assert.Zero(t, hits.Load())
}

func TestFetchSpot(t *testing.T) {
	srv, hits := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,usd-coin,unknown-coin", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		reply(200, `{"bitcoin":{"usd":43123.45},"usd-coin":{"usd":0.9998}}`)(w, r)
	})
	client := NewClient(WithBaseURL(srv.URL), WithFiat("USD"))

	prices, err := client.FetchSpot(context.Background(), []string{"bitcoin", "usd-coin", "unknown-coin", "bitcoin"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "spot prices are fetched in a single request")
	assert.Len(t, prices, 2)

	btc, ok := prices.Get("bitcoin")
	require.True(t, ok)
	assert.True(t, btc.Decimal().Equal(decimal.RequireFromString("43123.45")))
	assert.Equal(t, "USD", btc.Currency())

	_, ok = prices.Get("unknown-coin")
	assert.False(t, ok, "an unknown coin has no price, it is not an error")
}

func TestFetchSpot_Empty(t *testing.T) {
	srv, hits := serve(t, reply(200, `{}`))
	prices, err := NewClient(WithBaseURL(srv.URL)).FetchSpot(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.Zero(t, hits.Load())
}

func TestFetchSpot_InvalidShapes(t *testing.T) {
	for name, body := range map[string]string{
		"array":  `[]`,
		"string": `{"bitcoin":{"eur":"cheap"}}`,
		"object": `{"bitcoin":{"eur":{"value":1}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, _ := serve(t, reply(200, body))
			_, err := NewClient(WithBaseURL(srv.URL)).FetchSpot(context.Background(), []string{"bitcoin"})
			_, ok := cryptofolio.AsUpstream(err)
			assert.True(t, ok, "got %v", err)
		})
	}
}

func TestFetchSpot_UnpricedAssets(t *testing.T) {
	srv, _ := serve(t, reply(200, `{"bitcoin":{"eur":50000},"newcoin":{"eur":null},"oldcoin":{},"usdonly":{"usd":1}}`))
	prices, err := NewClient(WithBaseURL(srv.URL)).FetchSpot(context.Background(), []string{"bitcoin", "newcoin", "oldcoin", "usdonly"})
	require.NoError(t, err)
	assert.Len(t, prices, 1, "assets without a price are unknown, the others are kept")

	btc, ok := prices.Get("bitcoin")
	require.True(t, ok)
	assert.True(t, btc.Equal(cryptofolio.M(50000, "EUR")))
	for _, id := range []string{"newcoin", "oldcoin", "usdonly"} {
		_, ok := prices.Get(id)
		assert.False(t, ok, id)
	}
}

func TestUpstreamErrors(t *testing.T) {
	srv, _ := serve(t, reply(http.StatusTooManyRequests, `{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit."}}`))
	_, err := NewClient(WithBaseURL(srv.URL)).FetchSpot(context.Background(), []string{"bitcoin"})
	u, ok := cryptofolio.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, 429, u.Status)
	assert.True(t, u.Temporary())
	assert.Contains(t, u.Message, "Rate Limit")

	srv, _ = serve(t, reply(http.StatusNotFound, `{"error":"coin not found"}`))
	_, err = NewClient(WithBaseURL(srv.URL)).FetchHistory(context.Background(), "nope", 7)
	u, ok = cryptofolio.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, 404, u.Status)
	assert.Equal(t, "coin not found", u.Message)
	assert.False(t, u.Temporary())
}

func TestFetch_ContextCanceled(t *testing.T) {
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(WithBaseURL(srv.URL)).FetchHistory(ctx, "bitcoin", 7)
	u, ok := cryptofolio.AsUpstream(err)
	require.True(t, ok, "got %v", err)
	assert.Zero(t, u.Status)
}

func TestHistoryCache(t *testing.T) {
	srv, hits := serve(t, reply(200, `{"prices":[[1704067200000,1]]}`))
	day := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	client := NewClient(WithBaseURL(srv.URL), WithCacheDir(t.TempDir()), WithClock(func() time.Time { return day }))

	for i := 0; i < 3; i++ {
		series, err := client.FetchHistory(context.Background(), "bitcoin", 7)
		require.NoError(t, err)
		require.Len(t, series, 1)
	}
	assert.EqualValues(t, 1, hits.Load(), "history is cached for the day")

	day = day.Add(24 * time.Hour)
	_, err := client.FetchHistory(context.Background(), "bitcoin", 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load(), "cache expires the next day")

	// spot prices bypass the cache.
	srvSpot, spotHits := serve(t, reply(200, `{"bitcoin":{"eur":1}}`))
	spot := NewClient(WithBaseURL(srvSpot.URL), WithCacheDir(t.TempDir()))
	for i := 0; i < 2; i++ {
		_, err := spot.FetchSpot(context.Background(), []string{"bitcoin"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, spotHits.Load())
}
