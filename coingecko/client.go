// Package coingecko fetches spot prices and daily price histories of crypto
// assets from the CoinGecko public API.
//
// Assets are designated by their CoinGecko id ("bitcoin", "ethereum"), and
// prices are quoted in a single fiat currency.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// Service names the price API in upstream errors.
	Service = "coingecko"
	// DefaultBaseURL is the public API.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	// DefaultFiat is the default quote currency.
	DefaultFiat = "eur"

	apiKeyHeader = "x-cg-demo-api-key"
)

// Client fetches prices. The zero value is not usable, use NewClient.
type Client struct {
	baseURL  string
	fiat     string
	apiKey   string
	cacheDir string
	base     *http.Client
	logger   *zap.Logger
	now      func() time.Time

	spot    *http.Client
	history *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API base url, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithFiat sets the quote currency (e.g. "eur", "usd").
func WithFiat(fiat string) Option {
	return func(c *Client) { c.fiat = strings.ToLower(fiat) }
}

// WithAPIKey sets the demo API key, sent in a header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.base = h }
}

// WithCacheDir caches history responses in dir for the day.
// Spot prices are never cached.
func WithCacheDir(dir string) Option {
	return func(c *Client) { c.cacheDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the clock used to expire cache entries.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient returns a client of the public API quoting in euros.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		fiat:    DefaultFiat,
		base:    &http.Client{Timeout: 10 * time.Second},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.spot = c.base
	c.history = c.base
	if c.cacheDir != "" {
		transport := c.base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		c.history = &http.Client{
			Timeout:   c.base.Timeout,
			Transport: &diskCache{base: transport, dir: c.cacheDir, now: c.now, logger: c.logger},
		}
	}
	return c
}

// Fiat returns the quote currency code in upper case.
func (c *Client) Fiat() string { return strings.ToUpper(c.fiat) }

func (c *Client) header() http.Header {
	h := make(http.Header)
	if c.apiKey != "" {
		h.Set(apiKeyHeader, c.apiKey)
	}
	return h
}

// marketChart is the response of /coins/{id}/market_chart.
type marketChart struct {
	Prices *[][]json.Number `json:"prices"`
}

// FetchHistory returns the daily prices of asset over the last days, in
// ascending timestamp order.
func (c *Client) FetchHistory(ctx context.Context, asset string, days int) (cryptofolio.Series, error) {
	if asset == "" {
		return nil, &cryptofolio.ValidationError{Field: "asset", Msg: "asset id is required"}
	}
	if days <= 0 {
		return nil, &cryptofolio.ValidationError{Field: "days", Msg: fmt.Sprintf("must be positive, got %d", days)}
	}
	q := url.Values{}
	q.Set("vs_currency", c.fiat)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")
	addr := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.baseURL, url.PathEscape(asset), q.Encode())

	var chart marketChart
	if err := jwget(ctx, c.history, addr, c.header(), &chart); err != nil {
		return nil, err
	}
	if chart.Prices == nil {
		return nil, &cryptofolio.UpstreamError{Service: Service, Message: "market chart of " + asset + " has no prices"}
	}

	series := make(cryptofolio.Series, 0, len(*chart.Prices))
	for i, row := range *chart.Prices {
		if len(row) != 2 {
			return nil, &cryptofolio.UpstreamError{Service: Service, Message: fmt.Sprintf("price #%d of %s has %d values, want 2", i, asset, len(row))}
		}
		ts, err := decimal.NewFromString(row[0].String())
		if err != nil {
			return nil, &cryptofolio.UpstreamError{Service: Service, Message: fmt.Sprintf("invalid timestamp %q", row[0]), Err: err}
		}
		price, err := decimal.NewFromString(row[1].String())
		if err != nil {
			return nil, &cryptofolio.UpstreamError{Service: Service, Message: fmt.Sprintf("invalid price %q", row[1]), Err: err}
		}
		series = append(series, cryptofolio.PricePoint{Timestamp: ts.IntPart(), Price: price})
	}
	slices.SortStableFunc(series, func(a, b cryptofolio.PricePoint) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	c.logger.Debug("history fetched", zap.String("asset", asset), zap.Int("days", days), zap.Int("points", len(series)))
	return series, nil
}

// FetchSpot returns the current price of every asset in one request.
//
// Assets unknown to the API are missing from the result, that is not an error.
func (c *Client) FetchSpot(ctx context.Context, assets []string) (cryptofolio.Prices, error) {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		if a != "" && !slices.Contains(ids, a) {
			ids = append(ids, a)
		}
	}
	prices := make(cryptofolio.Prices, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", c.fiat)
	addr := c.baseURL + "/simple/price?" + q.Encode()

	var jobj any
	if err := jwget(ctx, c.spot, addr, c.header(), &jobj); err != nil {
		return nil, err
	}
	if _, ok := jobj.(map[string]any); !ok {
		return nil, &cryptofolio.UpstreamError{Service: Service, Message: fmt.Sprintf("simple price response is a %T, want an object", jobj)}
	}
	for _, id := range ids {
		path := fmt.Sprintf("$[%s][%s]", strconv.Quote(id), strconv.Quote(c.fiat))
		jval, err := jsonpath.Get(path, jobj)
		if err != nil {
			// unknown asset or not quoted in the fiat.
			c.logger.Debug("no spot price", zap.String("asset", id), zap.Error(err))
			continue
		}
		// jsonpath may wrap a single answer in a list.
		if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
			jval = jlist[0]
		}
		if jval == nil {
			continue // listed without a price
		}
		price, err := toDecimal(jval)
		if err != nil {
			return nil, &cryptofolio.UpstreamError{Service: Service, Message: fmt.Sprintf("price of %s: %v", id, err)}
		}
		prices[id] = cryptofolio.M(price, c.fiat)
	}
	c.logger.Debug("spot fetched", zap.Strings("assets", ids), zap.Int("priced", len(prices)))
	return prices, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("%v is not a number", v)
	}
}
