// Package binance reads the spot account balances of a Binance user.
//
// Requests to the account endpoint are signed: the query carries a timestamp
// and a tolerance window, and its HMAC-SHA256 with the secret key is appended
// as the last parameter. The API key travels in a header.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// Service names the exchange in upstream errors.
	Service = "binance"
	// DefaultBaseURL is the production spot API.
	DefaultBaseURL = "https://api.binance.com"
	// DefaultRecvWindow is the request validity window in milliseconds.
	DefaultRecvWindow = 5000

	defaultTimeout = 10 * time.Second
	accountPath    = "/api/v3/account"
	maxErrorBody   = 4 << 10
)

// Client fetches account balances.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	recvWindow int
	now        func() time.Time
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the API base url, e.g. a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the HTTP client. Its timeout is kept unless
// WithTimeout is also given, h itself is never modified.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.timeout = timeout }
}

// WithClock sets the clock used for request timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithRecvWindow sets the request validity window in milliseconds.
func WithRecvWindow(ms int) ClientOption {
	return func(c *Client) { c.recvWindow = ms }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns a client for the production API.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		recvWindow: DefaultRecvWindow,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.httpClient == nil:
		c.httpClient = &http.Client{Timeout: defaultTimeout}
		if c.timeout > 0 {
			c.httpClient.Timeout = c.timeout
		}
	case c.timeout > 0:
		h := *c.httpClient
		h.Timeout = c.timeout
		c.httpClient = &h
	}
	return c
}

// accountResponse is the part of the account endpoint response we read.
type accountResponse struct {
	Balances *[]balanceRecord `json:"balances"`
}

type balanceRecord struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// apiError is the error body of the exchange.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// FetchBalances returns the non empty balances of the account of cred.
//
// An incomplete credential fails with a *cryptofolio.ConfigurationError
// without any network call. Remote failures and unexpected responses are
// *cryptofolio.UpstreamError. It never retries.
func (c *Client) FetchBalances(ctx context.Context, cred cryptofolio.Credential) ([]cryptofolio.Balance, error) {
	var params Params
	params.Add("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Add("recvWindow", strconv.Itoa(c.recvWindow))
	signed, err := Build(c.baseURL, accountPath, params, cred)
	if err != nil {
		return nil, err
	}

	req, err := signed.NewHTTPRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create account request: %w", err)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url errors quote the signed url, keep only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		c.logger.Warn("account request failed", zap.Error(err))
		return nil, &cryptofolio.UpstreamError{Service: Service, Message: "account request failed", Err: err}
	}
	defer resp.Body.Close()
	c.logger.Debug("account request", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}

	var account accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, &cryptofolio.UpstreamError{Service: Service, Status: resp.StatusCode, Message: "invalid account response", Err: err}
	}
	if account.Balances == nil {
		return nil, &cryptofolio.UpstreamError{Service: Service, Status: resp.StatusCode, Message: "account response has no balances"}
	}
	return parseBalances(*account.Balances)
}

// parseBalances validates the records and keeps the non empty ones.
func parseBalances(records []balanceRecord) ([]cryptofolio.Balance, error) {
	balances := make([]cryptofolio.Balance, 0, len(records))
	for _, r := range records {
		if r.Asset == "" {
			return nil, &cryptofolio.UpstreamError{Service: Service, Message: "balance without asset"}
		}
		free, err := parseAmount(r.Asset, "free", r.Free)
		if err != nil {
			return nil, err
		}
		locked, err := parseAmount(r.Asset, "locked", r.Locked)
		if err != nil {
			return nil, err
		}
		if !free.IsPositive() && !locked.IsPositive() {
			continue
		}
		balances = append(balances, cryptofolio.Balance{Asset: r.Asset, Free: free, Locked: locked})
	}
	return balances, nil
}

func parseAmount(asset, field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return d, &cryptofolio.UpstreamError{Service: Service, Message: fmt.Sprintf("invalid %s amount %q for %s", field, value, asset), Err: err}
	}
	if d.IsNegative() {
		return d, &cryptofolio.UpstreamError{Service: Service, Message: fmt.Sprintf("negative %s amount %s for %s", field, value, asset)}
	}
	return d, nil
}

// decodeError turns a non 2xx response into an *UpstreamError.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Code != 0 || apiErr.Message != "") {
		return &cryptofolio.UpstreamError{Service: Service, Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
	}
	msg := string(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &cryptofolio.UpstreamError{Service: Service, Status: resp.StatusCode, Message: msg}
}
