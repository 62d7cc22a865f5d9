package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"github.com/etnz/cryptofolio"
)

// APIKeyHeader is the header carrying the API key of signed requests.
const APIKeyHeader = "X-MBX-APIKEY"

// Params is an ordered list of query parameters.
//
// The exchange verifies the signature over the query exactly as sent, so
// parameters are encoded in insertion order.
type Params struct {
	keys, values []string
}

// Add appends a parameter.
func (p *Params) Add(key, value string) *Params {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return p
}

// Get returns the first value of key.
func (p Params) Get(key string) (string, bool) {
	for i, k := range p.keys {
		if k == key {
			return p.values[i], true
		}
	}
	return "", false
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p.keys) }

// Encode returns the query string "k1=v1&k2=v2" in insertion order.
func (p Params) Encode() string {
	var sb strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.values[i]))
	}
	return sb.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed with secret.
func Sign(payload, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// SignedRequest is a request ready to be sent to the exchange.
type SignedRequest struct {
	BaseURL    string
	Path       string
	Query      string // canonical query, the signed payload
	Signature  string
	HeaderName string
	apiKey     string
}

// URL returns the full request URL, the signature is the last parameter.
func (r SignedRequest) URL() string {
	return r.BaseURL + r.Path + "?" + r.Query + "&signature=" + r.Signature
}

// NewHTTPRequest returns the GET request with the API key header set.
func (r SignedRequest) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(r.HeaderName, r.apiKey)
	return req, nil
}

// Build signs params with cred.
//
// It fails with a *cryptofolio.ConfigurationError when the credential is
// incomplete, before looking at anything else, and with a
// *cryptofolio.ValidationError when params carry no timestamp.
func Build(baseURL, path string, params Params, cred cryptofolio.Credential) (SignedRequest, error) {
	if err := cred.Validate(); err != nil {
		return SignedRequest{}, err
	}
	if ts, ok := params.Get("timestamp"); !ok || ts == "" {
		return SignedRequest{}, &cryptofolio.ValidationError{Field: "timestamp", Msg: "signed requests need a timestamp"}
	}
	query := params.Encode()
	return SignedRequest{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Path:       path,
		Query:      query,
		Signature:  Sign(query, cred.SecretKey),
		HeaderName: APIKeyHeader,
		apiKey:     cred.APIKey,
	}, nil
}
