package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/etnz/cryptofolio"
)

const maxBody = 8 << 20

// errorBody covers both error shapes of the API.
type errorBody struct {
	Error  string `json:"error"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

// jwget performs an HTTP GET request to addr and decodes the JSON response
// body into data. Numbers decoded into interfaces are json.Number.
//
// Any failure is reported as a *cryptofolio.UpstreamError.
func jwget(ctx context.Context, client *http.Client, addr string, header http.Header, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return &cryptofolio.UpstreamError{Service: Service, Message: "invalid request", Err: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return &cryptofolio.UpstreamError{Service: Service, Message: "request to " + req.URL.Path + " failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &cryptofolio.UpstreamError{Service: Service, Status: resp.StatusCode, Message: "cannot read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &cryptofolio.UpstreamError{Service: Service, Status: resp.StatusCode, Message: errorMessage(resp, body)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(data); err != nil {
		return &cryptofolio.UpstreamError{Service: Service, Status: resp.StatusCode, Message: "invalid response from " + req.URL.Path, Err: err}
	}
	return nil
}

func errorMessage(resp *http.Response, body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Status.ErrorMessage != "" {
			return e.Status.ErrorMessage
		}
	}
	return resp.Status
}
