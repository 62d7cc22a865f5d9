package cryptofolio

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError reports a missing or invalid local setup, like absent
// exchange credentials. It is raised before any network call and retrying
// does not help.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// ValidationError reports invalid user input. The ledger is left untouched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Msg
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// UpstreamError reports a failed call to a remote service.
//
// Status is zero when no HTTP response was received (network failure,
// timeout). It never carries credentials.
type UpstreamError struct {
	Service string // "binance", "coingecko"
	Status  int    // HTTP status code, 0 if none
	Code    int    // service specific error code, 0 if none
	Message string // remote message or a description of the failure
	Err     error  // underlying cause, if any
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Status != 0 && e.Code != 0:
		return fmt.Sprintf("%s: HTTP %d (code %d): %s", e.Service, e.Status, e.Code, msg)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.Status, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Service, msg)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// exchange error codes for invalid key, signature or permissions.
var authCodes = map[int]bool{-2014: true, -2015: true, -1022: true}

// Auth reports whether the remote rejected the credentials or the signature.
func (e *UpstreamError) Auth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden || authCodes[e.Code]
}

// Temporary reports whether the same call may succeed later: network
// failures, rate limiting and server side errors.
func (e *UpstreamError) Temporary() bool {
	if e.Auth() {
		return false
	}
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsConfiguration reports whether err is a *ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// AsUpstream returns the *UpstreamError in err's chain, if any.
func AsUpstream(err error) (*UpstreamError, bool) {
	var target *UpstreamError
	ok := errors.As(err, &target)
	return target, ok
}
