package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

var (
	ErrInvalidTransaction  = errors.New("broker: invalid transaction")
	ErrStateMismatch       = errors.New("broker: state mismatch")
	ErrProviderDenied      = errors.New("broker: provider denied access")
	ErrProviderUnreachable = errors.New("broker: provider unreachable")
	ErrProviderTimeout     = errors.New("broker: provider timeout")
	ErrProviderProtocol    = errors.New("broker: provider protocol error")
	ErrTokenExchangeFailed = errors.New("broker: token exchange failed")
	ErrProfileFetchFailed  = errors.New("broker: profile fetch failed")
	ErrInvalidCredentials  = errors.New("broker: invalid client credentials")
	ErrNoSealer            = errors.New("broker: sealer is required")

	ErrInvalidDescriptor = provider.ErrInvalidDescriptor
)

// errorCodes is ordered: the first sentinel found in the chain names the error.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidTransaction, "invalid_transaction"},
	{ErrStateMismatch, "state_mismatch"},
	{ErrProviderDenied, "provider_denied"},
	{ErrProviderTimeout, "provider_timeout"},
	{ErrProviderUnreachable, "provider_unreachable"},
	{ErrTokenExchangeFailed, "token_exchange_failed"},
	{ErrProfileFetchFailed, "profile_fetch_failed"},
	{ErrProviderProtocol, "provider_protocol_error"},
	{ErrInvalidDescriptor, "invalid_descriptor"},
	{ErrInvalidCredentials, "invalid_credentials"},
}

// Code maps err to a stable snake_case code suitable for Result.Error,
// logs and HTTP responses. It returns "" for nil and "internal_error" for
// errors outside the taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal_error"
}

// ProviderError carries the context needed to diagnose a provider-side
// failure. Kind is one of the package sentinels.
type ProviderError struct {
	Kind       error
	Op         string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%v: %s %s", e.Kind, e.Op, e.Endpoint)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

const maxLoggedBody = 256

func providerError(kind error, op, endpoint string, status int, body []byte, err error) *ProviderError {
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody]
	}
	return &ProviderError{
		Kind:       kind,
		Op:         op,
		Endpoint:   redact(endpoint),
		StatusCode: status,
		Body:       string(body),
		Err:        err,
	}
}

// transportError classifies a failed round trip as a timeout or an
// unreachable provider.
func transportError(op, endpoint string, err error) error {
	kind := ErrProviderUnreachable
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = ErrProviderTimeout
	}
	return providerError(kind, op, endpoint, 0, nil, err)
}

// redact drops query, fragment and user info so endpoints can be logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
