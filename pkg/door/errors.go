package door

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/doorman/handler"
	"github.com/dmitrymomot/doorman/pkg/broker"
)

var (
	ErrNoBroker        = errors.New("door: broker is required")
	ErrNoCookies       = errors.New("door: cookie manager is required")
	ErrInvalidPath     = errors.New("door: path must start with /")
	ErrInvalidLocation = errors.New("door: location must be an absolute http(s) url without a path")
)

// StatusCode maps a broker error code to the HTTP status the door answers
// with.
func StatusCode(code string) int {
	switch code {
	case "invalid_transaction", "state_mismatch":
		return http.StatusForbidden
	case "provider_denied":
		return http.StatusUnauthorized
	case "provider_timeout":
		return http.StatusGatewayTimeout
	case "provider_unreachable", "provider_protocol_error", "token_exchange_failed", "profile_fetch_failed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func httpError(code string) handler.HTTPError {
	return handler.NewHTTPError(StatusCode(code), code)
}

func httpErrorFor(err error) handler.HTTPError {
	return httpError(broker.Code(err))
}
