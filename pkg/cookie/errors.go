package cookie

import "errors"

var (
	ErrNoSealer       = errors.New("cookie.no_sealer")
	ErrCookieNotFound = errors.New("cookie.not_found")
	ErrInvalidValue   = errors.New("cookie.invalid_value")
)
