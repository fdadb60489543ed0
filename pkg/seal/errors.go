package seal

import "errors"

var (
	ErrNoPassword       = errors.New("seal: no password configured")
	ErrPasswordTooShort = errors.New("seal: password too short")
	ErrSealFailed       = errors.New("seal: sealing failed")
	ErrUnsealFailed     = errors.New("seal: unsealing failed")
	ErrInvalidFormat    = errors.New("seal: invalid sealed value format")
	ErrUnknownVersion   = errors.New("seal: unknown sealed value version")
)
