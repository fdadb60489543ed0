package token

import (
	"encoding/json"
	"errors"
	"time"
)

// ParseToken unseals tok and returns its payload if it has not expired.
func ParseToken[T any](tok string, s Sealer) (T, error) {
	return ParseTokenAt[T](tok, s, time.Now())
}

// ParseTokenAt is ParseToken evaluated at an explicit time.
func ParseTokenAt[T any](tok string, s Sealer, now time.Time) (T, error) {
	var zero T
	if tok == "" {
		return zero, ErrInvalidToken
	}

	data, err := s.Unseal(tok)
	if err != nil {
		return zero, errors.Join(ErrInvalidToken, err)
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, errors.Join(ErrInvalidToken, err)
	}
	if env.Expires == 0 {
		return zero, ErrInvalidToken
	}
	if now.Unix() >= env.Expires {
		return zero, ErrTokenExpired
	}

	return env.Payload, nil
}
