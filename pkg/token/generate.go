package token

import (
	"encoding/json"
	"errors"
	"time"
)

// Sealer is the keyed seal/unseal service tokens are protected with.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Unseal(sealed string) ([]byte, error)
}

type envelope[T any] struct {
	Payload T     `json:"p"`
	Expires int64 `json:"exp"`
}

// GenerateToken seals payload together with an expiry of now+ttl.
func GenerateToken[T any](payload T, s Sealer, ttl time.Duration) (string, error) {
	return GenerateTokenAt(payload, s, ttl, time.Now())
}

// GenerateTokenAt is GenerateToken with an explicit issue time.
func GenerateTokenAt[T any](payload T, s Sealer, ttl time.Duration, now time.Time) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	data, err := json.Marshal(envelope[T]{
		Payload: payload,
		Expires: now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", err
	}

	sealed, err := s.Seal(data)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	return sealed, nil
}
