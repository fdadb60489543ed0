package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of the derived AES-256 key.
	KeySize = 32

	// MinPasswordLength is the minimum accepted password length in bytes.
	MinPasswordLength = 32

	saltSize = 16

	// hkdfInfo provides domain separation for derived keys.
	hkdfInfo = "doorman-seal-v1"
)

// deriveKey creates a per-value key from a password and a salt using HKDF.
// The caller must clear the returned key with clearBytes once done.
func deriveKey(password, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, password, salt, []byte(hkdfInfo))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}
	return key, nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}
	return salt, nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GeneratePassword returns a random password suitable for New.
func GeneratePassword() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, MinPasswordLength+16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b), nil
}
