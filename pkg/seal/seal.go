package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// version prefixes every sealed value so the layout can change later.
const version byte = 1

// Sealer seals and unseals payloads with a list of passwords.
// It holds no mutable state and is safe for concurrent use.
type Sealer struct {
	passwords [][]byte
}

// New creates a Sealer. The first password seals, all passwords unseal.
// Empty entries are ignored; every remaining password must be at least
// MinPasswordLength bytes.
func New(passwords ...string) (*Sealer, error) {
	keys := make([][]byte, 0, len(passwords))
	for i, p := range passwords {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) < MinPasswordLength {
			return nil, fmt.Errorf("%w: password %d has %d chars, need at least %d", ErrPasswordTooShort, i, len(p), MinPasswordLength)
		}
		keys = append(keys, []byte(p))
	}
	if len(keys) == 0 {
		return nil, ErrNoPassword
	}
	return &Sealer{passwords: keys}, nil
}

// NewFromList parses a comma separated password list, as stored in env vars.
func NewFromList(list string) (*Sealer, error) {
	return New(strings.Split(list, ",")...)
}

// Seal encrypts plaintext and returns a URL and cookie safe string.
// Layout before encoding: version | salt | nonce | ciphertext+tag.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	salt, err := newSalt()
	if err != nil {
		return "", err
	}

	gcm, err := s.aead(s.passwords[0], salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrSealFailed, err)
	}

	out := make([]byte, 0, 1+len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, version)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, []byte{version})

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Unseal reverses Seal, trying every configured password.
func (s *Sealer) Unseal(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < 1+saltSize {
		return nil, ErrInvalidFormat
	}
	if raw[0] != version {
		return nil, ErrUnknownVersion
	}
	salt, body := raw[1:1+saltSize], raw[1+saltSize:]

	for _, password := range s.passwords {
		gcm, err := s.aead(password, salt)
		if err != nil {
			return nil, err
		}
		if len(body) < gcm.NonceSize()+gcm.Overhead() {
			return nil, ErrInvalidFormat
		}
		nonce, ciphertext := body[:gcm.NonceSize()], body[gcm.NonceSize():]
		if plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte{version}); err == nil {
			return plaintext, nil
		}
	}

	return nil, ErrUnsealFailed
}

func (s *Sealer) aead(password, salt []byte) (cipher.AEAD, error) {
	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}
	return gcm, nil
}
