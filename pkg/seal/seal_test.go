package seal_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/doorman/pkg/seal"
)

const (
	passwordA = "a-very-long-password-for-sealing-tests-0001"
	passwordB = "another-long-password-for-sealing-tests-0002"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires a password", func(t *testing.T) {
		t.Parallel()
		_, err := seal.New()
		require.ErrorIs(t, err, seal.ErrNoPassword)

		_, err = seal.New("", "  ")
		require.ErrorIs(t, err, seal.ErrNoPassword)
	})

	t.Run("rejects short passwords", func(t *testing.T) {
		t.Parallel()
		_, err := seal.New("short")
		require.ErrorIs(t, err, seal.ErrPasswordTooShort)
	})

	t.Run("parses comma separated list", func(t *testing.T) {
		t.Parallel()
		s, err := seal.NewFromList(passwordA + ", " + passwordB)
		require.NoError(t, err)
		require.NotNil(t, s)
	})
}

func TestSealUnseal(t *testing.T) {
	t.Parallel()

	s, err := seal.New(passwordA)
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"json", `{"nonce":"abc","next":"/"}`},
		{"unicode", "Hello 世界 🌍"},
		{"long", strings.Repeat("x", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sealed, err := s.Seal([]byte(tt.plaintext))
			require.NoError(t, err)
			assert.NotContains(t, sealed, "=")
			assert.NotContains(t, sealed, ";")
			if tt.plaintext != "" {
				assert.NotContains(t, sealed, tt.plaintext)
			}

			plain, err := s.Unseal(sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, string(plain))
		})
	}
}

func TestSeal_UniqueOutput(t *testing.T) {
	t.Parallel()

	s, err := seal.New(passwordA)
	require.NoError(t, err)

	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestUnseal_Rotation(t *testing.T) {
	t.Parallel()

	old, err := seal.New(passwordA)
	require.NoError(t, err)
	sealed, err := old.Seal([]byte("payload"))
	require.NoError(t, err)

	rotated, err := seal.New(passwordB, passwordA)
	require.NoError(t, err)

	plain, err := rotated.Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	other, err := seal.New(passwordB)
	require.NoError(t, err)
	_, err = other.Unseal(sealed)
	assert.ErrorIs(t, err, seal.ErrUnsealFailed)
}

func TestUnseal_Tampering(t *testing.T) {
	t.Parallel()

	s, err := seal.New(passwordA)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"nonce":"abc"}`))
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	require.NoError(t, err)

	t.Run("flipped ciphertext byte", func(t *testing.T) {
		t.Parallel()
		b := append([]byte(nil), raw...)
		b[len(b)-1] ^= 0x01
		_, err := s.Unseal(base64.RawURLEncoding.EncodeToString(b))
		assert.ErrorIs(t, err, seal.ErrUnsealFailed)
	})

	t.Run("flipped salt byte", func(t *testing.T) {
		t.Parallel()
		b := append([]byte(nil), raw...)
		b[2] ^= 0x01
		_, err := s.Unseal(base64.RawURLEncoding.EncodeToString(b))
		assert.ErrorIs(t, err, seal.ErrUnsealFailed)
	})

	t.Run("unknown version", func(t *testing.T) {
		t.Parallel()
		b := append([]byte(nil), raw...)
		b[0] = 9
		_, err := s.Unseal(base64.RawURLEncoding.EncodeToString(b))
		assert.ErrorIs(t, err, seal.ErrUnknownVersion)
	})

	t.Run("not base64", func(t *testing.T) {
		t.Parallel()
		_, err := s.Unseal("***")
		assert.ErrorIs(t, err, seal.ErrInvalidFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		_, err := s.Unseal(base64.RawURLEncoding.EncodeToString(raw[:10]))
		assert.ErrorIs(t, err, seal.ErrInvalidFormat)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := s.Unseal("")
		assert.ErrorIs(t, err, seal.ErrInvalidFormat)
	})
}

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	p, err := seal.GeneratePassword()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(p), seal.MinPasswordLength)

	_, err = seal.New(p)
	assert.NoError(t, err)
}
