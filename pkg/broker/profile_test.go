package broker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/doorman/pkg/broker"
	"github.com/dmitrymomot/doorman/pkg/provider"
	"github.com/dmitrymomot/doorman/pkg/provider/providertest"
)

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return s
}

func TestNormalize_IDToken(t *testing.T) {
	t.Parallel()

	idToken := signedIDToken(t, jwt.MapClaims{
		"sub":   "g-1234",
		"email": "Ann@Example.com",
		"name":  "Ann Example",
	})
	mock := newOAuth2(t, providertest.WithIDToken(idToken), providertest.WithoutProfileURL())
	d := mock.Descriptor()
	d.Mapping = provider.Mapping{ID: "id_token.sub", Email: "id_token.email", DisplayName: "id_token.name"}

	_, res, err := handshake(t, newBroker(t), d, creds)
	require.NoError(t, err)
	require.NotNil(t, res.Profile)
	assert.Equal(t, "g-1234", res.Profile.ID)
	assert.Equal(t, "Ann Example", res.Profile.DisplayName)
	assert.Equal(t, "ann@example.com", res.Profile.Email)
	assert.JSONEq(t, `{"sub":"g-1234","email":"Ann@Example.com","name":"Ann Example"}`, string(res.Profile.Raw))

	_, ok := mock.Last("profile")
	assert.False(t, ok, "no profile request without a profile url")
}

func TestNormalize_MalformedIDToken(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t, providertest.WithIDToken("not-a-jwt"), providertest.WithoutProfileURL())
	d := mock.Descriptor()
	d.Mapping = provider.Mapping{ID: "id_token.sub"}

	_, _, err := handshake(t, newBroker(t), d, creds)
	assert.ErrorIs(t, err, broker.ErrProfileFetchFailed)
}

func TestNormalize_TokenFields(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t,
		providertest.WithTokenFields(map[string]string{"user_id": "42", "screen_name": "bob"}),
		providertest.WithoutProfileURL(),
	)
	d := mock.Descriptor()
	d.Mapping = provider.Mapping{ID: "token.user_id", Username: "token.screen_name"}

	_, res, err := handshake(t, newBroker(t), d, creds)
	require.NoError(t, err)
	require.NotNil(t, res.Profile)
	assert.Equal(t, "42", res.Profile.ID)
	assert.Equal(t, "bob", res.Profile.Username)
	assert.JSONEq(t, `{"user_id":"42","screen_name":"bob"}`, string(res.Profile.Raw))
}

func TestNormalize_ExtractFunc(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t, providertest.WithProfile(map[string]any{
		"data": map[string]any{"uuid": "{abc}", "nickname": "line\nbreak\x00"},
	}))

	t.Run("custom extraction", func(t *testing.T) {
		d := mock.Descriptor()
		d.Extract = func(doc gjson.Result) (provider.Identity, error) {
			return provider.Identity{
				ID:       doc.Get("profile.data.uuid").String(),
				Username: doc.Get("profile.data.nickname").String(),
			}, nil
		}

		_, res, err := handshake(t, newBroker(t), d, creds)
		require.NoError(t, err)
		assert.Equal(t, "{abc}", res.Profile.ID)
		assert.Equal(t, "line break", res.Profile.Username)
	})

	t.Run("extraction error", func(t *testing.T) {
		d := mock.Descriptor()
		d.Extract = func(gjson.Result) (provider.Identity, error) {
			return provider.Identity{}, errors.New("unexpected document")
		}

		b := newBroker(t)
		ctx := context.Background()
		_, err := b.Normalize(ctx, d, creds, broker.Credential{Token: "456"})
		assert.ErrorIs(t, err, broker.ErrProfileFetchFailed)
	})
}

func TestNormalize_NonJSONProfile(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t, providertest.WithProfile("plain"))
	d := mock.Descriptor()

	// A JSON string is valid JSON but has no id field.
	_, err := newBroker(t).Normalize(context.Background(), d, creds, broker.Credential{Token: "456"})
	assert.ErrorIs(t, err, broker.ErrProfileFetchFailed)
}

func TestNormalize_NoToken(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t)
	_, err := newBroker(t).Normalize(context.Background(), mock.Descriptor(), creds, broker.Credential{})
	assert.ErrorIs(t, err, broker.ErrProfileFetchFailed)
}
