package broker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/doorman/pkg/broker"
	"github.com/dmitrymomot/doorman/pkg/provider"
	"github.com/dmitrymomot/doorman/pkg/provider/providertest"
	"github.com/dmitrymomot/doorman/pkg/seal"
)

const testPassword = "broker-test-password-0123456789abcdef"

var creds = broker.Credentials{
	ClientID:     "test",
	ClientSecret: "secret",
	CallbackURL:  "http://localhost:80/bell/door",
}

func newBroker(t *testing.T, opts ...broker.Option) *broker.Broker {
	t.Helper()
	s, err := seal.New(testPassword)
	require.NoError(t, err)
	b, err := broker.New(s, opts...)
	require.NoError(t, err)
	return b
}

func newOAuth1(t *testing.T, opts ...providertest.Option) *providertest.OAuth1 {
	t.Helper()
	m := providertest.NewOAuth1(opts...)
	t.Cleanup(m.Close)
	return m
}

func newOAuth2(t *testing.T, opts ...providertest.Option) *providertest.OAuth2 {
	t.Helper()
	m := providertest.NewOAuth2(opts...)
	t.Cleanup(m.Close)
	return m
}

// stateOf returns the state parameter of an OAuth2 authorize URL.
func stateOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := broker.New(nil)
	assert.ErrorIs(t, err, broker.ErrNoSealer)
}

func TestBroker_OAuth1(t *testing.T) {
	t.Parallel()

	mock := newOAuth1(t)
	b := newBroker(t)
	d := mock.Descriptor()
	ctx := context.Background()

	redirect, err := b.Begin(ctx, d, creds, "/")
	require.NoError(t, err)
	assert.Equal(t, mock.URL+"/auth?oauth_token=1", redirect.URL)
	assert.NotEmpty(t, redirect.Sealed)

	temp, ok := mock.Last("temporary")
	require.True(t, ok)
	assert.Equal(t, http.MethodPost, temp.Method)
	assert.Contains(t, temp.Header.Get("Authorization"), `oauth_callback="http%3A%2F%2Flocalhost%3A80%2Fbell%2Fdoor"`)
	assert.Contains(t, temp.Header.Get("Authorization"), `oauth_consumer_key="test"`)

	params := url.Values{"oauth_token": {"1"}, "oauth_verifier": {"123"}}
	res, err := b.Complete(ctx, d, creds, params, redirect.Sealed)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusAuthenticated, res.Status)
	assert.Equal(t, broker.StateAuthenticated, res.State)
	assert.Equal(t, "/", res.Next)
	assert.Equal(t, "final", res.Token)
	assert.Equal(t, "secret", res.Secret)
	require.NotNil(t, res.Profile)
	assert.Equal(t, "1234567890", res.Profile.ID)
	assert.Equal(t, "Steve Stevens", res.Profile.Username)
	assert.JSONEq(t, `{"property":"something"}`, string(res.Profile.Raw))

	access, ok := mock.Last("token")
	require.True(t, ok)
	assert.Contains(t, access.Header.Get("Authorization"), `oauth_verifier="123"`)
	assert.Contains(t, access.Header.Get("Authorization"), `oauth_token="1"`)

	t.Run("replayed transaction", func(t *testing.T) {
		res, err := b.Complete(ctx, d, creds, params, redirect.Sealed)
		assert.ErrorIs(t, err, broker.ErrTokenExchangeFailed)
		assert.Equal(t, broker.StatusError, res.Status)
		assert.Equal(t, "token_exchange_failed", res.Error)
		assert.Equal(t, broker.StateFailed, res.State)
		assert.Empty(t, res.Token)
	})
}

func TestBroker_OAuth1Callback(t *testing.T) {
	t.Parallel()

	mock := newOAuth1(t)
	b := newBroker(t)
	d := mock.Descriptor()
	ctx := context.Background()

	redirect, err := b.Begin(ctx, d, creds, "/home")
	require.NoError(t, err)

	tests := []struct {
		name   string
		params url.Values
		err    error
		state  string
	}{
		{"denied", url.Values{"denied": {"1"}}, broker.ErrProviderDenied, "DENIED"},
		{"token mismatch", url.Values{"oauth_token": {"2"}, "oauth_verifier": {"123"}}, broker.ErrStateMismatch, "FAILED"},
		{"missing token", url.Values{"oauth_verifier": {"123"}}, broker.ErrStateMismatch, "FAILED"},
		{"missing verifier", url.Values{"oauth_token": {"1"}}, broker.ErrProviderDenied, "DENIED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := b.Complete(ctx, d, creds, tt.params, redirect.Sealed)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.state, string(res.State))
			assert.Equal(t, "/home", res.Next)
		})
	}

	_, ok := mock.Last("token")
	assert.False(t, ok, "no exchange may happen for a rejected callback")
}

func TestBroker_OAuth1StartFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("malformed temporary credential", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth1(t, providertest.WithTemporaryStatus(http.StatusInternalServerError))
		_, err := newBroker(t).Begin(ctx, mock.Descriptor(), creds, "/")
		assert.ErrorIs(t, err, broker.ErrProviderProtocol)

		var pe *broker.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
		assert.Equal(t, "request_token", pe.Op)
	})

	t.Run("signature rejected", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth1(t, providertest.WithConsumerSecret("rotated"))
		_, err := newBroker(t).Begin(ctx, mock.Descriptor(), creds, "/")
		assert.ErrorIs(t, err, broker.ErrProviderProtocol)

		var pe *broker.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		mock := providertest.NewOAuth1()
		d := mock.Descriptor()
		mock.Close()

		_, err := newBroker(t).Begin(ctx, d, creds, "/")
		assert.ErrorIs(t, err, broker.ErrProviderUnreachable)
		assert.Equal(t, "provider_unreachable", broker.Code(err))
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth1(t, providertest.WithDelay(500*time.Millisecond))
		_, err := newBroker(t, broker.WithTimeout(50*time.Millisecond)).Begin(ctx, mock.Descriptor(), creds, "/")
		assert.ErrorIs(t, err, broker.ErrProviderTimeout)
	})

	t.Run("query auth", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth1(t)
		d := mock.Descriptor()
		d.Quirks.OAuth1QueryAuth = true

		b := newBroker(t)
		redirect, err := b.Begin(ctx, d, creds, "/")
		require.NoError(t, err)

		temp, _ := mock.Last("temporary")
		assert.Empty(t, temp.Header.Get("Authorization"))
		assert.NotEmpty(t, temp.Query.Get("oauth_signature"))

		res, err := b.Complete(ctx, d, creds, url.Values{"oauth_token": {"1"}, "oauth_verifier": {"123"}}, redirect.Sealed)
		require.NoError(t, err)
		assert.True(t, res.Authenticated())
	})
}

func TestBroker_Twitter(t *testing.T) {
	t.Parallel()

	mock := newOAuth1(t)
	reg, err := provider.NewRegistry(provider.Builtin()...)
	require.NoError(t, err)
	d, err := reg.Lookup(provider.Twitter)
	require.NoError(t, err)
	d.RequestTokenURL = mock.URL + "/temporary"
	d.AuthURL = mock.URL + "/auth"
	d.TokenURL = mock.URL + "/token"
	d.ProfileURL = mock.URL + "/profile"

	b := newBroker(t)
	ctx := context.Background()
	twitter := broker.Credentials{ClientID: "twitter", ClientSecret: "secret", CallbackURL: creds.CallbackURL}

	redirect, err := b.Begin(ctx, d, twitter, "/")
	require.NoError(t, err)
	res, err := b.Complete(ctx, d, twitter, url.Values{"oauth_token": {"1"}, "oauth_verifier": {"123"}}, redirect.Sealed)
	require.NoError(t, err)

	profile, ok := mock.Last("profile")
	require.True(t, ok)
	assert.Equal(t, "1234567890", profile.Query.Get("user_id"))

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"provider": "twitter",
		"status": "authenticated",
		"token": "final",
		"secret": "secret",
		"profile": {
			"id": "1234567890",
			"username": "Steve Stevens",
			"raw": {"property": "something"}
		}
	}`, string(body))
}

func TestBroker_OAuth2(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t)
	b := newBroker(t)
	d := mock.Descriptor()
	ctx := context.Background()

	redirect, err := b.Begin(ctx, d, creds, "/")
	require.NoError(t, err)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, mock.URL+"/auth", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "test", q.Get("client_id"))
	assert.Equal(t, creds.CallbackURL, q.Get("redirect_uri"))
	assert.Contains(t, redirect.URL, "redirect_uri=http%3A%2F%2Flocalhost%3A80%2Fbell%2Fdoor")
	state := stateOf(t, redirect.URL)

	params := url.Values{"code": {"1"}, "state": {state}}
	res, err := b.Complete(ctx, d, creds, params, redirect.Sealed)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusAuthenticated, res.Status)
	assert.Equal(t, "456", res.Token)
	assert.Equal(t, "789", res.RefreshToken)
	assert.Positive(t, res.ExpiresAt)
	assert.Empty(t, res.Secret)
	require.NotNil(t, res.Profile)
	assert.Equal(t, "1234567890", res.Profile.ID)
	assert.Equal(t, "steve", res.Profile.Username)
	assert.Equal(t, "Steve Stevens", res.Profile.DisplayName)
	assert.Equal(t, "steve@example.com", res.Profile.Email)

	tok, ok := mock.Last("token")
	require.True(t, ok)
	assert.Contains(t, tok.Header.Get("Authorization"), "Basic ")
	assert.Empty(t, tok.Form.Get("client_secret"))
	assert.Equal(t, "1", tok.Form.Get("code"))
	assert.Equal(t, creds.CallbackURL, tok.Form.Get("redirect_uri"))

	prof, ok := mock.Last("profile")
	require.True(t, ok)
	assert.Equal(t, "Bearer 456", prof.Header.Get("Authorization"))

	t.Run("replayed transaction", func(t *testing.T) {
		res, err := b.Complete(ctx, d, creds, params, redirect.Sealed)
		assert.ErrorIs(t, err, broker.ErrTokenExchangeFailed)
		assert.Equal(t, broker.StatusError, res.Status)
		assert.Equal(t, "token_exchange_failed", res.Error)
		assert.Nil(t, res.Profile)
	})
}

func TestBroker_OAuth2Callback(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t)
	b := newBroker(t)
	d := mock.Descriptor()
	ctx := context.Background()

	redirect, err := b.Begin(ctx, d, creds, "/")
	require.NoError(t, err)
	state := stateOf(t, redirect.URL)

	tests := []struct {
		name   string
		params url.Values
		err    error
	}{
		{"state mismatch with valid code", url.Values{"code": {"1"}, "state": {"forged"}}, broker.ErrStateMismatch},
		{"state mismatch with error", url.Values{"error": {"access_denied"}, "state": {"forged"}}, broker.ErrStateMismatch},
		{"missing state", url.Values{"code": {"1"}}, broker.ErrStateMismatch},
		{"provider error", url.Values{"error": {"access_denied"}, "state": {state}}, broker.ErrProviderDenied},
		{"missing code", url.Values{"state": {state}}, broker.ErrProviderDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := b.Complete(ctx, d, creds, tt.params, redirect.Sealed)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, broker.Outcome(err), res.State)
			assert.Equal(t, broker.StatusError, res.Status)
		})
	}

	_, ok := mock.Last("token")
	assert.False(t, ok, "no exchange may happen for a rejected callback")
}

func TestBroker_InvalidTransaction(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t)
	d := mock.Descriptor()
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	b := newBroker(t, broker.WithClock(clock), broker.WithTransactionTTL(time.Minute))

	redirect, err := b.Begin(ctx, d, creds, "/")
	require.NoError(t, err)
	params := url.Values{"code": {"1"}, "state": {stateOf(t, redirect.URL)}}

	t.Run("missing cookie", func(t *testing.T) {
		res, err := b.Complete(ctx, d, creds, params, "")
		assert.ErrorIs(t, err, broker.ErrInvalidTransaction)
		assert.Equal(t, "invalid_transaction", res.Error)
		assert.Equal(t, broker.StateFailed, res.State)
		assert.Equal(t, d.Name, res.Provider)
	})

	t.Run("tampered cookie", func(t *testing.T) {
		tampered := redirect.Sealed[:len(redirect.Sealed)-4] + "AAAA"
		_, err := b.Complete(ctx, d, creds, params, tampered)
		assert.ErrorIs(t, err, broker.ErrInvalidTransaction)
	})

	t.Run("foreign key", func(t *testing.T) {
		other, err := seal.New("another-password-0123456789abcdefghij")
		require.NoError(t, err)
		ob, err := broker.New(other)
		require.NoError(t, err)
		_, err = ob.Complete(ctx, d, creds, params, redirect.Sealed)
		assert.ErrorIs(t, err, broker.ErrInvalidTransaction)
	})

	t.Run("other provider", func(t *testing.T) {
		other := d
		other.Name = "other"
		_, err := b.Complete(ctx, other, creds, params, redirect.Sealed)
		assert.ErrorIs(t, err, broker.ErrInvalidTransaction)
	})

	t.Run("expired", func(t *testing.T) {
		later := newBroker(t, broker.WithClock(func() time.Time { return now.Add(2 * time.Minute) }))
		_, err := later.Complete(ctx, d, creds, params, redirect.Sealed)
		assert.ErrorIs(t, err, broker.ErrInvalidTransaction)
	})

	_, ok := mock.Last("token")
	assert.False(t, ok)
}

func TestBroker_OAuth2Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	run := func(t *testing.T, d provider.Descriptor, b *broker.Broker) (broker.Result, error) {
		t.Helper()
		redirect, err := b.Begin(ctx, d, creds, "/")
		require.NoError(t, err)
		return b.Complete(ctx, d, creds, url.Values{"code": {"1"}, "state": {stateOf(t, redirect.URL)}}, redirect.Sealed)
	}

	t.Run("token endpoint error", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth2(t, providertest.WithTokenStatus(http.StatusInternalServerError))
		_, err := run(t, mock.Descriptor(), newBroker(t))
		assert.ErrorIs(t, err, broker.ErrTokenExchangeFailed)

		var pe *broker.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	})

	t.Run("exchange timeout", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth2(t, providertest.WithDelay(500*time.Millisecond))
		res, err := run(t, mock.Descriptor(), newBroker(t, broker.WithTimeout(50*time.Millisecond)))
		assert.ErrorIs(t, err, broker.ErrProviderTimeout)
		assert.Equal(t, "provider_timeout", res.Error)
	})

	t.Run("profile failure is fatal by default", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth2(t, providertest.WithProfileStatus(http.StatusBadGateway))
		res, err := run(t, mock.Descriptor(), newBroker(t))
		assert.ErrorIs(t, err, broker.ErrProfileFetchFailed)
		assert.Equal(t, broker.StatusError, res.Status)
		assert.Empty(t, res.Token)
	})

	t.Run("profile failure tolerated", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth2(t, providertest.WithProfileStatus(http.StatusBadGateway))
		res, err := run(t, mock.Descriptor(), newBroker(t, broker.WithTolerateProfileErrors(true)))
		require.NoError(t, err)
		assert.Equal(t, broker.StatusAuthenticated, res.Status)
		assert.Equal(t, "456", res.Token)
		assert.Nil(t, res.Profile)
		assert.Equal(t, "profile_fetch_failed", res.ProfileError)
	})

	t.Run("profile without id", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth2(t, providertest.WithProfile(map[string]any{"name": "anonymous"}))
		_, err := run(t, mock.Descriptor(), newBroker(t))
		assert.ErrorIs(t, err, broker.ErrProfileFetchFailed)
	})

	t.Run("cancelled request", func(t *testing.T) {
		t.Parallel()
		mock := newOAuth2(t, providertest.WithDelay(500*time.Millisecond))
		d := mock.Descriptor()
		b := newBroker(t)
		redirect, err := b.Begin(ctx, d, creds, "/")
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		time.AfterFunc(50*time.Millisecond, cancel)
		res, err := b.Complete(cctx, d, creds, url.Values{"code": {"1"}, "state": {stateOf(t, redirect.URL)}}, redirect.Sealed)
		assert.ErrorIs(t, err, broker.ErrProviderUnreachable)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, res.Authenticated())
	})
}

func TestBroker_InvalidInput(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t)
	b := newBroker(t)
	ctx := context.Background()

	d := mock.Descriptor()
	d.AuthURL = "/relative"
	_, err := b.Begin(ctx, d, creds, "/")
	assert.ErrorIs(t, err, broker.ErrInvalidDescriptor)

	bad := creds
	bad.CallbackURL = "/bell/door"
	_, err = b.Begin(ctx, mock.Descriptor(), bad, "/")
	assert.ErrorIs(t, err, broker.ErrInvalidCredentials)

	bad = creds
	bad.ClientID = ""
	_, err = b.Begin(ctx, mock.Descriptor(), bad, "/")
	assert.ErrorIs(t, err, broker.ErrInvalidCredentials)
}

func TestBroker_ConcurrentHandshakes(t *testing.T) {
	t.Parallel()

	mock := newOAuth2(t)
	b := newBroker(t)
	d := mock.Descriptor()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			ctx := context.Background()
			redirect, err := b.Begin(ctx, d, creds, "/")
			if err != nil {
				errs <- err
				return
			}
			u, err := url.Parse(redirect.URL)
			if err != nil {
				errs <- err
				return
			}
			// Codes are unique per handshake so none of them is a replay.
			state := u.Query().Get("state")
			params := url.Values{"code": {state}, "state": {state}}
			_, err = b.Complete(ctx, d, creds, params, redirect.Sealed)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}
