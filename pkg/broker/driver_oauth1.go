package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

type oauth1Driver struct {
	transport
}

// RequestToken obtains a temporary credential, signed with the consumer
// secret only.
func (o *oauth1Driver) RequestToken(ctx context.Context, d provider.Descriptor, c Credentials) (TempCredential, error) {
	const op = "request_token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.RequestTokenURL, nil)
	if err != nil {
		return TempCredential{}, providerError(ErrProviderProtocol, op, d.RequestTokenURL, 0, nil, err)
	}
	o.sign(req, oauth1Request{
		ConsumerKey:    c.ClientID,
		ConsumerSecret: c.ClientSecret,
		Extra:          map[string]string{"oauth_callback": c.CallbackURL},
		InQuery:        d.Quirks.OAuth1QueryAuth,
	})

	status, body, err := o.do(ctx, op, req)
	if err != nil {
		return TempCredential{}, err
	}
	if !success(status) {
		return TempCredential{}, providerError(ErrProviderProtocol, op, d.RequestTokenURL, status, body, nil)
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return TempCredential{}, providerError(ErrProviderProtocol, op, d.RequestTokenURL, status, body, err)
	}
	tmp := TempCredential{
		Token:     values.Get("oauth_token"),
		Secret:    values.Get("oauth_token_secret"),
		Confirmed: values.Get("oauth_callback_confirmed") == "true",
	}
	if tmp.Token == "" || tmp.Secret == "" {
		return TempCredential{}, providerError(ErrProviderProtocol, op, d.RequestTokenURL, status, nil,
			errors.New("response is missing oauth_token or oauth_token_secret"))
	}
	return tmp, nil
}

func (o *oauth1Driver) Start(ctx context.Context, d provider.Descriptor, c Credentials, tx *Transaction) (string, error) {
	tmp, err := o.RequestToken(ctx, d, c)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(d.AuthURL)
	if err != nil {
		return "", fmt.Errorf("%w: auth_url: %v", ErrInvalidDescriptor, err)
	}
	q := u.Query()
	for k, v := range d.Quirks.AuthorizeParams {
		q.Set(k, v)
	}
	q.Set("oauth_token", tmp.Token)
	u.RawQuery = q.Encode()

	tx.Nonce = tmp.Token
	tx.TempSecret = tmp.Secret
	return u.String(), nil
}

func (o *oauth1Driver) Grant(d provider.Descriptor, params url.Values, tx Transaction) (Grant, error) {
	if params.Has("denied") {
		return Grant{}, fmt.Errorf("%w: user declined", ErrProviderDenied)
	}
	token := params.Get("oauth_token")
	if token == "" || token != tx.Nonce {
		return Grant{}, fmt.Errorf("%w: oauth_token does not match the transaction", ErrStateMismatch)
	}
	verifier := params.Get("oauth_verifier")
	if verifier == "" {
		return Grant{}, fmt.Errorf("%w: missing oauth_verifier", ErrProviderDenied)
	}
	return Grant{Token: token, Verifier: verifier}, nil
}

func (o *oauth1Driver) Exchange(ctx context.Context, d provider.Descriptor, c Credentials, tx Transaction, g Grant) (Credential, error) {
	const op = "access_token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.TokenURL, nil)
	if err != nil {
		return Credential{}, providerError(ErrProviderProtocol, op, d.TokenURL, 0, nil, err)
	}
	o.sign(req, oauth1Request{
		ConsumerKey:    c.ClientID,
		ConsumerSecret: c.ClientSecret,
		Token:          g.Token,
		TokenSecret:    tx.TempSecret,
		Extra:          map[string]string{"oauth_verifier": g.Verifier},
		InQuery:        d.Quirks.OAuth1QueryAuth,
	})

	status, body, err := o.do(ctx, op, req)
	if err != nil {
		return Credential{}, err
	}
	if !success(status) {
		return Credential{}, providerError(ErrTokenExchangeFailed, op, d.TokenURL, status, body, nil)
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Credential{}, providerError(ErrProviderProtocol, op, d.TokenURL, status, nil, err)
	}
	cred := Credential{
		Token:  values.Get("oauth_token"),
		Secret: values.Get("oauth_token_secret"),
		Fields: make(map[string]any, len(values)),
	}
	if cred.Token == "" || cred.Secret == "" {
		return Credential{}, providerError(ErrProviderProtocol, op, d.TokenURL, status, nil,
			errors.New("response is missing oauth_token or oauth_token_secret"))
	}
	for k := range values {
		if k == "oauth_token" || k == "oauth_token_secret" {
			continue
		}
		cred.Fields[k] = values.Get(k)
	}
	return cred, nil
}

func (o *oauth1Driver) Sign(d provider.Descriptor, c Credentials, cred Credential, req *http.Request) error {
	if cred.Token == "" {
		return fmt.Errorf("%w: no access token to sign with", ErrProfileFetchFailed)
	}
	o.sign(req, oauth1Request{
		ConsumerKey:    c.ClientID,
		ConsumerSecret: c.ClientSecret,
		Token:          cred.Token,
		TokenSecret:    cred.Secret,
		InQuery:        d.Quirks.OAuth1QueryAuth,
	})
	return nil
}

var _ Driver = (*oauth1Driver)(nil)

