package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

type oauth2Driver struct {
	transport
}

func (o *oauth2Driver) config(d provider.Descriptor, c Credentials) *oauth2.Config {
	q := d.EffectiveQuirks()

	style := oauth2.AuthStyleInHeader
	if q.ClientSecretInBody {
		style = oauth2.AuthStyleInParams
	}

	cfg := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.CallbackURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   d.AuthURL,
			TokenURL:  d.TokenURL,
			AuthStyle: style,
		},
	}
	if q.ScopeSeparator == "" || q.ScopeSeparator == " " {
		cfg.Scopes = c.scopes(d)
	}
	return cfg
}

func (o *oauth2Driver) Start(ctx context.Context, d provider.Descriptor, c Credentials, tx *Transaction) (string, error) {
	q := d.EffectiveQuirks()
	tx.Nonce = o.nonce()

	var opts []oauth2.AuthCodeOption
	if sep := q.ScopeSeparator; sep != "" && sep != " " {
		if scopes := c.scopes(d); len(scopes) > 0 {
			opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(scopes, sep)))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(q.AuthorizeParams)) {
		opts = append(opts, oauth2.SetAuthURLParam(k, q.AuthorizeParams[k]))
	}
	if q.PKCE {
		tx.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(tx.Verifier))
	}

	return o.config(d, c).AuthCodeURL(tx.Nonce, opts...), nil
}

func (o *oauth2Driver) Grant(d provider.Descriptor, params url.Values, tx Transaction) (Grant, error) {
	if params.Get("state") != tx.Nonce {
		return Grant{}, fmt.Errorf("%w: state does not match the transaction", ErrStateMismatch)
	}
	if e := params.Get("error"); e != "" {
		if desc := params.Get("error_description"); desc != "" {
			e += ": " + desc
		}
		return Grant{}, fmt.Errorf("%w: %s", ErrProviderDenied, e)
	}
	code := params.Get("code")
	if code == "" {
		return Grant{}, fmt.Errorf("%w: missing code", ErrProviderDenied)
	}
	return Grant{Code: code}, nil
}

func (o *oauth2Driver) Exchange(ctx context.Context, d provider.Descriptor, c Credentials, tx Transaction, g Grant) (Credential, error) {
	const op = "access_token"

	ctx, cancel := o.bound(ctx)
	defer cancel()
	client, rec := o.tokenClient(d)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	var opts []oauth2.AuthCodeOption
	if tx.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(tx.Verifier))
	}

	tok, err := o.config(d, c).Exchange(ctx, g.Code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		var ue *url.Error
		switch {
		case errors.As(err, &re):
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			var cause error
			if re.ErrorCode != "" {
				cause = errors.New(re.ErrorCode)
			}
			return Credential{}, providerError(ErrTokenExchangeFailed, op, d.TokenURL, status, re.Body, cause)
		case errors.As(err, &ue), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return Credential{}, transportError(op, d.TokenURL, err)
		default:
			return Credential{}, providerError(ErrProviderProtocol, op, d.TokenURL, 0, nil, err)
		}
	}

	cred := Credential{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Fields:       make(map[string]any),
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		cred.IDToken = idToken
	}
	// Extra decodes JSON numbers as float64, so fields are read from the
	// recorded body first to keep large identifiers intact.
	fields := tokenFields(rec.body)
	for _, k := range referencedTokenFields(d) {
		v, ok := fields[k]
		if !ok {
			v = tok.Extra(k)
		}
		if v != nil {
			cred.Fields[k] = v
		}
	}
	return cred, nil
}

func (o *oauth2Driver) Sign(d provider.Descriptor, c Credentials, cred Credential, req *http.Request) error {
	if cred.Token == "" {
		return fmt.Errorf("%w: no access token to sign with", ErrProfileFetchFailed)
	}
	q := d.EffectiveQuirks()

	query := req.URL.Query()
	if q.TokenInQuery {
		query.Set("access_token", cred.Token)
	} else {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
	if q.AppSecretProof {
		query.Set("appsecret_proof", appSecretProof(c.ClientSecret, cred.Token))
	}
	req.URL.RawQuery = query.Encode()
	return nil
}

// tokenClient returns the client used for the code exchange and the
// recorder holding its response body. Mislabelled form bodies get their
// content type rewritten.
func (o *oauth2Driver) tokenClient(d provider.Descriptor) (*http.Client, *tokenRecorder) {
	c := *o.client
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	if d.EffectiveQuirks().FormEncodedToken {
		next = formEncodedResponse{next: next}
	}
	rec := &tokenRecorder{next: next}
	c.Transport = rec
	return &c, rec
}

type formEncodedResponse struct {
	next http.RoundTripper
}

func (t formEncodedResponse) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err == nil {
		resp.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return resp, err
}

// tokenRecorder keeps a copy of the token response body.
type tokenRecorder struct {
	next http.RoundTripper
	body []byte
}

func (t *tokenRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// tokenFields decodes a JSON token response with numbers kept as written.
// It returns nil for bodies that are not a JSON object.
func tokenFields(body []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil
	}
	return fields
}

// appSecretProof is hex(HMAC-SHA256(secret, token)).
func appSecretProof(secret, token string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// referencedTokenFields lists the token response fields the descriptor
// reads through "token." mapping paths or ProfileTokenParams.
func referencedTokenFields(d provider.Descriptor) []string {
	var keys []string
	for _, path := range []string{d.Mapping.ID, d.Mapping.Username, d.Mapping.DisplayName, d.Mapping.Email} {
		if rest, ok := strings.CutPrefix(path, "token."); ok {
			key, _, _ := strings.Cut(rest, ".")
			keys = append(keys, key)
		}
	}
	for _, field := range d.Quirks.ProfileTokenParams {
		keys = append(keys, field)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

var _ Driver = (*oauth2Driver)(nil)
