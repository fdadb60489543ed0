package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/doorman/pkg/provider"
	"github.com/dmitrymomot/doorman/pkg/sanitizer"
)

// Normalize builds the provider-agnostic profile for cred. It fetches the
// descriptor's profile endpoint when one is set and otherwise reads the
// fields embedded in the token response, including id_token claims.
func (b *Broker) Normalize(ctx context.Context, d provider.Descriptor, c Credentials, cred Credential) (Profile, error) {
	ctx, span := b.tracer.Start(ctx, "broker.Normalize")
	defer span.End()

	drv, err := b.driver(d)
	if err != nil {
		return Profile{}, err
	}

	var raw json.RawMessage
	if d.ProfileURL != "" {
		raw, err = b.fetchProfile(ctx, drv, d, c, cred)
		if err != nil {
			return Profile{}, err
		}
	}

	var claims jwt.MapClaims
	if cred.IDToken != "" {
		claims = jwt.MapClaims{}
		// The id_token came straight from the token endpoint over TLS, so
		// its claims are read without signature verification.
		if _, _, err := jwt.NewParser().ParseUnverified(cred.IDToken, claims); err != nil {
			if d.ProfileURL == "" {
				return Profile{}, fmt.Errorf("%w: id_token: %v", ErrProfileFetchFailed, err)
			}
			claims = nil
		}
	}

	doc, err := json.Marshal(map[string]any{
		"profile":  raw,
		"token":    cred.Fields,
		"id_token": claims,
	})
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	identity, err := extract(d, gjson.ParseBytes(doc))
	if err != nil {
		return Profile{}, err
	}

	if raw == nil {
		raw, err = embeddedRaw(cred, claims)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
		}
	}

	return Profile{
		ID:          identity.ID,
		Username:    sanitizer.NormalizeDisplayName(identity.Username),
		DisplayName: sanitizer.NormalizeDisplayName(identity.DisplayName),
		Email:       sanitizer.NormalizeProfileEmail(identity.Email),
		Raw:         raw,
	}, nil
}

func (b *Broker) fetchProfile(ctx context.Context, drv Driver, d provider.Descriptor, c Credentials, cred Credential) (json.RawMessage, error) {
	const op = "profile"

	u, err := url.Parse(d.ProfileURL)
	if err != nil {
		return nil, fmt.Errorf("%w: profile_url: %v", ErrInvalidDescriptor, err)
	}
	q := u.Query()
	for k, v := range d.Quirks.ProfileParams {
		q.Set(k, v)
	}
	for _, name := range slices.Sorted(maps.Keys(d.Quirks.ProfileTokenParams)) {
		if v, ok := cred.Fields[d.Quirks.ProfileTokenParams[name]]; ok {
			q.Set(name, queryValue(v))
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, providerError(ErrProfileFetchFailed, op, d.ProfileURL, 0, nil, err)
	}
	req.Header.Set("Accept", "application/json")
	if err := drv.Sign(d, c, cred, req); err != nil {
		return nil, err
	}

	status, body, err := b.transport.do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	if !success(status) {
		return nil, providerError(ErrProfileFetchFailed, op, d.ProfileURL, status, body, nil)
	}
	if !json.Valid(body) {
		return nil, providerError(ErrProfileFetchFailed, op, d.ProfileURL, status, body, errors.New("response is not JSON"))
	}
	return json.RawMessage(body), nil
}

// queryValue formats a token field without exponent notation.
func queryValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// extract applies the descriptor's ExtractFunc or Mapping to doc.
func extract(d provider.Descriptor, doc gjson.Result) (provider.Identity, error) {
	var id provider.Identity
	if d.Extract != nil {
		var err error
		id, err = d.Extract(doc)
		if err != nil {
			return provider.Identity{}, errors.Join(ErrProfileFetchFailed, err)
		}
	} else {
		id = provider.Identity{
			ID:          lookup(doc, d.Mapping.ID),
			Username:    lookup(doc, d.Mapping.Username),
			DisplayName: lookup(doc, d.Mapping.DisplayName),
			Email:       lookup(doc, d.Mapping.Email),
		}
	}
	if id.ID == "" {
		return provider.Identity{}, fmt.Errorf("%w: profile has no id", ErrProfileFetchFailed)
	}
	return id, nil
}

func lookup(doc gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	v := doc.Get(path)
	if !v.Exists() || v.Type == gjson.Null || v.IsObject() || v.IsArray() {
		return ""
	}
	return v.String()
}

// embeddedRaw is the raw profile for providers without a profile endpoint.
func embeddedRaw(cred Credential, claims jwt.MapClaims) (json.RawMessage, error) {
	if claims != nil {
		return json.Marshal(claims)
	}
	if len(cred.Fields) == 0 {
		return nil, nil
	}
	return json.Marshal(cred.Fields)
}
