package provider

import (
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/tidwall/gjson"
)

// Protocol selects the wire exchange a provider speaks.
type Protocol string

const (
	OAuth1 Protocol = "oauth"
	OAuth2 Protocol = "oauth2"
	// OAuth2Facebook is OAuth2 with the client secret sent in the body and
	// an appsecret_proof attached to every API call.
	OAuth2Facebook Protocol = "oauth2-facebook"
)

func (p Protocol) Valid() bool {
	switch p {
	case OAuth1, OAuth2, OAuth2Facebook:
		return true
	}
	return false
}

// IsOAuth2 reports whether p is OAuth2 or one of its variants.
func (p Protocol) IsOAuth2() bool {
	return p == OAuth2 || p == OAuth2Facebook
}

// Quirks are named deviations from the canonical exchanges.
type Quirks struct {
	// ClientSecretInBody sends client_id/client_secret as form values on the
	// token request instead of HTTP Basic auth.
	ClientSecretInBody bool `yaml:"client_secret_in_body"`
	// TokenInQuery passes the access token as ?access_token= on profile
	// requests instead of a bearer header.
	TokenInQuery bool `yaml:"token_in_query"`
	// FormEncodedToken marks token endpoints that answer with a
	// form-encoded body under a misleading content type.
	FormEncodedToken bool `yaml:"form_encoded_token"`
	// AppSecretProof adds appsecret_proof=hex(hmac_sha256(secret, token)).
	AppSecretProof bool `yaml:"app_secret_proof"`
	// PKCE adds an S256 code challenge to the authorize step.
	PKCE bool `yaml:"pkce"`
	// ScopeSeparator joins scopes when the provider does not accept spaces.
	ScopeSeparator string `yaml:"scope_separator"`
	// AuthorizeParams are extra static query values for the authorize URL.
	AuthorizeParams map[string]string `yaml:"authorize_params"`
	// OAuth1QueryAuth sends OAuth1 protocol parameters in the query string
	// instead of the Authorization header.
	OAuth1QueryAuth bool `yaml:"oauth1_query_auth"`
	// ProfileParams are extra static query values for the profile request.
	ProfileParams map[string]string `yaml:"profile_params"`
	// ProfileTokenParams copies token response fields into the profile
	// query, keyed by query parameter name.
	ProfileTokenParams map[string]string `yaml:"profile_token_params"`
}

// Mapping holds gjson paths evaluated against the document
// {"profile": <profile response>, "token": <token response fields>,
// "id_token": <id token claims>}.
type Mapping struct {
	ID          string `yaml:"id"`
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
}

// Identity is the set of normalized profile fields a provider yields.
type Identity struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
}

// ExtractFunc replaces Mapping for providers whose profile cannot be
// described with paths alone.
type ExtractFunc func(doc gjson.Result) (Identity, error)

// Descriptor describes one provider. Treat it as immutable once registered.
type Descriptor struct {
	Name            string      `yaml:"name"`
	Protocol        Protocol    `yaml:"protocol"`
	AuthURL         string      `yaml:"auth_url"`
	RequestTokenURL string      `yaml:"request_token_url"`
	TokenURL        string      `yaml:"token_url"`
	ProfileURL      string      `yaml:"profile_url"`
	Scopes          []string    `yaml:"scopes"`
	Mapping         Mapping     `yaml:"mapping"`
	Extract         ExtractFunc `yaml:"-"`
	Quirks          Quirks      `yaml:"quirks"`
}

// Validate checks that the descriptor can drive a handshake.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if !d.Protocol.Valid() {
		return fmt.Errorf("%w: %s: unknown protocol %q", ErrInvalidDescriptor, d.Name, d.Protocol)
	}

	urls := []struct {
		field    string
		value    string
		required bool
	}{
		{"auth_url", d.AuthURL, true},
		{"token_url", d.TokenURL, true},
		{"request_token_url", d.RequestTokenURL, d.Protocol == OAuth1},
		{"profile_url", d.ProfileURL, false},
	}
	for _, u := range urls {
		if u.value == "" {
			if u.required {
				return fmt.Errorf("%w: %s: %s is required", ErrInvalidDescriptor, d.Name, u.field)
			}
			continue
		}
		if !isAbsolute(u.value) {
			return fmt.Errorf("%w: %s: %s must be an absolute URL", ErrInvalidDescriptor, d.Name, u.field)
		}
	}

	if d.Extract == nil && d.Mapping.ID == "" {
		return fmt.Errorf("%w: %s: mapping.id is required", ErrInvalidDescriptor, d.Name)
	}
	return nil
}

// EffectiveQuirks returns the quirks with those implied by the protocol
// variant switched on.
func (d Descriptor) EffectiveQuirks() Quirks {
	q := d.Quirks
	if d.Protocol == OAuth2Facebook {
		q.AppSecretProof = true
		q.ClientSecretInBody = true
	}
	return q
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Scopes = slices.Clone(d.Scopes)
	c.Quirks.AuthorizeParams = maps.Clone(d.Quirks.AuthorizeParams)
	c.Quirks.ProfileParams = maps.Clone(d.Quirks.ProfileParams)
	c.Quirks.ProfileTokenParams = maps.Clone(d.Quirks.ProfileTokenParams)
	return c
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}
