package broker

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrymomot/doorman/pkg/provider"
	"github.com/dmitrymomot/doorman/pkg/statemachine"
)

// Credentials identify the application to a provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// CallbackURL is the absolute URL of the route that receives the
	// provider's redirect.
	CallbackURL string
	// Scopes replaces the descriptor scopes when non-empty.
	Scopes []string
}

// Validate reports whether the client id and callback URL are usable.
func (c Credentials) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidCredentials)
	}
	u, err := url.Parse(c.CallbackURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: callback url must be absolute", ErrInvalidCredentials)
	}
	return nil
}

func (c Credentials) scopes(d provider.Descriptor) []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return d.Scopes
}

// Transaction is the state carried in the sealed cookie between the two
// phases. For OAuth1 the nonce is the temporary credential identifier.
type Transaction struct {
	Provider   string `json:"provider"`
	Nonce      string `json:"nonce"`
	Next       string `json:"next,omitempty"`
	TempSecret string `json:"temp_secret,omitempty"`
	Verifier   string `json:"verifier,omitempty"`
}

// TempCredential is an OAuth1 request token.
type TempCredential struct {
	Token     string
	Secret    string
	Confirmed bool
}

// Grant is what the provider's callback hands back.
type Grant struct {
	Code     string
	Token    string
	Verifier string
}

// Credential is the long-lived credential obtained by the exchange.
type Credential struct {
	Token        string
	Secret       string
	RefreshToken string
	Expiry       time.Time
	IDToken      string
	// Fields holds token response values referenced by the descriptor.
	Fields map[string]any
}

// Profile is a provider-agnostic user profile.
type Profile struct {
	ID          string          `json:"id"`
	Username    string          `json:"username,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Email       string          `json:"email,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Status is the outcome reported in Result.Status.
type Status string

const (
	StatusAuthenticated Status = "authenticated"
	StatusError         Status = "error"
)

// Redirect is the outcome of the first phase.
type Redirect struct {
	URL    string
	Sealed string
}

// Result is the outcome of the second phase. It is populated for failures
// too, so hosts can treat them as ordinary values.
type Result struct {
	Provider     string   `json:"provider"`
	Status       Status   `json:"status"`
	Token        string   `json:"token,omitempty"`
	Secret       string   `json:"secret,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	ExpiresAt    int64    `json:"expiresAt,omitempty"`
	Profile      *Profile `json:"profile,omitempty"`
	Error        string   `json:"error,omitempty"`
	ProfileError string   `json:"profileError,omitempty"`

	// Next is the destination requested when the handshake began.
	Next string `json:"-"`
	// State is the terminal handshake state.
	State statemachine.State `json:"-"`
}

// Authenticated reports whether the handshake succeeded.
func (r Result) Authenticated() bool {
	return r.Status == StatusAuthenticated
}
