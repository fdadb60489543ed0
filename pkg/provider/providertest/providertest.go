// Package providertest runs in-process OAuth1 and OAuth2 providers for tests.
//
// Both mocks hand out single-use grants: a code or verifier exchanged once is
// rejected on every later exchange, which makes replayed transactions
// observable.
package providertest

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

// Capture is a snapshot of a request received by a mock endpoint.
type Capture struct {
	Method string
	Header http.Header
	Query  url.Values
	Form   url.Values
}

// Option configures a mock provider.
type Option func(*settings)

type settings struct {
	profile      any
	tokenFields  map[string]string
	tokenNumbers map[string]string
	formToken    bool
	textToken    bool
	tokenStatus  int
	profileCode  int
	tempStatus   int
	delay        time.Duration
	idToken      string
	noProfileURL bool
	secret       string
}

// WithProfile sets the JSON document served by the profile endpoint.
func WithProfile(v any) Option {
	return func(s *settings) { s.profile = v }
}

// WithTokenFields adds fields to the access token response.
func WithTokenFields(fields map[string]string) Option {
	return func(s *settings) { maps.Copy(s.tokenFields, fields) }
}

// WithNumericTokenFields adds fields written as JSON number literals to
// the access token response, e.g. "17841405793187218".
func WithNumericTokenFields(fields map[string]string) Option {
	return func(s *settings) { maps.Copy(s.tokenNumbers, fields) }
}

// WithIDToken adds an id_token to the OAuth2 token response.
func WithIDToken(jwt string) Option {
	return func(s *settings) { s.idToken = jwt }
}

// WithFormToken makes the OAuth2 token endpoint answer form-encoded.
// With mislabelled set the body is served as application/json.
func WithFormToken(mislabelled bool) Option {
	return func(s *settings) {
		s.formToken = true
		s.textToken = mislabelled
	}
}

// WithTokenStatus forces the token endpoint to answer with status.
func WithTokenStatus(status int) Option {
	return func(s *settings) { s.tokenStatus = status }
}

// WithTemporaryStatus forces the OAuth1 request-token endpoint to answer with status.
func WithTemporaryStatus(status int) Option {
	return func(s *settings) { s.tempStatus = status }
}

// WithProfileStatus forces the profile endpoint to answer with status.
func WithProfileStatus(status int) Option {
	return func(s *settings) { s.profileCode = status }
}

// WithDelay delays every response by d.
func WithDelay(d time.Duration) Option {
	return func(s *settings) { s.delay = d }
}

// WithConsumerSecret sets the client secret OAuth1 signatures are checked
// against. The default is "secret".
func WithConsumerSecret(secret string) Option {
	return func(s *settings) { s.secret = secret }
}

// WithoutProfileURL leaves ProfileURL empty on the generated descriptor.
func WithoutProfileURL() Option {
	return func(s *settings) { s.noProfileURL = true }
}

func newSettings(opts []Option) settings {
	s := settings{
		tokenFields:  map[string]string{},
		tokenNumbers: map[string]string{},
		secret:       "secret",
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

type recorder struct {
	mu       sync.Mutex
	captures map[string][]Capture
}

func (r *recorder) record(name string, req *http.Request) {
	_ = req.ParseForm()
	form := url.Values{}
	if req.PostForm != nil {
		form = req.PostForm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.captures == nil {
		r.captures = make(map[string][]Capture)
	}
	r.captures[name] = append(r.captures[name], Capture{
		Method: req.Method,
		Header: req.Header.Clone(),
		Query:  req.URL.Query(),
		Form:   form,
	})
}

// Requests returns the captured requests for the named endpoint:
// "temporary", "auth", "token" or "profile".
func (r *recorder) Requests(name string) []Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Capture(nil), r.captures[name]...)
}

// Last returns the most recent capture for the named endpoint.
func (r *recorder) Last(name string) (Capture, bool) {
	reqs := r.Requests(name)
	if len(reqs) == 0 {
		return Capture{}, false
	}
	return reqs[len(reqs)-1], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeForm(w http.ResponseWriter, contentType string, values url.Values) {
	w.Header().Set("Content-Type", contentType)
	_, _ = fmt.Fprint(w, values.Encode())
}

func sleep(r *http.Request, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-r.Context().Done():
	}
}

func descriptor(base string, protocol provider.Protocol, s settings) provider.Descriptor {
	d := provider.Descriptor{
		Name:       "mock",
		Protocol:   protocol,
		AuthURL:    base + "/auth",
		TokenURL:   base + "/token",
		ProfileURL: base + "/profile",
		Mapping:    provider.Mapping{ID: "profile.id", Username: "profile.username", DisplayName: "profile.name", Email: "profile.email"},
	}
	if s.noProfileURL {
		d.ProfileURL = ""
	}
	if protocol == provider.OAuth1 {
		d.RequestTokenURL = base + "/temporary"
		d.Mapping = provider.Mapping{ID: "token.user_id", Username: "token.screen_name"}
	}
	return d
}

// oauthParams extracts OAuth1 protocol parameters from the Authorization
// header, falling back to the query string and form body.
func oauthParams(r *http.Request) url.Values {
	out := url.Values{}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "OAuth ") {
		for _, part := range strings.Split(strings.TrimPrefix(h, "OAuth "), ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				continue
			}
			v, _ = url.PathUnescape(strings.Trim(v, `"`))
			out.Set(k, v)
		}
		return out
	}
	_ = r.ParseForm()
	for k, vs := range r.Form {
		if strings.HasPrefix(k, "oauth_") {
			out[k] = vs
		}
	}
	return out
}
