package providertest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

// OAuth1 is a mock OAuth1.0a provider.
//
// The request-token endpoint issues temporary tokens "1", "2", ... with
// secret "secret"; the authorize endpoint redirects back with verifier
// "123"; the access-token endpoint answers oauth_token=final,
// oauth_token_secret=secret, user_id=1234567890 and
// screen_name=Steve Stevens.
type OAuth1 struct {
	*recorder
	Server *httptest.Server
	URL    string

	settings settings

	mu        sync.Mutex
	issued    int
	callbacks map[string]string
	used      map[string]bool
}

// NewOAuth1 starts a mock OAuth1 provider. Close it with t.Cleanup.
func NewOAuth1(opts ...Option) *OAuth1 {
	m := &OAuth1{
		recorder:  &recorder{},
		settings:  newSettings(opts),
		callbacks: make(map[string]string),
		used:      make(map[string]bool),
	}
	if m.settings.profile == nil {
		m.settings.profile = map[string]any{"property": "something"}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/temporary", m.temporary)
	mux.HandleFunc("/auth", m.authorize)
	mux.HandleFunc("/token", m.token)
	mux.HandleFunc("/profile", m.profile)

	m.Server = httptest.NewServer(mux)
	m.URL = m.Server.URL
	return m
}

func (m *OAuth1) Close() { m.Server.Close() }

// Descriptor returns a descriptor pointing at the mock endpoints.
func (m *OAuth1) Descriptor() provider.Descriptor {
	return descriptor(m.URL, provider.OAuth1, m.settings)
}

func (m *OAuth1) temporary(w http.ResponseWriter, r *http.Request) {
	m.record("temporary", r)
	sleep(r, m.settings.delay)

	if m.settings.tempStatus != 0 {
		http.Error(w, "temporary failure", m.settings.tempStatus)
		return
	}

	p := oauthParams(r)
	if r.Method != http.MethodPost || p.Get("oauth_consumer_key") == "" || !m.verify(r, p, "") {
		http.Error(w, "unsigned request", http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	m.issued++
	tok := strconv.Itoa(m.issued)
	m.callbacks[tok] = p.Get("oauth_callback")
	m.mu.Unlock()

	writeForm(w, "application/x-www-form-urlencoded", url.Values{
		"oauth_token":              {tok},
		"oauth_token_secret":       {"secret"},
		"oauth_callback_confirmed": {"true"},
	})
}

func (m *OAuth1) authorize(w http.ResponseWriter, r *http.Request) {
	m.record("auth", r)

	tok := r.URL.Query().Get("oauth_token")
	m.mu.Lock()
	callback, ok := m.callbacks[tok]
	m.mu.Unlock()
	if !ok {
		http.Error(w, "unknown token", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, callback+"?oauth_token="+url.QueryEscape(tok)+"&oauth_verifier=123", http.StatusFound)
}

func (m *OAuth1) token(w http.ResponseWriter, r *http.Request) {
	m.record("token", r)
	sleep(r, m.settings.delay)

	if m.settings.tokenStatus != 0 {
		http.Error(w, "token failure", m.settings.tokenStatus)
		return
	}

	p := oauthParams(r)
	tok := p.Get("oauth_token")
	if p.Get("oauth_verifier") != "123" || tok == "" {
		http.Error(w, "invalid verifier", http.StatusUnauthorized)
		return
	}
	if !m.verify(r, p, "secret") {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	replayed := m.used[tok]
	m.used[tok] = true
	m.mu.Unlock()
	if replayed {
		http.Error(w, "verifier already used", http.StatusUnauthorized)
		return
	}

	values := url.Values{
		"oauth_token":        {"final"},
		"oauth_token_secret": {"secret"},
		"user_id":            {"1234567890"},
		"screen_name":        {"Steve Stevens"},
	}
	for k, v := range m.settings.tokenFields {
		values.Set(k, v)
	}
	writeForm(w, "application/x-www-form-urlencoded", values)
}

func (m *OAuth1) profile(w http.ResponseWriter, r *http.Request) {
	m.record("profile", r)
	sleep(r, m.settings.delay)

	if m.settings.profileCode != 0 {
		http.Error(w, "profile failure", m.settings.profileCode)
		return
	}
	if p := oauthParams(r); p.Get("oauth_token") != "final" || !m.verify(r, p, "secret") {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, m.settings.profile)
}

// verify recomputes the HMAC-SHA1 signature of r over its query, form
// body and protocol parameters p.
func (m *OAuth1) verify(r *http.Request, p url.Values, tokenSecret string) bool {
	got := p.Get("oauth_signature")
	if got == "" || p.Get("oauth_signature_method") != "HMAC-SHA1" {
		return false
	}

	params := url.Values{}
	for k, vs := range r.URL.Query() {
		params[k] = append(params[k], vs...)
	}
	for k, vs := range r.PostForm {
		params[k] = append(params[k], vs...)
	}
	if strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
		for k, vs := range p {
			params[k] = append(params[k], vs...)
		}
	}
	params.Del("oauth_signature")
	params.Del("realm")

	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{encode(k), encode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	joined := make([]string, len(pairs))
	for i, pr := range pairs {
		joined[i] = pr.k + "=" + pr.v
	}

	base := r.Method + "&" + encode("http://"+r.Host+r.URL.EscapedPath()) + "&" + encode(strings.Join(joined, "&"))
	mac := hmac.New(sha1.New, []byte(encode(m.settings.secret)+"&"+encode(tokenSecret)))
	mac.Write([]byte(base))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(got))
}

// encode is RFC 3986 percent-encoding.
func encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
