package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

// OAuth2 is a mock OAuth2 provider.
//
// The authorize endpoint redirects to redirect_uri with codes "1", "2", ...
// and the received state. The token endpoint accepts any non-empty code
// once and answers access_token=456, refresh_token=789, expires_in=3600.
// The profile endpoint accepts the token as a bearer header or an
// access_token query value.
type OAuth2 struct {
	*recorder
	Server *httptest.Server
	URL    string

	settings settings

	mu     sync.Mutex
	issued int
	used   map[string]bool
}

// NewOAuth2 starts a mock OAuth2 provider. Close it with t.Cleanup.
func NewOAuth2(opts ...Option) *OAuth2 {
	m := &OAuth2{
		recorder: &recorder{},
		settings: newSettings(opts),
		used:     make(map[string]bool),
	}
	if m.settings.profile == nil {
		m.settings.profile = map[string]any{
			"id":       "1234567890",
			"username": "steve",
			"name":     "Steve Stevens",
			"email":    "steve@example.com",
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth", m.authorize)
	mux.HandleFunc("/token", m.token)
	mux.HandleFunc("/profile", m.profile)

	m.Server = httptest.NewServer(mux)
	m.URL = m.Server.URL
	return m
}

func (m *OAuth2) Close() { m.Server.Close() }

// Descriptor returns a descriptor pointing at the mock endpoints.
func (m *OAuth2) Descriptor() provider.Descriptor {
	return descriptor(m.URL, provider.OAuth2, m.settings)
}

func (m *OAuth2) authorize(w http.ResponseWriter, r *http.Request) {
	m.record("auth", r)

	q := r.URL.Query()
	redirect := q.Get("redirect_uri")
	if q.Get("response_type") != "code" || redirect == "" {
		http.Error(w, "bad authorize request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.issued++
	code := strconv.Itoa(m.issued)
	m.mu.Unlock()

	http.Redirect(w, r, redirect+"?code="+code+"&state="+url.QueryEscape(q.Get("state")), http.StatusFound)
}

func (m *OAuth2) token(w http.ResponseWriter, r *http.Request) {
	m.record("token", r)
	sleep(r, m.settings.delay)

	if m.settings.tokenStatus != 0 {
		writeJSON(w, m.settings.tokenStatus, map[string]string{"error": "server_error"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "authorization_code" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	clientID, _, basic := r.BasicAuth()
	if !basic {
		clientID = r.PostForm.Get("client_id")
	}
	code := r.PostForm.Get("code")
	if clientID == "" || code == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	m.mu.Lock()
	replayed := m.used[code]
	m.used[code] = true
	m.mu.Unlock()
	if replayed {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	fields := map[string]string{
		"access_token":  "456",
		"token_type":    "bearer",
		"refresh_token": "789",
		"expires_in":    "3600",
	}
	if m.settings.idToken != "" {
		fields["id_token"] = m.settings.idToken
	}
	for k, v := range m.settings.tokenFields {
		fields[k] = v
	}
	for k, v := range m.settings.tokenNumbers {
		fields[k] = v
	}

	if m.settings.formToken {
		values := url.Values{}
		for k, v := range fields {
			values.Set(k, v)
		}
		contentType := "application/x-www-form-urlencoded"
		if m.settings.textToken {
			contentType = "application/json"
		}
		writeForm(w, contentType, values)
		return
	}

	body := make(map[string]any, len(fields))
	for k, v := range fields {
		body[k] = v
	}
	for k, v := range m.settings.tokenNumbers {
		body[k] = json.Number(v)
	}
	body["expires_in"] = 3600
	writeJSON(w, http.StatusOK, body)
}

func (m *OAuth2) profile(w http.ResponseWriter, r *http.Request) {
	m.record("profile", r)
	sleep(r, m.settings.delay)

	if m.settings.profileCode != 0 {
		writeJSON(w, m.settings.profileCode, map[string]string{"error": "profile failure"})
		return
	}

	tok := r.URL.Query().Get("access_token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
		tok = h[len("bearer "):]
	}
	if tok == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
		return
	}
	writeJSON(w, http.StatusOK, m.settings.profile)
}
