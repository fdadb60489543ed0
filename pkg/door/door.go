// Package door exposes a broker handshake over HTTP.
//
// A Door owns one route (by default /bell/door) that serves both phases:
// a request without callback parameters starts a handshake and redirects
// to the provider; the provider's redirect back completes it. The sealed
// transaction and, afterwards, the sealed result travel in a single cookie.
//
// Require guards application routes. A request carrying a result cookie
// gets the result in its context (see ResultFromContext) and the cookie is
// cleared; any other request is sent to the door with the original path
// in the next parameter.
package door

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/doorman/handler"
	"github.com/dmitrymomot/doorman/pkg/broker"
	"github.com/dmitrymomot/doorman/pkg/cookie"
	"github.com/dmitrymomot/doorman/pkg/logger"
	"github.com/dmitrymomot/doorman/pkg/provider"
	"github.com/dmitrymomot/doorman/pkg/token"
)

const (
	DefaultPath       = "/bell/door"
	DefaultCookieName = "doorman"
)

// maxCookieValue keeps the result cookie below the 4096 byte browser limit
// with room left for the name and attributes.
const maxCookieValue = 3800

var resultKey = handler.NewContextKey("door.result")

// resultCookie distinguishes a finished handshake from a pending
// transaction stored under the same cookie name.
type resultCookie struct {
	Result *broker.Result `json:"result"`
}

// Door serves the login route for one provider.
type Door struct {
	broker      *broker.Broker
	cookies     *cookie.Manager
	descriptor  provider.Descriptor
	credentials broker.Credentials

	path       string
	location   string
	cookieName string
	logger     *slog.Logger
}

// New creates a door for descriptor d. When c.CallbackURL is empty it is
// derived from the location and path of each request.
func New(b *broker.Broker, cookies *cookie.Manager, d provider.Descriptor, c broker.Credentials, opts ...Option) (*Door, error) {
	if b == nil {
		return nil, ErrNoBroker
	}
	if cookies == nil {
		return nil, ErrNoCookies
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	door := &Door{
		broker:      b,
		cookies:     cookies,
		descriptor:  d,
		credentials: c,
		path:        DefaultPath,
		cookieName:  DefaultCookieName,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(door)
	}

	if !strings.HasPrefix(door.path, "/") {
		return nil, ErrInvalidPath
	}
	if door.location != "" {
		u, err := url.Parse(door.location)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || strings.Trim(u.Path, "/") != "" {
			return nil, ErrInvalidLocation
		}
		door.location = u.Scheme + "://" + u.Host
	}
	return door, nil
}

// NewFromConfig creates a Door from cfg; opts are applied after it.
func NewFromConfig(cfg Config, b *broker.Broker, cookies *cookie.Manager, d provider.Descriptor, c broker.Credentials, opts ...Option) (*Door, error) {
	return New(b, cookies, d, c, append(cfg.Options(), opts...)...)
}

// Path returns the route the door must be mounted on.
func (d *Door) Path() string { return d.path }

// Provider returns the name of the provider behind the door.
func (d *Door) Provider() string { return d.descriptor.Name }

func (d *Door) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler.Wrap(d.Handle)(w, r)
}

// Handle runs the phase matching the request's query parameters.
func (d *Door) Handle(ctx handler.Context) handler.Response {
	r := ctx.Request()
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return handler.JSONError(handler.ErrMethodNotAllowed)
	}

	params := r.URL.Query()
	if !isCallback(d.descriptor.Protocol, params) {
		return d.begin(ctx, r, params)
	}
	return d.complete(ctx, r, params)
}

func (d *Door) begin(ctx context.Context, r *http.Request, params url.Values) handler.Response {
	redirect, err := d.broker.Begin(ctx, d.descriptor, d.credentialsFor(r), safeNext(params.Get("next")))
	if err != nil {
		return handler.JSONError(httpErrorFor(err))
	}

	return handler.ResponseFunc(func(w http.ResponseWriter, r *http.Request) error {
		d.cookies.Set(w, d.cookieName, redirect.Sealed)
		http.Redirect(w, r, redirect.URL, http.StatusFound)
		return nil
	})
}

func (d *Door) complete(ctx context.Context, r *http.Request, params url.Values) handler.Response {
	// A missing cookie is passed on as empty and rejected by the broker.
	sealed, _ := d.cookies.Get(r, d.cookieName)
	res, err := d.broker.Complete(ctx, d.descriptor, d.credentialsFor(r), params, sealed)

	// Without a trustworthy transaction there is no destination to return to.
	if errors.Is(err, broker.ErrInvalidTransaction) || errors.Is(err, broker.ErrStateMismatch) {
		return handler.ResponseFunc(func(w http.ResponseWriter, r *http.Request) error {
			d.cookies.Delete(w, d.cookieName)
			return handler.JSONError(httpErrorFor(err)).Render(w, r)
		})
	}

	value, sErr := d.sealResult(ctx, res)
	if sErr != nil {
		return handler.JSONError(sErr)
	}

	next := res.Next
	if next == "" {
		next = "/"
	}
	return handler.ResponseFunc(func(w http.ResponseWriter, r *http.Request) error {
		d.cookies.Set(w, d.cookieName, value)
		http.Redirect(w, r, d.base(r)+next, http.StatusFound)
		return nil
	})
}

// sealResult seals res for the result cookie. It expires with the
// transaction TTL. The raw profile is dropped when the cookie would not fit.
func (d *Door) sealResult(ctx context.Context, res broker.Result) (string, error) {
	ttl := d.broker.TransactionTTL()
	value, err := token.GenerateToken(resultCookie{Result: &res}, d.cookies.Sealer(), ttl)
	if err != nil || len(value) <= maxCookieValue || res.Profile == nil || res.Profile.Raw == nil {
		return value, err
	}

	d.logger.WarnContext(ctx, "raw profile dropped from oversized result cookie",
		logger.Provider(d.descriptor.Name),
		slog.Int("size", len(value)),
	)
	profile := *res.Profile
	profile.Raw = nil
	res.Profile = &profile
	return token.GenerateToken(resultCookie{Result: &res}, d.cookies.Sealer(), ttl)
}

// Require guards next with the door. Authenticated results reach next with
// the result in the request context; error results are answered with the
// mapped HTTP status.
func (d *Door) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := d.result(r)
		if ok && res.Provider != d.descriptor.Name {
			d.logger.WarnContext(r.Context(), "rejected result issued for another provider",
				logger.Provider(d.descriptor.Name),
				slog.String("result_provider", res.Provider),
			)
			d.cookies.Delete(w, d.cookieName)
			ok = false
		}
		if !ok {
			target := d.base(r) + d.path + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		d.cookies.Delete(w, d.cookieName)
		if !res.Authenticated() {
			d.logger.DebugContext(r.Context(), "rejected failed handshake result",
				logger.Provider(d.descriptor.Name),
				logger.ErrorCode(res.Error),
			)
			_ = handler.JSONError(httpError(res.Error)).Render(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), resultKey, res)))
	})
}

// result reads the handshake result from the cookie. A pending
// transaction, an expired result or a tampered cookie reads as no result.
func (d *Door) result(r *http.Request) (broker.Result, bool) {
	raw, err := d.cookies.Get(r, d.cookieName)
	if err != nil {
		return broker.Result{}, false
	}
	rc, err := token.ParseToken[resultCookie](raw, d.cookies.Sealer())
	if err != nil || rc.Result == nil || rc.Result.Status == "" {
		return broker.Result{}, false
	}
	return *rc.Result, true
}

// ResultFromContext returns the handshake result stored by Require.
func ResultFromContext(ctx context.Context) (broker.Result, bool) {
	return handler.ContextValueOK[broker.Result](ctx, resultKey)
}

func (d *Door) credentialsFor(r *http.Request) broker.Credentials {
	c := d.credentials
	if c.CallbackURL == "" {
		c.CallbackURL = d.base(r) + d.path
	}
	return c
}

// base returns the public scheme and host for r.
func (d *Door) base(r *http.Request) string {
	if d.location != "" {
		return d.location
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func isCallback(p provider.Protocol, q url.Values) bool {
	if p == provider.OAuth1 {
		return q.Has("oauth_token") || q.Has("denied")
	}
	return q.Has("code") || q.Has("state") || q.Has("error")
}

// safeNext keeps next only when it is a local absolute path.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
