package ratelimiter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/doorman/handler"
	"github.com/dmitrymomot/doorman/pkg/clientip"
)

// KeyFunc maps a request to the key it is limited under. An empty key
// skips limiting.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by client address, preferring the one resolved
// by clientip.Middleware.
func ByClientIP(r *http.Request) string {
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return ip
	}
	return clientip.GetIP(r)
}

// Prefixed namespaces keys so that one store can back several limiters.
func Prefixed(prefix string, fn KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		key := fn(r)
		if key == "" {
			return ""
		}
		return prefix + ":" + key
	}
}

// Middleware rejects requests over the limit with a JSON 429 and sets the
// X-RateLimit-* headers on every limited response.
func Middleware(tb *TokenBucket, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := tb.Allow(r.Context(), key)
			if err != nil {
				handler.Wrap(func(handler.Context) handler.Response {
					return handler.JSONError(err)
				}).ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				retry := res.RetryAfter(time.Now())
				h.Set("Retry-After", strconv.Itoa(max(int((retry+time.Second-1)/time.Second), 1)))
				handler.Wrap(func(handler.Context) handler.Response {
					return handler.JSONError(handler.ErrTooManyRequests)
				}).ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
