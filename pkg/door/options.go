package door

import "log/slog"

type Option func(*Door)

// WithPath sets the route that handles both handshake phases.
func WithPath(path string) Option {
	return func(d *Door) {
		d.path = path
	}
}

// WithLocation sets the public base URL, e.g. "https://example.com".
// Without it the base is derived from each request.
func WithLocation(location string) Option {
	return func(d *Door) {
		d.location = location
	}
}

// WithCookieName sets the name of the cookie carrying the transaction and
// the result.
func WithCookieName(name string) Option {
	return func(d *Door) {
		if name != "" {
			d.cookieName = name
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Door) {
		if l != nil {
			d.logger = l
		}
	}
}
