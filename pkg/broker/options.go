package broker

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger for handshake outcomes and provider failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithHTTPClient sets the client used for every provider call.
// Its own Timeout is left alone; per-call bounds come from WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Broker) {
		if c != nil {
			b.client = c
		}
	}
}

// WithTimeout bounds each outbound provider call.
func WithTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithTransactionTTL sets how long a sealed transaction stays valid.
func WithTransactionTTL(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.ttl = d
		}
	}
}

// WithTolerateProfileErrors makes profile failures non-fatal: the result
// stays authenticated, without a profile, and carries ProfileError.
func WithTolerateProfileErrors(tolerate bool) Option {
	return func(b *Broker) {
		b.tolerateProfileErrors = tolerate
	}
}

// WithTracer sets the tracer for handshake spans.
func WithTracer(t trace.Tracer) Option {
	return func(b *Broker) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}
