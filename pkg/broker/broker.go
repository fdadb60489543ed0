package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/doorman/pkg/logger"
	"github.com/dmitrymomot/doorman/pkg/provider"
	"github.com/dmitrymomot/doorman/pkg/token"
)

const tracerName = "github.com/dmitrymomot/doorman/pkg/broker"

// Sealer protects transactions. *seal.Sealer satisfies it.
type Sealer = token.Sealer

// Broker drives third-party login handshakes. It keeps no per-handshake
// state: everything between the two phases travels in the sealed value
// returned by Begin. A Broker is safe for concurrent use.
type Broker struct {
	sealer                Sealer
	client                *http.Client
	timeout               time.Duration
	ttl                   time.Duration
	tolerateProfileErrors bool
	logger                *slog.Logger
	tracer                trace.Tracer
	now                   func() time.Time

	transport transport
	drivers   map[provider.Protocol]Driver
}

// New creates a broker that seals transactions with sealer. The defaults
// are a 10s provider timeout and a 10m transaction TTL.
func New(sealer Sealer, opts ...Option) (*Broker, error) {
	if sealer == nil {
		return nil, ErrNoSealer
	}

	b := &Broker{
		sealer:  sealer,
		client:  &http.Client{},
		timeout: 10 * time.Second,
		ttl:     10 * time.Minute,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.transport = newTransport(b.client, b.timeout, b.now)
	o2 := &oauth2Driver{transport: b.transport}
	b.drivers = map[provider.Protocol]Driver{
		provider.OAuth1:         &oauth1Driver{transport: b.transport},
		provider.OAuth2:         o2,
		provider.OAuth2Facebook: o2,
	}
	return b, nil
}

// TransactionTTL returns how long a sealed transaction stays valid.
func (b *Broker) TransactionTTL() time.Duration { return b.ttl }

// driver returns the protocol driver for d.
func (b *Broker) driver(d provider.Descriptor) (Driver, error) {
	drv, ok := b.drivers[d.Protocol]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unsupported protocol %q", ErrInvalidDescriptor, d.Name, d.Protocol)
	}
	return drv, nil
}

// Begin runs the first phase: it prepares the provider redirect and seals
// the transaction the callback will be checked against.
func (b *Broker) Begin(ctx context.Context, d provider.Descriptor, c Credentials, next string) (Redirect, error) {
	ctx, span := b.tracer.Start(ctx, "broker.Begin", trace.WithAttributes(
		attribute.String("provider", d.Name),
		attribute.String("protocol", string(d.Protocol)),
	))
	defer span.End()

	run := lifecycle.Start()
	redirect, err := b.begin(ctx, d, c, next)
	if err != nil {
		_ = run.Fire(EventFail)
		span.RecordError(err)
		span.SetStatus(codes.Error, Code(err))
		b.logFailure(ctx, "handshake start failed", d, string(run.Current()), err)
		return Redirect{}, err
	}
	_ = run.Fire(EventBegin)

	b.logger.DebugContext(ctx, "handshake started",
		logger.Provider(d.Name),
		logger.Protocol(string(d.Protocol)),
	)
	return redirect, nil
}

func (b *Broker) begin(ctx context.Context, d provider.Descriptor, c Credentials, next string) (Redirect, error) {
	if err := d.Validate(); err != nil {
		return Redirect{}, err
	}
	if err := c.Validate(); err != nil {
		return Redirect{}, err
	}
	drv, err := b.driver(d)
	if err != nil {
		return Redirect{}, err
	}

	tx := Transaction{Provider: d.Name, Next: next}
	authURL, err := drv.Start(ctx, d, c, &tx)
	if err != nil {
		return Redirect{}, err
	}

	sealed, err := token.GenerateTokenAt(tx, b.sealer, b.ttl, b.now())
	if err != nil {
		return Redirect{}, fmt.Errorf("seal transaction: %w", err)
	}
	return Redirect{URL: authURL, Sealed: sealed}, nil
}

// Complete runs the second phase. The returned Result is always populated;
// on failure it has StatusError, the error code and the terminal state, and
// the error carries the classified cause. The caller must discard sealed
// afterwards: the broker does not remember which transactions it has seen.
func (b *Broker) Complete(ctx context.Context, d provider.Descriptor, c Credentials, params url.Values, sealed string) (Result, error) {
	start := b.now()
	ctx, span := b.tracer.Start(ctx, "broker.Complete", trace.WithAttributes(
		attribute.String("provider", d.Name),
		attribute.String("protocol", string(d.Protocol)),
	))
	defer span.End()

	run := lifecycle.Resume(StateAwaitingCallback)
	res, err := b.complete(ctx, d, c, params, sealed)
	_ = run.Fire(outcomeEvent(err))
	res.Provider = d.Name
	res.State = run.Current()

	if err != nil {
		res.Status = StatusError
		res.Error = Code(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Error)
		b.logFailure(ctx, "handshake failed", d, string(res.State), err)
		return res, err
	}

	res.Status = StatusAuthenticated
	span.SetAttributes(attribute.String("outcome", string(res.State)))
	b.logger.InfoContext(ctx, "handshake completed",
		logger.Provider(d.Name),
		logger.Protocol(string(d.Protocol)),
		logger.Outcome(string(res.State)),
		logger.ErrorCode(res.ProfileError),
		logger.Duration(b.now().Sub(start)),
	)
	return res, nil
}

func (b *Broker) complete(ctx context.Context, d provider.Descriptor, c Credentials, params url.Values, sealed string) (Result, error) {
	tx, err := token.ParseTokenAt[Transaction](sealed, b.sealer, b.now())
	if err != nil {
		return Result{}, errors.Join(ErrInvalidTransaction, err)
	}
	res := Result{Next: tx.Next}
	if tx.Provider != d.Name || tx.Nonce == "" {
		return res, fmt.Errorf("%w: transaction was issued for another provider", ErrInvalidTransaction)
	}

	if err := d.Validate(); err != nil {
		return res, err
	}
	if err := c.Validate(); err != nil {
		return res, err
	}
	drv, err := b.driver(d)
	if err != nil {
		return res, err
	}

	grant, err := drv.Grant(d, params, tx)
	if err != nil {
		return res, err
	}

	exchangeCtx, exchangeSpan := b.tracer.Start(ctx, "broker.Exchange")
	cred, err := drv.Exchange(exchangeCtx, d, c, tx, grant)
	if err != nil {
		exchangeSpan.RecordError(err)
		exchangeSpan.SetStatus(codes.Error, Code(err))
	}
	exchangeSpan.End()
	if err != nil {
		return res, err
	}

	profile, err := b.Normalize(ctx, d, c, cred)
	if err != nil {
		// A cancelled request never yields an authenticated result.
		if !b.tolerateProfileErrors || ctx.Err() != nil {
			return res, err
		}
		res.ProfileError = Code(err)
		b.logger.WarnContext(ctx, "profile unavailable, continuing without it",
			logger.Provider(d.Name),
			logger.Error(err),
		)
	} else {
		res.Profile = &profile
	}

	res.Token = cred.Token
	res.Secret = cred.Secret
	res.RefreshToken = cred.RefreshToken
	if !cred.Expiry.IsZero() {
		res.ExpiresAt = cred.Expiry.Unix()
	}
	return res, nil
}

// logFailure logs at a level matching who is at fault: denials are routine,
// transaction problems may be forgery attempts, the rest are provider-side.
func (b *Broker) logFailure(ctx context.Context, msg string, d provider.Descriptor, outcome string, err error) {
	attrs := []any{
		logger.Provider(d.Name),
		logger.Protocol(string(d.Protocol)),
		logger.Outcome(outcome),
		logger.ErrorCode(Code(err)),
		logger.Error(err),
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		attrs = append(attrs,
			logger.Endpoint(pe.Endpoint),
			logger.StatusCode(pe.StatusCode),
		)
		if pe.Body != "" {
			attrs = append(attrs, slog.String("response", pe.Body))
		}
	}

	switch {
	case errors.Is(err, ErrProviderDenied):
		b.logger.InfoContext(ctx, msg, attrs...)
	case errors.Is(err, ErrInvalidTransaction), errors.Is(err, ErrStateMismatch):
		b.logger.WarnContext(ctx, msg, attrs...)
	default:
		b.logger.ErrorContext(ctx, msg, attrs...)
	}
}
