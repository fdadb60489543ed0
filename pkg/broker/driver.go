package broker

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

// maxBodySize bounds every provider response read by the broker.
const maxBodySize = 1 << 20

// Driver implements one protocol's wire exchange.
type Driver interface {
	// Start prepares the authorization redirect. It fills tx with the
	// state the callback will be checked against.
	Start(ctx context.Context, d provider.Descriptor, c Credentials, tx *Transaction) (string, error)
	// Grant validates the callback parameters against tx.
	Grant(d provider.Descriptor, params url.Values, tx Transaction) (Grant, error)
	// Exchange trades the grant for a long-lived credential.
	Exchange(ctx context.Context, d provider.Descriptor, c Credentials, tx Transaction, g Grant) (Credential, error)
	// Sign authorizes an outbound API request with cred.
	Sign(d provider.Descriptor, c Credentials, cred Credential, req *http.Request) error
}

// transport performs bounded, non-retrying provider calls.
type transport struct {
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
	nonce   func() string
}

func newTransport(client *http.Client, timeout time.Duration, now func() time.Time) transport {
	return transport{
		client:  client,
		timeout: timeout,
		now:     now,
		nonce:   rand.Text,
	}
}

// bound applies the per-call timeout to ctx.
func (t transport) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// do sends req and returns the status and at most maxBodySize bytes of body.
func (t transport) do(ctx context.Context, op string, req *http.Request) (int, []byte, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()

	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		return 0, nil, transportError(op, req.URL.String(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return resp.StatusCode, nil, transportError(op, req.URL.String(), err)
	}
	if len(body) > maxBodySize {
		return resp.StatusCode, nil, providerError(ErrProviderProtocol, op, req.URL.String(), resp.StatusCode, nil,
			fmt.Errorf("response exceeds %d bytes", maxBodySize))
	}
	return resp.StatusCode, body, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
