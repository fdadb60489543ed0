package broker_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/doorman/pkg/broker"
)

func TestCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{broker.ErrInvalidTransaction, "invalid_transaction"},
		{broker.ErrStateMismatch, "state_mismatch"},
		{fmt.Errorf("wrapped: %w", broker.ErrProviderDenied), "provider_denied"},
		{broker.ErrProviderTimeout, "provider_timeout"},
		{broker.ErrProviderUnreachable, "provider_unreachable"},
		{broker.ErrTokenExchangeFailed, "token_exchange_failed"},
		{broker.ErrProfileFetchFailed, "profile_fetch_failed"},
		{broker.ErrProviderProtocol, "provider_protocol_error"},
		{broker.ErrInvalidDescriptor, "invalid_descriptor"},
		{broker.ErrInvalidCredentials, "invalid_credentials"},
		{errors.New("boom"), "internal_error"},
		{errors.Join(broker.ErrInvalidTransaction, broker.ErrProviderProtocol), "invalid_transaction"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, broker.Code(tt.err))
		})
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, broker.StateAuthenticated, broker.Outcome(nil))
	assert.Equal(t, broker.StateDenied, broker.Outcome(broker.ErrProviderDenied))
	assert.Equal(t, broker.StateFailed, broker.Outcome(broker.ErrStateMismatch))
	assert.Equal(t, broker.StateFailed, broker.Outcome(broker.ErrProviderTimeout))
}

func TestProviderError(t *testing.T) {
	t.Parallel()

	cause := errors.New("invalid_grant")
	err := &broker.ProviderError{
		Kind:       broker.ErrTokenExchangeFailed,
		Op:         "access_token",
		Endpoint:   "https://example.com/token",
		StatusCode: 400,
		Err:        cause,
	}

	assert.ErrorIs(t, err, broker.ErrTokenExchangeFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "broker: token exchange failed: access_token https://example.com/token: status 400: invalid_grant", err.Error())
	assert.Equal(t, "token_exchange_failed", broker.Code(err))
}
