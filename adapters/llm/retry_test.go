package llm

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/irp-helper/domain"
)

type scriptedCompleter struct {
	errs  []error
	reply string
	calls int
}

func (s *scriptedCompleter) Complete(ctx context.Context, history []domain.Turn) (string, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return s.reply, nil
}

func TestWithRetryZeroIsPassThrough(t *testing.T) {
	next := &scriptedCompleter{}
	assert.Same(t, domain.Completer(next), WithRetry(next, 0, time.Millisecond))
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	next := &scriptedCompleter{
		errs: []error{
			fmt.Errorf("%w: boom", domain.ErrTransport),
			&domain.RemoteError{StatusCode: http.StatusServiceUnavailable},
		},
		reply: "ok",
	}
	reply, err := WithRetry(next, 3, time.Millisecond).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 3, next.calls)
}

func TestRetryStopsOnPermanentFailures(t *testing.T) {
	for name, failure := range map[string]error{
		"credential":  domain.ErrMissingCredential,
		"bad request": &domain.RemoteError{StatusCode: http.StatusBadRequest, Message: "bad key"},
		"shape":       domain.ErrUnexpectedResponse,
	} {
		t.Run(name, func(t *testing.T) {
			next := &scriptedCompleter{errs: []error{failure}, reply: "never"}
			_, err := WithRetry(next, 3, time.Millisecond).Complete(context.Background(), nil)
			assert.ErrorIs(t, err, failure)
			assert.Equal(t, 1, next.calls)
		})
	}
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	transient := fmt.Errorf("%w: boom", domain.ErrTransport)
	next := &scriptedCompleter{errs: []error{transient, transient, transient, transient}}
	_, err := WithRetry(next, 2, time.Millisecond).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 3, next.calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&domain.RemoteError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, Retryable(&domain.RemoteError{StatusCode: http.StatusBadGateway}))
	assert.False(t, Retryable(&domain.RemoteError{StatusCode: http.StatusForbidden}))
	assert.False(t, Retryable(fmt.Errorf("%w: %w", domain.ErrTransport, context.Canceled)))
}
