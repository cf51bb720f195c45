package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/utils/log"
)

// RetryCompleter retries transient failures of the wrapped Completer with
// exponential backoff.
type RetryCompleter struct {
	next       domain.Completer
	maxRetries uint64
	interval   time.Duration
}

// WithRetry wraps next. maxRetries of zero returns next unchanged, so a send
// makes exactly one attempt.
func WithRetry(next domain.Completer, maxRetries uint64, interval time.Duration) domain.Completer {
	if maxRetries == 0 {
		return next
	}
	if interval <= 0 {
		interval = backoff.DefaultInitialInterval
	}
	return &RetryCompleter{next: next, maxRetries: maxRetries, interval: interval}
}

func (r *RetryCompleter) Complete(ctx context.Context, history []domain.Turn) (string, error) {
	var (
		reply   string
		attempt int
	)
	op := func() error {
		attempt++
		out, err := r.next.Complete(ctx, history)
		if err == nil {
			reply = out
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		log.WithCtx(ctx).Warn("Completion failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)); err != nil {
		return "", err
	}
	return reply, nil
}

// Retryable reports whether err is worth another attempt: transport failures,
// rate limiting and server-side errors.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode == http.StatusTooManyRequests || remote.StatusCode >= 500
	}
	return errors.Is(err, domain.ErrTransport)
}
