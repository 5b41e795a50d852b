package request

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures RetryExecutor.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Default: 3
	MaxAttempts uint

	// InitialDelay is the delay before the first retry.
	// Default: 200ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 10s
	MaxDelay time.Duration

	// OnRetry is called before each retry.
	OnRetry func(err error, delay time.Duration)
}

// RetryExecutor wraps another executor and retries transient failures:
// network errors, 429 and 5xx responses. Other HTTP errors fail at once.
// The pipeline never retries on its own; wrap its executor to opt in.
type RetryExecutor struct {
	next   Executor
	config RetryConfig
}

func NewRetryExecutor(next Executor, config RetryConfig) *RetryExecutor {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	return &RetryExecutor{next: next, config: config}
}

func (r *RetryExecutor) Fetch(ctx context.Context, uri string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.MaxInterval = r.config.MaxDelay

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.config.MaxAttempts),
	}
	if r.config.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(r.config.OnRetry))
	}

	return backoff.Retry(ctx, func() ([]byte, error) {
		body, err := r.next.Fetch(ctx, uri)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}, opts...)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}
