// Package retry provides the single retry policy injected into caller worker
// tasks. Only transport failures are retried; business and normalization
// errors pass through on the first attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cinetick/cinetick/pkg/apperrors"
)

type Policy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// Do runs fn under the policy. Non-retryable errors abort immediately and are
// returned as-is.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	wrapped := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
}
