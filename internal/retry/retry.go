// Package retry bounds store calls with a timeout and retries transient failures.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/layer-3/cosign/core"
	"github.com/pkg/errors"
)

// Policy configures how store calls are bounded and retried.
type Policy struct {
	Timeout     time.Duration // per attempt
	MaxRetries  uint64
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		InitialWait: 50 * time.Millisecond,
		MaxWait:     500 * time.Millisecond,
	}
}

// Do runs op until it succeeds, fails with a non-transient error, or the
// retry budget is spent. Only core.ErrStoreUnavailable is retried.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialWait
	b.MaxInterval = p.MaxWait
	b.MaxElapsedTime = 0

	attempt := func() error {
		callCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		err := op(callCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return errors.Wrap(core.ErrStoreUnavailable, "store call timed out")
		}
		if !errors.Is(err, core.ErrStoreUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}
