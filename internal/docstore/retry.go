package docstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	fdlog "github.com/msto63/firedoc/foundation/core/log"
)

// RetryPolicy bounds Retry
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxTries        uint
	MaxElapsedTime  time.Duration
	Logger          *fdlog.Logger
}

// DefaultRetryPolicy returns the policy used when none is given
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxTries:        5,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Retry runs op until it succeeds, fails with a code other than UNAVAILABLE
// or DEADLINE_EXCEEDED, or the policy is exhausted. The client itself never
// retries these codes; callers opt in here.
func Retry(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	_, err := RetryValue(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// RetryValue is Retry for operations that produce a result
func RetryValue[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	def := DefaultRetryPolicy()
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = def.InitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = def.MaxInterval
	}
	if policy.MaxTries == 0 {
		policy.MaxTries = def.MaxTries
	}
	if policy.MaxElapsedTime <= 0 {
		policy.MaxElapsedTime = def.MaxElapsedTime
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxTries),
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
	}
	if policy.Logger != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			policy.Logger.Warn("retrying after transient failure", fdlog.Fields{
				"error_code": string(fderror.GetCode(err)),
				"next":       next.String(),
			})
		}))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !fderror.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}
