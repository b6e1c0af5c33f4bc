package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"device-loan-backend/internal/logger"
)

// RetryPolicy bounds how a failing operation is re-invoked.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// Retryable decides whether an error is worth another attempt.
	// When nil, RetryAll is used.
	Retryable func(error) bool
}

// RetryNotifyFunc observes each failed attempt that will be retried.
type RetryNotifyFunc func(attempt int, err error, next time.Duration)

type RetryOption func(*Retrier)

// WithTimer swaps the timer used between attempts. Tests use it to observe
// delays without sleeping.
func WithTimer(newTimer func() backoff.Timer) RetryOption {
	return func(r *Retrier) {
		r.newTimer = newTimer
	}
}

// WithRetryNotify registers a hook called before every wait.
func WithRetryNotify(fn RetryNotifyFunc) RetryOption {
	return func(r *Retrier) {
		r.notify = append(r.notify, fn)
	}
}

// Retrier re-invokes operations with exponential backoff and no jitter.
type Retrier struct {
	name     string
	policy   RetryPolicy
	newTimer func() backoff.Timer
	notify   []RetryNotifyFunc
}

func NewRetrier(name string, policy RetryPolicy, opts ...RetryOption) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BackoffMultiplier < 1 {
		policy.BackoffMultiplier = 1
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = policy.InitialDelay
	}
	if policy.Retryable == nil {
		policy.Retryable = RetryAll
	}

	r := &Retrier{name: name, policy: policy}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

func (r *Retrier) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialDelay
	b.MaxInterval = r.policy.MaxDelay
	b.Multiplier = r.policy.BackoffMultiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, returns an error the policy rejects, or the
// attempts run out. In the last case a *RetryExhaustedError wrapping the final
// failure is returned. Cancelling ctx stops the wait and returns ctx.Err().
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var (
		attempt  int
		last     error
		terminal bool
	)

	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err
		if !r.policy.Retryable(err) {
			terminal = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		logger.WarnContext(ctx, "Retrying operation",
			"operation", r.name,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"next_delay", next,
			"error", err)
		for _, fn := range r.notify {
			fn(attempt, err, next)
		}
	}

	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, r.backOff(ctx), notify, timer)
	switch {
	case err == nil:
		return nil
	case terminal:
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	default:
		return &RetryExhaustedError{Attempts: attempt, Last: last}
	}
}
