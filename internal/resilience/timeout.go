package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that an operation did not settle within its bound.
type TimeoutError struct {
	After   time.Duration
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: timed out after %s", e.Message, e.After)
	}
	return fmt.Sprintf("operation timed out after %s", e.After)
}

// Timeout marks the error as a timeout for net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }

// WithTimeout runs op and gives up after d. See Timeout.
func WithTimeout(ctx context.Context, d time.Duration, message string, op func(ctx context.Context) error) error {
	_, err := Timeout(ctx, d, message, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Timeout races op against a deadline of d. When the deadline wins a
// *TimeoutError is returned and the result of op is discarded; op's context is
// cancelled so it can stop early. When op settles first its result is returned
// unchanged. A non-positive d runs op without a bound.
func Timeout[T any](ctx context.Context, d time.Duration, message string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	// Buffered so an abandoned op can still finish and exit.
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		v, err := op(opCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(out.err, context.DeadlineExceeded) && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{After: d, Message: message}
		}
		return out.value, out.err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{After: d, Message: message}
	}
}
