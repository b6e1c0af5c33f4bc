package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// CircuitOpenError is returned without calling the dependency while its
// breaker judges it unhealthy.
type CircuitOpenError struct {
	Name  string
	State State
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s", e.Name, e.State)
}

// RetryExhaustedError wraps the last failure after every attempt was used.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// StatusCoder is implemented by errors that carry a remote status code.
type StatusCoder interface {
	StatusCode() int
}

// IsTransient classifies timeouts, network faults and 5xx/429 responses as
// worth retrying. Everything else is terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var open *CircuitOpenError
	if errors.As(err, &open) || errors.Is(err, context.Canceled) {
		return false
	}

	var timeout *TimeoutError
	if errors.As(err, &timeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// RetryAll is the predicate used when a policy names none. It retries every
// error except an open breaker and caller cancellation, neither of which can
// succeed on a second try.
func RetryAll(err error) bool {
	var open *CircuitOpenError
	if errors.As(err, &open) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
