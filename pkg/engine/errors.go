package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common errors returned by the engine.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrClientClosed is returned when a request is issued after Close.
	ErrClientClosed = errors.New("client closed")
)

// ErrorClass classifies a failed request for logging, metrics, and
// retry decisions.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection and DNS failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents deadline and timeout failures.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassStatus represents HTTP responses with status >= 400.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassAdvisory represents policy advisories promoted to errors
	// by a raising strategy.
	ErrorClassAdvisory ErrorClass = "advisory"

	// ErrorClassHandler represents failures raised by lifecycle hooks,
	// customizers, and response handlers.
	ErrorClassHandler ErrorClass = "handler"
)

// RequestError represents a failed request with its classification.
// Failures are contained to the request that raised them; siblings in
// the same generation keep running.
type RequestError struct {
	Method     string
	URL        string
	Class      ErrorClass
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Class == ErrorClassStatus {
		return fmt.Sprintf("%s %s: %s error (status %d)",
			e.Method, e.URL, e.Class, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.URL, e.Class, e.Err)
	}
	return fmt.Sprintf("%s %s: %s error", e.Method, e.URL, e.Class)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyErr maps a transport-level error to its class. Deadline
// expiry counts as a timeout even when it surfaces wrapped in a
// url.Error from the HTTP client.
func classifyErr(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// retryableStatus reports whether an HTTP status is worth retrying.
// Server errors and 429 are transient; other client errors are not.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
