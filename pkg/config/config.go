// Package config defines the per-endpoint request policy shared by the
// engine and its collaborators: admission constraints, transport
// settings, download behavior, and failure handling.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrConfiguration marks fatal configuration mistakes detected at call
// time. Operations return it (wrapped) instead of degrading.
var ErrConfiguration = errors.New("invalid configuration")

// ConfigurationError reports a malformed option set or call arguments.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %s", e.Message)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// Unwrap supports errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Errorf builds a ConfigurationError for the given field.
func Errorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrorStrategy controls how advisories (non-fatal warnings) surface.
type ErrorStrategy string

const (
	// StrategyLog emits the advisory as a warning and continues.
	StrategyLog ErrorStrategy = "log"

	// StrategyRaise promotes the advisory to a returned error.
	StrategyRaise ErrorStrategy = "raise"

	// StrategyIgnore drops the advisory silently.
	StrategyIgnore ErrorStrategy = "ignore"
)

// Valid reports whether s is a recognized strategy.
func (s ErrorStrategy) Valid() bool {
	switch s {
	case StrategyLog, StrategyRaise, StrategyIgnore:
		return true
	}
	return false
}

// NamingStrategy selects how downloaded files are named.
type NamingStrategy string

const (
	// NamingUniqueID names files with a random UUIDv4.
	NamingUniqueID NamingStrategy = "unique-id"

	// NamingURLHashMD5 names files with the MD5 hex digest of the URL.
	NamingURLHashMD5 NamingStrategy = "url-hash-md5"

	// NamingURLHashSHA1 names files with the SHA1 hex digest of the URL.
	NamingURLHashSHA1 NamingStrategy = "url-hash-sha1"

	// NamingFileName names files with the literal URL basename.
	NamingFileName NamingStrategy = "file-name"
)

// Valid reports whether s is a recognized strategy.
func (s NamingStrategy) Valid() bool {
	switch s {
	case NamingUniqueID, NamingURLHashMD5, NamingURLHashSHA1, NamingFileName:
		return true
	}
	return false
}

// Rate is one admission constraint: at most Limit requests per Interval.
// Limit <= 0 means unlimited.
type Rate struct {
	Limit    int
	Interval time.Duration
}

// PairRates combines parallel limit and interval lists into Rate pairs.
// A single-element list broadcasts against the other list; otherwise
// both must have the same length.
func PairRates(limits []int, intervals []time.Duration) ([]Rate, error) {
	if len(limits) == 0 || len(intervals) == 0 {
		return nil, Errorf("rates", "limits and intervals must not be empty")
	}

	n := len(limits)
	if len(intervals) > n {
		n = len(intervals)
	}

	if len(limits) != n && len(limits) != 1 {
		return nil, Errorf("rates", "got %d limits for %d intervals", len(limits), len(intervals))
	}
	if len(intervals) != n && len(intervals) != 1 {
		return nil, Errorf("rates", "got %d intervals for %d limits", len(intervals), len(limits))
	}

	rates := make([]Rate, n)
	for i := range rates {
		rates[i] = Rate{Limit: pick(limits, i), Interval: pick(intervals, i)}
	}
	return rates, nil
}

func pick[T any](s []T, i int) T {
	if len(s) == 1 {
		return s[0]
	}
	return s[i]
}

// Retry bounds the transient-failure retry loop.
type Retry struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BasicAuth carries credentials for HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Connection carries transport-level settings applied to an endpoint's
// connection pool when it is built.
type Connection struct {
	// Headers are added to every request against the endpoint.
	Headers map[string]string

	// BasicAuth, when set, is applied to every request.
	BasicAuth *BasicAuth

	// Cookies are sent with every request.
	Cookies []*http.Cookie

	// ProxyURL routes the pool through an HTTP proxy.
	ProxyURL string

	// InsecureSkipTLS disables certificate verification.
	InsecureSkipTLS bool
}

// Endpoint is the full per-endpoint policy. The zero value is not
// usable; start from Default.
type Endpoint struct {
	// Admission
	Rates         []Rate
	MaxConcurrent int
	Credentials   []string

	// Transport
	FollowRedirects bool
	MaxRedirects    int
	Timeout         time.Duration
	Connection      Connection

	// Downloads. An empty DownloadDir disables local storage.
	DownloadDir string
	Naming      NamingStrategy

	// Failure handling
	OnAdvisory ErrorStrategy
	Retry      Retry

	// ShowProgress opts the endpoint into per-generation progress
	// reporting.
	ShowProgress bool
}

// Default returns the endpoint policy applied when a caller registers
// nothing: 5 requests per second, one request in flight, 10 second
// timeout, MD5 naming, advisories logged.
func Default() Endpoint {
	return Endpoint{
		Rates:           []Rate{{Limit: 5, Interval: time.Second}},
		MaxConcurrent:   1,
		FollowRedirects: true,
		MaxRedirects:    10,
		Timeout:         10 * time.Second,
		Naming:          NamingURLHashMD5,
		OnAdvisory:      StrategyLog,
		Retry: Retry{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// Validate checks the policy for mistakes that must fail fast.
func (e Endpoint) Validate() error {
	if len(e.Rates) == 0 {
		return Errorf("rates", "at least one rate pair is required")
	}
	for i, r := range e.Rates {
		if r.Interval < 0 {
			return Errorf("rates", "pair %d: interval must not be negative", i)
		}
	}
	if e.MaxConcurrent < 1 {
		return Errorf("max_concurrent", "must be >= 1 (got %d)", e.MaxConcurrent)
	}
	if e.Timeout <= 0 {
		return Errorf("timeout", "must be positive (got %s)", e.Timeout)
	}
	if e.MaxRedirects < 0 {
		return Errorf("max_redirects", "must not be negative (got %d)", e.MaxRedirects)
	}
	if !e.Naming.Valid() {
		return Errorf("naming", "unknown strategy %q", string(e.Naming))
	}
	if !e.OnAdvisory.Valid() {
		return Errorf("error_strategy", "unknown strategy %q", string(e.OnAdvisory))
	}
	if e.Retry.MaxAttempts < 1 {
		return Errorf("retry", "max_attempts must be >= 1 (got %d)", e.Retry.MaxAttempts)
	}
	if e.Retry.MaxAttempts > 1 && e.Retry.InitialBackoff <= 0 {
		return Errorf("retry", "initial_backoff must be positive (got %s)", e.Retry.InitialBackoff)
	}
	return nil
}
