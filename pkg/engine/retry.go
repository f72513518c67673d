package engine

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/fetchwave/fetchwave/pkg/config"
)

// dispatch issues the network call for a plan, retrying transient
// failures with exponential backoff and jitter. The credential's
// semaphore slot is held for the whole loop; only the spacing wait
// re-runs between attempts.
//
// On success (or a non-retryable status, or a retryable status on the
// final attempt) the response is returned with a cancel function the
// caller must invoke after consuming the body. Network errors that
// survive every attempt surface as ErrRetryExhausted.
func (c *Client) dispatch(ctx context.Context, state *endpointState, plan *Plan, credential string) (*http.Response, context.CancelFunc, error) {
	policy := state.cfg.Retry
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, state.timeout(plan.Settings()))

		req, err := buildHTTPRequest(attemptCtx, plan)
		if err != nil {
			cancel()
			return nil, nil, err
		}
		state.decorate(req, plan)

		resp, err := state.pool.Do(req)
		if err != nil {
			cancel()
			class := classifyErr(err)
			lastErr = &RequestError{
				Method: plan.Method,
				URL:    plan.URL,
				Class:  class,
				Err:    err,
			}
			if attempt >= maxAttempts {
				break
			}
			backoff, err = c.awaitRetry(ctx, state, credential, class, attempt, backoff, policy)
			if err != nil {
				return nil, nil, err
			}
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt < maxAttempts {
			resp.Body.Close()
			cancel()
			lastErr = &RequestError{
				Method:     plan.Method,
				URL:        plan.URL,
				Class:      ErrorClassStatus,
				StatusCode: resp.StatusCode,
			}
			backoff, err = c.awaitRetry(ctx, state, credential, ErrorClassStatus, attempt, backoff, policy)
			if err != nil {
				return nil, nil, err
			}
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt == maxAttempts && maxAttempts > 1 {
			retryExhaustedTotal.WithLabelValues(string(ErrorClassStatus)).Inc()
		}
		if attempt > 1 {
			c.logger.Debug().
				Str("method", plan.Method).
				Str("url", plan.URL).
				Int("attempt", attempt).
				Msg("Request succeeded after retry")
		}
		return resp, cancel, nil
	}

	class := ErrorClassNetwork
	if re, ok := lastErr.(*RequestError); ok {
		class = re.Class
	}
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	c.logger.Warn().
		Str("method", plan.Method).
		Str("url", plan.URL).
		Int("max_attempts", maxAttempts).
		Str("category", string(class)).
		Msg("Retry attempts exhausted")
	return nil, nil, exhaustedError(maxAttempts, lastErr)
}

// exhaustedError wraps the final attempt's error so both the sentinel
// and the underlying RequestError survive errors.Is and errors.As.
func exhaustedError(maxAttempts int, lastErr error) error {
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

// awaitRetry sleeps out the jittered backoff, then re-runs the
// credential's spacing wait. Returns the next backoff value.
func (c *Client) awaitRetry(ctx context.Context, state *endpointState, credential string, class ErrorClass, attempt int, backoff time.Duration, policy config.Retry) (time.Duration, error) {
	retriesTotal.WithLabelValues(string(class)).Inc()

	// ±20% jitter to avoid thundering herd
	wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
	retryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

	c.logger.Debug().
		Str("category", string(class)).
		Int("attempt", attempt).
		Dur("backoff", wait).
		Msg("Retrying request after backoff")

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("retry backoff: %w", ctx.Err())
	case <-time.After(wait):
	}

	if err := state.gate.Pace(ctx, credential); err != nil {
		return 0, fmt.Errorf("retry pacing: %w", err)
	}

	next := time.Duration(float64(backoff) * policy.Multiplier)
	if policy.MaxBackoff > 0 && next > policy.MaxBackoff {
		next = policy.MaxBackoff
	}
	return next, nil
}
