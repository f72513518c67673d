package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request admission.
var (
	admissionWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetchwave_admission_wait_seconds",
		Help:    "Time spent waiting for a concurrency slot and rate spacing",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})
)

// ErrUnknownCredential is returned when a credential outside the
// rotation is passed to the gate.
var ErrUnknownCredential = errors.New("credential not in rotation")

// Gate admits requests for one endpoint. Credentials rotate through a
// queue; each distinct credential owns a concurrency semaphore and a
// pacer enforcing the computed spacing. When no credentials are
// configured the implicit empty credential is enqueued once per
// concurrency slot so all requests share it.
type Gate struct {
	queue   chan string
	sems    map[string]*semaphore.Weighted
	pacers  map[string]*rate.Limiter
	index   map[string]int
	spacing time.Duration
	logger  zerolog.Logger
}

// NewGate builds a gate. maxConcurrent bounds in-flight requests per
// distinct credential; spacing is the minimum delay between consecutive
// acquisitions of one credential. Listing the same credential more than
// once raises its share of the rotation while the semaphore still caps
// its concurrency.
func NewGate(credentials []string, maxConcurrent int, spacing time.Duration, logger zerolog.Logger) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	entries := credentials
	if len(entries) == 0 {
		entries = make([]string, maxConcurrent)
	}

	g := &Gate{
		queue:   make(chan string, len(entries)),
		sems:    make(map[string]*semaphore.Weighted),
		pacers:  make(map[string]*rate.Limiter),
		index:   make(map[string]int),
		spacing: spacing,
		logger:  logger,
	}

	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}

	for _, cred := range entries {
		if _, ok := g.sems[cred]; !ok {
			g.index[cred] = len(g.index)
			g.sems[cred] = semaphore.NewWeighted(int64(maxConcurrent))
			g.pacers[cred] = rate.NewLimiter(limit, 1)
		}
		g.queue <- cred
	}

	return g
}

// Spacing returns the minimum delay enforced between consecutive
// acquisitions of one credential.
func (g *Gate) Spacing() time.Duration {
	return g.spacing
}

// Checkout removes a credential from the rotation queue, suspending the
// caller while every credential is in use.
func (g *Gate) Checkout(ctx context.Context) (string, error) {
	select {
	case cred := <-g.queue:
		return cred, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Acquire takes a concurrency slot for the credential, then waits out
// the spacing since its previous acquisition. The wait suspends, it
// never spins.
func (g *Gate) Acquire(ctx context.Context, credential string) error {
	sem, ok := g.sems[credential]
	if !ok {
		return ErrUnknownCredential
	}

	start := time.Now()
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := g.pacers[credential].Wait(ctx); err != nil {
		sem.Release(1)
		return err
	}

	waited := time.Since(start)
	admissionWaitSeconds.Observe(waited.Seconds())
	g.logger.Debug().
		Int("credential", g.index[credential]).
		Dur("waited", waited).
		Msg("request admitted")

	return nil
}

// Pace re-runs only the spacing wait for a held credential, so a retry
// attempt burns rate budget like any other call.
func (g *Gate) Pace(ctx context.Context, credential string) error {
	p, ok := g.pacers[credential]
	if !ok {
		return ErrUnknownCredential
	}
	return p.Wait(ctx)
}

// Release frees the credential's concurrency slot.
func (g *Gate) Release(credential string) {
	if sem, ok := g.sems[credential]; ok {
		sem.Release(1)
	}
}

// Return puts a checked-out credential back into the rotation queue.
// Called exactly once per Checkout, from the request cycle's cleanup.
func (g *Gate) Return(credential string) {
	select {
	case g.queue <- credential:
	default:
		g.logger.Warn().
			Int("credential", g.index[credential]).
			Msg("credential returned without a matching checkout")
	}
}
