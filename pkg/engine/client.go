// Package engine implements the concurrent request engine: broadcast
// expansion of slice arguments, breadth-first generations, credential
// rotation with per-credential concurrency and spacing, at-most-once
// in-process deduplication, typed response dispatch, and per-request
// failure isolation.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetchwave/fetchwave/pkg/cache"
	"github.com/fetchwave/fetchwave/pkg/config"
	"github.com/fetchwave/fetchwave/pkg/download"
	"github.com/fetchwave/fetchwave/pkg/logging"
	"github.com/fetchwave/fetchwave/pkg/stats"
)

// Client is the request engine. One client owns its endpoint states,
// visited set, and statistics for its whole lifetime.
type Client struct {
	mu        sync.Mutex
	endpoints map[string]*endpointState
	closed    bool

	defaults   config.Endpoint
	handler    Handler
	customizer Customizer
	lifecycle  Lifecycle
	progress   ProgressFunc
	cache      *cache.Manager
	transport  http.RoundTripper

	visited *visitedSet
	stats   *stats.Collector
	logger  zerolog.Logger

	progressMu sync.Mutex
	scheduled  int
	done       int
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithDefaults sets the configuration applied to lazily registered
// endpoints. Validated by New.
func WithDefaults(cfg config.Endpoint) Option {
	return func(c *Client) { c.defaults = cfg }
}

// WithHandler sets the response handler invoked for every successful
// response. Defaults to a no-op.
func WithHandler(h Handler) Option {
	return func(c *Client) {
		if h != nil {
			c.handler = h
		}
	}
}

// WithCustomizer sets the pre-dispatch customization hook.
func WithCustomizer(cu Customizer) Option {
	return func(c *Client) { c.customizer = cu }
}

// WithLifecycle sets the per-request setup/cleanup hooks. Defaults to
// no-ops.
func WithLifecycle(l Lifecycle) Option {
	return func(c *Client) {
		if l != nil {
			c.lifecycle = l
		}
	}
}

// WithCache enables the response cache for GET requests.
func WithCache(m *cache.Manager) Option {
	return func(c *Client) { c.cache = m }
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithProgress installs a progress callback invoked as requests are
// scheduled and completed.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) { c.progress = fn }
}

// WithTransport overrides the pool transport of every endpoint. Tests
// use it to route all traffic into a mock server.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// New creates a client. The defaults (config.Default() unless
// overridden) are validated here so misconfiguration fails at
// construction, not mid-run.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		endpoints: make(map[string]*endpointState),
		defaults:  config.Default(),
		handler:   nopHandler{},
		lifecycle: nopLifecycle{},
		visited:   newVisitedSet(),
		stats:     stats.NewCollector(),
		logger:    logging.NewLogger("engine"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	return c, nil
}

// Register attaches a configuration to a base URL (scheme+host).
// Re-registering an endpoint routes an advisory through the previous
// registration's error strategy and then overwrites.
func (c *Client) Register(baseURL string, cfg config.Endpoint) error {
	origin, err := originOf(baseURL)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	if prev, ok := c.endpoints[origin]; ok {
		adv := config.Advisef(config.AdvisoryReregistration,
			"endpoint %s is already registered; overwriting its configuration", origin)
		if err := config.Advise(c.logger, prev.cfg.OnAdvisory, adv); err != nil {
			return err
		}
	}

	state, err := newEndpointState(origin, cfg, c.transport, c.logger)
	if err != nil {
		return fmt.Errorf("register %s: %w", origin, err)
	}
	c.endpoints[origin] = state
	return nil
}

// Get issues GET requests. All slice arguments broadcast: a length-1
// slice (or nil payloads/settings) repeats against the longest input.
func (c *Client) Get(ctx context.Context, urls []string, payloads []map[string]any, settings []*Settings) error {
	return c.Run(ctx, []string{http.MethodGet}, urls, payloads, settings)
}

// Post issues POST requests with payloads encoded as JSON bodies.
func (c *Client) Post(ctx context.Context, urls []string, payloads []map[string]any, settings []*Settings) error {
	return c.Run(ctx, []string{http.MethodPost}, urls, payloads, settings)
}

// Run executes a batch of requests in breadth-first generations: every
// request of a generation reaches cleanup before the follow-ups spawned
// by its handlers are dispatched. The run ends when a generation spawns
// nothing. Per-request failures are contained; Run only returns
// configuration errors and context cancellation.
func (c *Client) Run(ctx context.Context, methods, urls []string, payloads []map[string]any, settings []*Settings) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.mu.Unlock()

	reqs, err := buildRequests(methods, urls, payloads, settings)
	if err != nil {
		return err
	}

	c.logger.Info().Int("requests", len(reqs)).Msg("Run started")

	gen := 0
	for len(reqs) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		generationsTotal.Inc()
		if gen > 0 {
			spawnedRequests.Add(float64(len(reqs)))
		}
		c.addScheduled(len(reqs))

		sink := newSpawnSink()
		var wg sync.WaitGroup
		for _, req := range reqs {
			wg.Add(1)
			go func(r *Request) {
				defer wg.Done()
				c.executeRequest(ctx, gen, r, sink)
			}(req)
		}
		wg.Wait()

		reqs = sink.drain()
		if len(reqs) > 0 {
			c.logger.Debug().
				Int("generation", gen+1).
				Int("requests", len(reqs)).
				Msg("Generation spawned")
		}
		gen++
	}

	c.logger.Info().Int("generations", gen).Msg("Run finished")
	return ctx.Err()
}

// Stats returns a point-in-time snapshot of the request counters.
func (c *Client) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// Close releases every endpoint pool and logs a final statistics
// snapshot. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	for _, state := range c.endpoints {
		state.close()
	}

	snap := c.stats.Snapshot()
	c.logger.Info().
		Uint64("total_requests", snap.TotalRequests).
		Uint64("total_errors", snap.TotalErrors).
		Uint64("deduped", snap.Deduped).
		Float64("error_rate", snap.ErrorRate).
		Float64("throughput", snap.Throughput).
		Msg("Client closed")
	return nil
}

// executeRequest runs one request through its full cycle: endpoint
// setup and credential checkout, customization, dedup, cache lookup,
// gated dispatch, response handling, cleanup. Failures are logged and
// tallied, never propagated to siblings.
func (c *Client) executeRequest(ctx context.Context, gen int, req *Request, sink *spawnSink) {
	defer c.tickProgress()

	logger := logging.WithRequest(c.logger, req.Method, req.URL).
		With().Int("generation", gen).Logger()

	effectiveURL, err := expandURL(req.Method, req.URL, req.Payload)
	if err != nil {
		c.abandon(logger, req.Payload, ErrorClassNetwork, err)
		return
	}

	state, err := c.stateFor(effectiveURL)
	if err != nil {
		c.abandon(logger, req.Payload, ErrorClassNetwork, err)
		return
	}

	credential, err := state.gate.Checkout(ctx)
	if err != nil {
		c.abandon(logger, req.Payload, classifyErr(err), err)
		return
	}
	defer state.gate.Return(credential)

	plan := &Plan{
		Method:     req.Method,
		URL:        effectiveURL,
		Payload:    req.Payload,
		Header:     make(http.Header),
		Credential: credential,
		Generation: gen,
		settings:   req.Settings,
	}
	if req.Settings != nil {
		for k, v := range req.Settings.Headers {
			plan.Header.Set(k, v)
		}
	}

	if err := c.lifecycle.Setup(ctx, plan); err != nil {
		c.abandon(logger, req.Payload, ErrorClassHandler, fmt.Errorf("setup hook: %w", err))
		return
	}
	defer c.lifecycle.Cleanup(ctx, plan)

	extra := ""
	if c.customizer != nil {
		extra, err = c.customizer.Customize(ctx, plan)
		if err != nil {
			c.abandon(logger, req.Payload, ErrorClassHandler, fmt.Errorf("customize hook: %w", err))
			return
		}
	}

	// Dedup is recorded before the network call so concurrently spawned
	// duplicates are suppressed too.
	fp := fingerprint(plan.Method, plan.URL, extra)
	if c.visited.MarkSeen(fp) {
		dedupDropped.Inc()
		c.stats.RecordDeduped()
		logger.Debug().Uint64("fingerprint", fp).Msg("Duplicate request dropped")
		return
	}

	c.stats.RecordRequest(state.origin, plan.Method)

	// A cache hit costs no rate budget: lookup happens before admission.
	if env, ok := c.cacheLookup(ctx, plan, gen); ok {
		c.stats.RecordResponse(env.StatusCode, env.ContentType)
		requestsTotal.WithLabelValues(plan.Method, statusClass(env.StatusCode)).Inc()
		c.handleEnvelope(ctx, state, env, sink, logger)
		return
	}

	if err := state.gate.Acquire(ctx, credential); err != nil {
		c.abandon(logger, req.Payload, classifyErr(err), err)
		return
	}
	defer state.gate.Release(credential)

	start := time.Now()
	resp, cancel, err := c.dispatch(ctx, state, plan, credential)
	duration := time.Since(start)
	requestDuration.WithLabelValues(plan.Method).Observe(duration.Seconds())

	if err != nil {
		class := ErrorClassNetwork
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			class = reqErr.Class
		} else if errors.Is(err, context.DeadlineExceeded) {
			class = ErrorClassTimeout
		}
		c.recordFailure(class)
		c.abandon(logger, req.Payload, class, err)
		return
	}
	defer cancel()

	contentType := resp.Header.Get("Content-Type")
	c.stats.RecordResponse(resp.StatusCode, contentType)
	requestsTotal.WithLabelValues(plan.Method, statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		reqErr := &RequestError{
			Method:     plan.Method,
			URL:        plan.URL,
			Class:      ErrorClassStatus,
			StatusCode: resp.StatusCode,
		}
		c.abandon(logger, req.Payload, ErrorClassStatus, reqErr)
		return
	}

	env, err := c.buildEnvelope(state, plan, resp, duration, gen)
	if err != nil {
		class := classifyErr(err)
		if errors.Is(err, config.ErrAdvisory) {
			class = ErrorClassAdvisory
		} else {
			c.recordFailure(class)
		}
		c.abandon(logger, req.Payload, class, err)
		return
	}

	c.cacheStore(ctx, plan, env)
	c.handleEnvelope(ctx, state, env, sink, logger)
}

// abandon logs a contained per-request failure and counts it.
func (c *Client) abandon(logger zerolog.Logger, payload map[string]any, class ErrorClass, err error) {
	requestFailures.WithLabelValues(string(class)).Inc()
	logger.Error().
		Err(err).
		Str("category", string(class)).
		Interface("payload", payload).
		Msg("Request abandoned")
}

// recordFailure tallies a transport-level failure in the statistics.
func (c *Client) recordFailure(class ErrorClass) {
	if class == ErrorClassTimeout {
		c.stats.RecordTimeout()
		return
	}
	if class == ErrorClassNetwork {
		c.stats.RecordNetworkError()
	}
}

// buildEnvelope classifies the response by declared content type and
// materializes the payload: buffered text or decoded JSON, or a file
// streamed to disk (URL passthrough when no download directory is
// configured). Consumes and closes the body.
func (c *Client) buildEnvelope(state *endpointState, plan *Plan, resp *http.Response, duration time.Duration, gen int) (*Envelope, error) {
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	env := &Envelope{
		Method:      plan.Method,
		URL:         plan.URL,
		Payload:     plan.Payload,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Header:      resp.Header,
		Kind:        classifyKind(contentType),
		Duration:    duration,
		Generation:  gen,
	}

	switch env.Kind {
	case KindFile:
		settings := plan.Settings()
		dir := state.cfg.DownloadDir
		if settings.DownloadDir != "" {
			dir = settings.DownloadDir
		}
		if dir == "" {
			env.File = &download.Result{URL: plan.URL}
			return env, nil
		}
		naming := state.cfg.Naming
		if settings.Naming != "" {
			naming = settings.Naming
		}
		result, err := download.Save(resp.Body, plan.URL, contentType, download.Options{
			Dir:        dir,
			Naming:     naming,
			OnAdvisory: state.cfg.OnAdvisory,
			Logger:     c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("download: %w", err)
		}
		env.File = result

	default:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		env.Body = body
		if env.Kind == KindText {
			env.Text = string(body)
		} else if len(body) > 0 {
			if err := json.Unmarshal(body, &env.JSON); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
		}
	}
	return env, nil
}

// handleEnvelope invokes the response handler and schedules every
// KindRequest item into the next generation, resolving relative URLs
// against the originating endpoint.
func (c *Client) handleEnvelope(ctx context.Context, state *endpointState, env *Envelope, sink *spawnSink, logger zerolog.Logger) {
	items, err := c.handler.HandleResponse(ctx, env)
	if err != nil {
		requestFailures.WithLabelValues(string(ErrorClassHandler)).Inc()
		logger.Warn().Err(err).Msg("Response handler failed")
		return
	}

	spawned := 0
	for _, item := range items {
		if item.Kind != KindRequest {
			continue
		}
		method, err := normalizeMethod(item.Method)
		if err != nil {
			logger.Warn().Err(err).Str("spawned_url", item.URL).Msg("Spawned request rejected")
			continue
		}
		resolved, err := resolveSpawnURL(state.origin, item.URL)
		if err != nil {
			logger.Warn().Err(err).Str("spawned_url", item.URL).Msg("Spawned request rejected")
			continue
		}
		sink.add(&Request{
			Method:   method,
			URL:      resolved,
			Payload:  item.Payload,
			Settings: item.Settings,
		})
		spawned++
	}
	if spawned > 0 {
		logger.Debug().Int("spawned", spawned).Msg("Handler spawned follow-up requests")
	}
}

// cacheLookup rebuilds an envelope from the response cache. Misses and
// cache failures both return false; failures are logged, never fatal.
func (c *Client) cacheLookup(ctx context.Context, plan *Plan, gen int) (*Envelope, bool) {
	if c.cache == nil || plan.Method != http.MethodGet {
		return nil, false
	}

	key := cache.Key{Method: plan.Method, URL: plan.URL}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", plan.URL).Msg("Cache get error")
		}
		return nil, false
	}

	env := &Envelope{
		Method:      plan.Method,
		URL:         plan.URL,
		Payload:     plan.Payload,
		StatusCode:  entry.StatusCode,
		ContentType: entry.ContentType,
		Kind:        classifyKind(entry.ContentType),
		Body:        entry.Body,
		FromCache:   true,
		Generation:  gen,
	}
	switch env.Kind {
	case KindText:
		env.Text = string(entry.Body)
	case KindJSON:
		if len(entry.Body) > 0 {
			if err := json.Unmarshal(entry.Body, &env.JSON); err != nil {
				c.logger.Warn().Err(err).Str("url", plan.URL).Msg("Cache entry undecodable; treating as miss")
				return nil, false
			}
		}
	default:
		// File bodies are never cached.
		return nil, false
	}

	c.logger.Debug().Str("url", plan.URL).Msg("Cache hit")
	return env, true
}

// cacheStore records a successful non-file response in the cache.
func (c *Client) cacheStore(ctx context.Context, plan *Plan, env *Envelope) {
	if c.cache == nil || plan.Method != http.MethodGet || env.FromCache || env.Kind == KindFile {
		return
	}
	entry := cache.NewEntry(env.Body, env.ContentType, env.StatusCode, env.Header, c.cache.DefaultTTL())
	key := cache.Key{Method: plan.Method, URL: plan.URL}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("url", plan.URL).Msg("Cache set error")
	}
}

// stateFor resolves the endpoint state for a URL, lazily registering
// unknown origins with the construction defaults.
func (c *Client) stateFor(rawURL string) (*endpointState, error) {
	origin, err := originOf(rawURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if state, ok := c.endpoints[origin]; ok {
		return state, nil
	}

	state, err := newEndpointState(origin, c.defaults, c.transport, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("endpoint", origin).Msg("Endpoint lazily registered with defaults")
	c.endpoints[origin] = state
	return state, nil
}

// originOf extracts the scheme+host identity of a URL.
func originOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", config.Errorf("url", "parse %q: %v", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", config.Errorf("url", "%q must be absolute (scheme and host)", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// resolveSpawnURL resolves a handler-spawned URL against the
// originating endpoint so handlers can emit relative paths.
func resolveSpawnURL(origin, raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse spawned url %q: %w", raw, err)
	}
	if parsed.IsAbs() {
		return raw, nil
	}
	base, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}
	return base.ResolveReference(parsed).String(), nil
}

// spawnSink accumulates the next generation under a mutex.
type spawnSink struct {
	mu   sync.Mutex
	next []*Request
}

func newSpawnSink() *spawnSink {
	return &spawnSink{}
}

func (s *spawnSink) add(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = append(s.next, req)
}

func (s *spawnSink) drain() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.next
	s.next = nil
	return next
}

// addScheduled grows the progress total as a generation starts. The
// callback runs under the progress mutex so reports arrive in order.
func (c *Client) addScheduled(n int) {
	if c.progress == nil {
		return
	}
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.scheduled += n
	c.progress(c.done, c.scheduled)
}

// tickProgress marks one request terminal.
func (c *Client) tickProgress() {
	if c.progress == nil {
		return
	}
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.done++
	c.progress(c.done, c.scheduled)
}
