package engine

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetchwave/fetchwave/pkg/config"
	"github.com/fetchwave/fetchwave/pkg/ratelimit"
)

// endpointState bundles everything one endpoint (scheme+host) needs:
// its configuration, the credential gate, and a shared connection pool.
// States live for the client lifetime; pools close at teardown.
type endpointState struct {
	origin string
	cfg    config.Endpoint
	gate   *ratelimit.Gate
	pool   *http.Client
	logger zerolog.Logger
}

// newEndpointState validates cfg and builds the state. The transport
// argument, when non-nil, replaces the default pool transport; tests
// use it to route requests into a mock server.
func newEndpointState(origin string, cfg config.Endpoint, transport http.RoundTripper, logger zerolog.Logger) (*endpointState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	spacing := ratelimit.Spacing(cfg.Rates)
	gate := ratelimit.NewGate(cfg.Credentials, cfg.MaxConcurrent, spacing, logger)

	rt, err := buildTransport(cfg.Connection, transport)
	if err != nil {
		return nil, err
	}

	pool := &http.Client{
		Transport:     rt,
		CheckRedirect: redirectPolicy(cfg),
	}

	logger.Debug().
		Str("endpoint", origin).
		Dur("spacing", spacing).
		Int("max_concurrent", cfg.MaxConcurrent).
		Int("credentials", len(cfg.Credentials)).
		Msg("Endpoint registered")

	return &endpointState{
		origin: origin,
		cfg:    cfg,
		gate:   gate,
		pool:   pool,
		logger: logger,
	}, nil
}

// buildTransport derives the pool transport from the connection
// settings. An injected override wins so tests can intercept every
// endpoint with one RoundTripper.
func buildTransport(conn config.Connection, override http.RoundTripper) (http.RoundTripper, error) {
	if override != nil {
		return override, nil
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport, nil
	}
	t := base.Clone()

	if conn.ProxyURL != "" {
		proxyURL, err := url.Parse(conn.ProxyURL)
		if err != nil {
			return nil, config.Errorf("proxy_url", "parse %q: %v", conn.ProxyURL, err)
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}

	if conn.InsecureSkipTLS {
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{}
		}
		t.TLSClientConfig.InsecureSkipVerify = true
	}

	return t, nil
}

// redirectPolicy translates the endpoint redirect settings into a
// CheckRedirect function.
func redirectPolicy(cfg config.Endpoint) func(req *http.Request, via []*http.Request) error {
	if !cfg.FollowRedirects {
		return func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	max := cfg.MaxRedirects
	if max <= 0 {
		return nil
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// decorate applies connection-level headers, basic auth, and cookies to
// an outgoing request, then layers the plan's per-request headers on
// top.
func (s *endpointState) decorate(req *http.Request, plan *Plan) {
	for k, v := range s.cfg.Connection.Headers {
		req.Header.Set(k, v)
	}
	if auth := s.cfg.Connection.BasicAuth; auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	for _, c := range s.cfg.Connection.Cookies {
		req.AddCookie(c)
	}
	for k, vals := range plan.Header {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}

// timeout resolves the effective per-request timeout.
func (s *endpointState) timeout(settings *Settings) time.Duration {
	if settings != nil && settings.Timeout > 0 {
		return settings.Timeout
	}
	return s.cfg.Timeout
}

// close releases the endpoint's idle connections.
func (s *endpointState) close() {
	s.pool.CloseIdleConnections()
}
