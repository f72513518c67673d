package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fetchwave/fetchwave/pkg/config"
	"github.com/fetchwave/fetchwave/pkg/engine"
)

// runFile is the YAML document the run command executes.
type runFile struct {
	// MetricsListen exposes Prometheus metrics on this address while the
	// batch runs, e.g. ":9090". Empty disables the listener.
	MetricsListen string `yaml:"metrics_listen"`

	// ExportPath collects decoded results into a JSON document at this
	// path. Empty disables exporting.
	ExportPath string `yaml:"export_path"`

	Endpoints []endpointSpec `yaml:"endpoints"`
	Requests  []requestSpec  `yaml:"requests"`
}

// endpointSpec is one endpoint registration. Unset fields keep the
// engine defaults.
type endpointSpec struct {
	BaseURL string `yaml:"base_url"`

	// Limits and Intervals pair up into rate constraints; a single
	// element broadcasts against the other list.
	Limits    []int      `yaml:"limits"`
	Intervals []duration `yaml:"intervals"`

	MaxConcurrent int      `yaml:"max_concurrent"`
	Credentials   []string `yaml:"credentials"`
	Timeout       duration `yaml:"timeout"`

	FollowRedirects *bool             `yaml:"follow_redirects"`
	MaxRedirects    *int              `yaml:"max_redirects"`
	Headers         map[string]string `yaml:"headers"`
	ProxyURL        string            `yaml:"proxy_url"`
	InsecureSkipTLS bool              `yaml:"insecure_skip_tls"`

	DownloadDir string `yaml:"download_dir"`
	Naming      string `yaml:"naming"`

	OnAdvisory   string     `yaml:"on_advisory"`
	Retry        *retrySpec `yaml:"retry"`
	ShowProgress bool       `yaml:"show_progress"`
}

type retrySpec struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier"`
}

// requestSpec is one request of the batch.
type requestSpec struct {
	Method      string            `yaml:"method"`
	URL         string            `yaml:"url"`
	Payload     map[string]any    `yaml:"payload"`
	Timeout     duration          `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	DownloadDir string            `yaml:"download_dir"`
	Naming      string            `yaml:"naming"`
}

// duration accepts YAML duration strings like "500ms" or "10s".
type duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for duration.
func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = duration(parsed)
	return nil
}

func (d duration) std() time.Duration { return time.Duration(d) }

// loadRunFile reads and validates a run file.
func loadRunFile(path string) (*runFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	return parseRunFile(data)
}

func parseRunFile(data []byte) (*runFile, error) {
	var rf runFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse run file: %w", err)
	}

	if len(rf.Requests) == 0 {
		return nil, fmt.Errorf("run file declares no requests")
	}
	for i, req := range rf.Requests {
		if req.URL == "" {
			return nil, fmt.Errorf("request %d: url is required", i)
		}
	}
	for i, spec := range rf.Endpoints {
		if spec.BaseURL == "" {
			return nil, fmt.Errorf("endpoint %d: base_url is required", i)
		}
	}

	return &rf, nil
}

// endpoint converts the spec into a full policy, layering set fields
// over the defaults.
func (s endpointSpec) endpoint() (config.Endpoint, error) {
	cfg := config.Default()

	if len(s.Limits) > 0 || len(s.Intervals) > 0 {
		intervals := make([]time.Duration, len(s.Intervals))
		for i, d := range s.Intervals {
			intervals[i] = d.std()
		}
		rates, err := config.PairRates(s.Limits, intervals)
		if err != nil {
			return config.Endpoint{}, fmt.Errorf("endpoint %s: %w", s.BaseURL, err)
		}
		cfg.Rates = rates
	}
	if s.MaxConcurrent > 0 {
		cfg.MaxConcurrent = s.MaxConcurrent
	}
	if len(s.Credentials) > 0 {
		cfg.Credentials = s.Credentials
	}
	if s.Timeout > 0 {
		cfg.Timeout = s.Timeout.std()
	}
	if s.FollowRedirects != nil {
		cfg.FollowRedirects = *s.FollowRedirects
	}
	if s.MaxRedirects != nil {
		cfg.MaxRedirects = *s.MaxRedirects
	}
	if len(s.Headers) > 0 {
		cfg.Connection.Headers = s.Headers
	}
	if s.ProxyURL != "" {
		cfg.Connection.ProxyURL = s.ProxyURL
	}
	if s.InsecureSkipTLS {
		cfg.Connection.InsecureSkipTLS = true
	}
	if s.DownloadDir != "" {
		cfg.DownloadDir = s.DownloadDir
	}
	if s.Naming != "" {
		cfg.Naming = config.NamingStrategy(s.Naming)
	}
	if s.OnAdvisory != "" {
		cfg.OnAdvisory = config.ErrorStrategy(s.OnAdvisory)
	}
	if s.Retry != nil {
		cfg.Retry = config.Retry{
			MaxAttempts:    s.Retry.MaxAttempts,
			InitialBackoff: s.Retry.InitialBackoff.std(),
			MaxBackoff:     s.Retry.MaxBackoff.std(),
			Multiplier:     s.Retry.Multiplier,
		}
	}
	cfg.ShowProgress = s.ShowProgress

	if err := cfg.Validate(); err != nil {
		return config.Endpoint{}, fmt.Errorf("endpoint %s: %w", s.BaseURL, err)
	}
	return cfg, nil
}

// batch flattens the request specs into the engine's parallel-list call
// shape.
func (rf *runFile) batch() (methods, urls []string, payloads []map[string]any, settings []*engine.Settings) {
	n := len(rf.Requests)
	methods = make([]string, n)
	urls = make([]string, n)
	payloads = make([]map[string]any, n)
	settings = make([]*engine.Settings, n)

	for i, req := range rf.Requests {
		method := req.Method
		if method == "" {
			method = "GET"
		}
		methods[i] = method
		urls[i] = req.URL
		payloads[i] = req.Payload

		if req.Timeout > 0 || len(req.Headers) > 0 || req.DownloadDir != "" || req.Naming != "" {
			settings[i] = &engine.Settings{
				Timeout:     req.Timeout.std(),
				Headers:     req.Headers,
				DownloadDir: req.DownloadDir,
				Naming:      config.NamingStrategy(req.Naming),
			}
		}
	}
	return methods, urls, payloads, settings
}

// wantsProgress reports whether any endpoint opted into progress
// display.
func (rf *runFile) wantsProgress() bool {
	for _, spec := range rf.Endpoints {
		if spec.ShowProgress {
			return true
		}
	}
	return false
}
