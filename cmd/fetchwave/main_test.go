package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fetchwave/fetchwave/pkg/config"
)

func TestParseRunFile(t *testing.T) {
	doc := `
export_path: results.json
metrics_listen: ":9090"

endpoints:
  - base_url: https://api.example.com
    limits: [20, 100]
    intervals: [1s, 1m]
    max_concurrent: 4
    credentials: [token-a, token-b]
    timeout: 5s
    show_progress: true
    retry:
      max_attempts: 5
      initial_backoff: 100ms
      max_backoff: 2s
      multiplier: 1.5

requests:
  - url: https://api.example.com/items
    payload:
      page: 1
  - method: POST
    url: https://api.example.com/items
    payload:
      name: widget
    timeout: 1s
`
	rf, err := parseRunFile([]byte(doc))
	if err != nil {
		t.Fatalf("parseRunFile failed: %v", err)
	}

	if rf.ExportPath != "results.json" {
		t.Errorf("export path = %q", rf.ExportPath)
	}
	if rf.MetricsListen != ":9090" {
		t.Errorf("metrics listen = %q", rf.MetricsListen)
	}
	if len(rf.Endpoints) != 1 || len(rf.Requests) != 2 {
		t.Fatalf("parsed %d endpoints, %d requests", len(rf.Endpoints), len(rf.Requests))
	}

	spec := rf.Endpoints[0]
	if spec.Timeout.std() != 5*time.Second {
		t.Errorf("timeout = %s", spec.Timeout.std())
	}
	if !rf.wantsProgress() {
		t.Error("wantsProgress = false, endpoint opted in")
	}
}

func TestParseRunFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "no requests", doc: `endpoints: []`},
		{name: "request without url", doc: "requests:\n  - method: GET"},
		{name: "endpoint without base_url", doc: "endpoints:\n  - max_concurrent: 2\nrequests:\n  - url: https://a.example.com/x"},
		{name: "bad duration", doc: "requests:\n  - url: https://a.example.com/x\n    timeout: fast"},
		{name: "not yaml", doc: `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseRunFile([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEndpointSpec_Conversion(t *testing.T) {
	spec := endpointSpec{
		BaseURL:       "https://api.example.com",
		Limits:        []int{20, 100},
		Intervals:     []duration{duration(time.Second), duration(time.Minute)},
		MaxConcurrent: 4,
		Credentials:   []string{"token-a"},
		Naming:        "file-name",
		OnAdvisory:    "raise",
	}

	cfg, err := spec.endpoint()
	if err != nil {
		t.Fatalf("endpoint conversion failed: %v", err)
	}

	if len(cfg.Rates) != 2 || cfg.Rates[1].Limit != 100 || cfg.Rates[1].Interval != time.Minute {
		t.Errorf("rates = %v", cfg.Rates)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("max concurrent = %d", cfg.MaxConcurrent)
	}
	if cfg.Naming != config.NamingFileName {
		t.Errorf("naming = %q", cfg.Naming)
	}
	if cfg.OnAdvisory != config.StrategyRaise {
		t.Errorf("advisory strategy = %q", cfg.OnAdvisory)
	}

	// Unset fields keep defaults.
	if cfg.Timeout != config.Default().Timeout {
		t.Errorf("timeout = %s, want default", cfg.Timeout)
	}
	if !cfg.FollowRedirects {
		t.Error("follow redirects default lost")
	}
}

func TestEndpointSpec_InvalidPolicy(t *testing.T) {
	spec := endpointSpec{
		BaseURL: "https://api.example.com",
		Naming:  "by-vibes",
	}
	if _, err := spec.endpoint(); err == nil {
		t.Error("expected validation error for unknown naming strategy")
	}
}

func TestRunFile_Batch(t *testing.T) {
	rf := &runFile{
		Requests: []requestSpec{
			{URL: "https://api.example.com/a"},
			{Method: "POST", URL: "https://api.example.com/b", Timeout: duration(time.Second)},
		},
	}

	methods, urls, payloads, settings := rf.batch()

	if methods[0] != "GET" || methods[1] != "POST" {
		t.Errorf("methods = %v", methods)
	}
	if urls[0] != "https://api.example.com/a" {
		t.Errorf("urls = %v", urls)
	}
	if payloads[0] != nil {
		t.Errorf("payloads[0] = %v, want nil", payloads[0])
	}
	if settings[0] != nil {
		t.Error("settings[0] should be nil without overrides")
	}
	if settings[1] == nil || settings[1].Timeout != time.Second {
		t.Errorf("settings[1] = %+v", settings[1])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}

	// Plain counters export at zero, so this holds before any request.
	if !strings.Contains(bodyStr, "fetchwave_dedup_dropped_total") {
		t.Error("Expected engine collectors to be registered")
	}
}
