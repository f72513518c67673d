package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fetchwave/fetchwave/pkg/config"
)

// Settings carries per-request overrides layered over the endpoint
// configuration. The zero value changes nothing.
type Settings struct {
	// Timeout overrides the endpoint timeout when positive.
	Timeout time.Duration

	// Headers are merged over the endpoint's connection headers.
	Headers map[string]string

	// DownloadDir overrides the endpoint download directory.
	DownloadDir string

	// Naming overrides the endpoint naming strategy when non-empty.
	Naming config.NamingStrategy
}

// Request describes one logical request before admission. Top-level
// calls and handler-spawned items both reduce to this form.
type Request struct {
	Method   string
	URL      string
	Payload  map[string]any
	Settings *Settings
}

// Plan is the mutable pre-flight view handed to the customization and
// lifecycle hooks after a credential has been checked out.
type Plan struct {
	Method  string
	URL     string
	Payload map[string]any

	// Header holds per-request headers. Hooks may add or override
	// entries; connection-level headers are already applied.
	Header http.Header

	// Credential is the checked-out rotation token. Hooks typically use
	// it to set authorization headers.
	Credential string

	// Generation is the wave this request belongs to.
	Generation int

	settings *Settings
}

// Settings returns the per-request overrides, never nil.
func (p *Plan) Settings() *Settings {
	if p.settings == nil {
		return &Settings{}
	}
	return p.settings
}

// expandURL folds a GET payload into the URL's query string. POST
// payloads travel as the request body and leave the URL untouched.
// The expanded URL is the request's identity for dedup and caching.
func expandURL(method, rawURL string, payload map[string]any) (string, error) {
	if method != http.MethodGet || len(payload) == 0 {
		return rawURL, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	q := parsed.Query()
	for k, v := range payload {
		q.Set(k, fmt.Sprint(v))
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// buildHTTPRequest encodes a plan into an *http.Request. The plan URL
// already carries any GET query expansion; POST payloads become a JSON
// body.
func buildHTTPRequest(ctx context.Context, plan *Plan) (*http.Request, error) {
	if plan.Method != http.MethodPost {
		return http.NewRequestWithContext(ctx, plan.Method, plan.URL, nil)
	}

	var body io.Reader
	if len(plan.Payload) > 0 {
		data, err := json.Marshal(plan.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, plan.URL, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
