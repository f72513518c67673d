// Package testutil provides testing utilities for the request engine.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Response defines the behavior of a mock API endpoint.
type Response struct {
	StatusCode  int
	Body        string
	ContentType string
	Headers     map[string]string
	Delay       time.Duration
}

// RequestRecord captures one request seen by the mock server.
type RequestRecord struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// MockAPI is a configurable mock HTTP API for engine tests. It tracks
// request counts, the concurrent in-flight high-water mark, and a full
// record of every request.
type MockAPI struct {
	server *httptest.Server

	mu        sync.RWMutex
	handlers  map[string]http.HandlerFunc
	failures  map[string]int
	records   []RequestRecord
	byPath    map[string]int
	inflight  int
	highWater int
}

// NewMockAPI creates a mock API server. Paths without a configured
// response answer 200 with a small JSON body.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		failures: make(map[string]int),
		byPath:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.track(r)
		defer mock.untrack()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	}))

	return mock
}

// track records the request and bumps the in-flight high-water mark.
// The body is consumed here; canned handlers never read it.
func (m *MockAPI) track(r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(r.Body, 1<<16))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, RequestRecord{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	m.byPath[r.URL.Path]++
	m.inflight++
	if m.inflight > m.highWater {
		m.highWater = m.inflight
	}
}

func (m *MockAPI) untrack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking state but keeps configured handlers.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.byPath = make(map[string]int)
	m.failures = make(map[string]int)
	m.inflight = 0
	m.highWater = 0
}

// SetHandler sets a custom handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockAPI) SetResponse(path string, resp Response) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetFlaky configures a path that fails with failStatus for the first
// failCount requests, then serves the success response.
func (m *MockAPI) SetFlaky(path string, failCount, failStatus int, success Response) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.failures[path]++
		failing := m.failures[path] <= failCount
		m.mu.Unlock()

		if failing {
			w.WriteHeader(failStatus)
			return
		}
		if success.ContentType != "" {
			w.Header().Set("Content-Type", success.ContentType)
		}
		status := success.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if success.Body != "" {
			w.Write([]byte(success.Body))
		}
	})
}

// RequestCount returns the total number of requests seen.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// PathCount returns the number of requests seen for one path.
func (m *MockAPI) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byPath[path]
}

// HighWater returns the maximum number of concurrently in-flight
// requests observed.
func (m *MockAPI) HighWater() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.highWater
}

// Records returns a copy of every request record.
func (m *MockAPI) Records() []RequestRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RequestRecord, len(m.records))
	copy(out, m.records)
	return out
}

// HeaderValues tallies the values of one request header across all
// records. Requests without the header are not counted.
func (m *MockAPI) HeaderValues(name string) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int)
	for _, rec := range m.records {
		if v := rec.Header.Get(name); v != "" {
			out[v]++
		}
	}
	return out
}

// NewJSONResponse creates a 200 response with a JSON body.
func NewJSONResponse(body string) Response {
	return Response{
		StatusCode:  http.StatusOK,
		Body:        body,
		ContentType: "application/json",
	}
}

// NewTextResponse creates a 200 response with a plain-text body.
func NewTextResponse(body string) Response {
	return Response{
		StatusCode:  http.StatusOK,
		Body:        body,
		ContentType: "text/plain",
	}
}

// NewFileResponse creates a 200 response served under an arbitrary
// content type, classified as a file by the engine.
func NewFileResponse(contentType, body string) Response {
	return Response{
		StatusCode:  http.StatusOK,
		Body:        body,
		ContentType: contentType,
	}
}
