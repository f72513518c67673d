package engine

import (
	"errors"
	"testing"

	"github.com/fetchwave/fetchwave/pkg/config"
)

func TestBuildRequests_Broadcast(t *testing.T) {
	tests := []struct {
		name     string
		methods  []string
		urls     []string
		payloads []map[string]any
		settings []*Settings
		wantLen  int
		wantErr  bool
	}{
		{
			name:    "single method single url",
			methods: []string{"GET"},
			urls:    []string{"https://api.example.com/a"},
			wantLen: 1,
		},
		{
			name:    "method broadcasts across urls",
			methods: []string{"GET"},
			urls:    []string{"https://api.example.com/a", "https://api.example.com/b", "https://api.example.com/c"},
			wantLen: 3,
		},
		{
			name:     "url broadcasts across payloads",
			methods:  []string{"POST"},
			urls:     []string{"https://api.example.com/a"},
			payloads: []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}},
			wantLen:  3,
		},
		{
			name:    "parallel methods and urls",
			methods: []string{"GET", "POST"},
			urls:    []string{"https://api.example.com/a", "https://api.example.com/b"},
			wantLen: 2,
		},
		{
			name:     "single payload broadcasts",
			methods:  []string{"GET"},
			urls:     []string{"https://api.example.com/a", "https://api.example.com/b"},
			payloads: []map[string]any{{"q": "x"}},
			wantLen:  2,
		},
		{
			name:     "settings broadcast",
			methods:  []string{"GET"},
			urls:     []string{"https://api.example.com/a", "https://api.example.com/b"},
			settings: []*Settings{{DownloadDir: "/tmp/dl"}},
			wantLen:  2,
		},
		{
			name:    "mismatched methods and urls",
			methods: []string{"GET", "POST"},
			urls:    []string{"https://api.example.com/a", "https://api.example.com/b", "https://api.example.com/c"},
			wantErr: true,
		},
		{
			name:     "mismatched payloads",
			methods:  []string{"GET"},
			urls:     []string{"https://api.example.com/a", "https://api.example.com/b", "https://api.example.com/c"},
			payloads: []map[string]any{{"id": 1}, {"id": 2}},
			wantErr:  true,
		},
		{
			name:    "no urls",
			methods: []string{"GET"},
			urls:    nil,
			wantErr: true,
		},
		{
			name:    "no methods",
			methods: nil,
			urls:    []string{"https://api.example.com/a"},
			wantErr: true,
		},
		{
			name:    "unsupported method",
			methods: []string{"DELETE"},
			urls:    []string{"https://api.example.com/a"},
			wantErr: true,
		},
		{
			name:    "lowercase method accepted",
			methods: []string{"get"},
			urls:    []string{"https://api.example.com/a"},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, err := buildRequests(tt.methods, tt.urls, tt.payloads, tt.settings)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, config.ErrConfiguration) {
					t.Errorf("error %v does not wrap ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildRequests failed: %v", err)
			}
			if len(reqs) != tt.wantLen {
				t.Errorf("got %d requests, want %d", len(reqs), tt.wantLen)
			}
		})
	}
}

func TestBuildRequests_BroadcastValues(t *testing.T) {
	reqs, err := buildRequests(
		[]string{"post"},
		[]string{"https://api.example.com/items"},
		[]map[string]any{{"id": 1}, {"id": 2}},
		nil,
	)
	if err != nil {
		t.Fatalf("buildRequests failed: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("got %d requests, want 2", len(reqs))
	}
	for i, req := range reqs {
		if req.Method != "POST" {
			t.Errorf("request %d method = %q, want POST", i, req.Method)
		}
		if req.URL != "https://api.example.com/items" {
			t.Errorf("request %d url = %q", i, req.URL)
		}
		if req.Payload["id"] != i+1 {
			t.Errorf("request %d payload id = %v, want %d", i, req.Payload["id"], i+1)
		}
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "GET", want: "GET"},
		{in: "post", want: "POST"},
		{in: " get ", want: "GET"},
		{in: "PUT", wantErr: true},
		{in: "DELETE", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeMethod(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("normalizeMethod(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeMethod(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("normalizeMethod(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
