package pagination

import (
	"encoding/json"
	"testing"
)

var flatKeys = Keys{Start: "start", PerPage: "per_page", Total: "total"}

func decode(t *testing.T, raw string) any {
	t.Helper()

	var body any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return body
}

func TestNextStart(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		keys     Keys
		wantNext int
		wantOK   bool
	}{
		{
			name:     "first page has a follow-up",
			body:     `{"start": 0, "per_page": 10, "total": 25}`,
			keys:     flatKeys,
			wantNext: 10,
			wantOK:   true,
		},
		{
			name:   "last page yields nothing",
			body:   `{"start": 20, "per_page": 10, "total": 25}`,
			keys:   flatKeys,
			wantOK: false,
		},
		{
			name:   "exact boundary yields nothing",
			body:   `{"start": 15, "per_page": 10, "total": 25}`,
			keys:   flatKeys,
			wantOK: false,
		},
		{
			name:     "nested paths",
			body:     `{"meta": {"page": {"start": 10, "size": 10}}, "count": 40}`,
			keys:     Keys{Start: "meta.page.start", PerPage: "meta.page.size", Total: "count"},
			wantNext: 20,
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok, err := NextStart(decode(t, tt.body), tt.keys)
			if err != nil {
				t.Fatalf("NextStart() error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("NextStart() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && next != tt.wantNext {
				t.Errorf("NextStart() = %d, want %d", next, tt.wantNext)
			}
		})
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		keys Keys
	}{
		{
			name: "missing key",
			body: `{"start": 0, "per_page": 10}`,
			keys: flatKeys,
		},
		{
			name: "non-numeric value",
			body: `{"start": "zero", "per_page": 10, "total": 25}`,
			keys: flatKeys,
		},
		{
			name: "path through a non-object",
			body: `{"meta": [1, 2, 3], "per_page": 10, "total": 25}`,
			keys: Keys{Start: "meta.start", PerPage: "per_page", Total: "total"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Extract(decode(t, tt.body), tt.keys); err == nil {
				t.Error("Extract() expected error, got nil")
			}
		})
	}
}

func TestExtractAcceptsPlainInts(t *testing.T) {
	body := map[string]any{"start": 0, "per_page": 10, "total": 25}

	w, err := Extract(body, flatKeys)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if next, ok := w.Next(); !ok || next != 10 {
		t.Errorf("Next() = %d, %v, want 10, true", next, ok)
	}
}
