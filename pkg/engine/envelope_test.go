package engine

import "testing"

func TestClassifyKind(t *testing.T) {
	tests := []struct {
		contentType string
		want        Kind
	}{
		{contentType: "text/plain", want: KindText},
		{contentType: "text/plain; charset=utf-8", want: KindText},
		{contentType: "application/json", want: KindJSON},
		{contentType: "application/json; charset=utf-8", want: KindJSON},
		{contentType: "APPLICATION/JSON", want: KindJSON},
		{contentType: "image/png", want: KindFile},
		{contentType: "application/octet-stream", want: KindFile},
		{contentType: "text/html", want: KindFile},
		{contentType: "", want: KindFile},
		{contentType: "garbage;;;", want: KindFile},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := classifyKind(tt.contentType); got != tt.want {
				t.Errorf("classifyKind(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestNewRequestItem(t *testing.T) {
	payload := map[string]any{"start": 10}
	item := NewRequestItem("GET", "/items", payload, &Settings{DownloadDir: "/tmp/x"})

	if item.Kind != KindRequest {
		t.Errorf("Kind = %v, want KindRequest", item.Kind)
	}
	if item.Method != "GET" || item.URL != "/items" {
		t.Errorf("item = %s %s, want GET /items", item.Method, item.URL)
	}
	if item.Payload["start"] != 10 {
		t.Errorf("payload not carried: %v", item.Payload)
	}
	if item.Settings == nil || item.Settings.DownloadDir != "/tmp/x" {
		t.Errorf("settings not carried: %+v", item.Settings)
	}
}
