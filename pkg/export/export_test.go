package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fetchwave/fetchwave/pkg/config"
	"github.com/fetchwave/fetchwave/pkg/download"
	"github.com/fetchwave/fetchwave/pkg/engine"
)

func TestRecorder_RecordsByKind(t *testing.T) {
	rec := NewRecorder(Options{})

	envelopes := []*engine.Envelope{
		{Kind: engine.KindJSON, JSON: map[string]any{"id": float64(1)}},
		{Kind: engine.KindJSON, JSON: map[string]any{"id": float64(2)}},
		{Kind: engine.KindText, Text: "hello"},
		{Kind: engine.KindFile, File: &download.Result{URL: "https://api.example.com/blob", Path: "/tmp/blob.bin", Checksum: "abc"}},
	}
	for _, env := range envelopes {
		if _, err := rec.HandleResponse(context.Background(), env); err != nil {
			t.Fatalf("HandleResponse failed: %v", err)
		}
	}

	doc := rec.Document()
	if len(doc.JSON) != 2 {
		t.Errorf("json section = %d entries, want 2", len(doc.JSON))
	}
	if len(doc.Text) != 1 || doc.Text[0] != "hello" {
		t.Errorf("text section = %v", doc.Text)
	}
	if len(doc.Files) != 1 || doc.Files[0].Checksum != "abc" {
		t.Errorf("files section = %v", doc.Files)
	}
	if rec.Len() != 4 {
		t.Errorf("Len = %d, want 4", rec.Len())
	}
}

func TestRecorder_WrapsInnerHandler(t *testing.T) {
	inner := engine.HandlerFunc(func(ctx context.Context, env *engine.Envelope) ([]engine.Item, error) {
		return []engine.Item{engine.NewRequestItem("GET", "/next", nil, nil)}, nil
	})
	rec := NewRecorder(Options{Inner: inner})

	env := &engine.Envelope{Kind: engine.KindJSON, JSON: map[string]any{"page": float64(1)}}
	items, err := rec.HandleResponse(context.Background(), env)
	if err != nil {
		t.Fatalf("HandleResponse failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("spawned items = %d, want 1 (inner handler pass-through)", len(items))
	}
	if rec.Len() != 1 {
		t.Errorf("Len = %d, want 1 (recorded before delegation)", rec.Len())
	}
}

func TestRecorder_WriteCreatesParents(t *testing.T) {
	rec := NewRecorder(Options{})
	rec.HandleResponse(context.Background(), &engine.Envelope{Kind: engine.KindText, Text: "only entry"})

	path := filepath.Join(t.TempDir(), "nested", "out", "results.json")
	if err := rec.Write(path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	text, ok := doc["text"].([]any)
	if !ok || len(text) != 1 || text[0] != "only entry" {
		t.Errorf("text section = %v", doc["text"])
	}

	// Empty sections serialize as [], not null.
	if doc["json"] == nil || doc["files"] == nil {
		t.Errorf("empty sections must stay arrays: json=%v files=%v", doc["json"], doc["files"])
	}
}

func TestRecorder_OverwriteAdvisory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	raising := NewRecorder(Options{Path: path, OnAdvisory: config.StrategyRaise})
	if err := raising.Flush(); err != nil {
		t.Fatalf("first Flush failed: %v", err)
	}
	err := raising.Flush()
	if err == nil {
		t.Fatal("expected advisory error on overwrite")
	}
	if !errors.Is(err, config.ErrAdvisory) {
		t.Errorf("error %v does not wrap ErrAdvisory", err)
	}

	// The default strategy logs and overwrites.
	relaxed := NewRecorder(Options{Path: path})
	if err := relaxed.Flush(); err != nil {
		t.Errorf("Flush with StrategyLog failed: %v", err)
	}
}

func TestRecorder_FlushWithoutPath(t *testing.T) {
	rec := NewRecorder(Options{})
	if err := rec.Flush(); !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("Flush without path = %v, want ErrConfiguration", err)
	}
}
