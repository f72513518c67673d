// Package export collects decoded responses and writes them out as one
// JSON document grouped by result kind.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/fetchwave/fetchwave/pkg/config"
	"github.com/fetchwave/fetchwave/pkg/download"
	"github.com/fetchwave/fetchwave/pkg/engine"
	"github.com/fetchwave/fetchwave/pkg/logging"
)

// Prometheus metrics for result exporting.
var (
	recordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchwave_export_recorded_total",
		Help: "Results recorded for export by section",
	}, []string{"section"})

	writesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchwave_export_writes_total",
		Help: "Export documents written to disk",
	})
)

// Document is the written artifact. Sections hold results in completion
// order, which is not request order.
type Document struct {
	JSON  []any              `json:"json"`
	Text  []string           `json:"text"`
	Files []*download.Result `json:"files"`
}

// Recorder accumulates decoded results. It satisfies engine.Handler and
// can wrap an inner handler so recording composes with handlers that
// spawn follow-up requests.
type Recorder struct {
	mu  sync.Mutex
	doc Document

	path       string
	inner      engine.Handler
	onAdvisory config.ErrorStrategy
	logger     zerolog.Logger
}

// Options configure a Recorder.
type Options struct {
	// Path is the output file Flush writes.
	Path string

	// Inner, when set, runs after recording; its spawned requests and
	// error are passed through unchanged.
	Inner engine.Handler

	// OnAdvisory routes the overwrite advisory. Defaults to StrategyLog.
	OnAdvisory config.ErrorStrategy
}

// NewRecorder builds an empty Recorder.
func NewRecorder(opts Options) *Recorder {
	strategy := opts.OnAdvisory
	if strategy == "" {
		strategy = config.StrategyLog
	}
	return &Recorder{
		doc: Document{
			JSON:  []any{},
			Text:  []string{},
			Files: []*download.Result{},
		},
		path:       opts.Path,
		inner:      opts.Inner,
		onAdvisory: strategy,
		logger:     logging.NewLogger("export"),
	}
}

// HandleResponse records the envelope by kind, then delegates to the
// wrapped handler when one is configured.
func (r *Recorder) HandleResponse(ctx context.Context, env *engine.Envelope) ([]engine.Item, error) {
	r.mu.Lock()
	switch env.Kind {
	case engine.KindJSON:
		r.doc.JSON = append(r.doc.JSON, env.JSON)
		recordedTotal.WithLabelValues("json").Inc()
	case engine.KindText:
		r.doc.Text = append(r.doc.Text, env.Text)
		recordedTotal.WithLabelValues("text").Inc()
	case engine.KindFile:
		r.doc.Files = append(r.doc.Files, env.File)
		recordedTotal.WithLabelValues("files").Inc()
	}
	r.mu.Unlock()

	if r.inner == nil {
		return nil, nil
	}
	return r.inner.HandleResponse(ctx, env)
}

// Document returns a copy of everything recorded so far.
func (r *Recorder) Document() Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Document{
		JSON:  make([]any, len(r.doc.JSON)),
		Text:  make([]string, len(r.doc.Text)),
		Files: make([]*download.Result, len(r.doc.Files)),
	}
	copy(out.JSON, r.doc.JSON)
	copy(out.Text, r.doc.Text)
	copy(out.Files, r.doc.Files)
	return out
}

// Len reports how many results have been recorded across all sections.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.doc.JSON) + len(r.doc.Text) + len(r.doc.Files)
}

// Flush writes the document to the path given at construction.
func (r *Recorder) Flush() error {
	if r.path == "" {
		return config.Errorf("export_path", "no output path configured")
	}
	return r.Write(r.path)
}

// Write marshals the document to path, creating parent directories as
// needed. An existing file is overwritten after an advisory.
func (r *Recorder) Write(path string) error {
	doc := r.Document()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		adv := config.Advisef(config.AdvisoryOverwrite, "overwriting existing export %s", path)
		if err := config.Advise(r.logger, r.onAdvisory, adv); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export document: %w", err)
	}

	writesTotal.Inc()
	r.logger.Info().
		Str("path", path).
		Int("json", len(doc.JSON)).
		Int("text", len(doc.Text)).
		Int("files", len(doc.Files)).
		Msg("Export written")

	return nil
}
