package engine

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/fetchwave/fetchwave/pkg/download"
)

// Kind classifies a response payload or a handler-produced item.
type Kind string

const (
	// KindText is a text/plain response body.
	KindText Kind = "text"

	// KindJSON is a decoded application/json response body.
	KindJSON Kind = "json"

	// KindFile is a response streamed to disk, or passed through as a
	// remote URL when no download directory is configured.
	KindFile Kind = "file"

	// KindRequest is a handler-produced follow-up request, scheduled
	// into the next generation.
	KindRequest Kind = "request"
)

// classifyKind maps a declared content type to a payload kind. Only the
// media type is considered; parameters like charset are ignored.
func classifyKind(contentType string) Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "text/plain":
		return KindText
	case "application/json":
		return KindJSON
	default:
		return KindFile
	}
}

// Envelope wraps a completed response for the response handler. Exactly
// one of Text, JSON, or File carries the payload, selected by Kind.
type Envelope struct {
	// Method and URL identify the originating request after payload
	// expansion.
	Method string
	URL    string

	// Payload is the originating request's payload, handy for building
	// the next page of a paginated sequence.
	Payload map[string]any

	StatusCode  int
	ContentType string
	Header      http.Header

	Kind Kind

	// Text holds the body for KindText.
	Text string

	// JSON holds the decoded body for KindJSON.
	JSON any

	// File holds the download record for KindFile. An empty Path means
	// the body was not fetched locally and URL points at the remote
	// content.
	File *download.Result

	// Body is the raw response body for KindText and KindJSON. Nil for
	// KindFile, whose body is streamed and never buffered.
	Body []byte

	// Duration covers the network call including retries. Zero when
	// served from cache.
	Duration time.Duration

	// FromCache marks envelopes rebuilt from the response cache.
	FromCache bool

	// Generation is the breadth-first wave this request ran in,
	// starting at 0 for the top-level batch.
	Generation int
}

// Item is a handler product. The engine acts only on KindRequest items,
// scheduling them into the next generation; other kinds are carried for
// caller-side consumers such as exporters.
type Item struct {
	Kind Kind

	// Method, URL, Payload, and Settings describe the follow-up request
	// for KindRequest. Relative URLs resolve against the originating
	// request's scheme and host.
	Method   string
	URL      string
	Payload  map[string]any
	Settings *Settings

	// Value carries the payload for data kinds.
	Value any
}

// NewRequestItem builds a KindRequest item.
func NewRequestItem(method, url string, payload map[string]any, settings *Settings) Item {
	return Item{
		Kind:     KindRequest,
		Method:   method,
		URL:      url,
		Payload:  payload,
		Settings: settings,
	}
}
