package pagination

import (
	"fmt"
	"strings"
)

// Keys names the paging fields inside a decoded body, using dot
// notation for nested objects.
type Keys struct {
	Start   string
	PerPage string
	Total   string
}

// Window is one page position extracted from a response body.
type Window struct {
	Start   int
	PerPage int
	Total   int
}

// Next returns the start index of the following page. The second return
// is false when the current window already covers the total.
func (w Window) Next() (int, bool) {
	next := w.Start + w.PerPage
	if next < w.Total {
		return next, true
	}
	return 0, false
}

// Extract reads the paging window out of a decoded JSON body.
func Extract(body any, keys Keys) (Window, error) {
	start, err := intAt(body, keys.Start)
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	perPage, err := intAt(body, keys.PerPage)
	if err != nil {
		return Window{}, fmt.Errorf("per_page: %w", err)
	}
	total, err := intAt(body, keys.Total)
	if err != nil {
		return Window{}, fmt.Errorf("total: %w", err)
	}

	return Window{Start: start, PerPage: perPage, Total: total}, nil
}

// NextStart extracts the window and computes the following page's start
// index in one step.
func NextStart(body any, keys Keys) (int, bool, error) {
	w, err := Extract(body, keys)
	if err != nil {
		return 0, false, err
	}
	next, ok := w.Next()
	return next, ok, nil
}

// lookup walks a decoded JSON structure along a dotted path.
func lookup(body any, path string) (any, error) {
	current := body
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q: %q is not an object", path, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
	}
	return current, nil
}

// intAt reads an integer field at a dotted path. JSON numbers decode as
// float64, so both int and float64 are accepted.
func intAt(body any, path string) (int, error) {
	value, err := lookup(body, path)
	if err != nil {
		return 0, err
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("path %q: value %v is not a number", path, value)
	}
}
