package engine

import (
	"net/http"
	"strings"

	"github.com/fetchwave/fetchwave/pkg/config"
)

// buildRequests expands broadcastable slice arguments into concrete
// request descriptors. A length-1 slice (or a nil payloads/settings
// slice) repeats against the longest input; any other length must equal
// the common maximum.
func buildRequests(methods, urls []string, payloads []map[string]any, settings []*Settings) ([]*Request, error) {
	if len(urls) == 0 {
		return nil, config.Errorf("urls", "at least one url is required")
	}
	if len(methods) == 0 {
		return nil, config.Errorf("methods", "at least one method is required")
	}

	total := len(urls)
	if len(methods) > total {
		total = len(methods)
	}
	if len(payloads) > total {
		total = len(payloads)
	}
	if len(settings) > total {
		total = len(settings)
	}

	if err := checkLength("methods", len(methods), total); err != nil {
		return nil, err
	}
	if err := checkLength("urls", len(urls), total); err != nil {
		return nil, err
	}
	if len(payloads) > 0 {
		if err := checkLength("payloads", len(payloads), total); err != nil {
			return nil, err
		}
	}
	if len(settings) > 0 {
		if err := checkLength("settings", len(settings), total); err != nil {
			return nil, err
		}
	}

	reqs := make([]*Request, 0, total)
	for i := 0; i < total; i++ {
		method, err := normalizeMethod(pickAt(methods, i))
		if err != nil {
			return nil, err
		}
		req := &Request{
			Method: method,
			URL:    pickAt(urls, i),
		}
		if len(payloads) > 0 {
			req.Payload = pickAt(payloads, i)
		}
		if len(settings) > 0 {
			req.Settings = pickAt(settings, i)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// checkLength enforces the broadcast rule: length 1 repeats, anything
// else must match the common maximum.
func checkLength(field string, n, total int) error {
	if n == 1 || n == total {
		return nil
	}
	return config.Errorf(field, "length %d does not broadcast against %d", n, total)
}

// pickAt indexes a broadcastable slice, repeating a single element.
func pickAt[T any](vals []T, i int) T {
	if len(vals) == 1 {
		return vals[0]
	}
	return vals[i]
}

// normalizeMethod uppercases and validates the HTTP method. Only GET
// and POST are supported.
func normalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case http.MethodGet, http.MethodPost:
		return m, nil
	default:
		return "", config.Errorf("method", "unsupported method %q (GET and POST only)", method)
	}
}
