package cache

import (
	"net/http"
	"time"
)

// Entry is a cached response body together with the metadata the
// engine needs to rebuild a response envelope without a network call.
type Entry struct {
	// Body is the raw response body.
	Body []byte `json:"body"`

	// ContentType is the response Content-Type header value.
	ContentType string `json:"content_type"`

	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// FetchedAt is when the response was fetched from the origin.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewEntry builds an Entry from a response body and headers. The
// Expires header is honored when present and parseable; otherwise the
// entry expires after defaultTTL.
func NewEntry(body []byte, contentType string, statusCode int, headers http.Header, defaultTTL time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Body:        body,
		ContentType: contentType,
		StatusCode:  statusCode,
		Expires:     parseExpires(headers, now, defaultTTL),
		FetchedAt:   now,
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration. Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// parseExpires reads the Expires header, falling back to now+defaultTTL
// when the header is absent or malformed.
func parseExpires(headers http.Header, now time.Time, defaultTTL time.Duration) time.Time {
	if headers != nil {
		if raw := headers.Get("Expires"); raw != "" {
			if t, err := http.ParseTime(raw); err == nil && t.After(now) {
				return t
			}
		}
	}
	return now.Add(defaultTTL)
}
