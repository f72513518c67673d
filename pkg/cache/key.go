package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key identifies a cached response by method and fully resolved URL,
// query string included.
type Key struct {
	// Method is the HTTP method (e.g., "GET").
	Method string

	// URL is the absolute request URL after payload expansion.
	URL string
}

// String generates a deterministic cache key string. The URL is hashed
// so keys stay bounded regardless of query string length.
//
// Format: fetchwave:response:METHOD:md5(url)
//
// Example:
//
//	fetchwave:response:GET:9a0364b9e99bb480dd25e1f0284c8555
func (k Key) String() string {
	sum := md5.Sum([]byte(k.URL))
	return fmt.Sprintf("fetchwave:response:%s:%s",
		strings.ToUpper(k.Method), hex.EncodeToString(sum[:]))
}
