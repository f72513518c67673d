// Package cache provides an optional Redis-backed response cache for
// GET requests.
//
// The cache is injected into the engine as a client option and is
// absent by default. Lookups happen after deduplication and before
// rate-limit admission, so a hit consumes no rate budget. Cache
// failures degrade to a miss and never fail a request.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, 5*time.Minute)
//
//	key := cache.Key{
//		Method: "GET",
//		URL:    "https://api.example.com/items?page=1",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the network
//	}
//
// # Storing Responses
//
//	entry := cache.NewEntry(body, contentType, resp.StatusCode, resp.Header, manager.DefaultTTL())
//	if err := manager.Set(ctx, key, entry); err != nil {
//		// log and continue; the response is still usable
//	}
//
// Entries honor the server's Expires header when present and fall back
// to the manager's default TTL otherwise. File responses are streamed
// to disk and never cached.
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - fetchwave_cache_hits_total - Cache hits
//   - fetchwave_cache_misses_total - Cache misses
//   - fetchwave_cache_errors_total{operation} - Cache operation errors
package cache
