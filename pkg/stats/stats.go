// Package stats collects passive request bookkeeping for the engine.
// Every method is safe for concurrent use and none of them can fail;
// the collector only ever counts.
package stats

import (
	"sync"
	"time"
)

// Collector accumulates counters over a client's lifetime. Counters are
// monotonic and never reset mid-run.
type Collector struct {
	mu    sync.Mutex
	clock func() time.Time

	started time.Time

	totalRequests uint64
	successful    uint64
	redirects     uint64
	clientErrors  uint64
	serverErrors  uint64
	networkErrors uint64
	timeouts      uint64
	authFailures  uint64
	rateLimited   uint64
	deduped       uint64

	byMethod      map[string]uint64
	byEndpoint    map[string]uint64
	byStatus      map[int]uint64
	byContentType map[string]uint64
}

// NewCollector returns an empty collector with its start time stamped.
func NewCollector() *Collector {
	c := &Collector{
		clock:         time.Now,
		byMethod:      make(map[string]uint64),
		byEndpoint:    make(map[string]uint64),
		byStatus:      make(map[int]uint64),
		byContentType: make(map[string]uint64),
	}
	c.started = c.clock()
	return c
}

// RecordRequest counts an attempted request by method and endpoint.
func (c *Collector) RecordRequest(endpoint, method string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	c.byMethod[method]++
	c.byEndpoint[endpoint]++
}

// RecordResponse counts a completed response by status code and
// declared content type.
func (c *Collector) RecordResponse(status int, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordStatusLocked(status)
	if contentType != "" {
		c.byContentType[contentType]++
	}
}

// RecordStatus counts a status code without content-type information.
func (c *Collector) RecordStatus(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordStatusLocked(status)
}

func (c *Collector) recordStatusLocked(status int) {
	c.byStatus[status]++

	switch status / 100 {
	case 2:
		c.successful++
	case 3:
		c.redirects++
	case 4:
		c.clientErrors++
	case 5:
		c.serverErrors++
	}

	switch status {
	case 408:
		c.timeouts++
	case 401:
		c.authFailures++
	case 429:
		c.rateLimited++
	}
}

// RecordTimeout counts a request that hit its deadline. Timeouts are
// tallied as status 408 so they land in the 4xx class alongside
// server-reported request timeouts.
func (c *Collector) RecordTimeout() {
	c.RecordStatus(408)
}

// RecordNetworkError counts a connection or DNS failure.
func (c *Collector) RecordNetworkError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.networkErrors++
}

// RecordDeduped counts a request suppressed by the visited set.
func (c *Collector) RecordDeduped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deduped++
}

// Snapshot is a point-in-time copy of the counters with derived rates.
type Snapshot struct {
	TotalRequests uint64
	Successful    uint64
	Redirects     uint64
	ClientErrors  uint64
	ServerErrors  uint64
	NetworkErrors uint64
	Timeouts      uint64
	AuthFailures  uint64
	RateLimited   uint64
	Deduped       uint64

	// TotalErrors sums client, server, and network errors. Timeouts are
	// already inside the 4xx class through their 408 tally.
	TotalErrors uint64

	// ErrorRate is TotalErrors over TotalRequests, 0 when nothing ran.
	ErrorRate float64

	// Throughput is requests per second since the collector started.
	Throughput float64

	Elapsed time.Duration

	ByMethod      map[string]uint64
	ByEndpoint    map[string]uint64
	ByStatus      map[int]uint64
	ByContentType map[string]uint64
}

// Snapshot returns a consistent copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		TotalRequests: c.totalRequests,
		Successful:    c.successful,
		Redirects:     c.redirects,
		ClientErrors:  c.clientErrors,
		ServerErrors:  c.serverErrors,
		NetworkErrors: c.networkErrors,
		Timeouts:      c.timeouts,
		AuthFailures:  c.authFailures,
		RateLimited:   c.rateLimited,
		Deduped:       c.deduped,
		Elapsed:       c.clock().Sub(c.started),
		ByMethod:      copyMap(c.byMethod),
		ByEndpoint:    copyMap(c.byEndpoint),
		ByStatus:      copyMap(c.byStatus),
		ByContentType: copyMap(c.byContentType),
	}

	s.TotalErrors = s.ClientErrors + s.ServerErrors + s.NetworkErrors
	if s.TotalRequests > 0 {
		s.ErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests)
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Throughput = float64(s.TotalRequests) / secs
	}

	return s
}

func copyMap[K comparable](m map[K]uint64) map[K]uint64 {
	out := make(map[K]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
