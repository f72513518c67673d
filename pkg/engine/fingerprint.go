package engine

import (
	"hash/fnv"
	"sync"
)

// fingerprint hashes the dedup-significant identity of a request:
// method, URL, and the extra key material returned by the customization
// hook. FNV-1a is best-effort; collisions are acceptable.
func fingerprint(method, url, extra string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(extra))
	return h.Sum64()
}

// visitedSet is the monotonically growing set of fingerprints seen by
// one client. Entries are never evicted.
type visitedSet struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[uint64]struct{})}
}

// MarkSeen records fp and reports whether it was already present.
// Check and record are one atomic step so concurrently spawned
// duplicates cannot both pass.
func (v *visitedSet) MarkSeen(fp uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[fp]; ok {
		return true
	}
	v.seen[fp] = struct{}{}
	return false
}

// Len returns the number of distinct fingerprints recorded.
func (v *visitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
