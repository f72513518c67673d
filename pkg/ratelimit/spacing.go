// Package ratelimit gates request admission per endpoint. It computes
// the minimum spacing implied by a set of rate constraints and rotates
// credentials, each with its own concurrency budget and pacer.
package ratelimit

import (
	"time"

	"github.com/fetchwave/fetchwave/pkg/config"
)

// PairSpacing returns the minimum delay between consecutive requests
// implied by a single rate pair: interval divided by limit. A limit of
// zero or less means unlimited, so no spacing.
func PairSpacing(r config.Rate) time.Duration {
	if r.Limit <= 0 {
		return 0
	}
	return r.Interval / time.Duration(r.Limit)
}

// Spacing returns the spacing for a set of rate pairs: the maximum over
// the pairwise spacings. The most conservative constraint wins.
func Spacing(rates []config.Rate) time.Duration {
	var spacing time.Duration
	for _, r := range rates {
		if s := PairSpacing(r); s > spacing {
			spacing = s
		}
	}
	return spacing
}
