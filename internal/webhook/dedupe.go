package webhook

import (
	"time"

	"github.com/broadwing/dispatch/pkg/cache"
)

// dedupeSet is a bounded, size-evicted set of recently seen event IDs,
// each remembered only until its TTL expires. A hit past its TTL is
// treated as a fresh event rather than a repeat.
type dedupeSet struct {
	seen *cache.LRUCache[time.Time]
	ttl  time.Duration
}

func newDedupeSet(size int, ttl time.Duration) (*dedupeSet, error) {
	c, err := cache.NewLRUCache[time.Time](size)
	if err != nil {
		return nil, err
	}
	return &dedupeSet{seen: c, ttl: ttl}, nil
}

// seenBefore reports whether id was already recorded within its TTL, and
// records it (refreshing the TTL) either way.
func (d *dedupeSet) seenBefore(id string, now time.Time) bool {
	expiresAt, found := d.seen.Get(id)
	duplicate := found && now.Before(expiresAt)
	d.seen.Set(id, now.Add(d.ttl))
	return duplicate
}
