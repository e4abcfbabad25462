// Package cache provides DirectoryCache implementations beyond
// pmtiles.NoCache. SingleFlightCache is the "atomic cache" from the
// archive codec's concurrency model (§4.G/§5): concurrent loads for the
// same directory coalesce into one backend fetch.
package cache

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/ozhernov/pmtiles/pmtiles"
	"github.com/ozhernov/pmtiles/pmtiles/spec"
)

// SingleFlightCache is an unbounded directory cache backed by a concurrent
// map (xsync.MapOf), with loads coalesced through a singleflight.Group so
// that N concurrent misses for the same (archiveID, dirKey) invoke the
// loader exactly once. Grounded on original_source/src/cache.rs's
// HashMapCacheV2/CacheSlot two-level-locking design, expressed here with
// the pack's own concurrency primitives instead of hand-rolled RWMutexes.
type SingleFlightCache struct {
	entries *xsync.MapOf[string, []spec.Entry]
	flight  singleflight.Group
}

// NewSingleFlightCache creates an empty cache. Entries are never evicted;
// callers wanting bounded memory should wrap archives with a fresh cache
// per logical session, or add their own eviction on top (eviction policy
// is implementation-defined per the DirectoryCache contract).
func NewSingleFlightCache() *SingleFlightCache {
	return &SingleFlightCache{
		entries: xsync.NewMapOf[string, []spec.Entry](),
	}
}

func cacheKey(archiveID pmtiles.ArchiveID, dirKey pmtiles.DirKey) string {
	return fmt.Sprintf("%v:%d:%d", archiveID, dirKey.Offset, dirKey.Length)
}

func (c *SingleFlightCache) GetOrInsert(ctx context.Context, archiveID pmtiles.ArchiveID, dirKey pmtiles.DirKey, loader pmtiles.DirLoader) ([]spec.Entry, error) {
	key := cacheKey(archiveID, dirKey)

	if dir, ok := c.entries.Load(key); ok {
		return dir, nil
	}

	// singleflight.Group coalesces concurrent callers with the same key
	// into a single loader invocation; every waiter observes that one
	// result. A loader error is never memoized by singleflight itself, so
	// the next GetOrInsert naturally retries.
	v, err, _ := c.flight.Do(key, func() (any, error) {
		if dir, ok := c.entries.Load(key); ok {
			return dir, nil
		}
		dir, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Store(key, dir)
		return dir, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]spec.Entry), nil
}

func (c *SingleFlightCache) Insert(archiveID pmtiles.ArchiveID, dirKey pmtiles.DirKey, dir []spec.Entry) {
	c.entries.Store(cacheKey(archiveID, dirKey), dir)
}

var _ pmtiles.DirectoryCache = (*SingleFlightCache)(nil)
