package cachedconfig

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"
)

// CachedSource memoizes ConfigForPath results from a slower inner source,
// typically HTTP or S3. Entries live for a bounded TTL and are invalidated
// whenever the inner source reports the path changed, so refresh-driven
// fetches always see new content.
//
// The tradeoff: a registration inside the TTL window may observe content up
// to one TTL stale. Size the TTL to what the consuming process can
// tolerate, or skip the decorator for sources where staleness matters.
type CachedSource struct {
	inner Source
	cache *ristretto.Cache[string, SourceEntry]
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedSource wraps inner with a TTL-bounded fetch cache.
func NewCachedSource(inner Source, ttl time.Duration) (*CachedSource, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, SourceEntry]{
		NumCounters: 10_000,
		MaxCost:     32 << 20, // 32 MB of raw payloads
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedSource{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   packageLogger().With().Str("source", "cached").Logger(),
	}, nil
}

// ConfigForPath serves a cached entry when one is live, otherwise fetches
// from the inner source and caches the result.
func (c *CachedSource) ConfigForPath(path string) (SourceEntry, error) {
	if entry, ok := c.cache.Get(path); ok {
		c.log.Debug().Str("path", path).Msg("source cache hit")
		return entry, nil
	}

	entry, err := c.inner.ConfigForPath(path)
	if err != nil {
		return SourceEntry{}, err
	}
	c.cache.SetWithTTL(path, entry, int64(len(entry.Contents)), c.ttl)
	return entry, nil
}

// PathsToRefresh delegates to the inner source and invalidates every path
// it reports, so the store's follow-up fetch cannot be served stale.
func (c *CachedSource) PathsToRefresh(paths []string) []string {
	changed := c.inner.PathsToRefresh(paths)
	for _, path := range changed {
		c.cache.Del(path)
	}
	return changed
}

// Close releases the underlying cache.
func (c *CachedSource) Close() {
	c.cache.Close()
}
