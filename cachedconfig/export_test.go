package cachedconfig

import "github.com/samber/lo"

// Exported for testing in the external test package (cachedconfig_test).

// RegisteredPaths returns the paths currently present in the store's
// registry, for white-box assertions on purge behavior.
func (s *ConfigStore) RegisteredPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.clients)
}

// ClientCount returns the number of weak references registered for path,
// dead or alive.
func (s *ConfigStore) ClientCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients[path])
}

// WaitForCache flushes pending ristretto writes so cached entries are
// observable deterministically in tests.
func (c *CachedSource) WaitForCache() {
	c.cache.Wait()
}

// MarkerFromResponseForTest exposes HTTP marker derivation.
var MarkerFromResponseForTest = markerFromResponse
