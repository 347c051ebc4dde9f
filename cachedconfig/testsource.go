package cachedconfig

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// TestSource is an in-memory Source for tests. Refresh detection is
// explicit rather than content-diffing: a path is only reported by
// PathsToRefresh after InsertToRefresh has marked it, which lets tests
// control exactly when a change is "detected" independently of content
// edits.
type TestSource struct {
	mu        sync.Mutex
	configs   map[string]SourceEntry
	toRefresh map[string]struct{}
}

// NewTestSource returns an empty test source.
func NewTestSource() *TestSource {
	return &TestSource{
		configs:   make(map[string]SourceEntry),
		toRefresh: make(map[string]struct{}),
	}
}

// InsertConfig seeds or replaces a path's contents at an explicit marker.
// Re-inserting with the same marker simulates a source whose content
// mutated without the marker advancing.
func (t *TestSource) InsertConfig(path, contents string, modTime ModificationTime) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.configs[path] = SourceEntry{Contents: []byte(contents), ModTime: modTime}
}

// UpdateConfig replaces a path's contents under a fresh opaque marker and
// returns that marker.
func (t *TestSource) UpdateConfig(path, contents string) ModificationTime {
	marker := ModificationTime(uuid.NewString())
	t.InsertConfig(path, contents, marker)
	return marker
}

// InsertToRefresh marks a path as changed for the next PathsToRefresh call.
func (t *TestSource) InsertToRefresh(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toRefresh[path] = struct{}{}
}

// ConfigForPath returns the seeded entry for path, or ErrNotFound.
func (t *TestSource) ConfigForPath(path string) (SourceEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.configs[path]
	if !ok {
		return SourceEntry{}, fmt.Errorf("cachedconfig: %q: %w", path, ErrNotFound)
	}
	return entry, nil
}

// PathsToRefresh returns the candidates marked via InsertToRefresh and
// clears their marks.
func (t *TestSource) PathsToRefresh(paths []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := lo.Filter(paths, func(path string, _ int) bool {
		_, ok := t.toRefresh[path]
		return ok
	})
	for _, path := range changed {
		delete(t.toRefresh, path)
	}
	return changed
}
