package cachedconfig

import (
	"strconv"
	"time"
)

// ModificationTime is an opaque marker for one generation of a path's
// content. Markers are only ever compared for equality: a differing marker
// means the content changed and must be deserialized again, an equal marker
// means the cached value is still current. File sources use mtimes, HTTP
// and S3 sources use ETags, tests use whatever they like.
type ModificationTime string

// ModTimeFromTime derives a modification marker from a timestamp.
func ModTimeFromTime(t time.Time) ModificationTime {
	return ModificationTime(strconv.FormatInt(t.UnixNano(), 10))
}

// SourceEntry is one path's raw payload together with the marker it was
// read at. The marker must correspond to exactly these bytes.
type SourceEntry struct {
	Contents []byte
	ModTime  ModificationTime
}

// Source supplies raw config bytes for named paths. Implementations must be
// safe for concurrent use: the store calls them from registration
// goroutines and from its background updater.
type Source interface {
	// ConfigForPath returns the path's current payload and marker. The
	// returned error wraps ErrNotFound when the source has no such path.
	ConfigForPath(path string) (SourceEntry, error)

	// PathsToRefresh filters the registered paths down to the subset whose
	// content changed since the source last observed them. Detection may be
	// batched, stat-based, or push-based; the store treats it as an opaque
	// predicate over names.
	PathsToRefresh(paths []string) []string
}
