package cachedconfig

import "errors"

// Standard errors for store and source operations.
//
// Use errors.Is to check for these errors:
//
//	handle, err := cachedconfig.GetConfigHandle[T](store, path)
//	if errors.Is(err, cachedconfig.ErrNotFound) {
//		// path unknown to the source
//	}
var (
	// ErrNotFound is returned when a source has no config for a path.
	ErrNotFound = errors.New("cachedconfig: path not found")

	// ErrClosed is returned when operations are attempted on a closed store.
	ErrClosed = errors.New("cachedconfig: store is closed")

	// ErrWatchUnsupported is returned when a watcher is requested for a
	// handle that has no change source, such as one built from a static
	// JSON literal.
	ErrWatchUnsupported = errors.New("cachedconfig: handle has no change source")
)
