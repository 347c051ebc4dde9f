package cachedconfig

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// deserializer turns raw source bytes into the entity's typed value. It is
// bound once at registration; the same entity always produces the same type.
type deserializer func([]byte) (any, error)

// registeredConfigEntity owns one config path's live typed value. The store
// references it weakly; handles reference it strongly, so an entity lives
// exactly as long as some consumer still holds a handle to it.
type registeredConfigEntity struct {
	path        string
	deserialize deserializer
	log         zerolog.Logger

	mu      sync.RWMutex
	value   any
	modTime ModificationTime
	version uint64
	changed chan struct{}
}

// newRegisteredConfigEntity deserializes the initial payload eagerly, so a
// malformed config fails registration instead of surfacing later.
func newRegisteredConfigEntity(path string, entry SourceEntry, d deserializer, log zerolog.Logger) (*registeredConfigEntity, error) {
	value, err := d(entry.Contents)
	if err != nil {
		return nil, fmt.Errorf("cachedconfig: initial deserialization of %q failed: %w", path, err)
	}
	return &registeredConfigEntity{
		path:        path,
		deserialize: d,
		log:         log.With().Str("path", path).Logger(),
		value:       value,
		modTime:     entry.ModTime,
		version:     1,
		changed:     make(chan struct{}),
	}, nil
}

// refresh applies a freshly fetched source entry. It deserializes only when
// the entry's marker differs from the one the current value was built from,
// and reports whether the visible value changed. A failed deserialization
// leaves the last good value and marker untouched; since the marker does not
// advance, a source that keeps returning the same bad payload is not
// re-parsed every iteration.
func (e *registeredConfigEntity) refresh(entry SourceEntry) (bool, error) {
	e.mu.RLock()
	unchanged := e.modTime == entry.ModTime
	e.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	// Deserialization runs outside the lock so readers are never blocked
	// behind parsing.
	value, err := e.deserialize(entry.Contents)
	if err != nil {
		return false, fmt.Errorf("cachedconfig: deserialization of %q failed: %w", e.path, err)
	}

	e.mu.Lock()
	if e.modTime == entry.ModTime {
		// A concurrent refresh already applied this generation.
		e.mu.Unlock()
		return false, nil
	}
	e.value = value
	e.modTime = entry.ModTime
	e.version++
	close(e.changed)
	e.changed = make(chan struct{})
	e.mu.Unlock()

	e.log.Debug().Str("mod_time", string(entry.ModTime)).Msg("config value replaced")
	return true, nil
}

func (e *registeredConfigEntity) get() any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// snapshot returns the current value and version together with the channel
// that will be closed on the next successful refresh. Watchers select on
// the channel to suspend until the version advances.
func (e *registeredConfigEntity) snapshot() (any, uint64, <-chan struct{}) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.version, e.changed
}

func (e *registeredConfigEntity) currentVersion() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}
