package cachedconfig

import (
	"fmt"
	"slices"
	"sync"
	"time"
	"weak"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// ConfigStore is the process-facing entry point of the cache. It owns the
// Source, a registry of weak references to the entities handed out through
// handles, and optionally one background goroutine that refreshes changed
// paths on a poll interval.
//
// The registry holds entities weakly: dropping the last handle for a path
// lets the entity be collected, and the dead reference is purged lazily on
// the next refresh iteration. Stores are independent; tests can construct
// any number of them without cross-talk.
type ConfigStore struct {
	source Source
	log    zerolog.Logger

	// mu guards clients and closed; cond is the kick that wakes the
	// updater when the registry transitions from empty to non-empty.
	mu      sync.Mutex
	cond    *sync.Cond
	clients map[string][]weak.Pointer[registeredConfigEntity]
	closed  bool

	// updateMu serializes refresh iterations so a ForceUpdateConfigs
	// overlapping the background tick cannot double-apply a generation.
	updateMu sync.Mutex

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewConfigStore builds a store over the given source. When pollInterval is
// present, one background goroutine refreshes registered paths on that
// interval; when absent, the store is passive and refreshes only happen
// through ForceUpdateConfigs (registration still always fetches fresh
// bytes). A nil logger falls back to the package logger.
func NewConfigStore(source Source, pollInterval mo.Option[time.Duration], logger *zerolog.Logger) *ConfigStore {
	s := &ConfigStore{
		source:  source,
		log:     resolveLogger(logger),
		clients: make(map[string][]weak.Pointer[registeredConfigEntity]),
		stop:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	if interval, ok := pollInterval.Get(); ok {
		s.wg.Add(1)
		go s.updaterLoop(interval)
	}
	return s
}

// NewFileStore is a convenience constructor for a store over a FileSource
// mapping path to {directory}/{path}{extension}.
func NewFileStore(logger *zerolog.Logger, directory, extension string, pollInterval mo.Option[time.Duration]) (*ConfigStore, error) {
	source, err := NewFileSource(directory, extension)
	if err != nil {
		return nil, err
	}
	return NewConfigStore(source, pollInterval, logger), nil
}

// GetConfigHandle registers a handle whose value is the JSON deserialization
// of the path's payload. Registration always asks the source for its current
// bytes, so the handle's initial value reflects the latest content even if
// no refresh iteration has run yet. An unknown path or a malformed initial
// payload is a hard error: callers never receive a handle they cannot read.
func GetConfigHandle[T any](s *ConfigStore, path string) (*ConfigHandle[T], error) {
	return GetConfigHandleWithDeserializer(s, path, jsonDeserializer[T])
}

// GetYAMLConfigHandle registers a handle over a YAML payload.
func GetYAMLConfigHandle[T any](s *ConfigStore, path string) (*ConfigHandle[T], error) {
	return GetConfigHandleWithDeserializer(s, path, yamlDeserializer[T])
}

// GetTOMLConfigHandle registers a handle over a TOML payload.
func GetTOMLConfigHandle[T any](s *ConfigStore, path string) (*ConfigHandle[T], error) {
	return GetConfigHandleWithDeserializer(s, path, tomlDeserializer[T])
}

// GetConfigHandleWithDeserializer registers a handle with a caller-supplied
// deserializer. The deserializer is bound to the underlying entity for its
// whole lifetime: one entity, one fixed deserialization strategy.
func GetConfigHandleWithDeserializer[T any](s *ConfigStore, path string, d func([]byte) (T, error)) (*ConfigHandle[T], error) {
	ent, err := s.newEntity(path, func(raw []byte) (any, error) {
		value, err := d(raw)
		if err != nil {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return newConfigHandle[T](ent), nil
}

// GetRawConfigHandle registers a handle over the path's raw payload string.
func (s *ConfigStore) GetRawConfigHandle(path string) (*ConfigHandle[string], error) {
	return GetConfigHandleWithDeserializer(s, path, rawDeserializer)
}

// newEntity fetches, deserializes, and registers one entity. Fetching and
// parsing happen before the registry lock is taken, so registration never
// holds the lock across slow operations.
func (s *ConfigStore) newEntity(path string, d deserializer) (*registeredConfigEntity, error) {
	entry, err := s.source.ConfigForPath(path)
	if err != nil {
		return nil, fmt.Errorf("cachedconfig: no config for path %q: %w", path, err)
	}
	ent, err := newRegisteredConfigEntity(path, entry, d, s.log)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clients[path] = append(s.clients[path], weak.Make(ent))
	// Kick the updater in case it is parked on an empty registry; the first
	// registration must wake it immediately, not after a full interval.
	s.cond.Signal()
	s.mu.Unlock()

	s.log.Debug().Str("path", path).Msg("config handle registered")
	return ent, nil
}

// ForceUpdateConfigs synchronously runs exactly one refresh iteration.
// Tests and callers that need a deterministic refresh point use this
// instead of waiting out the poll interval. On a closed store it is a
// no-op: handles stop receiving updates at Close, forced or not.
func (s *ConfigStore) ForceUpdateConfigs() {
	s.updaterIteration()
}

// Close stops the background updater, if any, and waits for it to exit.
// Handles stay readable after Close; they just stop receiving updates.
// A second Close returns ErrClosed.
func (s *ConfigStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	return nil
}

// updaterLoop is the background refresh loop. While the registry is empty
// it parks on the condition variable, costing no CPU and holding no lock,
// until the first registration kicks it.
func (s *ConfigStore) updaterLoop(interval time.Duration) {
	defer s.wg.Done()
	s.log.Info().Dur("poll_interval", interval).Msg("config updater started")

	for {
		s.mu.Lock()
		for len(s.clients) == 0 && !s.closed {
			s.cond.Wait()
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			s.log.Info().Msg("config updater stopped")
			return
		}

		s.updaterIteration()

		select {
		case <-s.stop:
			s.log.Info().Msg("config updater stopped")
			return
		case <-time.After(interval):
		}
	}
}

// updaterIteration asks the source which registered paths changed,
// refreshes their live entities, and purges dead registry entries. A single
// path failing is never fatal to the iteration.
func (s *ConfigStore) updaterIteration() {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	paths := lo.Keys(s.clients)
	s.mu.Unlock()

	for _, path := range s.source.PathsToRefresh(paths) {
		s.refreshPath(path)
	}
	s.purge()
}

// refreshPath re-fetches one path and pushes the new entry to every live
// entity registered under it. Fetching happens once per path, not once per
// handle.
func (s *ConfigStore) refreshPath(path string) {
	entry, err := s.source.ConfigForPath(path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("config refresh fetch failed")
		return
	}

	s.mu.Lock()
	refs := slices.Clone(s.clients[path])
	s.mu.Unlock()

	for _, ref := range refs {
		ent := ref.Value()
		if ent == nil {
			// Handle dropped; the purge below removes the reference.
			continue
		}
		updated, err := ent.refresh(entry)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("path", path).Msg("config refresh failed, keeping previous value")
		case updated:
			s.log.Info().Str("path", path).Msg("config updated")
		default:
			s.log.Debug().Str("path", path).Msg("config unchanged")
		}
	}
}

// purge drops weak references whose entity has been collected and removes
// paths with no remaining clients, so the registry stays bounded as
// consumers come and go.
func (s *ConfigStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, refs := range s.clients {
		alive := lo.Filter(refs, func(ref weak.Pointer[registeredConfigEntity], _ int) bool {
			return ref.Value() != nil
		})
		if len(alive) == 0 {
			delete(s.clients, path)
			s.log.Debug().Str("path", path).Msg("path purged from registry")
			continue
		}
		s.clients[path] = alive
	}
}
