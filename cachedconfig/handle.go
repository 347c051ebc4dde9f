package cachedconfig

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ConfigHandle is a cheap, shareable reference to one config path's live
// value. Handles returned by a ConfigStore read through to a shared entity,
// so every copy of a handle observes the same updates published by the
// store's refresh loop. Handles built with StaticJSONHandle wrap a frozen
// value instead.
//
// Treat values returned by Get as immutable; they are shared between all
// holders of the handle.
type ConfigHandle[T any] struct {
	ent    *registeredConfigEntity
	static T
}

func newConfigHandle[T any](ent *registeredConfigEntity) *ConfigHandle[T] {
	return &ConfigHandle[T]{ent: ent}
}

// StaticJSONHandle builds a handle around a JSON literal. The value never
// changes and Watcher on such a handle returns ErrWatchUnsupported.
// Intended for tests and hard-coded configs.
func StaticJSONHandle[T any](literal string) (*ConfigHandle[T], error) {
	if !gjson.Valid(literal) {
		return nil, errors.New("cachedconfig: static handle literal is not valid JSON")
	}
	var value T
	if err := json.Unmarshal([]byte(literal), &value); err != nil {
		return nil, fmt.Errorf("cachedconfig: static handle deserialization failed: %w", err)
	}
	return &ConfigHandle[T]{static: value}, nil
}

// Get returns the current value. For live handles this is a short read-lock
// over the entity's value; writers block readers only for the duration of
// the atomic swap, never for fetching or parsing.
func (h *ConfigHandle[T]) Get() T {
	if h.ent == nil {
		return h.static
	}
	return h.ent.get().(T)
}

// Watcher returns a change watcher bound to this handle's entity. It fails
// with ErrWatchUnsupported for static handles: a value that can never
// change has nothing to watch.
func (h *ConfigHandle[T]) Watcher() (*Watcher[T], error) {
	if h.ent == nil {
		return nil, ErrWatchUnsupported
	}
	return newWatcher[T](h.ent), nil
}
