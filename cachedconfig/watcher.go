package cachedconfig

import "context"

// Watcher delivers change notifications for one entity. It is single-slot
// and latest-value-wins: if several updates land while nobody is waiting,
// the next WaitForNext yields only the newest value, never a replay of the
// intermediate ones. Each watcher tracks its own observed version, so
// independent watchers on the same handle do not affect one another.
type Watcher[T any] struct {
	ent  *registeredConfigEntity
	seen uint64
}

func newWatcher[T any](ent *registeredConfigEntity) *Watcher[T] {
	return &Watcher[T]{ent: ent, seen: ent.currentVersion()}
}

// WaitForNext suspends until the entity's value has changed since the
// watcher was created or last observed, then returns the newest value. If
// the watcher is already behind, it returns immediately.
//
// The wait is cooperative: the goroutine parks on a channel select, so any
// number of watchers can be outstanding without dedicating a thread to each.
// Cancelling the context abandons this wait without corrupting the watcher;
// a later call picks up exactly where this one left off.
func (w *Watcher[T]) WaitForNext(ctx context.Context) (T, error) {
	for {
		value, version, changed := w.ent.snapshot()
		if version > w.seen {
			w.seen = version
			return value.(T), nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-changed:
			// Version advanced; loop to pick up the newest value.
		}
	}
}
