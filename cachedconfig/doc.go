// Package cachedconfig provides a process-wide, live-updating configuration
// cache over an external configuration source.
//
// A ConfigStore polls a Source on a timer, deserializes raw bytes into
// strongly typed values exactly once per detected change, and hands out
// handles that many concurrent consumers can read without re-fetching or
// re-parsing. The store tracks registered entities through weak references,
// so dropping the last handle for a path frees its value and the registry
// entry is purged on the next refresh iteration.
//
// Basic usage:
//
//	source, err := cachedconfig.NewFileSource("/etc/myapp", ".json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store := cachedconfig.NewConfigStore(source, mo.Some(5*time.Second), nil)
//	defer store.Close()
//
//	handle, err := cachedconfig.GetConfigHandle[ServerTuning](store, "tuning")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Reads are cheap and always observe the latest published value.
//	tuning := handle.Get()
//
// Consumers that need to react to changes create a Watcher:
//
//	watcher, err := handle.Watcher()
//	if err != nil {
//		log.Fatal(err)
//	}
//	for {
//		tuning, err := watcher.WaitForNext(ctx)
//		if err != nil {
//			return err
//		}
//		apply(tuning)
//	}
//
// Watchers are single-slot: a consumer that sleeps through several updates
// observes only the newest value, never a replay of intermediate ones.
//
// Sources ship for the filesystem (FileSource), HTTP config servers
// (HTTPSource), and S3 buckets (S3Source). TestSource is an in-memory double
// with explicit change marking for deterministic tests. All implementations
// are safe for concurrent use.
package cachedconfig
