package cachedconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// FileSource maps config paths to {directory}/{path}{extension} on disk and
// uses file mtimes as modification markers.
//
// Change detection defaults to a stat of every candidate path, comparing
// the mtime against the one the previous probe observed. WatchChanges
// switches the source to push-based detection backed by fsnotify: changed
// files accumulate in a dirty set that PathsToRefresh drains.
type FileSource struct {
	dir string
	ext string
	log zerolog.Logger

	mu sync.Mutex
	// observed holds markers as of the last probe; ConfigForPath never
	// writes it.
	observed map[string]ModificationTime
	dirty    map[string]struct{}
	watching bool
}

// NewFileSource builds a file source rooted at directory. The extension is
// appended verbatim to every path (pass ".json", or "" for none).
func NewFileSource(directory, extension string) (*FileSource, error) {
	info, err := os.Stat(directory)
	if err != nil {
		return nil, fmt.Errorf("cachedconfig: config directory %q: %w", directory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cachedconfig: %q is not a directory", directory)
	}
	return &FileSource{
		dir:      directory,
		ext:      extension,
		log:      packageLogger().With().Str("source", "file").Logger(),
		observed: make(map[string]ModificationTime),
		dirty:    make(map[string]struct{}),
	}, nil
}

func (f *FileSource) filename(path string) string {
	return filepath.Join(f.dir, path+f.ext)
}

// ConfigForPath reads the backing file and returns its contents at the
// file's current mtime.
func (f *FileSource) ConfigForPath(path string) (SourceEntry, error) {
	name := f.filename(path)
	info, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SourceEntry{}, fmt.Errorf("cachedconfig: %q: %w", path, ErrNotFound)
		}
		return SourceEntry{}, fmt.Errorf("cachedconfig: stat %q: %w", name, err)
	}
	contents, err := os.ReadFile(name)
	if err != nil {
		return SourceEntry{}, fmt.Errorf("cachedconfig: read %q: %w", name, err)
	}

	// Fetches never touch the probe state: a registration between two probes
	// must not consume the change edge the next probe would report to the
	// path's existing entities.
	return SourceEntry{Contents: contents, ModTime: ModTimeFromTime(info.ModTime())}, nil
}

// PathsToRefresh returns the candidates whose backing file changed since
// the previous probe observed them. Paths never probed before and paths
// whose file is currently unreadable are included; the store's follow-up
// fetch either surfaces the error or lands on the entity's marker check.
func (f *FileSource) PathsToRefresh(paths []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.watching {
		changed := lo.Filter(paths, func(path string, _ int) bool {
			_, ok := f.dirty[path]
			return ok
		})
		for _, path := range changed {
			delete(f.dirty, path)
		}
		return changed
	}

	var changed []string
	for _, path := range paths {
		info, err := os.Stat(f.filename(path))
		if err != nil {
			changed = append(changed, path)
			continue
		}
		marker := ModTimeFromTime(info.ModTime())
		if observed, ok := f.observed[path]; ok && observed == marker {
			continue
		}
		f.observed[path] = marker
		changed = append(changed, path)
	}
	return changed
}

// WatchChanges switches the source to push-based change detection and
// blocks until ctx is cancelled, after which the source falls back to
// stat-based detection. Only Write and Create events for files carrying the
// source's extension mark a path dirty.
func (f *FileSource) WatchChanges(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cachedconfig: create file watcher: %w", err)
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			f.log.Error().Err(cerr).Msg("failed to close file watcher")
		}
	}()

	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("cachedconfig: watch %q: %w", f.dir, err)
	}

	f.mu.Lock()
	f.watching = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.watching = false
		f.mu.Unlock()
	}()

	f.log.Info().Str("dir", f.dir).Msg("file change watching started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			base := filepath.Base(event.Name)
			if f.ext != "" && !strings.HasSuffix(base, f.ext) {
				continue
			}
			path := strings.TrimSuffix(base, f.ext)
			f.mu.Lock()
			f.dirty[path] = struct{}{}
			f.mu.Unlock()
			f.log.Debug().Str("path", path).Msg("file change detected")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Error().Err(err).Msg("file watcher error")
		}
	}
}
