package fs

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/justyntemme/explorer/internal/debug"
)

// DirectoryWatcher reports directories whose direct children changed.
// Bursts of events for one directory collapse into a single notification
// once the directory has been quiet for the debounce interval.
type DirectoryWatcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watching map[string]bool
	notify   chan string
	done     chan struct{}
	debounce time.Duration
	once     sync.Once
}

// NewDirectoryWatcher creates a watcher; debounce <= 0 means 200ms.
func NewDirectoryWatcher(debounce time.Duration) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	dw := &DirectoryWatcher{
		watcher:  w,
		watching: make(map[string]bool),
		notify:   make(chan string, 10),
		done:     make(chan struct{}),
		debounce: debounce,
	}
	go dw.run()
	return dw, nil
}

func (dw *DirectoryWatcher) run() {
	lastEvent := make(map[string]time.Time)
	tick := dw.debounce / 2
	if tick <= 0 {
		tick = dw.debounce
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !(event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)) {
				continue
			}

			dir := filepath.Dir(event.Name)
			dw.mu.Lock()
			switch {
			case dw.watching[dir]:
				lastEvent[dir] = time.Now()
			case dw.watching[event.Name]:
				lastEvent[event.Name] = time.Now()
			}
			dw.mu.Unlock()
			debug.Log(debug.FS, "watch event: %s on %s", event.Op, event.Name)

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			debug.Log(debug.FS, "watch error: %v", err)

		case <-ticker.C:
			now := time.Now()
			for dir, at := range lastEvent {
				if now.Sub(at) < dw.debounce {
					continue
				}
				select {
				case dw.notify <- dir:
					debug.Log(debug.FS, "directory changed: %s", dir)
				default:
				}
				delete(lastEvent, dir)
			}
		}
	}
}

// Watch adds a directory to the watch list
func (dw *DirectoryWatcher) Watch(path string) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.watching[path] {
		return nil
	}
	if err := dw.watcher.Add(path); err != nil {
		return err
	}
	dw.watching[path] = true
	return nil
}

// WatchOnly replaces the watch list with the single given directory.
func (dw *DirectoryWatcher) WatchOnly(path string) error {
	dw.mu.Lock()
	for p := range dw.watching {
		if p != path {
			_ = dw.watcher.Remove(p)
			delete(dw.watching, p)
		}
	}
	dw.mu.Unlock()
	return dw.Watch(path)
}

// Unwatch removes a directory from the watch list
func (dw *DirectoryWatcher) Unwatch(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.watching[path] {
		return
	}
	// The path may already be gone.
	_ = dw.watcher.Remove(path)
	delete(dw.watching, path)
}

// Notify returns the channel that receives changed directory paths
func (dw *DirectoryWatcher) Notify() <-chan string {
	return dw.notify
}

// Close shuts down the watcher
func (dw *DirectoryWatcher) Close() error {
	var err error
	dw.once.Do(func() {
		close(dw.done)
		err = dw.watcher.Close()
	})
	return err
}
