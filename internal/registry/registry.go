// Package registry publishes snapshots of installed-application records.
package registry

import (
	"slices"
	"sync"

	"github.com/justyntemme/explorer/internal/debug"
	"github.com/justyntemme/explorer/internal/metrics"
)

// AppRecord describes one installed application.
type AppRecord struct {
	PackageID  string
	Name       string
	SourcePath string // Install-source path (the package file on disk)
}

// Snapshot is an immutable list of records. Receivers must not modify it.
type Snapshot []AppRecord

// Registry fans out snapshots to subscribers. A slow subscriber only ever
// sees the most recent snapshot; intermediate ones are dropped.
type Registry struct {
	mu          sync.RWMutex
	latest      Snapshot
	hasLatest   bool
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan Snapshot
	done chan struct{}
	once sync.Once
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{subscribers: make(map[*subscriber]struct{})}
}

// Subscribe registers fn for every future snapshot, and for the current
// one if any has been published. fn runs on a goroutine owned by the
// subscription, never concurrently with itself. The returned func
// unsubscribes; it is safe to call more than once.
func (r *Registry) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s := &subscriber{
		ch:   make(chan Snapshot, 1),
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.subscribers[s] = struct{}{}
	if r.hasLatest {
		s.ch <- r.latest
	}
	r.mu.Unlock()

	go func() {
		for {
			select {
			case <-s.done:
				return
			case snap := <-s.ch:
				select {
				case <-s.done:
					return
				default:
				}
				fn(snap)
			}
		}
	}()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, s)
		r.mu.Unlock()
		s.once.Do(func() { close(s.done) })
	}
}

// Publish replaces the current snapshot and notifies subscribers.
func (r *Registry) Publish(records []AppRecord) {
	snap := Snapshot(slices.Clone(records))

	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = snap
	r.hasLatest = true
	for s := range r.subscribers {
		// Last value wins: drop a pending, unread snapshot.
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
	metrics.RecordRegistrySnapshot(len(snap))
	debug.Log(debug.STORE, "published snapshot of %d apps to %d subscribers", len(snap), len(r.subscribers))
}

// Latest returns the most recent snapshot, or nil.
func (r *Registry) Latest() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Count returns the number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}
