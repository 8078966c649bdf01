package explorer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/justyntemme/explorer/internal/debug"
	"github.com/justyntemme/explorer/internal/fs"
	"github.com/justyntemme/explorer/internal/metrics"
	"github.com/justyntemme/explorer/internal/registry"
)

// AppSource delivers installed-app snapshots. *registry.Registry
// implements it.
type AppSource interface {
	Subscribe(fn func(registry.Snapshot)) (unsubscribe func())
}

// Options configures a new Engine.
type Options struct {
	StartDirectory string
	StorageRoots   []string

	Gateway   fs.Gateway           // defaults to the local filesystem
	Apps      AppSource            // optional
	Protected Region               // optional
	Watcher   *fs.DirectoryWatcher // optional, owned by the caller
}

// State is a consistent copy of everything the engine publishes.
type State struct {
	CurrentDirectory string
	Listing          Listing
	Selection        []Entry
	SearchActive     bool
	SearchQuery      string
}

// Engine is the navigation controller. Commands may be called from any
// goroutine; they are serialised internally. Blocking filesystem work
// runs on background goroutines and results are published through the
// observable values.
type Engine struct {
	// cmdMu serialises commands. mu guards the fields below it and is
	// never held while waiting for a background goroutine.
	cmdMu sync.Mutex
	mu    sync.Mutex

	gw        fs.Gateway
	listings  *ListingService
	selection *SelectionManager
	search    *SearchEngine
	protected Region
	watcher   *fs.DirectoryWatcher
	startDir  string

	current    string
	base       Listing // composed, matched and merged listing of current
	listing    Listing // what is shown; base or search results
	apps       registry.Snapshot
	listingGen uint64
	disposed   bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()

	currentDirectory *Value[string]
	visible          *Value[Listing]
	selected         *Value[[]Entry]
	searchActive     *Value[bool]
}

// New creates an engine positioned at opts.StartDirectory and starts
// composing its listing. If the start path is a file its directory is
// used.
func New(opts Options) (*Engine, error) {
	if opts.StartDirectory == "" {
		return nil, errors.New("explorer: start directory is required")
	}
	gw := opts.Gateway
	if gw == nil {
		gw = fs.NewOSGateway()
	}

	start := filepath.Clean(opts.StartDirectory)
	if !gw.IsDirectory(start) {
		start = filepath.Dir(start)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		gw:               gw,
		listings:         NewListingService(gw, start, opts.StorageRoots),
		selection:        NewSelectionManager(),
		search:           newSearchEngine(gw),
		protected:        opts.Protected,
		watcher:          opts.Watcher,
		startDir:         start,
		current:          start,
		ctx:              ctx,
		cancel:           cancel,
		currentDirectory: newValue(start),
		visible:          newValue(Listing{}),
		selected:         newValue([]Entry{}),
		searchActive:     newValue(false),
	}

	debug.Log(debug.APP, "New: start=%q roots=%v", start, opts.StorageRoots)

	if opts.Apps != nil {
		e.unsubscribe = opts.Apps.Subscribe(e.onApps)
	}
	if e.watcher != nil {
		e.wg.Add(1)
		go e.watchLoop()
	}

	e.mu.Lock()
	e.watchCurrentLocked()
	e.refreshLocked()
	e.mu.Unlock()

	return e, nil
}

// StartDirectory returns the directory the engine was started in.
func (e *Engine) StartDirectory() string { return e.startDir }

// CurrentDirectory is the directory being browsed.
func (e *Engine) CurrentDirectory() *Value[string] { return e.currentDirectory }

// Listing is the visible listing.
func (e *Engine) Listing() *Value[Listing] { return e.visible }

// Selection is the selected entries in selection order.
func (e *Engine) Selection() *Value[[]Entry] { return e.selected }

// SearchActive reports whether a search session is open.
func (e *Engine) SearchActive() *Value[bool] { return e.searchActive }

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		CurrentDirectory: e.current,
		Listing:          e.listing.Clone(),
		Selection:        e.selection.Entries(),
		SearchActive:     e.search.Active(),
		SearchQuery:      e.search.Query(),
	}
}

// MoveTo navigates to path. Protected paths redirect to the start
// directory unless force is set. A path that is not a directory opens
// its parent. Moving to another directory ends any search session.
func (e *Engine) MoveTo(path string, force bool) {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	e.moveTo(path, force)
}

func (e *Engine) moveTo(path string, force bool) {
	if e.isDisposed() {
		return
	}
	dest := e.resolve(path, force)

	e.mu.Lock()
	changed := dest != e.current
	active := e.search.Active()
	e.mu.Unlock()

	if changed && active {
		e.stopSearchJob()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}

	debug.Log(debug.NAV, "moveTo: %q -> %q (force=%v)", path, dest, force)
	if changed {
		if active {
			e.search.end()
			e.searchActive.set(false)
		}
		e.current = dest
		e.currentDirectory.set(dest)
		e.base = nil
		e.setListingLocked(Listing{})
		e.watchCurrentLocked()
	}
	e.refreshLocked()
}

// resolve applies the protection redirect and the directory fallback.
func (e *Engine) resolve(path string, force bool) string {
	dest := filepath.Clean(path)
	if !filepath.IsAbs(dest) {
		e.mu.Lock()
		dest = filepath.Join(e.current, dest)
		e.mu.Unlock()
	}
	if !force && e.protected != nil && e.protected.Contains(dest) {
		debug.Log(debug.NAV, "resolve: %q is protected, redirecting to %q", dest, e.startDir)
		return e.startDir
	}
	if e.gw.IsDirectory(dest) {
		return dest
	}
	return filepath.Dir(dest)
}

// BackNavigate performs one step of back handling and reports whether
// it was consumed. A false result means the caller may close.
func (e *Engine) BackNavigate() bool {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return false
	}
	selected := e.selection.Len()
	active := e.search.Active()
	current := e.current
	e.mu.Unlock()

	switch {
	case selected > 0 && !active:
		debug.Log(debug.NAV, "back: clearing %d selected", selected)
		e.clearSelection()
		return true
	case active:
		debug.Log(debug.NAV, "back: clearing search")
		e.clearSearch()
		return true
	case isRoot(current):
		debug.Log(debug.NAV, "back: at root, not consumed")
		return false
	case current != e.startDir:
		e.moveTo(filepath.Dir(current), false)
		return true
	default:
		debug.Log(debug.NAV, "back: at start directory, not consumed")
		return false
	}
}

// ToggleSelection flips the selection state of entry and returns the
// new state.
func (e *Engine) ToggleSelection(entry Entry) bool {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return false
	}

	now := e.selection.Toggle(&entry)
	k := entry.Key()
	e.base = withSelected(e.base, k, now)
	e.setListingLocked(withSelected(e.listing, k, now))
	e.publishSelectionLocked()

	debug.Log(debug.SELECT, "toggle %q -> %v (%d selected)", entry.File.Path, now, e.selection.Len())
	return now
}

// ClearSelection deselects everything.
func (e *Engine) ClearSelection() {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	e.clearSelection()
}

func (e *Engine) clearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.base = e.selection.Clear(e.base)
	e.setListingLocked(e.selection.Clear(e.listing))
	e.publishSelectionLocked()
	debug.Log(debug.SELECT, "selection cleared")
}

// Search filters the listing for query. The first search captures the
// listing as the session snapshot; later searches rescan that snapshot.
// A blank query ends the session. Recursive scans are only honoured with
// an empty selection.
func (e *Engine) Search(query string, recursive bool) {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	q := strings.TrimSpace(query)

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	if q == e.search.Query() {
		e.mu.Unlock()
		debug.Log(debug.SEARCH, "search: %q already processed", q)
		return
	}
	if q == "" {
		e.mu.Unlock()
		e.clearSearch()
		return
	}
	if len(e.search.Snapshot()) == 0 && len(e.listing) == 0 {
		e.mu.Unlock()
		debug.Log(debug.SEARCH, "search: nothing to search")
		return
	}
	if recursive && e.selection.Len() > 0 {
		debug.Log(debug.SEARCH, "search: selection not empty, searching flat")
		recursive = false
	}
	e.mu.Unlock()

	e.stopSearchJob()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	if e.search.begin(e.listing) {
		e.searchActive.set(true)
	}
	job := e.search.start(e.ctx, q, recursive)
	snapshot := e.search.Snapshot()
	e.setListingLocked(make(Listing, 0, len(snapshot)))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.search.run(job, snapshot, e.emitSearchResult)
	}()
}

// ClearSearch ends the search session and restores the directory
// listing.
func (e *Engine) ClearSearch() {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	e.clearSearch()
}

func (e *Engine) clearSearch() {
	e.stopSearchJob()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	if e.search.Active() {
		e.search.end()
		e.searchActive.set(false)
	}
	if e.base != nil {
		// Selected search hits outside the directory go now, not when
		// the refresh lands.
		if dropped := e.selection.Retain(e.base); dropped > 0 {
			debug.Log(debug.SELECT, "dropped %d selected search results", dropped)
			e.publishSelectionLocked()
		}
		e.setListingLocked(e.selection.Merge(e.base))
	}
	e.refreshLocked()
}

// stopSearchJob cancels the running scan and waits for it to exit. It
// must be called with cmdMu held and mu released.
func (e *Engine) stopSearchJob() {
	e.mu.Lock()
	job := e.search.detach()
	e.mu.Unlock()
	if job != nil {
		<-job.done
	}
}

func (e *Engine) emitSearchResult(job *searchJob, entry Entry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || !e.search.current(job) {
		return false
	}

	annotated := Match(Listing{entry}, e.apps)
	annotated[0].Selected = e.selection.Contains(annotated[0].Key())

	// The search owns e.listing, so appending never touches a slice
	// already handed to observers.
	e.listing = append(e.listing, annotated[0])
	e.visible.set(e.listing[:len(e.listing):len(e.listing)])
	metrics.RecordSearchMatch()
	return true
}

// Dispose unsubscribes from the app source, cancels background work and
// closes all observable values. Commands after Dispose are ignored.
func (e *Engine) Dispose() {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	job := e.search.detach()
	unsubscribe := e.unsubscribe
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.cancel()
	if job != nil {
		<-job.done
	}
	e.wg.Wait()

	if e.watcher != nil {
		e.watcher.Unwatch(e.current)
	}
	e.currentDirectory.close()
	e.visible.close()
	e.selected.close()
	e.searchActive.close()
	debug.Log(debug.APP, "engine disposed")
}

func (e *Engine) isDisposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// refreshLocked starts composing the current directory. Results of older
// computations are discarded.
func (e *Engine) refreshLocked() {
	if e.disposed {
		return
	}
	e.listingGen++
	gen, dir := e.listingGen, e.current

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		begin := time.Now()
		composed := e.listings.Compose(dir)
		e.applyListing(gen, dir, composed, time.Since(begin))
	}()
}

func (e *Engine) applyListing(gen uint64, dir string, composed Listing, took time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || gen != e.listingGen || dir != e.current {
		metrics.RecordStaleListing()
		debug.Log(debug.NAV, "discarding stale listing of %q (gen %d, current gen %d)", dir, gen, e.listingGen)
		return
	}
	metrics.RecordListing(took)

	matched := Match(composed, e.apps)
	// Selected search hits need not be in the directory listing.
	if !e.search.Active() {
		if dropped := e.selection.Retain(matched); dropped > 0 {
			debug.Log(debug.SELECT, "dropped %d selected entries no longer listed", dropped)
			e.publishSelectionLocked()
		}
	}
	e.base = e.selection.Merge(matched)
	if !e.search.Active() {
		e.setListingLocked(e.base)
	}
	debug.Log(debug.NAV, "listing of %q: %d entries in %v", dir, len(e.base), took)
}

func (e *Engine) onApps(snap registry.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.apps = snap
	e.base = e.selection.Merge(Match(e.base, snap))
	e.setListingLocked(e.selection.Merge(Match(e.listing, snap)))
	e.publishSelectionLocked()
	debug.Log(debug.STORE, "rematched listing against %d apps", len(snap))
}

func (e *Engine) watchLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case dir, ok := <-e.watcher.Notify():
			if !ok {
				return
			}
			e.mu.Lock()
			if !e.disposed && filepath.Clean(dir) == e.current {
				debug.Log(debug.NAV, "watch: %q changed, refreshing", dir)
				e.refreshLocked()
			}
			e.mu.Unlock()
		}
	}
}

func (e *Engine) watchCurrentLocked() {
	if e.watcher == nil {
		return
	}
	if err := e.watcher.WatchOnly(e.current); err != nil {
		debug.Log(debug.NAV, "watch %q: %v", e.current, err)
	}
}

func (e *Engine) setListingLocked(l Listing) {
	e.listing = l
	e.visible.set(l[:len(l):len(l)])
}

func (e *Engine) publishSelectionLocked() {
	entries := e.selection.Entries()
	e.selected.set(entries)
	metrics.SetSelectionSize(len(entries))
}

// withSelected returns a copy of l with the entry keyed k set to
// selected.
func withSelected(l Listing, k Key, selected bool) Listing {
	i := l.IndexOf(k)
	if i < 0 {
		return l
	}
	out := l.Clone()
	out[i].Selected = selected
	return out
}
