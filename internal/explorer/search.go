package explorer

import (
	"context"
	"errors"
	iofs "io/fs"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justyntemme/explorer/internal/debug"
	"github.com/justyntemme/explorer/internal/fs"
	"github.com/justyntemme/explorer/internal/metrics"
)

// errStaleJob stops a walk whose results are no longer wanted.
var errStaleJob = errors.New("search job superseded")

type searchJob struct {
	id        string
	query     string // lower-cased
	recursive bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// emitFunc publishes one result for job. It returns false once job is no
// longer the current job.
type emitFunc func(job *searchJob, e Entry) bool

// SearchEngine holds one search session: the listing captured when the
// session began, the last processed query and the running scan. All
// methods except run expect the caller to hold the engine lock.
type SearchEngine struct {
	gw fs.Gateway

	active    bool
	snapshot  Listing
	lastQuery string
	job       *searchJob
}

func newSearchEngine(gw fs.Gateway) *SearchEngine {
	return &SearchEngine{gw: gw}
}

// Active reports whether a session is open.
func (s *SearchEngine) Active() bool { return s.active }

// Query returns the last processed query.
func (s *SearchEngine) Query() string { return s.lastQuery }

// Snapshot returns the listing the session searches over.
func (s *SearchEngine) Snapshot() Listing { return s.snapshot }

// begin opens a session over listing. It reports false when a session
// was already open, in which case the original snapshot is kept.
func (s *SearchEngine) begin(listing Listing) bool {
	if s.active {
		return false
	}
	s.active = true
	s.snapshot = listing.Clone()
	return true
}

// detach cancels the running job and forgets it. The caller must wait on
// the returned job's done channel without holding the engine lock.
func (s *SearchEngine) detach() *searchJob {
	job := s.job
	if job == nil {
		return nil
	}
	s.job = nil
	select {
	case <-job.done:
	default:
		metrics.RecordSearchCancelled()
		debug.Logw(debug.SEARCH, "search job cancelled", "job", job.id)
	}
	job.cancel()
	return job
}

// end closes the session. The job must already be detached.
func (s *SearchEngine) end() {
	s.active = false
	s.snapshot = nil
	s.lastQuery = ""
}

// start registers a new job for query. The caller runs it with run.
func (s *SearchEngine) start(parent context.Context, query string, recursive bool) *searchJob {
	ctx, cancel := context.WithCancel(parent)
	job := &searchJob{
		id:        uuid.NewString(),
		query:     strings.ToLower(query),
		recursive: recursive,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.lastQuery = query
	s.job = job
	metrics.RecordSearchStarted(recursive)
	debug.Logw(debug.SEARCH, "search job started",
		"job", job.id, "query", query, "recursive", recursive, "entries", len(s.snapshot))
	return job
}

// current reports whether job is still the live job.
func (s *SearchEngine) current(job *searchJob) bool {
	return s.job == job && job.ctx.Err() == nil
}

// run scans snapshot for job and streams matches through emit.
func (s *SearchEngine) run(job *searchJob, snapshot Listing, emit emitFunc) {
	defer close(job.done)
	defer job.cancel()

	begin := time.Now()
	var emitted int
	publish := func(e Entry) bool {
		if !emit(job, e) {
			return false
		}
		emitted++
		return true
	}

	if job.recursive {
		s.scanRecursive(job, snapshot, publish)
	} else {
		s.scanFlat(job, snapshot, publish)
	}

	debug.Logw(debug.SEARCH, "search job finished",
		"job", job.id, "results", emitted, "took", time.Since(begin), "cancelled", job.ctx.Err() != nil)
}

func (s *SearchEngine) scanFlat(job *searchJob, snapshot Listing, publish func(Entry) bool) {
	for _, e := range snapshot {
		if job.ctx.Err() != nil {
			return
		}
		if !nameContains(e.DisplayName, job.query) && !nameContains(e.File.Name, job.query) {
			continue
		}
		if !publish(e) {
			return
		}
	}
}

// scanRecursive walks the subtree under every snapshot entry except the
// parent link. Hidden nodes are neither emitted nor descended into and a
// path reachable from two roots is emitted once.
func (s *SearchEngine) scanRecursive(job *searchJob, snapshot Listing, publish func(Entry) bool) {
	var mu sync.Mutex
	seen := make(map[string]bool)

	// Walk callbacks run concurrently; publishing is serialised so
	// results keep a stable order per walker.
	visit := func(ref fs.FileRef) error {
		if ref.IsHidden {
			if ref.IsDir {
				return iofs.SkipDir
			}
			return nil
		}
		if !nameContains(ref.Name, job.query) || !s.gw.Exists(ref.Path) {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if seen[ref.Path] {
			return nil
		}
		seen[ref.Path] = true
		if !publish(newEntry(ref)) {
			return errStaleJob
		}
		return nil
	}

	for _, e := range snapshot {
		if job.ctx.Err() != nil {
			return
		}
		if e.IsParentLink() {
			continue
		}
		err := s.gw.Walk(job.ctx, e.File.Path, visit)
		switch {
		case err == nil:
		case errors.Is(err, errStaleJob), errors.Is(err, context.Canceled):
			return
		default:
			debug.Logw(debug.SEARCH, "search walk failed", "job", job.id, "root", e.File.Path, "error", err)
		}
	}
}

func nameContains(name, lowerQuery string) bool {
	return name != "" && strings.Contains(strings.ToLower(name), lowerQuery)
}
