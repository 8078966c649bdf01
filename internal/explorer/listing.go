package explorer

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/justyntemme/explorer/internal/debug"
	"github.com/justyntemme/explorer/internal/fs"
	"github.com/justyntemme/explorer/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// rootMounts are injected when browsing the filesystem root.
var rootMounts = []string{"/data", "/storage", "/system"}

// ListingService turns raw directory reads into ordered listings.
type ListingService struct {
	gw       fs.Gateway
	startDir string
	roots    []string

	// Collapses concurrent reads of one directory, e.g. a watcher
	// refresh racing a navigation.
	reads singleflight.Group
}

// NewListingService creates a service for an engine started at startDir
// on a device whose storage volumes are rooted at roots.
func NewListingService(gw fs.Gateway, startDir string, roots []string) *ListingService {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if r != "" {
			clean = append(clean, filepath.Clean(r))
		}
	}
	return &ListingService{
		gw:       gw,
		startDir: filepath.Clean(startDir),
		roots:    clean,
	}
}

// List reads dir through the gateway.
func (s *ListingService) List(dir string) ([]fs.FileRef, error) {
	v, err, shared := s.reads.Do(dir, func() (interface{}, error) {
		return s.gw.List(dir)
	})
	if shared {
		debug.Log(debug.FS, "List: shared read of %q", dir)
	}
	if err != nil {
		return nil, err
	}
	return v.([]fs.FileRef), nil
}

// storageRoot returns the longest configured root containing startDir,
// or startDir itself when none does.
func (s *ListingService) storageRoot() string {
	best := ""
	for _, r := range s.roots {
		if isWithin(s.startDir, r) && len(r) > len(best) {
			best = r
		}
	}
	if best == "" {
		return s.startDir
	}
	return best
}

// StorageParent is the directory at which storage volume roots are
// shown as siblings.
func (s *ListingService) StorageParent() string {
	return filepath.Dir(s.storageRoot())
}

// Compose builds the listing for dir. Unreadable directories produce an
// empty base listing.
func (s *ListingService) Compose(dir string) Listing {
	dir = filepath.Clean(dir)

	refs, err := s.List(dir)
	if err != nil {
		var readErr *fs.ReadError
		if errors.As(err, &readErr) {
			debug.Log(debug.FS, "Compose: %v, showing empty listing", readErr)
		} else {
			debug.Warn(debug.FS, "Compose: unexpected error reading %q: %v", dir, err)
		}
		metrics.RecordReadError()
		refs = nil
	}

	entries := make(Listing, 0, len(refs)+len(rootMounts)+1)
	seen := make(map[string]bool, len(refs))
	add := func(ref fs.FileRef) {
		if ref.IsHidden || seen[ref.Path] {
			return
		}
		seen[ref.Path] = true
		entries = append(entries, newEntry(ref))
	}

	for _, ref := range refs {
		add(ref)
	}

	atRoot := isRoot(dir)
	atStorageParent := dir == s.StorageParent()

	if atStorageParent {
		for _, r := range s.roots {
			add(s.syntheticDir(r))
		}
	}
	if atRoot {
		for _, m := range rootMounts {
			add(s.syntheticDir(m))
		}
	}

	SortEntries(entries)

	if !atRoot && !atStorageParent {
		entries = append(Listing{parentLink(dir)}, entries...)
	}
	return entries
}

// syntheticDir describes an injected volume or mount root. Roots that
// cannot be stat'ed are still shown as directories.
func (s *ListingService) syntheticDir(path string) fs.FileRef {
	ref, err := s.gw.Stat(path)
	if err != nil {
		name := filepath.Base(path)
		return fs.FileRef{Path: path, Name: name, IsDir: true, IsHidden: strings.HasPrefix(name, ".")}
	}
	return ref
}

func parentLink(dir string) Entry {
	parent := filepath.Dir(dir)
	return Entry{
		File:        fs.FileRef{Path: parent, Name: filepath.Base(parent), IsDir: true},
		DisplayName: ParentLinkName,
		Selectable:  false,
	}
}

// SortEntries orders directories before files, then by case-insensitive
// name.
func SortEntries(entries Listing) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].File.IsDir != entries[j].File.IsDir {
			return entries[i].File.IsDir
		}
		ni, nj := strings.ToLower(entries[i].Name()), strings.ToLower(entries[j].Name())
		if ni != nj {
			return ni < nj
		}
		return entries[i].File.Path < entries[j].File.Path
	})
}

func isRoot(dir string) bool {
	return filepath.Dir(dir) == dir
}

// isWithin reports whether path equals root or lies below it.
func isWithin(path, root string) bool {
	if path == root {
		return true
	}
	if isRoot(root) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
