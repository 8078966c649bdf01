package explorer

import (
	"path/filepath"

	"github.com/justyntemme/explorer/internal/registry"
)

// Match attaches to every entry the app whose install-source path equals
// the entry's path, clearing stale matches. The input is not modified.
func Match(listing Listing, apps registry.Snapshot) Listing {
	if listing == nil {
		return nil
	}
	byPath := make(map[string]*registry.AppRecord, len(apps))
	for i := range apps {
		p := filepath.Clean(apps[i].SourcePath)
		if _, dup := byPath[p]; !dup {
			byPath[p] = &apps[i]
		}
	}

	out := make(Listing, len(listing))
	for i, e := range listing {
		e.App = byPath[e.File.Path]
		out[i] = e
	}
	return out
}
