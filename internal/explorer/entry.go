// Package explorer is the navigation, search and selection state engine
// behind a storage browser.
package explorer

import (
	"github.com/justyntemme/explorer/internal/fs"
	"github.com/justyntemme/explorer/internal/registry"
)

// ParentLinkName is the display name of the synthetic parent entry.
const ParentLinkName = ".."

// Key identifies an Entry's slot in a listing independently of its
// selection and app-match state.
type Key struct {
	Path        string
	DisplayName string
}

// Entry is one displayable row.
type Entry struct {
	File        fs.FileRef
	DisplayName string              // override, "" for ordinary entries
	App         *registry.AppRecord // matched installed app, if any
	Selectable  bool
	Selected    bool
}

// Key returns the entry's identity.
func (e Entry) Key() Key {
	return Key{Path: e.File.Path, DisplayName: e.DisplayName}
}

// Name is the override name if set, else the file name.
func (e Entry) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.File.Name
}

// IsParentLink reports whether e is the synthetic ".." entry.
func (e Entry) IsParentLink() bool {
	return e.DisplayName == ParentLinkName && !e.Selectable
}

// Listing is the ordered sequence of entries currently shown.
type Listing []Entry

// Clone returns a copy that can be mutated without affecting l.
func (l Listing) Clone() Listing {
	if l == nil {
		return nil
	}
	out := make(Listing, len(l))
	copy(out, l)
	return out
}

// IndexOf returns the position of the entry with key k, or -1.
func (l Listing) IndexOf(k Key) int {
	for i := range l {
		if l[i].Key() == k {
			return i
		}
	}
	return -1
}

func newEntry(ref fs.FileRef) Entry {
	return Entry{File: ref, Selectable: true}
}
