package explorer

// SelectionManager owns the selected-entry set. It is not safe for
// concurrent use; the Engine serialises access.
type SelectionManager struct {
	order []Key
	set   map[Key]Entry
}

// NewSelectionManager returns an empty selection.
func NewSelectionManager() *SelectionManager {
	return &SelectionManager{set: make(map[Key]Entry)}
}

// Toggle flips the selection state of entry and returns the new state.
// The current state is taken from set membership, so a stale copy of a
// selected entry still deselects it. Unselectable entries are always
// deselected.
func (m *SelectionManager) Toggle(entry *Entry) bool {
	k := entry.Key()
	if !entry.Selectable {
		entry.Selected = false
		m.remove(k)
		return false
	}

	entry.Selected = !m.Contains(k)
	if entry.Selected {
		m.put(*entry)
	} else {
		m.remove(k)
	}
	return entry.Selected
}

// Merge returns a copy of listing in which every entry's Selected flag
// reflects membership. Stored copies are refreshed from the listing so
// they carry its current app match.
func (m *SelectionManager) Merge(listing Listing) Listing {
	out := listing.Clone()
	for i := range out {
		k := out[i].Key()
		_, ok := m.set[k]
		out[i].Selected = ok
		if ok {
			m.set[k] = out[i]
		}
	}
	return out
}

// Clear deselects everything in listing and empties the set.
func (m *SelectionManager) Clear(listing Listing) Listing {
	out := listing.Clone()
	for i := range out {
		out[i].Selected = false
	}
	m.order = nil
	m.set = make(map[Key]Entry)
	return out
}

// Retain drops members absent from listing and returns how many were
// dropped.
func (m *SelectionManager) Retain(listing Listing) int {
	if len(m.set) == 0 {
		return 0
	}
	present := make(map[Key]bool, len(listing))
	for _, e := range listing {
		present[e.Key()] = true
	}
	dropped := 0
	for _, k := range append([]Key(nil), m.order...) {
		if !present[k] {
			m.remove(k)
			dropped++
		}
	}
	return dropped
}

// Contains reports whether an entry with key k is selected.
func (m *SelectionManager) Contains(k Key) bool {
	_, ok := m.set[k]
	return ok
}

// Len returns the number of selected entries.
func (m *SelectionManager) Len() int {
	return len(m.set)
}

// Entries returns the selected entries in selection order.
func (m *SelectionManager) Entries() []Entry {
	out := make([]Entry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.set[k])
	}
	return out
}

func (m *SelectionManager) put(e Entry) {
	k := e.Key()
	if _, ok := m.set[k]; !ok {
		m.order = append(m.order, k)
	}
	m.set[k] = e
}

func (m *SelectionManager) remove(k Key) {
	if _, ok := m.set[k]; !ok {
		return
	}
	delete(m.set, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
