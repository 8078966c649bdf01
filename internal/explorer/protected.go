package explorer

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Region decides which paths may not be entered without force.
type Region interface {
	Contains(path string) bool
}

// ProtectedRegion matches paths against doublestar glob patterns.
type ProtectedRegion struct {
	patterns []string
}

// NewProtectedRegion validates patterns and returns a region covering
// every path any of them matches.
func NewProtectedRegion(patterns []string) (*ProtectedRegion, error) {
	r := &ProtectedRegion{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		p = filepath.ToSlash(p)
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid protected pattern %q", p)
		}
		r.patterns = append(r.patterns, p)
	}
	return r, nil
}

// Contains reports whether path lies in the protected region.
func (r *ProtectedRegion) Contains(path string) bool {
	if r == nil {
		return false
	}
	name := filepath.ToSlash(filepath.Clean(path))
	for _, p := range r.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (r *ProtectedRegion) Patterns() []string {
	return append([]string(nil), r.patterns...)
}
