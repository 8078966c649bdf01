//go:build !linux

package fs

import (
	"os"
	"path/filepath"
)

// Drive represents a mounted storage volume
type Drive struct {
	Name string
	Path string
}

// ListDrives has no mount table to read outside Linux.
func ListDrives() []Drive {
	return nil
}

// StorageRoots returns the user's home directory as the only root.
func StorageRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Clean(home)}
}
