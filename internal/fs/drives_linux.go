//go:build linux

package fs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Drive represents a mounted storage volume
type Drive struct {
	Name string
	Path string
}

// ListDrives returns mounted storage volumes parsed from /proc/mounts.
func ListDrives() []Drive {
	return parseMounts("/proc/mounts")
}

func parseMounts(mountsPath string) []Drive {
	var drives []Drive

	file, err := os.Open(mountsPath)
	if err != nil {
		return drives
	}
	defer file.Close()

	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		mountPoint := fields[1]
		fsType := ""
		if len(fields) >= 3 {
			fsType = fields[2]
		}

		// Skip virtual filesystems
		if mountPoint == "/" ||
			strings.HasPrefix(mountPoint, "/sys") ||
			strings.HasPrefix(mountPoint, "/proc") ||
			strings.HasPrefix(mountPoint, "/dev") ||
			strings.HasPrefix(mountPoint, "/run") ||
			strings.HasPrefix(mountPoint, "/snap") ||
			strings.HasPrefix(mountPoint, "/boot") ||
			fsType == "tmpfs" ||
			fsType == "devtmpfs" ||
			fsType == "cgroup" ||
			fsType == "cgroup2" ||
			fsType == "overlay" {
			continue
		}
		if seen[mountPoint] {
			continue
		}
		seen[mountPoint] = true

		// Android exposes emulated storage and SD cards under /storage
		name := filepath.Base(mountPoint)
		if mountPoint == "/home" {
			name = "Home"
		}
		drives = append(drives, Drive{Name: name, Path: mountPoint})
	}

	return drives
}

// StorageRoots returns the root path of every known storage volume. The
// user's home directory is always included so the start directory has a
// containing root.
func StorageRoots() []string {
	var roots []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		roots = append(roots, p)
	}

	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Clean(home))
	}
	for _, d := range ListDrives() {
		add(filepath.Clean(d.Path))
	}
	return roots
}
