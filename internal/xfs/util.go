package xfs

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ExpandTilde replaces a leading tilde (~) with the user's home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// Snapshot maps the top-level entry names of a directory to their
// modification times.
type Snapshot map[string]time.Time

// TakeSnapshot records the entries of dir. A missing directory yields an
// empty snapshot.
func TakeSnapshot(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, nil
		}
		return nil, err
	}

	snap := make(Snapshot, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		snap[e.Name()] = info.ModTime()
	}

	return snap, nil
}

// Changed returns the sorted names that are new in after or whose
// modification time moved since before.
func Changed(before, after Snapshot) []string {
	var names []string
	for name, mod := range after {
		prev, ok := before[name]
		if !ok || !prev.Equal(mod) {
			names = append(names, name)
		}
	}

	slices.Sort(names)
	return names
}
