// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindConfig walks from startDir up through its parents and returns the
// first existing file matching one of the candidate names, in preference
// order per directory. It fails when the filesystem root is reached without
// a hit.
func FindConfig(startDir string, names ...string) (string, error) {
	if len(names) == 0 {
		panic("at least one candidate name is required")
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %v found in %s or any parent directory", names, startDir)
		}
		dir = parent
	}
}
