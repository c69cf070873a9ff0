// Package datadir resolves and creates the database root directory.
package datadir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDirName is the directory created under $HOME when no override is
// configured.
const DefaultDirName = ".bufferdb"

// ErrUnavailable is wrapped by every Resolve failure.
var ErrUnavailable = errors.New("database directory unavailable")

// userHomeDir is swapped in tests.
var userHomeDir = os.UserHomeDir

// Resolve returns the database root. A non-empty override is used as given
// (cleaned); otherwise the root is $HOME/.bufferdb. The directory and its
// parents are created.
func Resolve(override string) (string, error) {
	dir := override
	if dir == "" {
		home, err := userHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: cannot determine home directory: %w", ErrUnavailable, err)
		}
		if home == "" {
			return "", fmt.Errorf("%w: home directory is empty", ErrUnavailable)
		}
		dir = filepath.Join(home, DefaultDirName)
	}
	dir = filepath.Clean(dir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, dir, err)
	}

	// MkdirAll succeeds on an existing non-directory only in odd cases, but a
	// regular file at the root must still be rejected.
	fi, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, dir, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrUnavailable, dir)
	}
	return dir, nil
}
