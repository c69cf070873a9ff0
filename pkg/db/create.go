package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/marmos91/bufferdb/pkg/wal"
)

var (
	ErrInvalidName = errors.New("invalid database name")
	ErrExists      = errors.New("database already exists")
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateName checks that name can be used as a database directory.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Create makes an empty database under root and returns its directory.
// It must not be used while a server owns root.
func Create(root, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, name)
	}

	w, _, err := wal.Open(dir, wal.Options{}, nil)
	if err != nil {
		return "", fmt.Errorf("create database %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("create database %s: %w", name, err)
	}
	return dir, nil
}
