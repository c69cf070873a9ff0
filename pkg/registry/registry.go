// Package registry holds the set of recovered databases shared by the
// listeners.
//
// The registry has two phases. During recovery a single goroutine fills a
// Builder. Freeze then turns it into an immutable Registry that any number
// of goroutines may read without locking.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marmos91/bufferdb/pkg/db"
)

var (
	ErrFrozen    = errors.New("registry is frozen")
	ErrDuplicate = errors.New("database already registered")
)

// Builder accumulates databases during recovery.
type Builder struct {
	dbs    map[string]*db.Db
	frozen bool
}

func NewBuilder() *Builder {
	return &Builder{dbs: make(map[string]*db.Db)}
}

// Insert adds d under name. It fails after Freeze, on an empty name, on a
// nil handle and on a duplicate name.
func (b *Builder) Insert(name string, d *db.Db) error {
	if b.frozen {
		return ErrFrozen
	}
	if name == "" {
		return errors.New("cannot register database with empty name")
	}
	if d == nil {
		return fmt.Errorf("cannot register nil database %q", name)
	}
	if _, exists := b.dbs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	b.dbs[name] = d
	return nil
}


// Freeze ends the write phase and returns the read-only registry.
func (b *Builder) Freeze() *Registry {
	b.frozen = true

	r := &Registry{
		dbs:   make(map[string]*db.Db, len(b.dbs)),
		names: make([]string, 0, len(b.dbs)),
	}
	for name, d := range b.dbs {
		r.dbs[name] = d
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Registry is the frozen database set.
type Registry struct {
	dbs   map[string]*db.Db
	names []string
}

// Get returns the named database or db.ErrDatabaseNotFound.
func (r *Registry) Get(name string) (*db.Db, error) {
	d, ok := r.dbs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrDatabaseNotFound, name)
	}
	return d, nil
}

// Names returns the database names in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) Len() int { return len(r.names) }

// Each calls fn for every database in name order and joins the errors.
func (r *Registry) Each(fn func(*db.Db) error) error {
	var errs []error
	for _, name := range r.names {
		if err := fn(r.dbs[name]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// WALDirs lists the database directories directly under root in lexical
// order. Regular files and hidden entries are skipped.
func WALDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list databases in %s: %w", root, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	// os.ReadDir already sorts by name; keep the order explicit.
	sort.Strings(dirs)
	return dirs, nil
}
