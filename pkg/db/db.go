// Package db holds a recovered database: line protocol rows grouped by
// table, rebuilt from and appended to the database's write-ahead log.
package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/pkg/wal"
)

var (
	ErrDatabaseNotFound = errors.New("database not found")
	ErrTableNotFound    = errors.New("table not found")
	ErrClosed           = errors.New("database is closed")
)

// Options configures a database opened from disk.
type Options struct {
	WAL wal.Options
}

// Db is a database handle. It is safe for concurrent use; writes are
// serialised so WAL order equals apply order.
type Db struct {
	name string
	dir  string

	mu     sync.RWMutex
	tables map[string]*table
	log    wal.Persister
	rows   int
	closed bool
	now    func() time.Time
}

// New returns an empty database logging to p. RestoreFromWAL is the normal
// constructor; New serves in-memory databases.
func New(name string, p wal.Persister) *Db {
	if p == nil {
		p = wal.NewNullPersister()
	}
	return &Db{
		name:   name,
		tables: make(map[string]*table),
		log:    p,
		now:    time.Now,
	}
}

// RestoreFromWAL rebuilds the database stored in dir by replaying its log,
// and leaves the log open for appends. The database is named after the
// directory.
func RestoreFromWAL(ctx context.Context, dir string, opts Options) (*Db, error) {
	d := New(filepath.Base(dir), nil)
	d.dir = dir

	start := time.Now()
	w, stats, err := wal.Open(dir, opts.WAL, func(e *wal.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		points, err := ParseLines(e.Lines, e.Time())
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", wal.ErrCorrupted, e.Sequence, err)
		}
		d.apply(points)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", d.name, err)
	}
	d.log = w

	if stats.TornBytes > 0 {
		logger.Warn("Dropped incomplete WAL tail",
			logger.Database(d.name), logger.KeyBytes, stats.TornBytes)
	}
	logger.Debug("Database restored",
		logger.Database(d.name),
		logger.Entries(stats.Entries),
		logger.Sequence(stats.LastSequence),
		logger.Rows(d.rows),
		logger.DurationMs(logger.Duration(start)))
	return d, nil
}

func (d *Db) Name() string { return d.name }

// Dir returns the on-disk directory, or "" for in-memory databases.
func (d *Db) Dir() string { return d.dir }

// Write parses lines, logs them as one WAL entry and applies them. A parse
// error rejects the whole batch and nothing is logged. It returns the number
// of points written.
func (d *Db) Write(ctx context.Context, lines []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}

	now := d.now()
	points, err := ParseLines(lines, now)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	if _, err := d.log.Append(&wal.Entry{Timestamp: now.UnixNano(), Lines: lines}); err != nil {
		return 0, fmt.Errorf("log write to %s: %w", d.name, err)
	}
	d.apply(points)
	return len(points), nil
}

// apply must be called with mu held or before the Db is shared.
func (d *Db) apply(points []Point) {
	for i := range points {
		p := &points[i]
		t, ok := d.tables[p.Measurement]
		if !ok {
			t = newTable()
			d.tables[p.Measurement] = t
		}
		t.insert(p)
		d.rows++
	}
}

// Stats describes a database's contents.
type Stats struct {
	Name   string `json:"name"`
	Tables int    `json:"tables"`
	Rows   int    `json:"rows"`
}

func (d *Db) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{Name: d.name, Tables: len(d.tables), Rows: d.rows}
}

// Sync flushes the WAL.
func (d *Db) Sync() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	return d.log.Sync()
}

// Close syncs and closes the WAL. Further writes fail with ErrClosed;
// reads keep working.
func (d *Db) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.log.Close()
}

// TableNames returns the table names in lexical order.
func (d *Db) TableNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
