package db

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidRange = errors.New("invalid time range")

// Predicate selects rows from one table.
type Predicate struct {
	Table string

	// Start is inclusive, Stop exclusive. Zero leaves that side open.
	Start int64
	Stop  int64

	// Tags must all match exactly.
	Tags map[string]string
}

func (p Predicate) matches(r *row) bool {
	if p.Start != 0 && r.time < p.Start {
		return false
	}
	if p.Stop != 0 && r.time >= p.Stop {
		return false
	}
	for k, v := range p.Tags {
		if r.tags[k] != v {
			return false
		}
	}
	return true
}

// TagKeys returns the tag keys seen in table, sorted.
func (d *Db) TagKeys(table string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return sortedKeys(t.tagValues), nil
}

// TagValues returns the values seen for key in table, sorted. An unknown
// key has no values.
func (d *Db) TagValues(table, key string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return sortedKeys(t.tagValues[key]), nil
}

// FieldKeys returns the field keys seen in table, sorted.
func (d *Db) FieldKeys(table string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return sortedKeys(t.fieldKeys), nil
}

// Select returns the matching rows ordered by time, ties kept in write
// order. Returned maps are copies.
func (d *Db) Select(p Predicate) ([]Point, error) {
	if p.Stop != 0 && p.Start > p.Stop {
		return nil, fmt.Errorf("%w: start %d after stop %d", ErrInvalidRange, p.Start, p.Stop)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[p.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, p.Table)
	}

	var out []Point
	for i := range t.rows {
		r := &t.rows[i]
		if !p.matches(r) {
			continue
		}
		out = append(out, Point{
			Measurement: p.Table,
			Tags:        copyMap(r.tags),
			Fields:      copyMap(r.fields),
			Time:        r.time,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func copyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	c := make(map[string]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
