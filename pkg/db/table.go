package db

import "sort"

type row struct {
	tags   map[string]string
	fields map[string]any
	time   int64
}

type table struct {
	rows      []row
	tagValues map[string]map[string]struct{}
	fieldKeys map[string]struct{}
}

func newTable() *table {
	return &table{
		tagValues: make(map[string]map[string]struct{}),
		fieldKeys: make(map[string]struct{}),
	}
}

func (t *table) insert(p *Point) {
	t.rows = append(t.rows, row{tags: p.Tags, fields: p.Fields, time: p.Time})
	for k, v := range p.Tags {
		vals, ok := t.tagValues[k]
		if !ok {
			vals = make(map[string]struct{})
			t.tagValues[k] = vals
		}
		vals[v] = struct{}{}
	}
	for k := range p.Fields {
		t.fieldKeys[k] = struct{}{}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
