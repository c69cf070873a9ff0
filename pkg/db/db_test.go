package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/bufferdb/pkg/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `cpu,host=a,region=west usage=0.5,cores=4i 1000
cpu,host=b,region=east usage=0.9,cores=8i 2000
mem,host=a free=1024u,ok=true,note="fine" 1500
`

func restore(t *testing.T, dir string) *Db {
	t.Helper()
	d, err := RestoreFromWAL(context.Background(), dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestParseLines(t *testing.T) {
	def := time.Unix(0, 42)
	points, err := ParseLines([]byte(sample+"disk used=1\n"), def)
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, "cpu", points[0].Measurement)
	assert.Equal(t, map[string]string{"host": "a", "region": "west"}, points[0].Tags)
	assert.Equal(t, 0.5, points[0].Fields["usage"])
	assert.Equal(t, int64(4), points[0].Fields["cores"])
	assert.Equal(t, int64(1000), points[0].Time)

	assert.Equal(t, uint64(1024), points[2].Fields["free"])
	assert.Equal(t, true, points[2].Fields["ok"])
	assert.Equal(t, "fine", points[2].Fields["note"])
	assert.Nil(t, points[3].Tags)
	assert.Equal(t, int64(42), points[3].Time)
}

func TestParseLinesRejectsBatch(t *testing.T) {
	_, err := ParseLines([]byte("cpu usage=1 1\ncpu usage=abc 2\n"), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestWriteAndRead(t *testing.T) {
	d := New("telegraf", nil)

	n, err := d.Write(context.Background(), []byte(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{"cpu", "mem"}, d.TableNames())

	keys, err := d.TagKeys("cpu")
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "region"}, keys)

	vals, err := d.TagValues("cpu", "host")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, vals)

	vals, err = d.TagValues("cpu", "nope")
	require.NoError(t, err)
	assert.Empty(t, vals)

	fields, err := d.FieldKeys("mem")
	require.NoError(t, err)
	assert.Equal(t, []string{"free", "note", "ok"}, fields)

	_, err = d.TagKeys("disk")
	assert.ErrorIs(t, err, ErrTableNotFound)

	assert.Equal(t, Stats{Name: "telegraf", Tables: 2, Rows: 3}, d.Stats())
}

func TestWriteParseErrorLogsNothing(t *testing.T) {
	d := restore(t, filepath.Join(t.TempDir(), "db"))

	_, err := d.Write(context.Background(), []byte("cpu usage=1\ncpu usage=abc"))
	require.ErrorIs(t, err, ErrParse)
	assert.Empty(t, d.TableNames())

	replayed := 0
	_, err = wal.Replay(d.Dir(), func(*wal.Entry) error { replayed++; return nil })
	require.NoError(t, err)
	assert.Zero(t, replayed)
}

func TestWriteEmptyBatch(t *testing.T) {
	d := New("x", nil)
	n, err := d.Write(context.Background(), []byte("\n\n"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSelect(t *testing.T) {
	d := New("x", nil)
	_, err := d.Write(context.Background(), []byte(sample+"cpu,host=a usage=0.1 500\n"))
	require.NoError(t, err)

	all, err := d.Select(Predicate{Table: "cpu"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{500, 1000, 2000}, []int64{all[0].Time, all[1].Time, all[2].Time})

	hostA, err := d.Select(Predicate{Table: "cpu", Tags: map[string]string{"host": "a"}})
	require.NoError(t, err)
	assert.Len(t, hostA, 2)

	window, err := d.Select(Predicate{Table: "cpu", Start: 1000, Stop: 2000})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, int64(1000), window[0].Time)

	window[0].Tags["host"] = "mutated"
	again, _ := d.Select(Predicate{Table: "cpu", Start: 1000, Stop: 2000})
	assert.Equal(t, "a", again[0].Tags["host"])

	_, err = d.Select(Predicate{Table: "cpu", Start: 10, Stop: 5})
	assert.Error(t, err)

	_, err = d.Select(Predicate{Table: "gpu"})
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRestoreFromWAL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "telegraf")

	first, err := RestoreFromWAL(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, "telegraf", first.Name())

	fixed := time.Unix(0, 777)
	first.now = func() time.Time { return fixed }
	_, err = first.Write(context.Background(), []byte(sample))
	require.NoError(t, err)
	_, err = first.Write(context.Background(), []byte("disk used=3i"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := restore(t, dir)
	assert.Equal(t, first.Stats(), second.Stats())

	disk, err := second.Select(Predicate{Table: "disk"})
	require.NoError(t, err)
	require.Len(t, disk, 1)
	assert.Equal(t, int64(777), disk[0].Time, "default timestamp must survive replay")
}

func TestRestoreFromWALCorrupted(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	w, _, err := wal.Open(dir, wal.Options{}, nil)
	require.NoError(t, err)
	_, err = w.Append(&wal.Entry{Lines: []byte("not line protocol")})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = RestoreFromWAL(context.Background(), dir, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, wal.ErrCorrupted)
}

func TestRestoreFromWALCancelled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	d := restore(t, dir)
	_, err := d.Write(context.Background(), []byte("cpu v=1"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RestoreFromWAL(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClosedDatabase(t *testing.T) {
	d := restore(t, filepath.Join(t.TempDir(), "db"))
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err := d.Write(context.Background(), []byte("cpu v=1"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, d.Sync())
	assert.Empty(t, d.TableNames())
}

type failingPersister struct{ wal.NullPersister }

func (failingPersister) Append(*wal.Entry) (uint64, error) { return 0, errors.New("disk full") }

func TestWriteLogFailureAppliesNothing(t *testing.T) {
	d := New("x", &failingPersister{})
	_, err := d.Write(context.Background(), []byte("cpu v=1"))
	require.Error(t, err)
	assert.Empty(t, d.TableNames())
}

func TestConcurrentWritesAndReads(t *testing.T) {
	d := restore(t, filepath.Join(t.TempDir(), "db"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := d.Write(context.Background(), []byte("cpu,host=a v=1"))
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = d.TableNames()
				_, _ = d.Select(Predicate{Table: "cpu"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, d.Stats().Rows)
}

func TestCreate(t *testing.T) {
	root := t.TempDir()

	dir, err := Create(root, "telegraf_metrics")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	segs, err := wal.Segments(dir)
	require.NoError(t, err)
	assert.Len(t, segs, 1)

	_, err = Create(root, "telegraf_metrics")
	assert.ErrorIs(t, err, ErrExists)

	for _, bad := range []string{"", ".", "..", "a/b", "-x", "with space"} {
		_, err := Create(root, bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}

	entries, _ := os.ReadDir(root)
	assert.Len(t, entries, 1)
}
