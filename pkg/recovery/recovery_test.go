package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n), 0o755))
	}
}

func TestRunRecoversAllInOrder(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "c", "a", "b")

	var order []string
	o := NewWithFunc(func(_ context.Context, dir string) (*db.Db, error) {
		order = append(order, filepath.Base(dir))
		return db.New(filepath.Base(dir), nil), nil
	})

	reg, err := o.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"a", "b", "c"}, reg.Names())
}

func TestRunEmptyRoot(t *testing.T) {
	reg, err := NewWithFunc(func(context.Context, string) (*db.Db, error) {
		t.Fatal("nothing to recover")
		return nil, nil
	}).Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a", "b", "c")

	corrupt := errors.New("checksum mismatch")
	var first *db.Db
	var calls []string
	o := NewWithFunc(func(_ context.Context, dir string) (*db.Db, error) {
		name := filepath.Base(dir)
		calls = append(calls, name)
		if name == "b" {
			return nil, corrupt
		}
		d := db.New(name, nil)
		if first == nil {
			first = d
		}
		return d, nil
	})

	reg, err := o.Run(context.Background(), root)
	require.Error(t, err)
	assert.Nil(t, reg)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.ErrorIs(t, err, corrupt)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, filepath.Join(root, "b"), rerr.Dir)
	assert.Contains(t, err.Error(), "checksum mismatch")

	// Databases recovered before the failure are released.
	_, werr := first.Write(context.Background(), []byte("cpu usage=1 1"))
	assert.ErrorIs(t, werr, db.ErrClosed)
}

func TestRunNilDatabase(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a")

	_, err := NewWithFunc(func(context.Context, string) (*db.Db, error) {
		return nil, nil
	}).Run(context.Background(), root)
	require.Error(t, err)
}

func TestRunUnreadableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewWithFunc(Restore(db.Options{})).Run(context.Background(), file)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, file, rerr.Dir)
}

func TestRunRestoresFromWAL(t *testing.T) {
	root := t.TempDir()
	opts := db.Options{WAL: wal.Options{SyncOnWrite: true}}
	ctx := context.Background()

	for _, name := range []string{"metrics", "events"} {
		dir, err := db.Create(root, name)
		require.NoError(t, err)
		d, err := db.RestoreFromWAL(ctx, dir, opts)
		require.NoError(t, err)
		_, err = d.Write(ctx, []byte(name+",host=a v=1i 10\n"+name+",host=b v=2i 20\n"))
		require.NoError(t, err)
		require.NoError(t, d.Close())
	}

	reg, err := NewWithFunc(Restore(opts)).Run(ctx, root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Each(func(d *db.Db) error { return d.Close() }) })

	require.Equal(t, []string{"events", "metrics"}, reg.Names())
	d, err := reg.Get("metrics")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Stats().Rows)
	vals, err := d.TagValues("metrics", "host")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, vals)
}

func TestRunCorruptWAL(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	opts := db.Options{WAL: wal.Options{SegmentSize: 4096, SyncOnWrite: true}}

	dir, err := db.Create(root, "broken")
	require.NoError(t, err)
	d, err := db.RestoreFromWAL(ctx, dir, opts)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = d.Write(ctx, []byte("cpu usage=1 1\n"))
		require.NoError(t, err)
	}
	require.NoError(t, d.Close())

	segs, err := wal.Segments(dir)
	require.NoError(t, err)
	require.NotEmpty(t, segs)

	// Flip a payload byte of the first frame so its checksum no longer matches.
	data, err := os.ReadFile(segs[0].Path)
	require.NoError(t, err)
	data[10] ^= 0xff
	require.NoError(t, os.WriteFile(segs[0].Path, data, 0o644))

	_, err = NewWithFunc(Restore(opts)).Run(ctx, root)
	require.Error(t, err)
	assert.ErrorIs(t, err, wal.ErrCorrupted)
}
