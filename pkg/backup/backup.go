// Package backup copies database WAL segments to object storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/internal/telemetry"
	"github.com/marmos91/bufferdb/pkg/wal"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of segments uploaded in parallel.
const DefaultConcurrency = 4

var (
	ErrNoSegments     = errors.New("database has no WAL segments")
	ErrBucketNotFound = errors.New("bucket not found")
)

// Object is a stored object as reported by List.
type Object struct {
	Key  string
	Size int64
}

// Store is the object storage a backup is written to.
type Store interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Result summarises one backup run.
type Result struct {
	Database string
	Uploaded []string
	Skipped  []string
	Bytes    int64
	Duration time.Duration
}

// Backup uploads the segments of one database.
type Backup struct {
	store       Store
	prefix      string
	concurrency int
}

// New returns a Backup writing under prefix. Keys are
// <prefix><database>/<segment file>.
func New(store Store, prefix string, concurrency int) *Backup {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Backup{store: store, prefix: prefix, concurrency: concurrency}
}

// Key returns the object key of a segment.
func (b *Backup) Key(database, segment string) string {
	return b.prefix + path.Join(database, segment)
}

// Run uploads every segment of the database in dir. Sealed segments whose
// remote copy has the same size are skipped; the newest segment is always
// uploaded since it may still grow.
func (b *Backup) Run(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	database := filepath.Base(dir)

	segs, err := wal.Segments(dir)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSegments, database)
	}

	existing, err := b.store.List(ctx, b.Key(database, ""))
	if err != nil {
		return nil, fmt.Errorf("list remote segments: %w", err)
	}
	remote := make(map[string]int64, len(existing))
	for _, o := range existing {
		remote[o.Key] = o.Size
	}

	res := &Result{Database: database}
	var todo []wal.Segment
	for i, seg := range segs {
		last := i == len(segs)-1
		if size, ok := remote[b.Key(database, seg.Name)]; ok && size == seg.Size && !last {
			res.Skipped = append(res.Skipped, seg.Name)
			continue
		}
		todo = append(todo, seg)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, seg := range todo {
		g.Go(func() error {
			return b.upload(gctx, database, seg)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, seg := range todo {
		res.Uploaded = append(res.Uploaded, seg.Name)
		res.Bytes += seg.Size
	}
	res.Duration = time.Since(start)

	logger.Info("Backup complete",
		logger.Database(database),
		"uploaded", len(res.Uploaded),
		"skipped", len(res.Skipped),
		logger.KeyBytes, res.Bytes,
		logger.DurationMs(logger.Duration(start)))
	return res, nil
}

func (b *Backup) upload(ctx context.Context, database string, seg wal.Segment) (err error) {
	key := b.Key(database, seg.Name)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanBackupUpload, telemetry.Database(database), telemetry.StorageKey(key))
	defer func() {
		telemetry.RecordError(ctx, err)
		span.End()
	}()

	f, err := os.Open(seg.Path)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", seg.Name, err)
	}
	defer f.Close()

	// The active segment can grow while it is read. Only the size seen at
	// listing time is sent; a torn tail is dropped on restore.
	body := io.NewSectionReader(f, 0, seg.Size)
	if err := b.store.Put(ctx, key, body, seg.Size); err != nil {
		return fmt.Errorf("upload segment %s: %w", seg.Name, err)
	}
	logger.Debug("Segment uploaded", logger.Database(database), logger.Segment(seg.Name), logger.KeyBytes, seg.Size)
	return nil
}
