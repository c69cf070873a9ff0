package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Writer appends entries to a log directory. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	dir     string
	opts    Options
	id      string
	seq     uint64
	segID   uint64
	f       *os.File
	size    int64
	dirty   bool
	closed  bool
	nowFunc func() time.Time
}

// Open replays the log in dir through fn (which may be nil) and returns a
// Writer positioned after the last valid entry. An incomplete trailing
// frame is truncated away. The directory is created if needed.
func Open(dir string, opts Options, fn func(*Entry) error) (*Writer, ReplayStats, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ReplayStats{}, fmt.Errorf("create wal directory: %w", err)
	}

	segs, err := Segments(dir)
	if err != nil {
		return nil, ReplayStats{}, err
	}
	if fn == nil {
		fn = func(*Entry) error { return nil }
	}
	stats, err := replaySegments(segs, fn)
	if err != nil {
		return nil, stats, err
	}

	w := &Writer{
		dir:     dir,
		opts:    opts.withDefaults(),
		id:      uuid.NewString(),
		seq:     stats.LastSequence,
		nowFunc: time.Now,
	}

	if len(segs) == 0 {
		if err := w.openSegment(1, 0); err != nil {
			return nil, stats, err
		}
		return w, stats, nil
	}

	last := segs[len(segs)-1]
	if stats.TornBytes > 0 {
		if err := os.Truncate(last.Path, stats.tail); err != nil {
			return nil, stats, fmt.Errorf("truncate torn tail of %s: %w", last.Name, err)
		}
	}
	if err := w.openSegment(last.ID, stats.tail); err != nil {
		return nil, stats, err
	}
	return w, stats, nil
}

func (w *Writer) openSegment(id uint64, size int64) error {
	path := filepath.Join(w.dir, SegmentName(id))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", SegmentName(id), err)
	}
	w.f, w.segID, w.size = f, id, size
	return nil
}

// Append assigns the next sequence number to e, stamps it with this
// writer's id and the current time when unset, and writes it.
func (w *Writer) Append(e *Entry) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	e.Sequence = w.seq + 1
	if e.WriterID == "" {
		e.WriterID = w.id
	}
	if e.Timestamp == 0 {
		e.Timestamp = w.nowFunc().UnixNano()
	}

	frame, err := encodeFrame(e)
	if err != nil {
		return 0, err
	}
	if int64(len(frame)) > w.opts.SegmentSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(frame))
	}

	if w.size > 0 && w.size+int64(len(frame)) > w.opts.SegmentSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	if _, err := w.f.Write(frame); err != nil {
		return 0, fmt.Errorf("append to %s: %w", SegmentName(w.segID), err)
	}
	w.size += int64(len(frame))
	w.seq = e.Sequence
	w.dirty = true

	if w.opts.SyncOnWrite {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	}
	return e.Sequence, nil
}

func (w *Writer) rotate() error {
	if err := w.syncLocked(); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close segment %s: %w", SegmentName(w.segID), err)
	}
	return w.openSegment(w.segID+1, 0)
}

// Sync flushes the active segment to stable storage.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if !w.dirty {
		return nil
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", SegmentName(w.segID), err)
	}
	w.dirty = false
	return nil
}

// Close syncs and closes the active segment. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.syncLocked(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// LastSequence returns the sequence number of the newest entry.
func (w *Writer) LastSequence() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *Writer) Dir() string      { return w.dir }
func (w *Writer) WriterID() string { return w.id }
