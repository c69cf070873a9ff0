// Package wal implements the per-database write-ahead log.
//
// A log is a directory of segment files named wal-<16 hex digits>.log whose
// numeric suffix orders them. Each segment is a sequence of frames:
//
//	length  uint32 (big endian, payload bytes)
//	crc32   uint32 (Castagnoli, over the payload)
//	payload XDR-encoded Entry
//
// A frame cut short at the end of the newest segment is the residue of a
// crash during append; it is dropped on open. Any other damage is
// ErrCorrupted.
package wal

import (
	"errors"
	"time"
)

var (
	ErrClosed    = errors.New("wal is closed")
	ErrCorrupted = errors.New("wal corrupted")
	ErrTooLarge  = errors.New("wal entry exceeds segment size")
)

// Entry is one logged write batch.
type Entry struct {
	Sequence  uint64
	WriterID  string
	Timestamp int64 // unix nanoseconds
	Lines     []byte
}

// Time returns the entry timestamp.
func (e *Entry) Time() time.Time {
	return time.Unix(0, e.Timestamp)
}

// Options configures a Writer.
type Options struct {
	// SegmentSize is the size at which the active segment is rotated.
	SegmentSize int64

	// SyncOnWrite fsyncs after every append.
	SyncOnWrite bool
}

const DefaultSegmentSize = 64 << 20

func (o Options) withDefaults() Options {
	if o.SegmentSize <= 0 {
		o.SegmentSize = DefaultSegmentSize
	}
	return o
}

// Persister is the subset of Writer a database needs.
type Persister interface {
	Append(e *Entry) (uint64, error)
	Sync() error
	Close() error
}

// NullPersister accepts and discards entries, numbering them in memory.
type NullPersister struct {
	seq uint64
}

func NewNullPersister() *NullPersister { return &NullPersister{} }

func (p *NullPersister) Append(e *Entry) (uint64, error) {
	p.seq++
	e.Sequence = p.seq
	return p.seq, nil
}

func (p *NullPersister) Sync() error  { return nil }
func (p *NullPersister) Close() error { return nil }

var (
	_ Persister = (*NullPersister)(nil)
	_ Persister = (*Writer)(nil)
)
