package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReplayStats summarises a replay.
type ReplayStats struct {
	Segments     int
	Entries      int
	LastSequence uint64

	// TornBytes is the length of an incomplete trailing frame in the newest
	// segment, ignored by the replay.
	TornBytes int64

	// tail is the valid length of the newest segment.
	tail int64
}

// Replay calls fn for every entry in dir in log order. Sequence numbers must
// be strictly increasing. An error from fn stops the replay and is returned.
func Replay(dir string, fn func(*Entry) error) (ReplayStats, error) {
	segs, err := Segments(dir)
	if err != nil {
		return ReplayStats{}, err
	}
	return replaySegments(segs, fn)
}

func replaySegments(segs []Segment, fn func(*Entry) error) (ReplayStats, error) {
	var stats ReplayStats
	for i, seg := range segs {
		last := i == len(segs)-1
		valid, err := replaySegment(seg, last, &stats, fn)
		if err != nil {
			return stats, err
		}
		stats.Segments++
		if last {
			stats.tail = valid
			stats.TornBytes = seg.Size - valid
		}
	}
	return stats, nil
}

func replaySegment(seg Segment, last bool, stats *ReplayStats, fn func(*Entry) error) (int64, error) {
	f, err := os.Open(seg.Path)
	if err != nil {
		return 0, fmt.Errorf("open segment %s: %w", seg.Name, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 256<<10)
	var offset int64
	for {
		e, n, err := readFrame(r)
		if err == io.EOF {
			return offset, nil
		}
		if errors.Is(err, errTorn) && last {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("segment %s offset %d: %w", seg.Name, offset, err)
		}

		if stats.Entries > 0 && e.Sequence <= stats.LastSequence {
			return offset, fmt.Errorf("%w: segment %s offset %d: sequence %d after %d",
				ErrCorrupted, seg.Name, offset, e.Sequence, stats.LastSequence)
		}
		if err := fn(e); err != nil {
			return offset, err
		}

		stats.Entries++
		stats.LastSequence = e.Sequence
		offset += n
	}
}
