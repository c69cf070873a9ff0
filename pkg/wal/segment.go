package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	xdr "github.com/rasky/go-xdr/xdr2"
)

const (
	segmentPrefix = "wal-"
	segmentSuffix = ".log"
	frameHeader   = 8

	// maxFrame bounds a single payload so a garbage length cannot trigger
	// a huge allocation during replay.
	maxFrame = 1 << 30
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Segment describes one segment file.
type Segment struct {
	ID   uint64
	Name string
	Path string
	Size int64
}

// SegmentName returns the file name for segment id.
func SegmentName(id uint64) string {
	return fmt.Sprintf("%s%016x%s", segmentPrefix, id, segmentSuffix)
}

func parseSegmentName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	hex := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
	if len(hex) != 16 {
		return 0, false
	}
	id, err := strconv.ParseUint(hex, 16, 64)
	return id, err == nil
}

// Segments lists the segments in dir in log order. Files that do not look
// like segments are ignored. A missing directory has no segments.
func Segments(dir string) ([]Segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list segments in %s: %w", dir, err)
	}

	var segs []Segment
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		id, ok := parseSegmentName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat segment %s: %w", de.Name(), err)
		}
		segs = append(segs, Segment{
			ID:   id,
			Name: de.Name(),
			Path: filepath.Join(dir, de.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].ID < segs[j].ID })
	return segs, nil
}

// encodeFrame returns the framed XDR encoding of e.
func encodeFrame(e *Entry) ([]byte, error) {
	var payload bytes.Buffer
	if _, err := xdr.Marshal(&payload, e); err != nil {
		return nil, fmt.Errorf("encode entry %d: %w", e.Sequence, err)
	}

	frame := make([]byte, frameHeader+payload.Len())
	binary.BigEndian.PutUint32(frame[0:4], uint32(payload.Len()))
	binary.BigEndian.PutUint32(frame[4:8], crc32.Checksum(payload.Bytes(), crcTable))
	copy(frame[frameHeader:], payload.Bytes())
	return frame, nil
}

// errTorn marks a frame cut short by the end of the file.
var errTorn = fmt.Errorf("%w: torn frame", ErrCorrupted)

// readFrame reads the next frame from r. It returns io.EOF at a clean end
// and errTorn when the file ends inside a frame.
func readFrame(r io.Reader) (*Entry, int64, error) {
	var hdr [frameHeader]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, 0, errTorn
		}
		return nil, 0, err
	}

	n := binary.BigEndian.Uint32(hdr[0:4])
	sum := binary.BigEndian.Uint32(hdr[4:8])
	if n > maxFrame {
		return nil, 0, fmt.Errorf("%w: frame length %d", ErrCorrupted, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, errTorn
		}
		return nil, 0, err
	}
	if crc32.Checksum(payload, crcTable) != sum {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}

	var e Entry
	if _, err := xdr.Unmarshal(bytes.NewReader(payload), &e); err != nil {
		return nil, 0, fmt.Errorf("%w: decode entry: %w", ErrCorrupted, err)
	}
	return &e, int64(frameHeader) + int64(n), nil
}
