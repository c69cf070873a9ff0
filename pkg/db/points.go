package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
)

// ErrParse is wrapped by every line protocol error.
var ErrParse = errors.New("line protocol parse error")

// Point is one parsed line. Field values are int64, uint64, float64,
// string or bool.
type Point struct {
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags,omitempty"`
	Fields      map[string]any    `json:"fields"`
	Time        int64             `json:"time"`
}

// ParseLines parses a line protocol batch. Lines without a timestamp get
// defaultTime. The whole batch is rejected on the first error.
func ParseLines(data []byte, defaultTime time.Time) ([]Point, error) {
	dec := lineprotocol.NewDecoderWithBytes(data)

	var points []Point
	for dec.Next() {
		p, err := decodePoint(dec, defaultTime)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrParse, len(points)+1, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func decodePoint(dec *lineprotocol.Decoder, defaultTime time.Time) (Point, error) {
	m, err := dec.Measurement()
	if err != nil {
		return Point{}, err
	}
	p := Point{
		Measurement: string(m),
		Fields:      make(map[string]any),
	}

	for {
		key, val, err := dec.NextTag()
		if err != nil {
			return Point{}, err
		}
		if key == nil {
			break
		}
		if p.Tags == nil {
			p.Tags = make(map[string]string)
		}
		p.Tags[string(key)] = string(val)
	}

	for {
		key, val, err := dec.NextField()
		if err != nil {
			return Point{}, err
		}
		if key == nil {
			break
		}
		p.Fields[string(key)] = fieldValue(val)
	}

	t, err := dec.Time(lineprotocol.Nanosecond, defaultTime)
	if err != nil {
		return Point{}, err
	}
	p.Time = t.UnixNano()
	return p, nil
}

func fieldValue(v lineprotocol.Value) any {
	switch v.Kind() {
	case lineprotocol.Int:
		return v.IntV()
	case lineprotocol.Uint:
		return v.UintV()
	case lineprotocol.Float:
		return v.FloatV()
	case lineprotocol.Bool:
		return v.BoolV()
	default:
		return v.StringV()
	}
}
