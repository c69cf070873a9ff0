package rpc

import "github.com/marmos91/bufferdb/pkg/db"

type ListDatabasesRequest struct{}

type ListDatabasesResponse struct {
	Databases []db.Stats `json:"databases"`
}

type MeasurementNamesRequest struct {
	Database string `json:"database"`
}

type TagKeysRequest struct {
	Database    string `json:"database"`
	Measurement string `json:"measurement"`
}

type TagValuesRequest struct {
	Database    string `json:"database"`
	Measurement string `json:"measurement"`
	TagKey      string `json:"tag_key"`
}

// StringValuesResponse answers the schema calls.
type StringValuesResponse struct {
	Values []string `json:"values"`
}

// ReadFilterRequest selects rows of one measurement. Start is inclusive and
// Stop exclusive, both in Unix nanoseconds; zero leaves a side open.
type ReadFilterRequest struct {
	Database    string            `json:"database"`
	Measurement string            `json:"measurement"`
	Start       int64             `json:"start,omitempty"`
	Stop        int64             `json:"stop,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type ReadFilterResponse struct {
	Points []db.Point `json:"points"`
}

func (r *MeasurementNamesRequest) GetDatabase() string {
	if r == nil {
		return ""
	}
	return r.Database
}

func (r *TagKeysRequest) GetDatabase() string {
	if r == nil {
		return ""
	}
	return r.Database
}

func (r *TagValuesRequest) GetDatabase() string {
	if r == nil {
		return ""
	}
	return r.Database
}

func (r *ReadFilterRequest) GetDatabase() string {
	if r == nil {
		return ""
	}
	return r.Database
}
