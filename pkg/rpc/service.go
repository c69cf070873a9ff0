package rpc

import (
	"context"

	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/query"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified storage service name.
const ServiceName = "bufferdb.storage.v1.Storage"

// StorageServer is the storage service surface.
type StorageServer interface {
	ListDatabases(context.Context, *ListDatabasesRequest) (*ListDatabasesResponse, error)
	MeasurementNames(context.Context, *MeasurementNamesRequest) (*StringValuesResponse, error)
	TagKeys(context.Context, *TagKeysRequest) (*StringValuesResponse, error)
	TagValues(context.Context, *TagValuesRequest) (*StringValuesResponse, error)
	ReadFilter(context.Context, *ReadFilterRequest) (*ReadFilterResponse, error)
}

// Registry is the read side of the database registry.
type Registry interface {
	query.Source
	Names() []string
}

// ServiceDesc describes the storage service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListDatabases", StorageServer.ListDatabases),
		unary("MeasurementNames", StorageServer.MeasurementNames),
		unary("TagKeys", StorageServer.TagKeys),
		unary("TagValues", StorageServer.TagValues),
		unary("ReadFilter", StorageServer.ReadFilter),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bufferdb/storage/v1/storage.proto",
}

func unary[Req, Resp any](name string, call func(StorageServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StorageServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StorageServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// service answers storage calls from the registry through the executor.
type service struct {
	reg  Registry
	exec *query.Executor
}

// NewService returns the storage service backed by reg and exec.
func NewService(reg Registry, exec *query.Executor) StorageServer {
	return &service{reg: reg, exec: exec}
}

func (s *service) ListDatabases(ctx context.Context, _ *ListDatabasesRequest) (*ListDatabasesResponse, error) {
	resp := &ListDatabasesResponse{Databases: []db.Stats{}}
	err := s.exec.Execute(ctx, func(context.Context) error {
		for _, name := range s.reg.Names() {
			d, err := s.reg.Get(name)
			if err != nil {
				return err
			}
			resp.Databases = append(resp.Databases, d.Stats())
		}
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *service) MeasurementNames(ctx context.Context, req *MeasurementNamesRequest) (*StringValuesResponse, error) {
	if req.Database == "" {
		return nil, status.Error(codes.InvalidArgument, "database is required")
	}
	vals, err := s.exec.MeasurementNames(ctx, s.reg, req.Database)
	if err != nil {
		return nil, toStatus(err)
	}
	return values(vals), nil
}

func (s *service) TagKeys(ctx context.Context, req *TagKeysRequest) (*StringValuesResponse, error) {
	if err := requireTable(req.Database, req.Measurement); err != nil {
		return nil, err
	}
	vals, err := s.exec.TagKeys(ctx, s.reg, req.Database, req.Measurement)
	if err != nil {
		return nil, toStatus(err)
	}
	return values(vals), nil
}

func (s *service) TagValues(ctx context.Context, req *TagValuesRequest) (*StringValuesResponse, error) {
	if err := requireTable(req.Database, req.Measurement); err != nil {
		return nil, err
	}
	if req.TagKey == "" {
		return nil, status.Error(codes.InvalidArgument, "tag_key is required")
	}
	vals, err := s.exec.TagValues(ctx, s.reg, req.Database, req.Measurement, req.TagKey)
	if err != nil {
		return nil, toStatus(err)
	}
	return values(vals), nil
}

func (s *service) ReadFilter(ctx context.Context, req *ReadFilterRequest) (*ReadFilterResponse, error) {
	if err := requireTable(req.Database, req.Measurement); err != nil {
		return nil, err
	}
	pts, err := s.exec.ReadFilter(ctx, s.reg, req.Database, db.Predicate{
		Table: req.Measurement,
		Start: req.Start,
		Stop:  req.Stop,
		Tags:  req.Tags,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	if pts == nil {
		pts = []db.Point{}
	}
	return &ReadFilterResponse{Points: pts}, nil
}

func requireTable(database, measurement string) error {
	if database == "" {
		return status.Error(codes.InvalidArgument, "database is required")
	}
	if measurement == "" {
		return status.Error(codes.InvalidArgument, "measurement is required")
	}
	return nil
}

func values(v []string) *StringValuesResponse {
	if v == nil {
		v = []string{}
	}
	return &StringValuesResponse{Values: v}
}
