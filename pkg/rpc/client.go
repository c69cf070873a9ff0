package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client calls the storage service over an existing connection.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) ListDatabases(ctx context.Context) (*ListDatabasesResponse, error) {
	out := new(ListDatabasesResponse)
	return out, c.invoke(ctx, "ListDatabases", &ListDatabasesRequest{}, out)
}

func (c *Client) MeasurementNames(ctx context.Context, in *MeasurementNamesRequest) (*StringValuesResponse, error) {
	out := new(StringValuesResponse)
	return out, c.invoke(ctx, "MeasurementNames", in, out)
}

func (c *Client) TagKeys(ctx context.Context, in *TagKeysRequest) (*StringValuesResponse, error) {
	out := new(StringValuesResponse)
	return out, c.invoke(ctx, "TagKeys", in, out)
}

func (c *Client) TagValues(ctx context.Context, in *TagValuesRequest) (*StringValuesResponse, error) {
	out := new(StringValuesResponse)
	return out, c.invoke(ctx, "TagValues", in, out)
}

func (c *Client) ReadFilter(ctx context.Context, in *ReadFilterRequest) (*ReadFilterResponse, error) {
	out := new(ReadFilterResponse)
	return out, c.invoke(ctx, "ReadFilter", in, out)
}

// Health reports the serving status of service ("" for the whole server).
func (c *Client) Health(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
