package rpc

import (
	"context"
	"errors"

	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/query"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC status errors.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, db.ErrDatabaseNotFound), errors.Is(err, db.ErrTableNotFound):
		code = codes.NotFound
	case errors.Is(err, db.ErrInvalidRange):
		code = codes.InvalidArgument
	case errors.Is(err, query.ErrOverloaded):
		code = codes.ResourceExhausted
	case errors.Is(err, query.ErrClosed):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
