package rpc

import (
	"context"
	"fmt"
	"path"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/internal/telemetry"
	"github.com/marmos91/bufferdb/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// recoveryInterceptor turns a handler panic into codes.Internal.
func recoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorCtx(ctx, "Panic in RPC handler",
					logger.KeyMethod, info.FullMethod,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
				err = status.Errorf(codes.Internal, "internal server error: %v", r)
			}
		}()
		return handler(ctx, req)
	}
}

// contextInterceptor attaches a LogContext and a span to the call.
func contextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method := path.Base(info.FullMethod)
		clientIP := ""
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			clientIP = p.Addr.String()
		}

		ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRPCPrefix+method,
			telemetry.RPCMethod(method), telemetry.ClientIP(clientIP))
		defer span.End()

		lc := logger.NewLogContext(clientIP).WithMethod(method)
		lc.RequestID = uuid.NewString()
		if dr, ok := req.(interface{ GetDatabase() string }); ok {
			lc.Database = dr.GetDatabase()
		}
		lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))

		resp, err := handler(logger.WithContext(ctx, lc), req)
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		return resp, err
	}
}

// loggingInterceptor logs every call with its status code and latency.
func loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		args := []any{logger.KeyStatus, code.String(), logger.DurationMs(logger.Duration(start))}
		switch code {
		case codes.OK:
			logger.DebugCtx(ctx, "RPC served", args...)
		case codes.Internal, codes.Unknown:
			logger.ErrorCtx(ctx, "RPC failed", append(args, logger.Err(err))...)
		default:
			logger.InfoCtx(ctx, "RPC rejected", append(args, logger.Err(err))...)
		}
		return resp, err
	}
}

func metricsInterceptor(m metrics.RPCMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m == nil {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		m.RecordCall(path.Base(info.FullMethod), status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// timeoutInterceptor bounds every call by timeout. The handler's context
// carries the deadline, so executor tasks stop early too.
func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := handler(ctx, req)
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return nil, status.Errorf(codes.DeadlineExceeded, "request timeout after %v", timeout)
		}
		return resp, err
	}
}
