package interceptor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"device-loan-backend/internal/logger"
)

const requestIDKey = "x-request-id"

// UnaryRequestID carries the caller's x-request-id into the logger context,
// generating one when absent, and logs each call with its status code.
func UnaryRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := requestID(ctx)
		ctx = logger.WithRequestID(ctx, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id))

		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		log := logger.FromContext(ctx)
		args := []any{"method", info.FullMethod, "code", code.String(), "duration_ms", time.Since(start).Milliseconds()}
		if code == codes.OK || code == codes.NotFound {
			log.Debug("gRPC call", args...)
		} else {
			log.Warn("gRPC call failed", append(args, "error", err)...)
		}
		return resp, err
	}
}

func requestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if ids := md.Get(requestIDKey); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}
