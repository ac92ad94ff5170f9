package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/vogiaan1904/vcping/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NewServer returns a gRPC server that logs every unary call.
func NewServer(l logger.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(l)))
	return grpc.NewServer(opts...)
}

func Listen(port int) (net.Listener, error) {
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("gRPC server failed to listen: %w", err)
	}
	return lnr, nil
}

func loggingInterceptor(l logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if err != nil {
			l.Warnf(ctx, "gRPC %s failed in %s: %s", info.FullMethod, time.Since(start), status.Code(err))
		} else {
			l.Debugf(ctx, "gRPC %s served in %s", info.FullMethod, time.Since(start))
		}
		return resp, err
	}
}
