package tracing

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// GetGRPCClientTracerOptions adds the otel client stats handler when a tracer provider is installed.
func GetGRPCClientTracerOptions(opts []grpc.DialOption) []grpc.DialOption {
	mu.Lock()
	enabled := tp != nil
	mu.Unlock()

	if enabled {
		opts = append(opts, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	}

	return opts
}
