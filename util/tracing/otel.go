package tracing

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	once    sync.Once
	initErr error
	tp      *sdktrace.TracerProvider
	mu      sync.Mutex
)

// InitTracer installs the global OTLP tracer provider. Only the first call does any work.
func InitTracer(serviceName, version string, appSettings *settings.Settings) error {
	if !appSettings.TracingEnabled {
		return nil
	}

	once.Do(func() {
		var exporter *otlptrace.Exporter

		endpointOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(appSettings.TracingCollectorURL.Host),
		}

		if appSettings.TracingCollectorURL.Scheme != "https" {
			endpointOpts = append(endpointOpts, otlptracehttp.WithInsecure())
		}

		exporter, initErr = otlptracehttp.New(context.Background(), endpointOpts...)
		if initErr != nil {
			initErr = errors.NewConfigurationError("failed to create OTLP exporter", initErr)
			return
		}

		var res *resource.Resource

		res, initErr = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceNameKey.String(serviceName),
				semconv.ServiceVersionKey.String(version),
			),
		)
		if initErr != nil {
			initErr = errors.NewConfigurationError("failed to create resource", initErr)
			return
		}

		mu.Lock()
		defer mu.Unlock()

		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithResource(res),
		)

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})

	return initErr
}

// ShutdownTracer flushes and stops the tracer provider. Safe to call when tracing was never enabled.
func ShutdownTracer(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tp == nil {
		return nil
	}

	if err := tp.ForceFlush(ctx); err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			log.Printf("ERROR: failed to flush spans: %v", err)
			return nil
		}

		return errors.NewServiceError("failed to flush spans", err)
	}

	if err := tp.Shutdown(ctx); err != nil {
		return errors.NewServiceError("failed to shutdown tracer", err)
	}

	tp = nil

	return nil
}
