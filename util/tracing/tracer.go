package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options func(s *TraceOptions)

type TraceOptions struct {
	Tags       []attribute.KeyValue
	Histogram  prometheus.Observer
	Counter    prometheus.Counter
	Logger     ulogger.Logger
	LogMessage string
	LogArgs    []interface{}
}

func WithTag(key, value string) Options {
	return func(s *TraceOptions) {
		s.Tags = append(s.Tags, attribute.String(key, value))
	}
}

// WithHistogram observes the span duration in seconds when the span ends.
func WithHistogram(histogram prometheus.Observer) Options {
	return func(s *TraceOptions) {
		s.Histogram = histogram
	}
}

// WithCounter increments the counter when the span ends.
func WithCounter(counter prometheus.Counter) Options {
	return func(s *TraceOptions) {
		s.Counter = counter
	}
}

// WithLogMessage logs the formatted message at INFO when the span starts and again, with the
// elapsed time, when it ends.
func WithLogMessage(logger ulogger.Logger, format string, args ...interface{}) Options {
	return func(s *TraceOptions) {
		s.Logger = logger
		s.LogMessage = format
		s.LogArgs = args
	}
}

type UTracer struct {
	tracer      trace.Tracer
	defaultOpts []Options
}

// Tracer returns a tracer named after the service. The default options are applied to every span.
func Tracer(service string, defaultOpts ...Options) *UTracer {
	return &UTracer{
		tracer:      otel.Tracer(service),
		defaultOpts: defaultOpts,
	}
}

// Start opens a span and returns the derived context, the span and the function that ends it.
// Passing a non-nil error to the end function marks the span as failed.
func (u *UTracer) Start(ctx context.Context, name string, setOptions ...Options) (context.Context, trace.Span, func(...error)) {
	options := &TraceOptions{}

	for _, opt := range u.defaultOpts {
		if opt != nil {
			opt(options)
		}
	}

	for _, opt := range setOptions {
		opt(options)
	}

	start := time.Now()

	spanCtx, span := u.tracer.Start(ctx, name, trace.WithAttributes(options.Tags...))

	if options.Logger != nil && options.LogMessage != "" {
		options.Logger.Infof(options.LogMessage, options.LogArgs...)
	}

	return spanCtx, span, func(errs ...error) {
		var err error

		for _, e := range errs {
			if e != nil {
				err = e
				break
			}
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()

		elapsed := time.Since(start)

		if options.Histogram != nil {
			options.Histogram.Observe(elapsed.Seconds())
		}

		if options.Counter != nil {
			options.Counter.Inc()
		}

		if options.Logger != nil && options.LogMessage != "" {
			done := fmt.Sprintf(" DONE in %s", elapsed)
			if err != nil {
				done += fmt.Sprintf(" with error: %v", err)
			}

			options.Logger.Infof(options.LogMessage+done, options.LogArgs...)
		}
	}
}
