package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type OtlpConnConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

type OtlpConfig struct {
	Traces  OtlpConnConfig `json:"traces"`
	Metrics OtlpConnConfig `json:"metrics"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

const exporterTimeout = 3 * time.Second

// newExporter connects over grpc when a grpc endpoint is configured and over
// http otherwise.
func newExporter[E any](
	ctx context.Context,
	signal string,
	c OtlpConnConfig,
	grpc func(ctx context.Context) (E, error),
	http func(ctx context.Context) (E, error),
) (E, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	if c.GrpcEndpoint != "" {
		slog.Debug("otlp exporter initialized", "signal", signal, "type", "grpc", "endpoint", c.GrpcEndpoint)
		return grpc(ctx)
	}
	slog.Debug("otlp exporter initialized", "signal", signal, "type", "http", "endpoint", c.HttpEndpoint)
	return http(ctx)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, c Config) (*trace.TracerProvider, error) {
	conn := c.Otlp.Traces
	exporter, err := newExporter(
		ctx, "traces", conn,
		func(ctx context.Context) (trace.SpanExporter, error) {
			return otlptracegrpc.New(
				ctx,
				otlptracegrpc.WithEndpointURL(conn.GrpcEndpoint),
				otlptracegrpc.WithHeaders(conn.Headers),
			)
		},
		func(ctx context.Context) (trace.SpanExporter, error) {
			return otlptracehttp.New(
				ctx,
				otlptracehttp.WithEndpointURL(conn.HttpEndpoint),
				otlptracehttp.WithHeaders(conn.Headers),
			)
		},
	)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, c Config) (*metric.MeterProvider, error) {
	conn := c.Otlp.Metrics
	exporter, err := newExporter(
		ctx, "metrics", conn,
		func(ctx context.Context) (metric.Exporter, error) {
			return otlpmetricgrpc.New(
				ctx,
				otlpmetricgrpc.WithEndpointURL(conn.GrpcEndpoint),
				otlpmetricgrpc.WithHeaders(conn.Headers),
			)
		},
		func(ctx context.Context) (metric.Exporter, error) {
			return otlpmetrichttp.New(
				ctx,
				otlpmetrichttp.WithEndpointURL(conn.HttpEndpoint),
				otlpmetrichttp.WithHeaders(conn.Headers),
			)
		},
	)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(5*time.Second))),
		metric.WithResource(r),
	), nil
}
