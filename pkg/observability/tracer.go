// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for PGAdapter.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/config"
)

// TracerProvider wraps the OpenTelemetry SDK TracerProvider with
// PGAdapter's resource and sampler setup.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider builds a TracerProvider from the given configuration
// and installs it as the global provider. Returns nil if tracing is not
// enabled.
func NewTracerProvider(ctx context.Context, cfg *config.OpenTelemetryConfig) (*TracerProvider, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.GetOTLPProtocol() {
	case "grpc":
		var opts []otlptracegrpc.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		var opts []otlptracehttp.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.GetOTLPProtocol())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.GetServiceName()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch rate := cfg.SamplingRate; {
	case rate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider}, nil
}

// Tracer returns a tracer with the given name; a nil provider yields the
// global (no-op, unless otherwise installed) tracer.
func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	if tp == nil || tp.provider == nil {
		return otel.Tracer(name)
	}
	return tp.provider.Tracer(name)
}

// Shutdown flushes and stops span export.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Enabled reports whether span export is active.
func (tp *TracerProvider) Enabled() bool {
	return tp != nil && tp.provider != nil
}

// Span attribute keys used on PGAdapter's statement spans.
const (
	AttrDBUser        = "db.user"
	AttrDBName        = "db.name"
	AttrStatementKind = "pgadapter.statement_kind"
	AttrRowCount      = "pgadapter.row_count"
	AttrCopyTable     = "pgadapter.copy_table"
	AttrStatementName = "pgadapter.statement_name"
	AttrPortalName    = "pgadapter.portal_name"
)

// SessionAttributes returns the attributes attached to every span of one
// client session.
func SessionAttributes(user, database, appName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrDBUser, user),
		attribute.String(AttrDBName, database),
	}
	if appName != "" {
		attrs = append(attrs, attribute.String("application_name", appName))
	}
	return attrs
}
