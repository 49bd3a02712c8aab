package observability

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

// tracerName is the instrumentation scope for spans started by this package.
const tracerName = "pulse-obs"

// newResource builds the resource attached to every span, metric, and
// enriched log line.
func newResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	return res, nil
}

// newTracerProvider builds the tracer provider: an OTLP exporter over the
// configured transport, batch export, and the configured sampler.
func newTracerProvider(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := newSpanExporter(cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg)),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
	)
	return tp, nil
}

// newSpanExporter creates the OTLP span exporter for the configured protocol:
// gRPC (collector port 4317) or HTTP (port 4318).
func newSpanExporter(cfg Config) (sdktrace.SpanExporter, error) {
	endpoint, insecure := parseEndpoint(cfg.CollectorEndpoint)

	switch strings.ToLower(cfg.TraceProtocol) {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp http span exporter: %w", err)
		}
		return exporter, nil
	case "grpc", "":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
		}
		exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
		if err != nil {
			return nil, fmt.Errorf("create otlp grpc span exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported trace protocol %q (use \"grpc\" or \"http\")", cfg.TraceProtocol)
	}
}

// newSampler maps the Sampler/SampleRatio config to an SDK sampler. "parent"
// keeps the default parent-based ratio; "ratio" honors SampleRatio when it is
// inside [0, 1] and falls back to the default otherwise.
func newSampler(cfg Config) sdktrace.Sampler {
	ratio := DefaultSampleRatio
	if strings.ToLower(cfg.Sampler) == "ratio" && cfg.SampleRatio >= 0 && cfg.SampleRatio <= 1 {
		ratio = cfg.SampleRatio
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// BusAttrs carries the stable, low-cardinality attributes recorded on bus
// spans.
type BusAttrs struct {
	Topic        string
	SchemaFQDN   string
	MessageID    string
	PartitionKey string
	RunID        string
}

func (a BusAttrs) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("topic", a.Topic),
		attribute.String("schema_fqdn", a.SchemaFQDN),
		attribute.String("message_id", a.MessageID),
		attribute.String("partition_key", a.PartitionKey),
		attribute.String("run_id", a.RunID),
	}
}

// StartSpan starts a span with the given name, kind, and attributes using the
// globally registered tracer provider.
func StartSpan(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// StartBusPublishSpan starts a "bus.publish" producer span with the
// standardized bus attributes. Callers inject the resulting context into the
// outgoing message headers with InjectTrace.
func StartBusPublishSpan(ctx context.Context, a BusAttrs) (context.Context, trace.Span) {
	return StartSpan(ctx, "bus.publish", trace.SpanKindProducer, a.attributes()...)
}

// StartBusConsumeSpan extracts W3C trace context from the message headers and
// starts a "bus.consume" consumer span as a child of the upstream publish
// span, with a link back to the upstream context.
func StartBusConsumeSpan(parent context.Context, headers map[string]string, a BusAttrs) (context.Context, trace.Span) {
	remoteCtx := ExtractTrace(parent, headers)
	link := trace.LinkFromContext(remoteCtx)

	return otel.Tracer(tracerName).Start(remoteCtx, "bus.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(a.attributes()...),
		trace.WithLinks(link),
	)
}
