package observability

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials"
)

// Outcome labels for order submissions. Bounded on purpose: metric labels
// must stay low-cardinality.
const (
	OutcomeOK     = "ok"
	OutcomeRetry  = "retry"
	OutcomeDLQ    = "dlq"
	OutcomeReject = "reject"
)

// Domain instruments, constructed by initInstruments after the meter
// provider is registered. The recording helpers below are safe no-ops while
// these are nil (i.e. before Init, or with metrics disabled).
var (
	busProduced        metric.Int64Counter
	busConsumed        metric.Int64Counter
	busDeliveryLatency metric.Float64Histogram

	omsOrderSubmit  metric.Int64Counter
	omsOrderLatency metric.Float64Histogram
	omsRejections   metric.Int64Counter

	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram
)

// latencyBoundariesMs gives every latency histogram the same millisecond
// buckets so dashboards line up across instruments.
func latencyBoundariesMs() []float64 {
	return []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000}
}

func metricViews() []sdkmetric.View {
	views := make([]sdkmetric.View, 0, 3)
	for _, name := range []string{
		"pulse.bus.delivery_latency_ms",
		"pulse.oms.order_latency_ms",
		"pulse.http.request_duration_ms",
	} {
		views = append(views, sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: latencyBoundariesMs(),
				},
			},
		))
	}
	return views
}

// newMeterProvider builds the meter provider for the configured exporter:
// "otlp" pushes to the collector every 10s, "prometheus" registers a scrape
// reader on the package registry (see MetricsHandler).
func newMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var reader sdkmetric.Reader

	switch strings.ToLower(cfg.MetricsExporter) {
	case "prometheus":
		r, err := newPrometheusReader()
		if err != nil {
			return nil, err
		}
		reader = r
	case "otlp", "":
		endpoint, insecure := parseEndpoint(cfg.CollectorEndpoint)
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(endpoint),
		}
		if insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
		}
		exporter, err := otlpmetricgrpc.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter %q (use \"otlp\" or \"prometheus\")", cfg.MetricsExporter)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(metricViews()...),
	)
	return mp, nil
}

// initInstruments constructs the domain instruments against the registered
// meter provider. Called once per Init when metrics are enabled.
func initInstruments() error {
	meter := otel.Meter(tracerName)

	var err error

	busProduced, err = meter.Int64Counter(
		"pulse.bus.produced_total",
		metric.WithDescription("Messages produced to the bus"),
	)
	if err != nil {
		return fmt.Errorf("create bus produced counter: %w", err)
	}

	busConsumed, err = meter.Int64Counter(
		"pulse.bus.consumed_total",
		metric.WithDescription("Messages consumed from the bus"),
	)
	if err != nil {
		return fmt.Errorf("create bus consumed counter: %w", err)
	}

	busDeliveryLatency, err = meter.Float64Histogram(
		"pulse.bus.delivery_latency_ms",
		metric.WithDescription("Bus end-to-end delivery latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("create bus latency histogram: %w", err)
	}

	omsOrderSubmit, err = meter.Int64Counter(
		"pulse.oms.order_submit_total",
		metric.WithDescription("Order submissions by outcome"),
	)
	if err != nil {
		return fmt.Errorf("create order submit counter: %w", err)
	}

	omsOrderLatency, err = meter.Float64Histogram(
		"pulse.oms.order_latency_ms",
		metric.WithDescription("Order latency from submit to ack"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("create order latency histogram: %w", err)
	}

	omsRejections, err = meter.Int64Counter(
		"pulse.oms.rejections_total",
		metric.WithDescription("Order rejections by reason"),
	)
	if err != nil {
		return fmt.Errorf("create rejections counter: %w", err)
	}

	httpRequests, err = meter.Int64Counter(
		"pulse.http.requests_total",
		metric.WithDescription("HTTP requests by method, route, and status"),
	)
	if err != nil {
		return fmt.Errorf("create http request counter: %w", err)
	}

	httpDuration, err = meter.Float64Histogram(
		"pulse.http.request_duration_ms",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("create http duration histogram: %w", err)
	}

	return nil
}

func resetInstruments() {
	busProduced = nil
	busConsumed = nil
	busDeliveryLatency = nil
	omsOrderSubmit = nil
	omsOrderLatency = nil
	omsRejections = nil
	httpRequests = nil
	httpDuration = nil
}

func serviceAttrs() []attribute.KeyValue {
	cfg := CurrentConfig()
	return []attribute.KeyValue{
		attribute.String("service", cfg.ServiceName),
		attribute.String("env", cfg.Environment),
	}
}

// BusProducedAdd increments the produced counter for a topic.
func BusProducedAdd(ctx context.Context, topic string, n int64) {
	if busProduced == nil {
		return
	}
	busProduced.Add(ctx, n, metric.WithAttributes(
		append(serviceAttrs(), attribute.String("topic", topic))...,
	))
}

// BusConsumedAdd increments the consumed counter for a topic.
func BusConsumedAdd(ctx context.Context, topic string, n int64) {
	if busConsumed == nil {
		return
	}
	busConsumed.Add(ctx, n, metric.WithAttributes(
		append(serviceAttrs(), attribute.String("topic", topic))...,
	))
}

// BusDeliveryLatencyMs records end-to-end delivery latency for a topic.
func BusDeliveryLatencyMs(ctx context.Context, topic string, ms float64) {
	if busDeliveryLatency == nil {
		return
	}
	busDeliveryLatency.Record(ctx, ms, metric.WithAttributes(
		append(serviceAttrs(), attribute.String("topic", topic))...,
	))
}

// OMSOrderSubmitAdd increments the order submit counter for a broker and
// outcome. Outcome should be one of the Outcome constants.
func OMSOrderSubmitAdd(ctx context.Context, broker, outcome string) {
	if omsOrderSubmit == nil {
		return
	}
	omsOrderSubmit.Add(ctx, 1, metric.WithAttributes(
		append(serviceAttrs(),
			attribute.String("broker", broker),
			attribute.String("outcome", outcome),
		)...,
	))
}

// OMSOrderLatencyMs records submit-to-ack latency for a broker.
func OMSOrderLatencyMs(ctx context.Context, broker string, ms float64) {
	if omsOrderLatency == nil {
		return
	}
	omsOrderLatency.Record(ctx, ms, metric.WithAttributes(
		append(serviceAttrs(), attribute.String("broker", broker))...,
	))
}

// OMSRejectAdd increments the rejection counter for a broker and reason.
func OMSRejectAdd(ctx context.Context, broker, reason string) {
	if omsRejections == nil {
		return
	}
	omsRejections.Add(ctx, 1, metric.WithAttributes(
		append(serviceAttrs(),
			attribute.String("broker", broker),
			attribute.String("reason", reason),
		)...,
	))
}
