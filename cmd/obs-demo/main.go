// obs-demo initializes the SDK against a local collector and emits a burst
// of logs, spans, and domain metrics. Run an OTLP collector on localhost:4317
// to see the output end to end.
package main

import (
	"context"
	"log"
	"math/rand"
	"time"

	"pulse-obs/pkg/observability"

	"go.opentelemetry.io/otel/trace"
)

func main() {
	cfg := observability.DefaultConfig("obs-demo")
	cfg.ServiceVersion = "0.1.0"
	cfg.Sampler = "ratio"
	cfg.SampleRatio = 1.0

	if err := observability.Init(cfg); err != nil {
		log.Fatalf("init observability: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	ctx, span := observability.StartSpan(context.Background(), "demo.run", trace.SpanKindInternal)
	defer span.End()

	observability.C(ctx).Info("demo starting",
		observability.String("event", "demo.start"),
		observability.Int("iterations", 10),
	)

	stats := observability.NewOpStats(observability.C(ctx))

	topic := "pulse/dev/orders/v1"
	for i := 0; i < 10; i++ {
		observability.BusProducedAdd(ctx, topic, 1)
		observability.BusConsumedAdd(ctx, topic, 1)
		observability.BusDeliveryLatencyMs(ctx, topic, 5+rand.Float64()*100)

		start := time.Now()
		observability.OMSOrderSubmitAdd(ctx, "alpaca", observability.OutcomeOK)
		time.Sleep(200 * time.Millisecond)
		elapsed := time.Since(start)
		observability.OMSOrderLatencyMs(ctx, "alpaca", float64(elapsed.Milliseconds()))
		stats.Observe("submit_order", elapsed, nil)
	}
	observability.OMSRejectAdd(ctx, "alpaca", "risk_check")

	sum := stats.Summary("submit_order")
	observability.C(ctx).Info("demo finished",
		observability.String("event", "demo.done"),
		observability.Int64("orders", sum.Count),
		observability.Duration("p95", sum.P95),
	)

	// Let the periodic reader push at least one metrics batch.
	time.Sleep(12 * time.Second)
}
