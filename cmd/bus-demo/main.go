// bus-demo runs a producer and a consumer over the in-memory bus and shows a
// single trace spanning both sides: the producer injects trace context into
// the message headers, the consumer continues it.
package main

import (
	"context"
	"log"
	"sync"
	"time"

	"pulse-obs/internal/membus"
	"pulse-obs/pkg/observability"

	"github.com/google/uuid"
)

const topic = "pulse/dev/signals/v1"

func main() {
	cfg := observability.DefaultConfig("bus-demo")
	cfg.ServiceVersion = "0.1.0"
	cfg.Sampler = "ratio"
	cfg.SampleRatio = 1.0
	cfg.EnableMetrics = false

	if err := observability.Init(cfg); err != nil {
		log.Fatalf("init observability: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.Shutdown(ctx)
	}()

	bus := membus.New()
	defer bus.Close()

	deliveries, cancel := bus.Subscribe(topic, 16)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consume(deliveries)
	}()

	produce(bus)
	cancel()
	wg.Wait()
}

func produce(bus *membus.Bus) {
	for i := 0; i < 5; i++ {
		attrs := observability.BusAttrs{
			Topic:        topic,
			SchemaFQDN:   "pulse.signals.v1.Signal",
			MessageID:    uuid.NewString(),
			PartitionKey: "AAPL",
			RunID:        "demo_run",
		}

		ctx, span := observability.StartBusPublishSpan(context.Background(), attrs)
		headers := map[string]string{
			observability.HeaderRunID: attrs.RunID,
		}
		observability.InjectTrace(ctx, headers)

		err := bus.Publish(membus.Message{
			Topic:   topic,
			Key:     attrs.PartitionKey,
			Payload: []byte(`{"symbol":"AAPL","signal":"buy"}`),
			Headers: headers,
		})
		if err != nil {
			observability.C(ctx).Error("publish failed", observability.Err(err))
		} else {
			observability.C(ctx).Info("published signal",
				observability.String("message_id", attrs.MessageID),
			)
		}
		span.End()
	}
}

func consume(deliveries <-chan membus.Message) {
	for msg := range deliveries {
		attrs := observability.BusAttrs{
			Topic:        msg.Topic,
			SchemaFQDN:   "pulse.signals.v1.Signal",
			PartitionKey: msg.Key,
			RunID:        msg.Headers[observability.HeaderRunID],
		}

		ctx, span := observability.StartBusConsumeSpan(context.Background(), msg.Headers, attrs)
		observability.C(ctx).Info("consumed signal",
			observability.String("key", msg.Key),
			observability.Int("payload_bytes", len(msg.Payload)),
		)
		span.End()
	}
}
