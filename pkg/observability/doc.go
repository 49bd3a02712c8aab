// Package observability is the shared observability SDK for Pulse services.
//
// One Init call wires the three pillars for a process:
//   - Logs: a structured JSON logger writing one compact line per call
//   - Traces: OpenTelemetry spans exported over OTLP (gRPC or HTTP)
//   - Metrics: OpenTelemetry instruments exported over OTLP or exposed
//     as a Prometheus scrape endpoint
//
// # Lifecycle
//
// Initialize once at process start and shut down once at process end:
//
//	cfg := observability.DefaultConfig("oms-gateway")
//	cfg.Environment = "prod"
//	if err := observability.Init(cfg); err != nil {
//		log.Fatal(err)
//	}
//	defer observability.Shutdown(context.Background())
//
// Init replaces any prior configuration wholesale; Shutdown flushes the
// exporters and is safe to call at any time, including before Init. Reset
// exists for test isolation.
//
// # Logging
//
// L returns the active logger; C enriches it with the service identity and
// the trace/span IDs carried by a context:
//
//	observability.C(ctx).Info("order accepted",
//		observability.String("broker", "alpaca"),
//		observability.Int("qty", 100),
//	)
//
// Records follow the platform wire format: {"ts":...,"level":...,
// "message":...} plus the caller's fields. With EnableLogs unset the active
// logger discards everything.
//
// # Bus tracing
//
// Producers start a publish span and inject its context into the message
// headers; consumers continue the trace on the other side:
//
//	ctx, span := observability.StartBusPublishSpan(ctx, attrs)
//	observability.InjectTrace(ctx, msg.Headers)
//	span.End()
//
//	ctx, span := observability.StartBusConsumeSpan(ctx, msg.Headers, attrs)
//	defer span.End()
//
// # Domain metrics
//
// Recording helpers cover the bus and order-management instruments with
// bounded labels only:
//
//	observability.BusProducedAdd(ctx, topic, 1)
//	observability.OMSOrderSubmitAdd(ctx, "alpaca", observability.OutcomeOK)
//
// Helpers are safe no-ops before Init, so library code can record
// unconditionally.
package observability
