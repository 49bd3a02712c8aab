package observability

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Header keys used on bus messages. traceparent and tracestate follow W3C
// Trace Context; run_id is the platform correlation header.
const (
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
	HeaderRunID       = "run_id"
)

// InjectTrace writes the W3C trace context from ctx into the header map. The
// encoding is delegated entirely to the registered propagator; this package
// never constructs traceparent values itself.
func InjectTrace(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractTrace reads W3C trace context from the header map and returns a
// context parented to the remote span. Headers without trace context return
// the parent unchanged.
func ExtractTrace(parent context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(parent, propagation.MapCarrier(headers))
}

// traceEnvelope wraps a payload with its trace context for transports that
// carry a single opaque body instead of per-message headers.
type traceEnvelope struct {
	Data         json.RawMessage   `json:"data"`
	TraceContext map[string]string `json:"_trace_context,omitempty"`
}

// WrapWithTrace serializes payload alongside the trace context from ctx, for
// transports without header support. The result is unwrapped on the consumer
// side with UnwrapWithTrace.
func WrapWithTrace(ctx context.Context, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := traceEnvelope{
		Data:         data,
		TraceContext: map[string]string{},
	}
	InjectTrace(ctx, env.TraceContext)
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal trace envelope: %w", err)
	}
	return out, nil
}

// UnwrapWithTrace parses an envelope produced by WrapWithTrace, returning a
// context continuing the embedded trace and the raw payload bytes. Bodies
// without an envelope shape fail with an error; bodies with an envelope but
// no trace context return the parent context unchanged.
func UnwrapWithTrace(parent context.Context, body []byte) (context.Context, []byte, error) {
	var env traceEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return parent, nil, fmt.Errorf("unmarshal trace envelope: %w", err)
	}
	ctx := parent
	if len(env.TraceContext) > 0 {
		ctx = ExtractTrace(parent, env.TraceContext)
	}
	return ctx, env.Data, nil
}
