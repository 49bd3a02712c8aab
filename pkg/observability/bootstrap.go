package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Process-wide state. Writes happen at well-defined lifecycle points
// (Init, Shutdown, Reset); log and metric calls only read it. Callers are
// expected not to race lifecycle calls with in-flight telemetry.
var (
	stateMu        sync.Mutex
	globalCfg      Config
	globalLogger   Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
)

// Init initializes process-wide observability from cfg. Any prior
// configuration is replaced wholesale: the last caller wins and no field from
// a previous call survives. The scaffold-level work (storing the config,
// installing the propagator, selecting the logger) cannot fail; an error is
// returned only when exporter construction fails or the trace protocol is
// unknown.
//
// Init does not validate field ranges. Call Config.Validate beforehand if
// rejection of malformed configs is wanted.
func Init(cfg Config) error {
	stateMu.Lock()
	defer stateMu.Unlock()

	applyDefaults(&cfg)

	// Flush providers from a previous Init before replacing them.
	shutdownProvidersLocked(context.Background())

	globalCfg = cfg

	res, err := newResource(cfg)
	if err != nil {
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.EnableLogs {
		globalLogger = newStdoutLogger(cfg)
	} else {
		globalLogger = nopLogger{}
	}

	if cfg.EnableTracing {
		tp, err := newTracerProvider(cfg, res)
		if err != nil {
			return err
		}
		tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if cfg.EnableMetrics {
		mp, err := newMeterProvider(cfg, res)
		if err != nil {
			return err
		}
		meterProvider = mp
		otel.SetMeterProvider(mp)

		if err := initInstruments(); err != nil {
			return err
		}

		// Go runtime metrics: GC pauses, heap, goroutine counts.
		_ = runtime.Start(
			runtime.WithMinimumReadMemStatsInterval(10*time.Second),
			runtime.WithMeterProvider(mp),
		)
	}

	return nil
}

// Shutdown flushes and closes the metric and trace pipelines. It is safe to
// call at any time, including before Init and more than once; in those cases
// it does nothing and returns nil.
func Shutdown(ctx context.Context) error {
	stateMu.Lock()
	defer stateMu.Unlock()
	return shutdownProvidersLocked(ctx)
}

func shutdownProvidersLocked(ctx context.Context) error {
	var firstErr error
	if meterProvider != nil {
		if err := meterProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
		meterProvider = nil
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		tracerProvider = nil
	}
	return firstErr
}

// Reset returns the package to the uninitialized state: empty configuration,
// discarding logger, no providers or instruments. It exists for test
// isolation.
func Reset() {
	stateMu.Lock()
	defer stateMu.Unlock()
	_ = shutdownProvidersLocked(context.Background())
	globalCfg = Config{}
	globalLogger = nil
	resetInstruments()
	resetPromRegistry()
}

// CurrentConfig returns a copy of the active configuration. Before Init it is
// the zero Config.
func CurrentConfig() Config {
	stateMu.Lock()
	defer stateMu.Unlock()
	return globalCfg
}

func activeLogger() Logger {
	stateMu.Lock()
	defer stateMu.Unlock()
	return globalLogger
}

// SetErrorHandler installs a handler for errors the telemetry pipelines
// report asynchronously (export failures, dropped data).
func SetErrorHandler(handler func(error)) {
	otel.SetErrorHandler(otel.ErrorHandlerFunc(handler))
}
