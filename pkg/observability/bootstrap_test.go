package observability_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"pulse-obs/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietConfig returns a config with every telemetry pipeline disabled, so
// lifecycle tests never touch the network.
func quietConfig(serviceName string) observability.Config {
	cfg := observability.DefaultConfig(serviceName)
	cfg.EnableLogs = false
	cfg.EnableMetrics = false
	cfg.EnableTracing = false
	return cfg
}

// captureStdout redirects os.Stdout around fn and returns what was written.
// The stdout logger binds its writer at Init, so Init must happen inside fn.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

// TestInit_ReplacesConfigWholesale re-initializes with different values and
// checks no field from the first call leaks into the second.
func TestInit_ReplacesConfigWholesale(t *testing.T) {
	t.Cleanup(observability.Reset)

	first := quietConfig("svc-a")
	first.ServiceVersion = "1.0.0"
	first.Environment = "prod"
	first.Sampler = "ratio"
	first.SampleRatio = 1.0
	require.NoError(t, observability.Init(first))

	second := quietConfig("svc-b")
	require.NoError(t, observability.Init(second))

	got := observability.CurrentConfig()
	assert.Equal(t, "svc-b", got.ServiceName)
	assert.Equal(t, "", got.ServiceVersion, "version from the first init must not leak")
	assert.Equal(t, "dev", got.Environment)
	assert.Equal(t, "parent", got.Sampler)
	assert.Equal(t, 0.25, got.SampleRatio)
}

// TestInit_AppliesDefaults initializes from a sparse config and checks the
// optional fields are filled in.
func TestInit_AppliesDefaults(t *testing.T) {
	t.Cleanup(observability.Reset)

	require.NoError(t, observability.Init(observability.Config{ServiceName: "svc"}))

	got := observability.CurrentConfig()
	assert.Equal(t, "dev", got.Environment)
	assert.Equal(t, "localhost:4317", got.CollectorEndpoint)
	assert.Equal(t, "grpc", got.TraceProtocol)
	assert.Equal(t, "parent", got.Sampler)
	assert.Equal(t, "otlp", got.MetricsExporter)
	assert.False(t, got.EnableLogs, "flags are not defaulted after construction")
}

// TestInit_NoRangeValidation documents that Init accepts out-of-range sample
// ratios silently.
func TestInit_NoRangeValidation(t *testing.T) {
	t.Cleanup(observability.Reset)

	cfg := quietConfig("svc")
	cfg.SampleRatio = 7.5
	assert.NoError(t, observability.Init(cfg))
	assert.Equal(t, 7.5, observability.CurrentConfig().SampleRatio)
}

// TestInit_UnknownTraceProtocol is the one failure path of the expanded
// lifecycle: exporter construction for a protocol that does not exist.
func TestInit_UnknownTraceProtocol(t *testing.T) {
	t.Cleanup(observability.Reset)

	cfg := quietConfig("svc")
	cfg.EnableTracing = true
	cfg.TraceProtocol = "quic"

	err := observability.Init(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace protocol")
}

// TestShutdown_BeforeInit checks the lifecycle hook is callable at any time.
func TestShutdown_BeforeInit(t *testing.T) {
	observability.Reset()
	assert.NoError(t, observability.Shutdown(context.Background()))
}

func TestShutdown_Twice(t *testing.T) {
	t.Cleanup(observability.Reset)

	require.NoError(t, observability.Init(quietConfig("svc")))
	assert.NoError(t, observability.Shutdown(context.Background()))
	assert.NoError(t, observability.Shutdown(context.Background()))
}

// TestLoggerSelection_Disabled verifies the accessor hands out the discarding
// logger when logs are disabled, and that it emits zero bytes.
func TestLoggerSelection_Disabled(t *testing.T) {
	t.Cleanup(observability.Reset)

	out := captureStdout(t, func() {
		require.NoError(t, observability.Init(quietConfig("svc-a")))
		observability.L().Error("x")
		observability.C(context.Background()).Info("y", observability.Int("n", 1))
	})
	assert.Empty(t, out)
}

// TestLoggerSelection_BeforeInit: pre-init the accessor returns the
// discarding logger.
func TestLoggerSelection_BeforeInit(t *testing.T) {
	observability.Reset()

	out := captureStdout(t, func() {
		observability.L().Error("x")
	})
	assert.Empty(t, out)
}

// TestLoggerSelection_Enabled runs the end-to-end logging scenario: init,
// emit, and parse the wire-format line from stdout.
func TestLoggerSelection_Enabled(t *testing.T) {
	t.Cleanup(observability.Reset)

	out := captureStdout(t, func() {
		cfg := quietConfig("svc-a")
		cfg.EnableLogs = true
		require.NoError(t, observability.Init(cfg))
		observability.L().Info("hello", observability.Int("code", 200))
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "info", record["level"])
	assert.Equal(t, "hello", record["message"])
	assert.Equal(t, float64(200), record["code"])
	assert.Regexp(t, tsPattern, record["ts"])
}

// TestContextLogger_AddsServiceIdentity checks C() enrichment fields.
func TestContextLogger_AddsServiceIdentity(t *testing.T) {
	t.Cleanup(observability.Reset)

	out := captureStdout(t, func() {
		cfg := quietConfig("svc-a")
		cfg.EnableLogs = true
		cfg.Environment = "staging"
		require.NoError(t, observability.Init(cfg))
		observability.C(context.Background()).Info("hello")
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimRight(out, "\n")), &record))
	assert.Equal(t, "svc-a", record["service"])
	assert.Equal(t, "staging", record["env"])
	assert.NotContains(t, record, "trace_id", "no span in context")
}

// TestReset returns the package to the uninitialized state.
func TestReset(t *testing.T) {
	require.NoError(t, observability.Init(quietConfig("svc")))
	observability.Reset()

	assert.Equal(t, observability.Config{}, observability.CurrentConfig())
	out := captureStdout(t, func() {
		observability.L().Error("x")
	})
	assert.Empty(t, out)
}
