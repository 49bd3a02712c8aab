package observability_test

import (
	"os"
	"path/filepath"
	"testing"

	"pulse-obs/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig checks every default the initializer documents.
func TestDefaultConfig(t *testing.T) {
	cfg := observability.DefaultConfig("oms-gateway")

	assert.Equal(t, "oms-gateway", cfg.ServiceName)
	assert.Equal(t, "", cfg.ServiceVersion)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "localhost:4317", cfg.CollectorEndpoint)
	assert.Equal(t, "grpc", cfg.TraceProtocol)
	assert.True(t, cfg.EnableLogs)
	assert.True(t, cfg.EnableMetrics)
	assert.True(t, cfg.EnableTracing)
	assert.Equal(t, "parent", cfg.Sampler)
	assert.Equal(t, 0.25, cfg.SampleRatio)
	assert.Equal(t, "otlp", cfg.MetricsExporter)
	assert.Equal(t, "debug", cfg.LogLevel)
}

// TestConfigFromEnv verifies environment overrides and fallback to defaults.
func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PULSE_OBS_SERVICE_NAME", "bars-ingestor")
	t.Setenv("PULSE_OBS_ENVIRONMENT", "staging")
	t.Setenv("PULSE_OBS_COLLECTOR_ENDPOINT", "https://otel.internal:4317")
	t.Setenv("PULSE_OBS_ENABLE_METRICS", "false")
	t.Setenv("PULSE_OBS_SAMPLER", "ratio")
	t.Setenv("PULSE_OBS_SAMPLE_RATIO", "0.5")

	cfg := observability.ConfigFromEnv()

	assert.Equal(t, "bars-ingestor", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "https://otel.internal:4317", cfg.CollectorEndpoint)
	assert.False(t, cfg.EnableMetrics)
	assert.True(t, cfg.EnableTracing, "unset vars keep their defaults")
	assert.Equal(t, "ratio", cfg.Sampler)
	assert.Equal(t, 0.5, cfg.SampleRatio)
	assert.Equal(t, "grpc", cfg.TraceProtocol)
}

// TestConfigFromEnv_BadValuesKeepDefaults documents that unparsable values
// fall back instead of failing.
func TestConfigFromEnv_BadValuesKeepDefaults(t *testing.T) {
	t.Setenv("PULSE_OBS_ENABLE_LOGS", "not-a-bool")
	t.Setenv("PULSE_OBS_SAMPLE_RATIO", "lots")

	cfg := observability.ConfigFromEnv()

	assert.True(t, cfg.EnableLogs)
	assert.Equal(t, 0.25, cfg.SampleRatio)
}

// TestLoadConfigFile overlays a YAML file on the defaults.
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.yaml")
	content := []byte(`
service_name: signal-router
environment: prod
enable_tracing: true
sampler: ratio
sample_ratio: 0.1
log_level: info
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := observability.LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "signal-router", cfg.ServiceName)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "ratio", cfg.Sampler)
	assert.Equal(t, 0.1, cfg.SampleRatio)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost:4317", cfg.CollectorEndpoint, "absent fields keep defaults")
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := observability.LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_name: [unclosed"), 0o644))

	_, err := observability.LoadConfigFile(path)
	assert.Error(t, err)
}

// TestConfigValidate covers the opt-in validation layer. Init never calls
// it, so these rejections do not affect the lifecycle contract.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*observability.Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(*observability.Config) {},
		},
		{
			name:    "missing service name",
			mutate:  func(c *observability.Config) { c.ServiceName = "" },
			wantErr: true,
		},
		{
			name:    "unknown sampler",
			mutate:  func(c *observability.Config) { c.Sampler = "coin-flip" },
			wantErr: true,
		},
		{
			name:    "sample ratio above one",
			mutate:  func(c *observability.Config) { c.SampleRatio = 1.5 },
			wantErr: true,
		},
		{
			name:    "negative sample ratio",
			mutate:  func(c *observability.Config) { c.SampleRatio = -0.1 },
			wantErr: true,
		},
		{
			name:    "unknown environment",
			mutate:  func(c *observability.Config) { c.Environment = "production" },
			wantErr: true,
		},
		{
			name:    "unknown metrics exporter",
			mutate:  func(c *observability.Config) { c.MetricsExporter = "statsd" },
			wantErr: true,
		},
		{
			name:   "ratio sampler at bounds",
			mutate: func(c *observability.Config) { c.Sampler = "ratio"; c.SampleRatio = 1.0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := observability.DefaultConfig("svc")
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
