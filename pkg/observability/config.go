package observability

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default values applied by DefaultConfig and by Init for fields left empty.
const (
	DefaultEnvironment       = "dev"
	DefaultCollectorEndpoint = "localhost:4317"
	DefaultTraceProtocol     = "grpc"
	DefaultSampler           = "parent"
	DefaultSampleRatio       = 0.25
	DefaultMetricsExporter   = "otlp"
	DefaultLogLevel          = "debug"
)

// Config holds the process-wide observability configuration. It is built once,
// passed to Init, and replaced wholesale on re-initialization; it is never
// partially mutated afterwards.
type Config struct {
	// ServiceName identifies the service in logs, traces, and metrics.
	ServiceName string `yaml:"service_name" validate:"required"`

	// ServiceVersion is the deployed version (usually a git tag or commit).
	ServiceVersion string `yaml:"service_version"`

	// Environment is the deployment environment: dev, staging, or prod.
	Environment string `yaml:"environment" validate:"omitempty,oneof=dev staging prod"`

	// CollectorEndpoint is the OTLP collector address, either "host:port" or
	// a URL. A URL with an http scheme selects an insecure connection.
	CollectorEndpoint string `yaml:"collector_endpoint"`

	// TraceProtocol selects the span exporter transport: "grpc" (port 4317)
	// or "http" (port 4318).
	TraceProtocol string `yaml:"trace_protocol" validate:"omitempty,oneof=grpc http"`

	// EnableLogs selects the stdout JSON logger; when false the discarding
	// logger is active and log calls produce no output.
	EnableLogs bool `yaml:"enable_logs"`

	// EnableMetrics wires the meter provider and the domain instruments.
	EnableMetrics bool `yaml:"enable_metrics"`

	// EnableTracing wires the tracer provider and OTLP span export.
	EnableTracing bool `yaml:"enable_tracing"`

	// Sampler selects the sampling strategy: "parent" keeps the default
	// parent-based ratio, "ratio" uses SampleRatio.
	Sampler string `yaml:"sampler" validate:"omitempty,oneof=parent ratio"`

	// SampleRatio is the trace sampling ratio used when Sampler is "ratio".
	// Init accepts out-of-range values silently; Validate rejects them.
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`

	// MetricsExporter selects the metrics pipeline: "otlp" pushes to the
	// collector, "prometheus" exposes a scrape registry.
	MetricsExporter string `yaml:"metrics_exporter" validate:"omitempty,oneof=otlp prometheus"`

	// LogLevel is the minimum severity the stdout logger emits.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config with every optional field set to its
// default: dev environment, local collector, all three signals enabled,
// parent-based sampling at 0.25.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:       serviceName,
		Environment:       DefaultEnvironment,
		CollectorEndpoint: DefaultCollectorEndpoint,
		TraceProtocol:     DefaultTraceProtocol,
		EnableLogs:        true,
		EnableMetrics:     true,
		EnableTracing:     true,
		Sampler:           DefaultSampler,
		SampleRatio:       DefaultSampleRatio,
		MetricsExporter:   DefaultMetricsExporter,
		LogLevel:          DefaultLogLevel,
	}
}

// applyDefaults fills empty optional fields in place. Boolean flags are left
// untouched: a zero-value Config disables all three signals, which is a valid
// (if unusual) configuration.
func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = DefaultEnvironment
	}
	if cfg.CollectorEndpoint == "" {
		cfg.CollectorEndpoint = DefaultCollectorEndpoint
	}
	if cfg.TraceProtocol == "" {
		cfg.TraceProtocol = DefaultTraceProtocol
	}
	if cfg.Sampler == "" {
		cfg.Sampler = DefaultSampler
	}
	if cfg.MetricsExporter == "" {
		cfg.MetricsExporter = DefaultMetricsExporter
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// ConfigFromEnv builds a Config from PULSE_OBS_* environment variables,
// starting from the defaults. Unset variables keep their default values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig(getEnv("PULSE_OBS_SERVICE_NAME", ""))
	cfg.ServiceVersion = getEnv("PULSE_OBS_SERVICE_VERSION", cfg.ServiceVersion)
	cfg.Environment = getEnv("PULSE_OBS_ENVIRONMENT", cfg.Environment)
	cfg.CollectorEndpoint = getEnv("PULSE_OBS_COLLECTOR_ENDPOINT", cfg.CollectorEndpoint)
	cfg.TraceProtocol = getEnv("PULSE_OBS_TRACE_PROTOCOL", cfg.TraceProtocol)
	cfg.EnableLogs = getEnvBool("PULSE_OBS_ENABLE_LOGS", cfg.EnableLogs)
	cfg.EnableMetrics = getEnvBool("PULSE_OBS_ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableTracing = getEnvBool("PULSE_OBS_ENABLE_TRACING", cfg.EnableTracing)
	cfg.Sampler = getEnv("PULSE_OBS_SAMPLER", cfg.Sampler)
	cfg.SampleRatio = getEnvFloat("PULSE_OBS_SAMPLE_RATIO", cfg.SampleRatio)
	cfg.MetricsExporter = getEnv("PULSE_OBS_METRICS_EXPORTER", cfg.MetricsExporter)
	cfg.LogLevel = getEnv("PULSE_OBS_LOG_LEVEL", cfg.LogLevel)
	return cfg
}

// LoadConfigFile reads a YAML configuration file and overlays it on the
// defaults. Fields absent from the file keep their default values.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and enums. It is opt-in: Init never calls it,
// so the no-fail lifecycle contract is preserved for callers that skip it.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}
	return nil
}

// parseEndpoint normalizes a collector endpoint into "host:port" and reports
// whether the connection should be insecure. Bare "host:port" values are
// treated as insecure local endpoints; URLs derive security from the scheme.
func parseEndpoint(raw string) (hostport string, insecure bool) {
	if raw == "" {
		return DefaultCollectorEndpoint, true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		// Likely a bare "host:port".
		host, port, splitErr := net.SplitHostPort(raw)
		if splitErr != nil || port == "" {
			return raw, true
		}
		if host == "" {
			return "localhost:" + port, true
		}
		return raw, true
	}
	return u.Host, u.Scheme == "http"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
