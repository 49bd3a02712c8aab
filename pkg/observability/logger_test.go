package observability_test

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"pulse-obs/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tsPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// decodeLine parses a single JSON log line into a map.
func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record), "log line must be valid JSON: %s", line)
	return record
}

// TestJSONLogger_WireFormat verifies the platform wire format: one compact
// JSON line per call with ts, level, message, and the caller's fields.
func TestJSONLogger_WireFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewJSONLogger(&buf, "debug")

	logger.Info("hello",
		observability.Int("code", 200),
		observability.String("symbol", "AAPL"),
	)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1, "exactly one line per call")

	record := decodeLine(t, lines[0])
	assert.Equal(t, "info", record["level"])
	assert.Equal(t, "hello", record["message"])
	assert.Equal(t, float64(200), record["code"])
	assert.Equal(t, "AAPL", record["symbol"])
	require.IsType(t, "", record["ts"])
	assert.Regexp(t, tsPattern, record["ts"])
}

// TestJSONLogger_Levels checks each severity maps to its lowercase name.
func TestJSONLogger_Levels(t *testing.T) {
	tests := []struct {
		name string
		log  func(observability.Logger)
		want string
	}{
		{"debug", func(l observability.Logger) { l.Debug("m") }, "debug"},
		{"info", func(l observability.Logger) { l.Info("m") }, "info"},
		{"warn", func(l observability.Logger) { l.Warn("m") }, "warn"},
		{"error", func(l observability.Logger) { l.Error("m") }, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := observability.NewJSONLogger(&buf, "debug")
			tt.log(logger)

			record := decodeLine(t, strings.TrimRight(buf.String(), "\n"))
			assert.Equal(t, tt.want, record["level"])
		})
	}
}

// TestJSONLogger_LevelThreshold verifies records below the configured level
// are dropped.
func TestJSONLogger_LevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewJSONLogger(&buf, "warn")

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Zero(t, buf.Len(), "below-threshold records must produce no output")

	logger.Warn("kept")
	record := decodeLine(t, strings.TrimRight(buf.String(), "\n"))
	assert.Equal(t, "warn", record["level"])
}

// TestJSONLogger_UnknownLevelDefaultsToDebug documents the fallback for a
// bad level string.
func TestJSONLogger_UnknownLevelDefaultsToDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewJSONLogger(&buf, "verbose")

	logger.Debug("kept")
	assert.NotZero(t, buf.Len())
}

// TestJSONLogger_NoCollisionProtection documents that caller fields may
// shadow the reserved keys: the caller's value appears later in the object
// and wins on deserialization.
func TestJSONLogger_NoCollisionProtection(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewJSONLogger(&buf, "debug")

	logger.Info("original", observability.String("message", "shadowed"))

	record := decodeLine(t, strings.TrimRight(buf.String(), "\n"))
	assert.Equal(t, "shadowed", record["message"])
}

// TestJSONLogger_FieldKinds exercises the closed set of field constructors.
func TestJSONLogger_FieldKinds(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewJSONLogger(&buf, "debug")

	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	logger.Info("kinds",
		observability.Bool("ok", true),
		observability.Int64("big", 1<<40),
		observability.Float64("ratio", 0.25),
		observability.Duration("took", 1500*time.Millisecond),
		observability.Time("when", when),
	)

	record := decodeLine(t, strings.TrimRight(buf.String(), "\n"))
	assert.Equal(t, true, record["ok"])
	assert.Equal(t, float64(1<<40), record["big"])
	assert.Equal(t, 0.25, record["ratio"])
	assert.Equal(t, float64(1500), record["took"])
	assert.Equal(t, "2026-03-14T09:26:53Z", record["when"])
}

// TestNopLogger_NeverFails calls every method on the discarding logger; all
// are no-ops for all inputs.
func TestNopLogger_NeverFails(t *testing.T) {
	logger := observability.NewNopLogger()

	assert.NotPanics(t, func() {
		logger.Debug("x")
		logger.Info("x", observability.Int("n", 1))
		logger.Warn("", observability.String("k", ""))
		logger.Error("x", observability.Err(nil))
	})
}
