package observability

import (
	"sort"
	"sync"
	"time"
)

// maxSamplesPerOp bounds the per-operation sample window.
const maxSamplesPerOp = 100

// slowOpThreshold is the duration above which an operation gets a warn line.
const slowOpThreshold = 500 * time.Millisecond

// OpStats keeps an in-process rolling window of operation latencies and
// outcomes, for services that want cheap local summaries (startup probes,
// admin endpoints) without querying the metrics backend. It complements the
// OTel instruments rather than replacing them.
type OpStats struct {
	mu       sync.Mutex
	logger   Logger
	samples  map[string][]time.Duration
	success  map[string]int64
	failures map[string]int64
}

// OpSummary is a point-in-time digest of one operation's window.
type OpSummary struct {
	Operation string
	Count     int64
	Failures  int64
	P50       time.Duration
	P95       time.Duration
	Max       time.Duration
}

// NewOpStats creates a tracker that logs slow and failed operations through
// logger. A nil logger falls back to the package logger.
func NewOpStats(logger Logger) *OpStats {
	if logger == nil {
		logger = L()
	}
	return &OpStats{
		logger:   logger,
		samples:  make(map[string][]time.Duration),
		success:  make(map[string]int64),
		failures: make(map[string]int64),
	}
}

// Observe records one execution of the named operation.
func (s *OpStats) Observe(operation string, elapsed time.Duration, opErr error) {
	s.mu.Lock()
	window := s.samples[operation]
	if len(window) >= maxSamplesPerOp {
		window = window[1:]
	}
	s.samples[operation] = append(window, elapsed)
	if opErr != nil {
		s.failures[operation]++
	} else {
		s.success[operation]++
	}
	s.mu.Unlock()

	if opErr != nil {
		s.logger.Error("operation failed",
			String("operation", operation),
			Duration("elapsed", elapsed),
			Err(opErr),
		)
		return
	}
	if elapsed > slowOpThreshold {
		s.logger.Warn("slow operation",
			String("operation", operation),
			Duration("elapsed", elapsed),
		)
	}
}

// Time runs fn, observes its duration and error, and returns the error.
func (s *OpStats) Time(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.Observe(operation, time.Since(start), err)
	return err
}

// Summary digests the current window for one operation. The zero value is
// returned for operations never observed.
func (s *OpStats) Summary(operation string) OpSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.samples[operation]
	out := OpSummary{
		Operation: operation,
		Count:     s.success[operation] + s.failures[operation],
		Failures:  s.failures[operation],
	}
	if len(window) == 0 {
		return out
	}

	sorted := make([]time.Duration, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out.P50 = sorted[len(sorted)/2]
	out.P95 = sorted[(len(sorted)*95)/100]
	out.Max = sorted[len(sorted)-1]
	return out
}

// Operations lists every operation with at least one observation, sorted.
func (s *OpStats) Operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]string, 0, len(s.samples))
	for op := range s.samples {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
