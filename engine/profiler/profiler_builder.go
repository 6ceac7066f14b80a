package profiler

import (
	"time"

	"go.uber.org/zap"
)

// ProfilerBuilderOption is a functional option applied by NewProfiler.
type ProfilerBuilderOption func(p *profiler)

// WithLogger sets the logger samples are written to; nil keeps the no-op default.
func WithLogger(logger *zap.Logger) ProfilerBuilderOption {
	return func(p *profiler) {
		if logger != nil {
			p.logger = logger.Named("profiler")
		}
	}
}

// WithInterval sets the reporting interval.
//
// Parameters:
//   - d: the interval; values <= 0 are ignored
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}

// withClock replaces time.Now, for tests.
func withClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *profiler) {
		p.now = now
	}
}
