package profiler

import "time"

// ProfilerBuilderOption is a functional option applied to a Profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval sets how often stats are reported. Values <= 0 keep the default of 1 second.
//
// Parameters:
//   - interval: the report interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithUpdateInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithReportCallback sets a function receiving every report, such as a window title update.
//
// Parameters:
//   - callback: function receiving the stats
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithReportCallback(callback func(Stats)) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.onReport = callback
	}
}

// WithMemoryStats enables or disables reading runtime memory statistics on each report.
func WithMemoryStats(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.memoryStats = enabled
	}
}

// WithLogging enables or disables the periodic log line.
func WithLogging(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logging = enabled
	}
}

// WithTimeSource replaces time.Now, mainly for tests.
func WithTimeSource(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}
