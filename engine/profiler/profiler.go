// Package profiler measures rendered frames and reports the frame rate.
package profiler

import (
	"fmt"
	"log"
	"runtime"
	"time"
)

// Stats is one report of the profiler, covering the frames since the previous report.
type Stats struct {
	// FPS is the number of rendered frames per second of wall time.
	FPS float64

	// FrameTime is the mean time spent between Begin and End.
	FrameTime time.Duration

	// Frames is the number of frames the report covers.
	Frames int

	// HeapMB is the live heap in megabytes, zero when memory stats are disabled.
	HeapMB float64

	// AllocRateMB is the heap allocation rate in megabytes per second.
	AllocRateMB float64

	// GCCount is the total number of completed GC cycles.
	GCCount uint32
}

// String formats the stats for a window title.
func (s Stats) String() string {
	return fmt.Sprintf("%.1f FPS (%.2f ms)", s.FPS, float64(s.FrameTime.Microseconds())/1000)
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the log and the report callback at a configurable interval.
type Profiler struct {
	now            func() time.Time
	updateInterval time.Duration
	memoryStats    bool
	logging        bool
	onReport       func(Stats)

	frameCount int
	busy       time.Duration
	frameStart time.Time
	inFrame    bool
	lastTime   time.Time
	last       Stats

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
		memoryStats:    true,
		logging:        true,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Begin marks the start of a rendered frame.
func (p *Profiler) Begin() {
	p.frameStart = p.now()
	p.inFrame = true
}

// End marks the end of the frame started by Begin and reports when the update interval
// has elapsed. An End without a matching Begin still counts the frame but adds no busy time.
//
// Returns:
//   - bool: true if stats were reported this frame, false otherwise
func (p *Profiler) End() bool {
	currentTime := p.now()
	if p.inFrame {
		p.busy += currentTime.Sub(p.frameStart)
		p.inFrame = false
	}
	p.frameCount++

	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	stats := Stats{
		FPS:       float64(p.frameCount) / elapsed.Seconds(),
		FrameTime: p.busy / time.Duration(p.frameCount),
		Frames:    p.frameCount,
	}
	if p.memoryStats {
		p.readMemory(&stats, elapsed)
	}

	if p.logging {
		log.Printf("[Profiler] FPS: %.2f | Frame: %.2f ms | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d",
			stats.FPS, float64(stats.FrameTime.Microseconds())/1000, stats.HeapMB, stats.AllocRateMB, stats.GCCount)
	}
	if p.onReport != nil {
		p.onReport(stats)
	}

	p.last = stats
	p.frameCount = 0
	p.busy = 0
	p.lastTime = currentTime
	return true
}

func (p *Profiler) readMemory(stats *Stats, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap; TotalAlloc only grows, so its delta is the allocation churn.
	stats.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()
	stats.GCCount = p.memStats.NumGC

	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recent report, zero before the first one.
func (p *Profiler) Last() Stats {
	return p.last
}
