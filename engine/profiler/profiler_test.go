package profiler

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProfilerInterval(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	var reports []Stats
	p := NewProfiler(
		WithTimeSource(clk.now),
		WithLogging(false),
		WithMemoryStats(false),
		WithUpdateInterval(100*time.Millisecond),
		WithReportCallback(func(s Stats) { reports = append(reports, s) }),
	)

	for range 10 {
		p.Begin()
		clk.advance(2 * time.Millisecond)
		p.End()
		clk.advance(8 * time.Millisecond)
	}
	// The tenth End happens at 92ms; the eleventh ends at 110ms, past the interval.
	clk.advance(8 * time.Millisecond)
	p.Begin()
	clk.advance(2 * time.Millisecond)
	if !p.End() {
		t.Fatalf("End() = false after the interval elapsed")
	}

	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	got := reports[0]
	if got.Frames != 11 {
		t.Errorf("Frames = %d, want 11", got.Frames)
	}
	if math.Abs(got.FPS-100) > 1e-6 {
		t.Errorf("FPS = %v, want 100", got.FPS)
	}
	if got.FrameTime != 2*time.Millisecond {
		t.Errorf("FrameTime = %v, want 2ms", got.FrameTime)
	}
	if p.Last() != got {
		t.Errorf("Last() = %+v, want %+v", p.Last(), got)
	}
	if got.String() != "100.0 FPS (2.00 ms)" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestProfilerEndWithoutBegin(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithTimeSource(clk.now), WithLogging(false), WithMemoryStats(false), WithUpdateInterval(time.Second))
	clk.advance(time.Second)
	if !p.End() {
		t.Fatalf("End() = false, want a report")
	}
	if p.Last().FrameTime != 0 || p.Last().Frames != 1 {
		t.Errorf("Last() = %+v, want one frame with no busy time", p.Last())
	}
}
