// Package clock tracks per-frame timing for the render loop.
package clock

import "time"

// FrameClock records the start of the animation, the time between ticks and a frame counter.
// The zero value is ready to use; the first Tick fixes the start time.
type FrameClock struct {
	start    time.Time
	previous time.Time
	delta    time.Duration
	elapsed  time.Duration
	frame    uint64
	started  bool
}

// New creates a FrameClock that has not ticked yet.
//
// Returns:
//   - *FrameClock: the clock
func New() *FrameClock {
	return &FrameClock{}
}

// Tick advances the clock to now. The first call fixes the start time, so elapsed and delta
// start at zero. Every call increments the frame counter by exactly one. A now earlier than the
// previous tick is treated as the previous tick, so elapsed never decreases.
//
// Parameters:
//   - now: the time of the current frame
func (c *FrameClock) Tick(now time.Time) {
	if !c.started {
		c.start = now
		c.previous = now
		c.started = true
	}
	if now.Before(c.previous) {
		now = c.previous
	}
	c.elapsed = now.Sub(c.start)
	c.delta = now.Sub(c.previous)
	c.previous = now
	c.frame++
}

// Started reports whether Tick has been called.
func (c *FrameClock) Started() bool { return c.started }

// Start returns the time of the first tick.
func (c *FrameClock) Start() time.Time { return c.start }

// Delta returns the time between the two most recent ticks.
func (c *FrameClock) Delta() time.Duration { return c.delta }

// Elapsed returns the time from the first tick to the most recent one.
func (c *FrameClock) Elapsed() time.Duration { return c.elapsed }

// Frame returns the number of ticks so far.
func (c *FrameClock) Frame() uint64 { return c.frame }

// ElapsedSeconds returns Elapsed in seconds, as uploaded to the time uniform.
func (c *FrameClock) ElapsedSeconds() float32 {
	return float32(c.elapsed.Seconds())
}

// DeltaSeconds returns Delta in seconds.
func (c *FrameClock) DeltaSeconds() float32 {
	return float32(c.delta.Seconds())
}
