package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device/devicetest"
	"github.com/Carmen-Shannon/oxy-glass/engine/scene"
)

type fakeSurface struct {
	width, height int
	onResize      func(width, height int)
	onUpdate      func()

	running       bool
	closeRequests int

	// ProcessMessages gives up after maxIterations and stops early once stop returns true.
	maxIterations int
	stop          func() bool
}

func newFakeSurface(width, height int) *fakeSurface {
	return &fakeSurface{width: width, height: height, running: true, maxIterations: 5000}
}

func (s *fakeSurface) Width() int  { return s.width }
func (s *fakeSurface) Height() int { return s.height }

func (s *fakeSurface) SetResizeCallback(callback func(width, height int)) { s.onResize = callback }
func (s *fakeSurface) SetUpdateCallback(callback func())                 { s.onUpdate = callback }

func (s *fakeSurface) ProcessMessages() {
	for i := 0; s.running && i < s.maxIterations; i++ {
		s.onUpdate()
		if s.stop != nil && s.stop() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *fakeSurface) IsRunning() bool { return s.running }

func (s *fakeSurface) RequestClose() {
	s.closeRequests++
	s.running = false
}

func (s *fakeSurface) resize(width, height int) {
	s.width, s.height = width, height
	s.onResize(width, height)
}

// countingLoader counts Load calls.
type countingLoader struct {
	scene.Loader
	mu    sync.Mutex
	loads int
}

func (l *countingLoader) Load(ctx context.Context) *scene.LoadTask {
	l.mu.Lock()
	l.loads++
	l.mu.Unlock()
	return l.Loader.Load(ctx)
}

func encodePNG(t *testing.T, size int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, size, size))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func newLoader(t *testing.T, options ...scene.LoaderBuilderOption) *countingLoader {
	t.Helper()
	fsys := fstest.MapFS{
		scene.DefaultNoisePath:     {Data: encodePNG(t, 16)},
		scene.DefaultBlueNoisePath: {Data: encodePNG(t, 8)},
	}
	options = append([]scene.LoaderBuilderOption{
		scene.WithProgramSources(scene.ProgramSources{Vertex: "vertex", Cloud: "cloud", Composite: "composite"}),
	}, options...)
	return &countingLoader{Loader: scene.NewLoader(scene.NewFSImageSource(fsys), options...)}
}

func waitLoaded(t *testing.T, e *engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.task.Wait(ctx); errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("scene load did not finish")
	}
}

func TestEngineLoadsOnce(t *testing.T) {
	surf := newFakeSurface(800, 600)
	dev := devicetest.New()
	loader := newLoader(t)
	e := NewEngine(surf, dev, loader).(*engine)
	defer e.release()

	e.start(context.Background())
	if e.State() != StateLoading {
		t.Fatalf("State() after start = %v, want loading", e.State())
	}
	if dev.SurfaceSize != [2]int{800, 600} {
		t.Errorf("SurfaceSize = %v, want [800 600]", dev.SurfaceSize)
	}

	surf.resize(1024, 768)
	waitLoaded(t, e)
	if e.State() != StateLoading {
		t.Fatalf("State() before the first frame = %v, want loading", e.State())
	}

	t0 := time.Unix(50, 0)
	e.frame(t0)
	if e.State() != StateReady {
		t.Fatalf("State() after the first frame = %v, want ready", e.State())
	}
	if len(dev.Draws) != 2 {
		t.Errorf("first ready frame issued %d draws, want 2", len(dev.Draws))
	}

	surf.resize(640, 480)
	e.frame(t0.Add(16 * time.Millisecond))

	if loader.loads != 1 {
		t.Errorf("Load() called %d times, want 1", loader.loads)
	}
	if got := dev.Live(devicetest.KindFramebuffer); got != 1 {
		t.Errorf("live framebuffers = %d, want 1", got)
	}
	if dev.Frames != 2 {
		t.Errorf("Frames = %d, want 2", dev.Frames)
	}
	if e.clock.Frame() != 2 || e.clock.Elapsed() != 16*time.Millisecond {
		t.Errorf("clock frame %d elapsed %v, want 2 and 16ms", e.clock.Frame(), e.clock.Elapsed())
	}
	last := dev.Draws[len(dev.Draws)-1]
	if last.Viewport != [4]int{0, 0, 640, 480} {
		t.Errorf("composite viewport after resize = %v, want [0 0 640 480]", last.Viewport)
	}
}

func TestEngineBothImagesFail(t *testing.T) {
	var mu sync.Mutex
	reports := map[string]int{}
	loader := newLoader(t,
		scene.WithNoisePath("textures/missing.png"),
		scene.WithBlueNoisePath("textures/missing-blue.png"),
		scene.WithReporter(func(path string, _ error) {
			mu.Lock()
			defer mu.Unlock()
			reports[path]++
		}),
	)
	surf := newFakeSurface(800, 600)
	dev := devicetest.New()
	e := NewEngine(surf, dev, loader).(*engine)
	defer e.release()

	e.start(context.Background())
	waitLoaded(t, e)

	t0 := time.Unix(50, 0)
	for i := range 5 {
		e.frame(t0.Add(time.Duration(i) * 16 * time.Millisecond))
	}
	surf.resize(1024, 768)
	e.frame(t0.Add(time.Second))

	if e.State() != StateFailed {
		t.Errorf("State() = %v, want failed", e.State())
	}
	if len(dev.Draws) != 0 || dev.Frames != 0 {
		t.Errorf("standby issued %d draws in %d frames, want none", len(dev.Draws), dev.Frames)
	}
	if loader.loads != 1 {
		t.Errorf("Load() called %d times, want 1", loader.loads)
	}
	if len(reports) != 2 || reports["textures/missing.png"] != 1 || reports["textures/missing-blue.png"] != 1 {
		t.Errorf("reports = %v, want one per image", reports)
	}
}

func TestEngineRun(t *testing.T) {
	surf := newFakeSurface(800, 600)
	dev := devicetest.New()
	var transitions []string
	e := NewEngine(surf, dev, newLoader(t),
		WithStateCallback(func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)
	surf.stop = func() bool { return dev.Frames >= 3 }

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if dev.Frames != 3 {
		t.Errorf("Frames = %d, want 3", dev.Frames)
	}
	if got := strings.Join(transitions, ","); got != "uninitialized>loading,loading>ready" {
		t.Errorf("transitions = %s", got)
	}
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after Run = %d, want 0", dev.LiveTotal())
	}
	if calls := dev.Calls; calls[len(calls)-1] != "Release" {
		t.Errorf("last device call = %q, want Release", calls[len(calls)-1])
	}
}

func TestEngineResizeFailureQuits(t *testing.T) {
	surf := newFakeSurface(800, 600)
	dev := devicetest.New()
	dev.FailFramebuffer = true
	loader := newLoader(t)
	e := NewEngine(surf, dev, loader)

	err := e.Run(context.Background())
	if !errors.Is(err, device.ErrIncompleteFramebuffer) {
		t.Fatalf("Run() error = %v, want ErrIncompleteFramebuffer", err)
	}
	if surf.closeRequests != 1 {
		t.Errorf("close requests = %d, want 1", surf.closeRequests)
	}
	if e.State() != StateUninitialized || loader.loads != 0 {
		t.Errorf("State() = %v with %d loads, want no load started", e.State(), loader.loads)
	}
}

func TestEngineFrameLimit(t *testing.T) {
	surf := newFakeSurface(320, 240)
	dev := devicetest.New()
	e := NewEngine(surf, dev, newLoader(t), WithRenderFrameLimit(10)).(*engine)
	defer e.release()

	e.start(context.Background())
	waitLoaded(t, e)

	t0 := time.Unix(50, 0)
	for _, ms := range []int{0, 50, 99, 100, 150, 250} {
		e.frame(t0.Add(time.Duration(ms) * time.Millisecond))
	}
	if dev.Frames != 3 {
		t.Errorf("Frames = %d, want 3", dev.Frames)
	}
}

func TestEngineRecoversFromPanic(t *testing.T) {
	surf := newFakeSurface(320, 240)
	dev := devicetest.New()
	e := NewEngine(surf, dev, newLoader(t),
		WithStateCallback(func(_, to State) {
			if to == StateReady {
				panic("boom")
			}
		}),
	)

	err := e.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Run() error = %v, want the recovered panic", err)
	}
	if surf.closeRequests != 1 {
		t.Errorf("close requests = %d, want 1", surf.closeRequests)
	}
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after Run = %d, want 0", dev.LiveTotal())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateUninitialized, "uninitialized"},
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
