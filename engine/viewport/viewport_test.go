package viewport

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device/devicetest"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/resource"
)

func TestNewRenderSpec(t *testing.T) {
	tests := []struct {
		w, h int
		want RenderSpec
	}{
		{800, 600, RenderSpec{Width: 800, Height: 600, Aspect: 800.0 / 600.0, HalfWidth: 400, HalfHeight: 300, HalfAspect: 400.0 / 300.0}},
		{801, 601, RenderSpec{Width: 801, Height: 601, Aspect: 801.0 / 601.0, HalfWidth: 400, HalfHeight: 300, HalfAspect: 400.0 / 300.0}},
		{1, 1, RenderSpec{Width: 1, Height: 1, Aspect: 1}},
	}
	for _, tt := range tests {
		if got := NewRenderSpec(tt.w, tt.h); got != tt.want {
			t.Errorf("NewRenderSpec(%d, %d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestResize(t *testing.T) {
	dev := devicetest.New()
	m := NewManager(resource.NewFactory(dev))

	if m.Target() != nil {
		t.Fatalf("Target() before Resize = %v, want nil", m.Target())
	}

	sizes := [][2]int{{800, 600}, {1024, 768}, {1, 1}, {1920, 1080}}
	for _, s := range sizes {
		prev := m.Target()
		if err := m.Resize(s[0], s[1]); err != nil {
			t.Fatalf("Resize(%d, %d) error = %v", s[0], s[1], err)
		}

		spec := m.Spec()
		if spec.HalfWidth != s[0]/2 || spec.HalfHeight != s[1]/2 {
			t.Errorf("Resize(%d, %d) half = %dx%d", s[0], s[1], spec.HalfWidth, spec.HalfHeight)
		}
		rt := m.Target()
		if rt.Width() != max(1, s[0]/2) || rt.Height() != max(1, s[1]/2) {
			t.Errorf("Resize(%d, %d) target = %dx%d", s[0], s[1], rt.Width(), rt.Height())
		}
		if prev != nil && !prev.Released() {
			t.Errorf("Resize(%d, %d) left the previous target alive", s[0], s[1])
		}
		if got := dev.Live(devicetest.KindFramebuffer); got != 1 {
			t.Errorf("live framebuffers after Resize(%d, %d) = %d, want 1", s[0], s[1], got)
		}
	}

	m.Release()
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after Release = %d, want 0", dev.LiveTotal())
	}
	m.Release()
}

func TestResizeIgnoresEmptySizes(t *testing.T) {
	dev := devicetest.New()
	m := NewManager(resource.NewFactory(dev))
	if err := m.Resize(640, 480); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	rt := m.Target()

	for _, s := range [][2]int{{0, 0}, {0, 480}, {640, -1}} {
		if err := m.Resize(s[0], s[1]); err != nil {
			t.Errorf("Resize(%d, %d) error = %v, want nil", s[0], s[1], err)
		}
	}
	if m.Target() != rt || m.Spec().Width != 640 {
		t.Errorf("empty Resize replaced the target or spec")
	}
}

func TestResizeIncompleteKeepsPrevious(t *testing.T) {
	dev := devicetest.New()
	m := NewManager(resource.NewFactory(dev))
	if err := m.Resize(640, 480); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	rt := m.Target()

	dev.FailFramebuffer = true
	err := m.Resize(800, 600)
	if !errors.Is(err, device.ErrIncompleteFramebuffer) {
		t.Fatalf("Resize() error = %v, want ErrIncompleteFramebuffer", err)
	}
	if m.Target() != rt || rt.Released() {
		t.Errorf("failed Resize did not keep the previous target")
	}
	if m.Spec().Width != 640 {
		t.Errorf("Spec().Width = %d, want 640", m.Spec().Width)
	}
	if dev.LiveTotal() != 3 {
		t.Errorf("LiveTotal() = %d, want 3", dev.LiveTotal())
	}
}
