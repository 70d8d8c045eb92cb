package resource

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device/devicetest"
)

func TestCreateProgram(t *testing.T) {
	dev := devicetest.New()
	dev.Inactive["uniform:missing"] = true
	f := NewFactory(dev)

	p, err := f.CreateProgram("vs", "fs", []string{"time", "missing"}, []string{"position"})
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	if !p.Usable() {
		t.Fatalf("CreateProgram() returned an unusable program")
	}
	if !p.Uniform("time").Valid() {
		t.Errorf("Uniform(time) = %v, want a valid location", p.Uniform("time"))
	}
	if p.Uniform("missing") != device.NoLocation {
		t.Errorf("Uniform(missing) = %v, want NoLocation", p.Uniform("missing"))
	}
	if p.Uniform("never-requested") != device.NoLocation {
		t.Errorf("Uniform(never-requested) = %v, want NoLocation", p.Uniform("never-requested"))
	}
	if !p.Attribute("position").Valid() {
		t.Errorf("Attribute(position) = %v, want a valid location", p.Attribute("position"))
	}
	if n := dev.Live(devicetest.KindShader); n != 0 {
		t.Errorf("live shaders after link = %d, want 0", n)
	}

	f.DestroyProgram(p)
	if n := dev.LiveTotal(); n != 0 {
		t.Errorf("LiveTotal() after DestroyProgram = %d, want 0", n)
	}
	f.DestroyProgram(p)
	f.DestroyProgram(nil)
}

func TestCreateProgramFailures(t *testing.T) {
	tests := []struct {
		name        string
		failCompile string
		failLink    string
		vertex      string
		fragment    string
		wantKind    error
		wantStage   device.ShaderStage
	}{
		{name: "vertex compile", failCompile: "BROKEN", vertex: "BROKEN", fragment: "fs", wantKind: device.ErrCompileFailed, wantStage: device.ShaderStageVertex},
		{name: "fragment compile", failCompile: "BROKEN", vertex: "vs", fragment: "BROKEN", wantKind: device.ErrCompileFailed, wantStage: device.ShaderStageFragment},
		{name: "link", failLink: "MISMATCH", vertex: "vs", fragment: "MISMATCH", wantKind: device.ErrLinkFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicetest.New()
			dev.FailCompile = tt.failCompile
			dev.FailLink = tt.failLink
			f := NewFactory(dev)

			p, err := f.CreateProgram(tt.vertex, tt.fragment, []string{"time"}, nil)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("CreateProgram() error = %v, want %v", err, tt.wantKind)
			}
			var se *device.ShaderError
			if !errors.As(err, &se) || se.Log == "" {
				t.Fatalf("CreateProgram() error = %v, want *ShaderError with a log", err)
			}
			if tt.wantKind == device.ErrCompileFailed && se.Stage != tt.wantStage {
				t.Errorf("ShaderError.Stage = %v, want %v", se.Stage, tt.wantStage)
			}
			if p.Usable() {
				t.Errorf("CreateProgram() program is usable after failure")
			}
			if p.Uniform("time") != device.NoLocation {
				t.Errorf("sentinel Uniform(time) = %v, want NoLocation", p.Uniform("time"))
			}
			if n := dev.LiveTotal(); n != 0 {
				t.Errorf("LiveTotal() after failure = %d, want 0", n)
			}
		})
	}
}

func checkerboard(w, h int) common.TextureStagingData {
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = byte(i)
	}
	return common.TextureStagingData{Pixels: pix, Width: uint32(w), Height: uint32(h)}
}

func TestCreateTexture(t *testing.T) {
	dev := devicetest.New()
	f := NewFactory(dev)

	tex, err := f.CreateTexture(checkerboard(8, 4))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	if tex.MipLevels() != 4 {
		t.Errorf("MipLevels() = %d, want 4", tex.MipLevels())
	}

	desc, ok := dev.Texture(tex.ID())
	if !ok {
		t.Fatalf("texture %d not created on the device", tex.ID())
	}
	if desc.MinFilter != device.FilterNearest || desc.Mipmap != device.MipmapLinear || desc.MagFilter != device.FilterLinear {
		t.Errorf("filters = min %v mip %v mag %v, want nearest/linear/linear", desc.MinFilter, desc.Mipmap, desc.MagFilter)
	}
	if desc.WrapS != device.WrapRepeat || desc.WrapT != device.WrapRepeat {
		t.Errorf("wrap = %v/%v, want repeat", desc.WrapS, desc.WrapT)
	}
	if got := dev.Uploads(tex.ID()); len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Errorf("Uploads() = %v, want levels 0..3", got)
	}

	f.DestroyTexture(tex)
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after DestroyTexture = %d, want 0", dev.LiveTotal())
	}
}

func TestCreateTextureRejectsBadImages(t *testing.T) {
	dev := devicetest.New()
	f := NewFactory(dev)

	bad := []common.TextureStagingData{
		{},
		{Pixels: make([]byte, 3), Width: 1, Height: 1},
	}
	for i, img := range bad {
		if _, err := f.CreateTexture(img); err == nil {
			t.Errorf("CreateTexture(bad[%d]) error = nil, want error", i)
		}
	}
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() = %d, want 0", dev.LiveTotal())
	}
}

func TestRenderTargetLifecycle(t *testing.T) {
	dev := devicetest.New()
	f := NewFactory(dev)

	rt, err := f.CreateRenderTarget(400, 300)
	if err != nil {
		t.Fatalf("CreateRenderTarget() error = %v", err)
	}
	if rt.Width() != 400 || rt.Height() != 300 {
		t.Errorf("size = %dx%d, want 400x300", rt.Width(), rt.Height())
	}
	if dev.LiveTotal() != 3 {
		t.Errorf("LiveTotal() = %d, want 3", dev.LiveTotal())
	}
	if got := dev.FramebufferColor(rt.Framebuffer()); got != rt.Color().ID() {
		t.Errorf("framebuffer color = %d, want %d", got, rt.Color().ID())
	}
	desc, _ := dev.Texture(rt.Color().ID())
	if !desc.RenderTarget || desc.MipLevels != 1 || desc.WrapS != device.WrapClampToEdge {
		t.Errorf("color descriptor = %+v, want single-level clamped render target", desc)
	}

	f.DestroyRenderTarget(rt)
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after destroy = %d, want 0", dev.LiveTotal())
	}
	if !rt.Released() {
		t.Errorf("Released() = false after destroy")
	}

	dev.ResetLog()
	f.DestroyRenderTarget(rt)
	f.DestroyRenderTarget(nil)
	if len(dev.Calls) != 0 {
		t.Errorf("second destroy issued calls %v, want none", dev.Calls)
	}
}

func TestRenderTargetIncomplete(t *testing.T) {
	dev := devicetest.New()
	dev.FailFramebuffer = true
	f := NewFactory(dev)

	rt, err := f.CreateRenderTarget(4, 4)
	if !errors.Is(err, device.ErrIncompleteFramebuffer) {
		t.Fatalf("CreateRenderTarget() error = %v, want ErrIncompleteFramebuffer", err)
	}
	if rt != nil {
		t.Errorf("CreateRenderTarget() = %v, want nil", rt)
	}
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after failed create = %d, want 0", dev.LiveTotal())
	}
}

func TestVertexArray(t *testing.T) {
	dev := devicetest.New()
	f := NewFactory(dev)

	buf, err := f.CreateVertexBuffer(make([]float32, 20), device.StaticDraw)
	if err != nil {
		t.Fatalf("CreateVertexBuffer() error = %v", err)
	}
	va, err := f.CreateVertexArray(buf, 20, []device.VertexAttribute{
		{Location: 0, Components: 3, Offset: 0},
		{Location: 1, Components: 2, Offset: 12},
	})
	if err != nil {
		t.Fatalf("CreateVertexArray() error = %v", err)
	}
	if va.Vertices() != 4 {
		t.Errorf("Vertices() = %d, want 4", va.Vertices())
	}

	if _, err := f.CreateVertexBuffer(nil, device.StaticDraw); err == nil {
		t.Errorf("CreateVertexBuffer(nil) error = nil, want error")
	}
	if _, err := f.CreateVertexArray(&Buffer{}, 20, nil); err == nil {
		t.Errorf("CreateVertexArray() on a dead buffer error = nil, want error")
	}

	f.DestroyVertexArray(va)
	f.DestroyBuffer(buf)
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() = %d, want 0", dev.LiveTotal())
	}
}

func TestMipChain(t *testing.T) {
	tests := []struct {
		w, h   int
		levels int
		last   [2]int
	}{
		{1, 1, 1, [2]int{1, 1}},
		{256, 256, 9, [2]int{1, 1}},
		{8, 2, 4, [2]int{1, 1}},
		{5, 3, 3, [2]int{1, 1}},
	}
	for _, tt := range tests {
		chain := MipChain(checkerboard(tt.w, tt.h))
		if len(chain) != tt.levels || MipLevels(tt.w, tt.h) != tt.levels {
			t.Errorf("MipChain(%dx%d) has %d levels (MipLevels %d), want %d", tt.w, tt.h, len(chain), MipLevels(tt.w, tt.h), tt.levels)
			continue
		}
		b := chain[len(chain)-1].Bounds()
		if [2]int{b.Dx(), b.Dy()} != tt.last {
			t.Errorf("MipChain(%dx%d) last level = %dx%d, want %v", tt.w, tt.h, b.Dx(), b.Dy(), tt.last)
		}
		for i, m := range chain {
			if len(m.Pix) != m.Bounds().Dx()*m.Bounds().Dy()*4 {
				t.Errorf("level %d is not tightly packed", i)
			}
		}
	}
}
