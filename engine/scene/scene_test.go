package scene

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device/devicetest"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/resource"
	"golang.org/x/image/bmp"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("bmp.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func testFS(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		DefaultNoisePath:     {Data: encodePNG(t, 8, 8)},
		DefaultBlueNoisePath: {Data: encodePNG(t, 4, 4)},
		"textures/dither.bmp": {Data: encodeBMP(t, 2, 2)},
		"textures/broken.png": {Data: []byte("not an image")},
	}
}

var testPrograms = ProgramSources{Vertex: "vertex", Cloud: "cloud", Composite: "composite"}

func TestFSImageSource(t *testing.T) {
	src := NewFSImageSource(testFS(t))

	tests := []struct {
		path    string
		wantErr error
		wantW   uint32
	}{
		{path: DefaultNoisePath, wantW: 8},
		{path: "textures/dither.bmp", wantW: 2},
		{path: "textures/missing.png", wantErr: ErrResourceNotFound},
		{path: "textures/broken.png", wantErr: ErrDecodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			img, err := src.Decode(context.Background(), tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if img.Width != tt.wantW || len(img.Pixels) != img.Len() {
				t.Errorf("Decode() = %dx%d with %d bytes", img.Width, img.Height, len(img.Pixels))
			}
		})
	}

	img, _ := src.Decode(context.Background(), DefaultNoisePath)
	if got := img.Pixels[(1*8+3)*4 : (1*8+3)*4+4]; got[0] != 3 || got[1] != 1 || got[2] != 128 || got[3] != 255 {
		t.Errorf("pixel (3,1) = %v, want [3 1 128 255]", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Decode(ctx, DefaultNoisePath); !errors.Is(err, context.Canceled) {
		t.Errorf("Decode() with a cancelled context error = %v, want context.Canceled", err)
	}
}

func waitTask(t *testing.T, task *LoadTask) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("load task did not finish")
	}
	return err
}

func TestLoadAndBuild(t *testing.T) {
	var mu sync.Mutex
	var progress []int
	l := NewLoader(NewFSImageSource(testFS(t)),
		WithProgramSources(testPrograms),
		WithProgress(func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, done)
			if total != 2 {
				t.Errorf("progress total = %d, want 2", total)
			}
		}),
	)
	defer l.Release()

	task := l.Load(context.Background())
	if err := waitTask(t, task); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(progress) != 2 {
		t.Errorf("progress calls = %v, want 2", progress)
	}

	dev := devicetest.New()
	f := resource.NewFactory(dev)
	res, err := task.Build(f)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !res.Cloud.Usable() || !res.Composite.Usable() {
		t.Fatalf("Build() programs usable = %v/%v, want both", res.Cloud.Usable(), res.Composite.Usable())
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v, want none", res.Diagnostics)
	}
	if res.Noise.Width() != 8 || res.BlueNoise.Width() != 4 {
		t.Errorf("texture widths = %d/%d, want 8/4", res.Noise.Width(), res.BlueNoise.Width())
	}
	if res.Noise.MipLevels() != 4 {
		t.Errorf("noise MipLevels() = %d, want 4", res.Noise.MipLevels())
	}
	if res.Quad.Vertices() != 4 {
		t.Errorf("quad Vertices() = %d, want 4", res.Quad.Vertices())
	}
	for _, name := range CompositeUniforms {
		if !res.Composite.Uniform(name).Valid() {
			t.Errorf("composite Uniform(%s) not resolved", name)
		}
	}
	if !res.Cloud.Attribute("uv").Valid() {
		t.Errorf("cloud Attribute(uv) not resolved")
	}

	if _, err := task.Build(f); !errors.Is(err, ErrAlreadyBuilt) {
		t.Errorf("second Build() error = %v, want ErrAlreadyBuilt", err)
	}

	res.Release(f)
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after Release = %d, want 0", dev.LiveTotal())
	}
}

func TestLoadBothImagesFail(t *testing.T) {
	var mu sync.Mutex
	reports := map[string]int{}
	l := NewLoader(NewFSImageSource(testFS(t)),
		WithNoisePath("textures/missing.png"),
		WithBlueNoisePath("textures/broken.png"),
		WithProgramSources(testPrograms),
		WithReporter(func(path string, _ error) {
			mu.Lock()
			defer mu.Unlock()
			reports[path]++
		}),
	)
	defer l.Release()

	task := l.Load(context.Background())
	err := waitTask(t, task)
	if !errors.Is(err, ErrResourceNotFound) || !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("Wait() error = %v, want both ErrResourceNotFound and ErrDecodeFailed", err)
	}
	if len(reports) != 2 || reports["textures/missing.png"] != 1 || reports["textures/broken.png"] != 1 {
		t.Errorf("reports = %v, want one per image", reports)
	}

	dev := devicetest.New()
	if _, err := task.Build(resource.NewFactory(dev)); err == nil {
		t.Fatalf("Build() error = nil, want the load error")
	}
	if len(dev.Calls) != 0 {
		t.Errorf("Build() after a failed load issued %v", dev.Calls)
	}
	if len(reports) != 2 || reports["textures/missing.png"] != 1 {
		t.Errorf("Build() reported again: %v", reports)
	}
}

func TestBuildProgramFailureIsDiagnostic(t *testing.T) {
	l := NewLoader(NewFSImageSource(testFS(t)), WithProgramSources(testPrograms))
	defer l.Release()

	task := l.Load(context.Background())
	if err := waitTask(t, task); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	dev := devicetest.New()
	dev.FailCompile = "cloud"
	f := resource.NewFactory(dev)
	res, err := task.Build(f)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Cloud.Usable() {
		t.Errorf("cloud program usable after compile failure")
	}
	if !res.Composite.Usable() {
		t.Errorf("composite program unusable")
	}
	if len(res.Diagnostics) != 1 || !errors.Is(res.Diagnostics[0], device.ErrCompileFailed) {
		t.Errorf("Diagnostics = %v, want one compile failure", res.Diagnostics)
	}

	res.Release(f)
	if dev.LiveTotal() != 0 {
		t.Errorf("LiveTotal() after Release = %d, want 0", dev.LiveTotal())
	}
}

// gatedSource holds every decode until gate is closed.
type gatedSource struct {
	gate chan struct{}
	next ImageSource
}

func (s gatedSource) Decode(ctx context.Context, path string) (common.TextureStagingData, error) {
	<-s.gate
	return s.next.Decode(ctx, path)
}

func TestBuildBeforeDone(t *testing.T) {
	gate := make(chan struct{})
	l := NewLoader(gatedSource{gate: gate, next: NewFSImageSource(testFS(t))}, WithProgramSources(testPrograms))
	defer l.Release()

	task := l.Load(context.Background())
	if task.Finished() {
		t.Fatalf("Finished() = true before images decoded")
	}
	if _, err := task.Build(resource.NewFactory(devicetest.New())); !errors.Is(err, ErrNotDone) {
		t.Errorf("Build() error = %v, want ErrNotDone", err)
	}
	if task.Err() != nil {
		t.Errorf("Err() before done = %v, want nil", task.Err())
	}

	task.Cancel()
	close(gate)
	if err := waitTask(t, task); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() after Cancel error = %v, want context.Canceled", err)
	}
}
