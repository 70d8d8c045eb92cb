// Command glass renders the cloud layer through the glass composite pass in a window.
//
// Up/Down select a parameter, Left/Right change it (hold Shift for larger steps), R resets
// it, Backspace resets all of them and Escape quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-glass/config"
	"github.com/Carmen-Shannon/oxy-glass/engine"
	"github.com/Carmen-Shannon/oxy-glass/engine/params"
	"github.com/Carmen-Shannon/oxy-glass/engine/profiler"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/scene"
	"github.com/Carmen-Shannon/oxy-glass/engine/window"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", "", "path to a YAML config file")
	profile := flag.Bool("profile", false, "log frame rate and memory statistics")
	flag.Parse()

	if err := run(*configPath, *profile); err != nil {
		log.Printf("[Glass] %v", err)
		os.Exit(1)
	}
}

func run(configPath string, profile bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	policy, _ := cfg.ViewportPolicy()
	presentMode, _ := cfg.PresentMode()

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithSizeLimits(cfg.Window.MinWidth, cfg.Window.MinHeight, cfg.Window.MaxWidth, cfg.Window.MaxHeight),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := device.NewWGPUDevice(win.SurfaceDescriptor(),
		device.WithPresentMode(presentMode),
		device.WithForceFallbackAdapter(cfg.Render.SoftwareAdapter),
		device.WithDeviceLabel("oxy-glass"),
	)
	if err != nil {
		return fmt.Errorf("acquire device: %w", err)
	}

	loader := scene.NewLoader(scene.NewDirImageSource(cfg.Assets.Dir),
		scene.WithNoisePath(cfg.Assets.Noise),
		scene.WithBlueNoisePath(cfg.Assets.BlueNoise),
		scene.WithWorkers(cfg.Assets.Workers),
		scene.WithProgress(progress()),
	)

	p := cfg.Params
	panel := params.NewPanel(&p)
	ov := &overlay{win: win, title: cfg.Window.Title, panel: panel}

	options := []engine.EngineBuilderOption{
		engine.WithParams(&p),
		engine.WithRenderFrameLimit(cfg.Render.FrameLimit),
		engine.WithRendererOptions(renderer.WithViewportPolicy(policy)),
		engine.WithStateCallback(func(_, to engine.State) { ov.setState(to) }),
	}
	if profile || cfg.Profiling.Enabled {
		options = append(options, engine.WithProfiler(profiler.NewProfiler(
			profiler.WithUpdateInterval(cfg.Profiling.Interval.Duration()),
			profiler.WithMemoryStats(cfg.Profiling.MemoryStats),
			profiler.WithReportCallback(ov.setStats),
		)))
	}
	eng := engine.NewEngine(win, dev, loader, options...)

	panel.SetChangeCallback(func(string, float32) { ov.update() })
	win.SetKeyDownCallback(func(keyCode uint32) { panel.KeyDown(keyCode) })
	win.SetKeyUpCallback(panel.KeyUp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		eng.Quit()
	}()

	log.Printf("[Glass] assets from %s, cloud viewport %s", filepath.Clean(cfg.Assets.Dir), policy)
	return eng.Run(ctx)
}

// progress returns a load progress callback drawing a bar when stderr is a terminal.
func progress() func(done, total int) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressBar(os.Stderr)
}

// progressBar draws decode progress to w. The first failed update is logged; later ones are
// dropped so a broken terminal does not flood the log.
func progressBar(w io.Writer) func(done, total int) {
	// Workers report concurrently; the bar itself is safe for that, its creation is not.
	var once, failed sync.Once
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		once.Do(func() {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("decoding textures"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		})
		if err := bar.Set(done); err != nil {
			failed.Do(func() { log.Printf("[Glass] progress bar: %v", err) })
		}
	}
}

// overlay composes the window title from the lifecycle state, the frame rate and the
// selected parameter.
type overlay struct {
	win   window.Window
	title string
	panel *params.Panel
	state engine.State
	stats profiler.Stats
}

func (o *overlay) setState(s engine.State) {
	o.state = s
	o.update()
}

func (o *overlay) setStats(s profiler.Stats) {
	o.stats = s
	o.update()
}

func (o *overlay) update() {
	switch o.state {
	case engine.StateReady:
		if o.stats.Frames > 0 {
			o.win.SetTitle(fmt.Sprintf("%s | %s | %s", o.title, o.stats, o.panel))
			return
		}
		o.win.SetTitle(fmt.Sprintf("%s | %s", o.title, o.panel))
	default:
		o.win.SetTitle(fmt.Sprintf("%s | %s", o.title, o.state))
	}
}
