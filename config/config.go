// Package config reads the demo's YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-glass/engine/params"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/scene"
	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds the file Load reads.
const maxConfigSize = 1024 * 1024

// Config is the complete demo configuration. Zero-valued sections fall back to Default.
type Config struct {
	Window    WindowConfig    `yaml:"window"`
	Assets    AssetsConfig    `yaml:"assets"`
	Render    RenderConfig    `yaml:"render"`
	Profiling ProfilingConfig `yaml:"profiling"`
	Params    params.Params   `yaml:"params"`
}

type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	MinWidth  int    `yaml:"min_width"`
	MinHeight int    `yaml:"min_height"`
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
}

type AssetsConfig struct {
	// Dir is the directory image paths are relative to.
	Dir       string `yaml:"dir"`
	Noise     string `yaml:"noise"`
	BlueNoise string `yaml:"blue_noise"`
	Workers   int    `yaml:"workers"`
}

type RenderConfig struct {
	// CloudViewport is "half" or "full".
	CloudViewport string `yaml:"cloud_viewport"`

	// PresentMode is "vsync" or "uncapped".
	PresentMode string `yaml:"present_mode"`

	// FrameLimit caps rendered frames per second; 0 is uncapped.
	FrameLimit float64 `yaml:"frame_limit"`

	// SoftwareAdapter forces the fallback (CPU) adapter.
	SoftwareAdapter bool `yaml:"software_adapter"`
}

type ProfilingConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Interval    Duration `yaml:"interval"`
	MemoryStats bool     `yaml:"memory_stats"`
}

// Duration wraps time.Duration for YAML strings such as "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:     "oxy-glass",
			Width:     1280,
			Height:    720,
			MinWidth:  320,
			MinHeight: 240,
		},
		Assets: AssetsConfig{
			Dir:       "assets",
			Noise:     scene.DefaultNoisePath,
			BlueNoise: scene.DefaultBlueNoisePath,
			Workers:   2,
		},
		Render: RenderConfig{
			CloudViewport: renderer.ViewportHalf.String(),
			PresentMode:   "vsync",
		},
		Profiling: ProfilingConfig{
			Interval:    Duration(time.Second),
			MemoryStats: true,
		},
		Params: *params.Default(),
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected. Parameters outside their range are clamped and logged.
//
// Parameters:
//   - path: the file to read, or ""
//
// Returns:
//   - Config: the configuration
//   - error: error if the file cannot be read or parsed, or a value is invalid
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config: %s is %d bytes, limit %d", path, info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	cfg, err = Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	log.Printf("[Config] loaded %s", path)
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
//
// Parameters:
//   - data: the YAML document; empty means defaults
//
// Returns:
//   - Config: the configuration
//   - error: error if the document is malformed or a value is invalid
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Default(), err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the enumerations and sizes and clamps the parameters.
//
// Returns:
//   - error: the first invalid value, or nil; out-of-range parameters are only logged
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Assets.Workers < 1 {
		return fmt.Errorf("assets.workers = %d, want at least 1", c.Assets.Workers)
	}
	if c.Render.FrameLimit < 0 {
		return fmt.Errorf("render.frame_limit = %g, want >= 0", c.Render.FrameLimit)
	}
	if _, err := c.ViewportPolicy(); err != nil {
		return err
	}
	if _, err := c.PresentMode(); err != nil {
		return err
	}
	if err := c.Params.Validate(); err != nil {
		log.Printf("[Config] %v", err)
	}
	return nil
}

// ViewportPolicy parses Render.CloudViewport.
func (c *Config) ViewportPolicy() (renderer.ViewportPolicy, error) {
	return renderer.ParseViewportPolicy(c.Render.CloudViewport)
}

// PresentMode parses Render.PresentMode.
func (c *Config) PresentMode() (device.PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Render.PresentMode)) {
	case "", "vsync":
		return device.PresentModeVSync, nil
	case "uncapped", "immediate":
		return device.PresentModeUncapped, nil
	default:
		return device.PresentModeVSync, fmt.Errorf("unknown present mode %q", c.Render.PresentMode)
	}
}
