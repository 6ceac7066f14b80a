// Package config holds the application settings. Values start from Default, are overlaid by an
// optional TOML file through Load and finally by command-line flags in the host.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/Carmen-Shannon/oxy-cluster/engine/screenshot"
	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultLightCount is the number of point lights generated at start-up.
	DefaultLightCount = 1
	// DefaultMaxLights bounds SetLightCount.
	DefaultMaxLights = 1000
	// DefaultLogFile receives a copy of every log entry.
	DefaultLogFile = "Cluster.log"
)

// Config is the complete application configuration.
type Config struct {
	Renderer RendererConfig `toml:"renderer"`
	Lights   LightsConfig   `toml:"lights"`
	Window   WindowConfig   `toml:"window"`
	Output   OutputConfig   `toml:"output"`
}

// RendererConfig selects the strategy and its shading switches.
type RendererConfig struct {
	Path               renderer.RenderPath `toml:"path"`
	ToneMapping        tonemap.Mode        `toml:"tone_mapping"`
	MultipleScattering bool                `toml:"multiple_scattering"`
	WhiteFurnace       bool                `toml:"white_furnace"`
	VSync              bool                `toml:"vsync"`
	DebugVisualization bool                `toml:"debug_visualization"`
	Headless           bool                `toml:"headless"`
	// Frames stops a headless run after this many frames; 0 renders until interrupted.
	Frames int `toml:"frames"`
}

// LightsConfig describes the generated point lights.
type LightsConfig struct {
	Count  int     `toml:"count"`
	Max    int     `toml:"max"`
	Moving bool    `toml:"moving"`
	Power  float32 `toml:"power"`
	Seed   uint64  `toml:"seed"`
}

// WindowConfig sizes the window. Min and max bound interactive resizing.
type WindowConfig struct {
	Title     string `toml:"title"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	MinWidth  int    `toml:"min_width"`
	MinHeight int    `toml:"min_height"`
	MaxWidth  int    `toml:"max_width"`
	MaxHeight int    `toml:"max_height"`
}

// OutputConfig routes logs, screenshots and profiling output.
type OutputConfig struct {
	LogFile          string            `toml:"log_file"`
	LogLevel         string            `toml:"log_level"`
	ScreenshotDir    string            `toml:"screenshot_dir"`
	ScreenshotFormat screenshot.Format `toml:"screenshot_format"`
	Profile          bool              `toml:"profile"`
}

// Default returns the configuration used when no file or flag overrides a value.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Renderer: RendererConfig{
			Path:               renderer.RenderPathClustered,
			ToneMapping:        tonemap.ModeACES,
			MultipleScattering: true,
			VSync:              true,
		},
		Lights: LightsConfig{
			Count: DefaultLightCount,
			Max:   DefaultMaxLights,
			Power: 100,
			Seed:  1,
		},
		Window: WindowConfig{
			Title:     "Cluster",
			Width:     1280,
			Height:    720,
			MinWidth:  320,
			MinHeight: 180,
			MaxWidth:  7680,
			MaxHeight: 4320,
		},
		Output: OutputConfig{
			LogFile:          DefaultLogFile,
			LogLevel:         "info",
			ScreenshotDir:    ".",
			ScreenshotFormat: screenshot.FormatPNG,
		},
	}
}

// Load overlays the TOML file at path on the defaults. Keys that do not map to a field are rejected
// so that typos surface instead of being ignored.
//
// Parameters:
//   - path: the configuration file
//
// Returns:
//   - Config: the merged configuration
//   - error: an error if the file cannot be read, decoded or fails Validate
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode is Load for in-memory TOML.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the merged configuration
//   - error: a decode or validation error
func Decode(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: a marshal or write error
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports every inconsistent setting.
//
// Returns:
//   - error: the joined validation errors, or nil
func (c Config) Validate() error {
	var errs []error
	if c.Lights.Max <= 0 {
		errs = append(errs, fmt.Errorf("lights.max must be positive, got %d", c.Lights.Max))
	}
	if c.Lights.Count < 0 || c.Lights.Count > c.Lights.Max {
		errs = append(errs, fmt.Errorf("lights.count must be within [0, %d], got %d", c.Lights.Max, c.Lights.Count))
	}
	if c.Lights.Power < 0 {
		errs = append(errs, fmt.Errorf("lights.power must not be negative, got %g", c.Lights.Power))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Window.MinWidth > c.Window.MaxWidth || c.Window.MinHeight > c.Window.MaxHeight {
		errs = append(errs, errors.New("window minimum size exceeds the maximum"))
	}
	if c.Renderer.Frames < 0 {
		errs = append(errs, fmt.Errorf("renderer.frames must not be negative, got %d", c.Renderer.Frames))
	}
	return errors.Join(errs...)
}
