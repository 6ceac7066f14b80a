// Command clusterview renders the showcase scene with a forward, deferred or clustered forward+
// renderer. Settings come from defaults, an optional TOML file and command-line flags, in that
// order of precedence.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-cluster/engine"
	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/Carmen-Shannon/oxy-cluster/engine/screenshot"
	"github.com/Carmen-Shannon/oxy-cluster/engine/window"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// options are the parsed command line. Only flags the user set override the configuration.
type options struct {
	flags *pflag.FlagSet

	configPath  string
	writeConfig string
	screenshot  bool

	path               string
	toneMapping        string
	lights             int
	maxLights          int
	moving             bool
	whiteFurnace       bool
	multipleScattering bool
	debugView          bool
	vsync              bool
	headless           bool
	frames             int
	width              int
	height             int
	logFile            string
	logLevel           string
	screenshotDir      string
	screenshotFormat   string
	profile            bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{flags: pflag.NewFlagSet("clusterview", pflag.ContinueOnError)}
	d := config.Default()
	fs := o.flags

	fs.StringVarP(&o.configPath, "config", "c", "", "TOML configuration file")
	fs.StringVar(&o.writeConfig, "write-config", "", "write the effective configuration to this file and exit")
	fs.BoolVar(&o.screenshot, "screenshot", false, "headless: save the last frame")

	fs.StringVarP(&o.path, "path", "p", d.Renderer.Path.String(), "render path: forward, deferred or clustered")
	fs.StringVar(&o.toneMapping, "tonemap", d.Renderer.ToneMapping.String(), "tone-mapping operator")
	fs.IntVarP(&o.lights, "lights", "l", d.Lights.Count, "number of point lights")
	fs.IntVar(&o.maxLights, "max-lights", d.Lights.Max, "upper bound for the light count")
	fs.BoolVar(&o.moving, "moving", d.Lights.Moving, "animate the lights")
	fs.BoolVar(&o.whiteFurnace, "white-furnace", d.Renderer.WhiteFurnace, "replace materials with the white furnace test material")
	fs.BoolVar(&o.multipleScattering, "multiple-scattering", d.Renderer.MultipleScattering, "compensate specular energy loss")
	fs.BoolVar(&o.debugView, "debug-view", d.Renderer.DebugVisualization, "show the strategy's debug view")
	fs.BoolVar(&o.vsync, "vsync", d.Renderer.VSync, "wait for vertical sync")
	fs.BoolVar(&o.headless, "headless", d.Renderer.Headless, "render with the software backend and no window")
	fs.IntVarP(&o.frames, "frames", "n", d.Renderer.Frames, "headless: frames to render, 0 until interrupted")
	fs.IntVar(&o.width, "width", d.Window.Width, "framebuffer width")
	fs.IntVar(&o.height, "height", d.Window.Height, "framebuffer height")
	fs.StringVar(&o.logFile, "log-file", d.Output.LogFile, "mirror the log into this file, empty to disable")
	fs.StringVar(&o.logLevel, "log-level", d.Output.LogLevel, "debug, info, warn or error")
	fs.StringVar(&o.screenshotDir, "screenshot-dir", d.Output.ScreenshotDir, "screenshot directory")
	fs.StringVar(&o.screenshotFormat, "screenshot-format", string(d.Output.ScreenshotFormat), "png or bmp")
	fs.BoolVar(&o.profile, "profile", d.Output.Profile, "log frame statistics every second")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

// overrides turns the flags the user set into configuration options.
func (o *options) overrides() ([]config.ConfigBuilderOption, error) {
	var out []config.ConfigBuilderOption
	set := o.flags.Changed

	if set("path") {
		p, err := renderer.ParseRenderPath(o.path)
		if err != nil {
			return nil, err
		}
		out = append(out, config.WithRenderPath(p))
	}
	if set("tonemap") {
		m, err := tonemap.ParseMode(o.toneMapping)
		if err != nil {
			return nil, err
		}
		out = append(out, config.WithToneMapping(m))
	}
	if set("screenshot-format") {
		f, err := screenshot.ParseFormat(o.screenshotFormat)
		if err != nil {
			return nil, err
		}
		out = append(out, func(c *config.Config) { c.Output.ScreenshotFormat = f })
	}
	if set("lights") {
		out = append(out, config.WithLightCount(o.lights))
	}
	if set("max-lights") {
		out = append(out, config.WithMaxLights(o.maxLights))
	}
	if set("moving") {
		out = append(out, config.WithMovingLights(o.moving))
	}
	if set("white-furnace") {
		out = append(out, config.WithWhiteFurnace(o.whiteFurnace))
	}
	if set("multiple-scattering") {
		out = append(out, config.WithMultipleScattering(o.multipleScattering))
	}
	if set("debug-view") {
		out = append(out, func(c *config.Config) { c.Renderer.DebugVisualization = o.debugView })
	}
	if set("vsync") {
		out = append(out, config.WithVSync(o.vsync))
	}
	if set("headless") {
		out = append(out, func(c *config.Config) { c.Renderer.Headless = o.headless })
	}
	if set("frames") {
		out = append(out, func(c *config.Config) { c.Renderer.Frames = o.frames })
	}
	if set("width") || set("height") {
		out = append(out, func(c *config.Config) {
			if set("width") {
				c.Window.Width = o.width
			}
			if set("height") {
				c.Window.Height = o.height
			}
		})
	}
	if set("log-file") {
		out = append(out, config.WithLogFile(o.logFile))
	}
	if set("log-level") {
		out = append(out, config.WithLogLevel(o.logLevel))
	}
	if set("screenshot-dir") {
		out = append(out, config.WithScreenshotDir(o.screenshotDir))
	}
	if set("profile") {
		out = append(out, config.WithProfile(o.profile))
	}
	return out, nil
}

// loadConfig merges defaults, the configuration file and the flags.
func loadConfig(o *options) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}
	overrides, err := o.overrides()
	if err != nil {
		return config.Config{}, err
	}
	cfg.Apply(overrides...)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger logs human-readable entries to stderr and, when configured, to the log file.
func newLogger(out config.OutputConfig, session uuid.UUID) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(out.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = level
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}
	if out.LogFile != "" {
		zc.OutputPaths = append(zc.OutputPaths, out.LogFile)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named("clusterview").With(zap.Stringer("session", session)), nil
}

func run(args []string) int {
	o, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration:", err)
		return 2
	}
	if o.writeConfig != "" {
		if err := cfg.Save(o.writeConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	session := uuid.New()
	logger, err := newLogger(cfg.Output, session)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.Stringer("path", cfg.Renderer.Path),
		zap.Stringer("tone_mapping", cfg.Renderer.ToneMapping),
		zap.Int("lights", cfg.Lights.Count),
		zap.Bool("headless", cfg.Renderer.Headless))

	if cfg.Renderer.Headless {
		err = runHeadless(cfg, logger, session, o.screenshot)
	} else {
		err = runWindowed(cfg, logger, session)
	}
	if err != nil {
		logger.Error("exiting", zap.Error(err))
		return 1
	}
	return 0
}

func runHeadless(cfg config.Config, logger *zap.Logger, session uuid.UUID, shoot bool) error {
	b := backend.NewSoftwareBackend(backend.WithLogger(logger))
	e, err := engine.NewEngine(b,
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithSessionID(session),
	)
	if err != nil {
		return errors.Join(err, b.Shutdown())
	}

	if cfg.Renderer.Frames > 0 {
		err = renderFrames(e, cfg.Renderer.Frames, shoot)
	} else {
		err = renderUntilInterrupted(e)
	}
	return errors.Join(err, e.Shutdown())
}

// renderFrames renders n frames. With shoot set the last frame is captured, which needs the
// read-back latency plus one frame.
func renderFrames(e engine.Engine, n int, shoot bool) error {
	tail := screenshot.ReadbackLatency + 1
	if !shoot || n < tail {
		if shoot {
			return fmt.Errorf("a screenshot needs at least %d frames", tail)
		}
		return e.RunFrames(n)
	}
	if err := e.RunFrames(n - tail); err != nil {
		return err
	}
	e.RequestScreenshot()
	return e.RunFrames(tail)
}

func renderUntilInterrupted(e engine.Engine) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	for ctx.Err() == nil {
		if err := e.RunFrames(1); err != nil {
			return err
		}
	}
	return nil
}

func runWindowed(cfg config.Config, logger *zap.Logger, session uuid.UUID) error {
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithMinSize(cfg.Window.MinWidth, cfg.Window.MinHeight),
		window.WithMaxSize(cfg.Window.MaxWidth, cfg.Window.MaxHeight),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	b, err := backend.NewWGPUBackend(win.SurfaceDescriptor(),
		backend.WithLogger(logger),
		backend.WithVSync(cfg.Renderer.VSync),
	)
	if err != nil {
		return err
	}
	e, err := engine.NewEngine(b,
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithWindow(win),
		engine.WithSessionID(session),
	)
	if err != nil {
		return errors.Join(err, b.Shutdown())
	}
	return errors.Join(e.Run(), e.Shutdown())
}
