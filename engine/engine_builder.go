package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/scene"
	"github.com/Carmen-Shannon/oxy-cluster/engine/window"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithLogger sets the logger shared by the engine and everything it creates.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConfig sets the configuration. The default is config.Default.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithScene renders s instead of the procedural showcase. The light settings of the configuration
// are not applied to it.
//
// Parameters:
//   - s: a loaded scene
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.sc = s
	}
}

// WithWindow attaches a window. Its input drives the engine and Run presents into it.
//
// Parameters:
//   - w: an open window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.win = w
	}
}

// WithProfiling logs frame statistics once per second.
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profiling = enabled
	}
}

// WithTickRate sets the scene update rate. Values <= 0 keep the default of 60 Hz.
//
// Parameters:
//   - hz: updates per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(hz float64) EngineBuilderOption {
	return func(e *engine) {
		if hz > 0 {
			e.tickRate = time.Duration(float64(time.Second) / hz)
		}
	}
}

// WithRenderFrameLimit caps the render loop. 0 leaves it uncapped.
//
// Parameters:
//   - fps: maximum frames per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.frameLimit = 0
			return
		}
		e.frameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithSessionID sets the id tagged on log entries and screenshot file names.
func WithSessionID(id uuid.UUID) EngineBuilderOption {
	return func(e *engine) {
		e.sessionID = id
	}
}
