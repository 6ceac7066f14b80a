package backend

import (
	"runtime"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"go.uber.org/zap"
)

// backendOptions collects the settings shared by both backends.
type backendOptions struct {
	logger               *zap.Logger
	parallelism          int
	forceFallbackAdapter bool
	vsync                bool
	capabilities         *gpu.Capabilities
}

func defaultBackendOptions() backendOptions {
	return backendOptions{
		logger:      zap.NewNop(),
		parallelism: runtime.NumCPU(),
	}
}

// BackendBuilderOption is a functional option used to configure a Backend during construction.
type BackendBuilderOption func(*backendOptions)

// WithLogger sets the logger used for device and resource diagnostics.
//
// Parameters:
//   - logger: the logger to use; nil keeps the no-op default
//
// Returns:
//   - BackendBuilderOption: a function that sets the logger
func WithLogger(logger *zap.Logger) BackendBuilderOption {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithParallelism sets how many workers the software backend uses to execute host kernels.
// A value of 1 runs every kernel on the calling goroutine.
//
// Parameters:
//   - n: the worker count, values below 1 are treated as 1
//
// Returns:
//   - BackendBuilderOption: a function that sets the parallelism
func WithParallelism(n int) BackendBuilderOption {
	return func(o *backendOptions) {
		o.parallelism = max(1, n)
	}
}

// WithForceFallbackAdapter requests the software (CPU) adapter from the WebGPU instance.
//
// Returns:
//   - BackendBuilderOption: a function that forces the fallback adapter
func WithForceFallbackAdapter() BackendBuilderOption {
	return func(o *backendOptions) {
		o.forceFallbackAdapter = true
	}
}

// WithVSync sets the initial presentation mode.
//
// Parameters:
//   - enabled: true for FIFO presentation
//
// Returns:
//   - BackendBuilderOption: a function that sets vsync
func WithVSync(enabled bool) BackendBuilderOption {
	return func(o *backendOptions) {
		o.vsync = enabled
	}
}

// WithCapabilities overrides the capability report of the software backend, used to emulate
// hardware that lacks compute or specific render target formats.
//
// Parameters:
//   - caps: the capabilities to report
//
// Returns:
//   - BackendBuilderOption: a function that sets the capabilities
func WithCapabilities(caps gpu.Capabilities) BackendBuilderOption {
	return func(o *backendOptions) {
		o.capabilities = &caps
	}
}
