package shading

import "go.uber.org/zap"

// MaterialShaderBuilderOption is a function that configures a MaterialShader during construction.
type MaterialShaderBuilderOption func(*materialShader)

// WithLogger sets the logger used for texture and table diagnostics.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - MaterialShaderBuilderOption: a function that sets the logger
func WithLogger(logger *zap.Logger) MaterialShaderBuilderOption {
	return func(s *materialShader) {
		if logger != nil {
			s.logger = logger.Named("material")
		}
	}
}

// WithMultipleScattering sets the initial multiple scattering mode.
//
// Parameters:
//   - enabled: true to bind the generated albedo table
//
// Returns:
//   - MaterialShaderBuilderOption: a function that sets the mode
func WithMultipleScattering(enabled bool) MaterialShaderBuilderOption {
	return func(s *materialShader) {
		s.multipleScattering = enabled
	}
}

// WithWhiteFurnace sets the initial white furnace mode.
//
// Parameters:
//   - enabled: true to override albedo and emission
//
// Returns:
//   - MaterialShaderBuilderOption: a function that sets the mode
func WithWhiteFurnace(enabled bool) MaterialShaderBuilderOption {
	return func(s *materialShader) {
		s.whiteFurnace = enabled
	}
}

// LightShaderBuilderOption is a function that configures a LightShader during construction.
type LightShaderBuilderOption func(*lightShader)

// WithLightLogger sets the logger of a LightShader.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - LightShaderBuilderOption: a function that sets the logger
func WithLightLogger(logger *zap.Logger) LightShaderBuilderOption {
	return func(s *lightShader) {
		if logger != nil {
			s.logger = logger.Named("lights")
		}
	}
}

// WithInitialCapacity sets how many lights the storage buffer holds before it first grows.
//
// Parameters:
//   - n: the light capacity, values below 1 are treated as 1
//
// Returns:
//   - LightShaderBuilderOption: a function that sets the capacity
func WithInitialCapacity(n int) LightShaderBuilderOption {
	return func(s *lightShader) {
		s.initialCapacity = max(1, n)
	}
}
