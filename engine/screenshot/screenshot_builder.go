package screenshot

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScreenshotterBuilderOption is a functional option applied by NewScreenshotter.
type ScreenshotterBuilderOption func(s *screenshotter)

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(logger *zap.Logger) ScreenshotterBuilderOption {
	return func(s *screenshotter) {
		if logger != nil {
			s.logger = logger.Named("screenshot")
		}
	}
}

// WithDirectory sets the directory screenshots are written to. It is created on first use.
//
// Parameters:
//   - dir: the output directory
//
// Returns:
//   - ScreenshotterBuilderOption: option function to apply
func WithDirectory(dir string) ScreenshotterBuilderOption {
	return func(s *screenshotter) {
		if dir != "" {
			s.dir = dir
		}
	}
}

// WithFormat sets the file format. The default is FormatPNG.
//
// Parameters:
//   - format: the format
//
// Returns:
//   - ScreenshotterBuilderOption: option function to apply
func WithFormat(format Format) ScreenshotterBuilderOption {
	return func(s *screenshotter) {
		if format != "" {
			s.format = format
		}
	}
}

// WithScale resamples saved images by factor.
func WithScale(factor float64) ScreenshotterBuilderOption {
	return func(s *screenshotter) {
		s.scale = factor
	}
}

// WithPrefix sets the leading part of file names.
func WithPrefix(prefix string) ScreenshotterBuilderOption {
	return func(s *screenshotter) {
		s.prefix = prefix
	}
}

// WithSessionID replaces the random session identifier, the host passes the id it logs with.
func WithSessionID(id uuid.UUID) ScreenshotterBuilderOption {
	return func(s *screenshotter) {
		s.sessionID = id
	}
}

// WithWorkers sets the number of encoder goroutines.
func WithWorkers(n int) ScreenshotterBuilderOption {
	return func(s *screenshotter) {
		if n > 0 {
			s.workers = n
		}
	}
}
