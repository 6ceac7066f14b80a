package cluster

import "go.uber.org/zap"

// GridBuilderOption is a function that configures a Grid during construction.
type GridBuilderOption func(*grid)

// WithLogger sets the logger used for rebuild diagnostics.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - GridBuilderOption: a function that sets the logger
func WithLogger(logger *zap.Logger) GridBuilderOption {
	return func(g *grid) {
		if logger != nil {
			g.logger = logger.Named("clusters")
		}
	}
}
