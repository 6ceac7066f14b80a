package renderer

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
)

// RenderPath identifies a lighting strategy.
type RenderPath int

const (
	// RenderPathForward shades every fragment against every light in a single pass.
	RenderPathForward RenderPath = iota
	// RenderPathDeferred writes a G-buffer and accumulates lights with per-light volumes.
	RenderPathDeferred
	// RenderPathClustered assigns lights to view-space clusters with compute stages and shades each
	// fragment against its cluster's lights only.
	RenderPathClustered
)

var renderPathNames = map[RenderPath]string{
	RenderPathForward:   "forward",
	RenderPathDeferred:  "deferred",
	RenderPathClustered: "clustered",
}

func (p RenderPath) String() string {
	if name, ok := renderPathNames[p]; ok {
		return name
	}
	return fmt.Sprintf("RenderPath(%d)", int(p))
}

// RenderPaths lists every path from cheapest to most demanding.
func RenderPaths() []RenderPath {
	return []RenderPath{RenderPathForward, RenderPathDeferred, RenderPathClustered}
}

// ParseRenderPath resolves a path by its case-insensitive name.
//
// Parameters:
//   - name: "forward", "deferred" or "clustered"
//
// Returns:
//   - RenderPath: the matching path
//   - error: an error naming the valid choices when nothing matches
func ParseRenderPath(name string) (RenderPath, error) {
	for p, n := range renderPathNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return p, nil
		}
	}
	return RenderPathForward, fmt.Errorf("unknown render path %q (forward, deferred, clustered)", name)
}

// MarshalText encodes the path by name, so configuration files carry "clustered" rather than 2.
func (p RenderPath) MarshalText() ([]byte, error) {
	if _, ok := renderPathNames[p]; !ok {
		return nil, fmt.Errorf("unknown render path %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a path name, see ParseRenderPath.
func (p *RenderPath) UnmarshalText(text []byte) error {
	parsed, err := ParseRenderPath(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// deferredFormats are the G-buffer attachment formats that must be renderable.
var deferredFormats = []gpu.TextureFormat{gpu.FormatRGBA8, gpu.FormatRG16F}

// Supported reports whether a backend with caps can run path.
//
// Parameters:
//   - path: the strategy to check
//   - caps: the backend capabilities
//
// Returns:
//   - bool: true when every feature the strategy needs is available
func Supported(path RenderPath, caps gpu.Capabilities) bool {
	if !caps.SupportsFormat(gpu.FormatRGBA16F) || caps.FirstSupported(depthFormats...) == gpu.FormatUndefined {
		return false
	}
	switch path {
	case RenderPathForward:
		return true
	case RenderPathDeferred:
		if caps.MaxColorAttachments < gbufferTargets || !caps.TextureCopy || !caps.FragmentDepth {
			return false
		}
		for _, f := range deferredFormats {
			if !caps.SupportsFormat(f) {
				return false
			}
		}
		return true
	case RenderPathClustered:
		return cluster.Supported(caps)
	default:
		return false
	}
}

// Select returns path when it is supported and otherwise the most capable supported path below it,
// falling back from clustered to deferred to forward.
//
// Parameters:
//   - path: the preferred strategy
//   - caps: the backend capabilities
//
// Returns:
//   - RenderPath: the path to use
//   - bool: false when not even the forward path is supported
func Select(path RenderPath, caps gpu.Capabilities) (RenderPath, bool) {
	for p := path; p >= RenderPathForward; p-- {
		if Supported(p, caps) {
			return p, true
		}
	}
	return RenderPathForward, false
}
