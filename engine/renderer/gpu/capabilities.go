package gpu

// Capabilities reports what a backend can do. Strategies inspect it through their Supported
// queries before they are selected.
type Capabilities struct {
	// Compute is true when compute pipelines can be dispatched.
	Compute bool
	// Index32 is true when 32-bit index and storage buffers are available.
	Index32 bool
	// TextureCopy is true when textures can be copied on the GPU timeline (needed for the deferred depth copy).
	TextureCopy bool
	// FragmentDepth is true when fragment shaders can read depth textures.
	FragmentDepth bool
	// HomogeneousDepth is true when clip-space depth ranges over [-1, 1] instead of [0, 1].
	HomogeneousDepth bool
	// MaxColorAttachments is the maximum number of simultaneous color targets in a pass.
	MaxColorAttachments int
	// MaxComputeInvocations is the largest workgroup size (x*y*z) a compute shader may declare.
	MaxComputeInvocations int
	// RenderableFormats lists the formats that may be used as render attachments.
	RenderableFormats []TextureFormat
}

// SupportsFormat reports whether f can be rendered to.
func (c Capabilities) SupportsFormat(f TextureFormat) bool {
	for _, rf := range c.RenderableFormats {
		if rf == f {
			return true
		}
	}
	return false
}

// FirstSupported returns the first renderable format in the preference list, or FormatUndefined.
func (c Capabilities) FirstSupported(prefs ...TextureFormat) TextureFormat {
	for _, f := range prefs {
		if c.SupportsFormat(f) {
			return f
		}
	}
	return FormatUndefined
}

// AllFormats lists every format known to this package.
func AllFormats() []TextureFormat {
	return []TextureFormat{
		FormatRGBA8, FormatBGRA8, FormatRGBA16F, FormatRG16F, FormatR32F, FormatRGBA32F,
		FormatD16, FormatD24S8, FormatD32F,
	}
}
