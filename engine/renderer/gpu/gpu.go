// Package gpu holds the backend-neutral vocabulary shared by the renderer, its sub-shaders and the
// backends: resource handles, formats, usage flags, draw state flags and capability reports.
package gpu

import "errors"

// ErrUnsupported is returned when a backend cannot provide a requested feature or format.
var ErrUnsupported = errors.New("unsupported by backend")

// ErrReleased is returned when an operation targets a resource that has already been released.
var ErrReleased = errors.New("resource already released")

// TextureFormat identifies the texel layout of a texture.
type TextureFormat int

const (
	FormatUndefined TextureFormat = iota
	FormatRGBA8
	FormatBGRA8
	FormatRGBA16F
	FormatRG16F
	FormatR32F
	FormatRGBA32F
	FormatD16
	FormatD24S8
	FormatD32F
)

var formatNames = map[TextureFormat]string{
	FormatUndefined: "undefined",
	FormatRGBA8:     "rgba8",
	FormatBGRA8:     "bgra8",
	FormatRGBA16F:   "rgba16f",
	FormatRG16F:     "rg16f",
	FormatR32F:      "r32f",
	FormatRGBA32F:   "rgba32f",
	FormatD16:       "d16",
	FormatD24S8:     "d24s8",
	FormatD32F:      "d32f",
}

func (f TextureFormat) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// IsDepth reports whether the format is a depth(-stencil) format.
func (f TextureFormat) IsDepth() bool {
	return f == FormatD16 || f == FormatD24S8 || f == FormatD32F
}

// BytesPerTexel returns the storage size of one texel.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case FormatRGBA8, FormatBGRA8, FormatR32F, FormatRG16F, FormatD24S8, FormatD32F:
		return 4
	case FormatD16:
		return 2
	case FormatRGBA16F:
		return 8
	case FormatRGBA32F:
		return 16
	default:
		return 0
	}
}

// BufferUsage is a bit set describing how a buffer will be bound.
type BufferUsage uint32

const (
	BufferUsageUniform BufferUsage = 1 << iota
	BufferUsageStorage
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageMapRead
)

// TextureUsage is a bit set describing how a texture will be used.
type TextureUsage uint32

const (
	TextureUsageRenderAttachment TextureUsage = 1 << iota
	TextureUsageSampled
	TextureUsageStorage
	TextureUsageCopySrc
	TextureUsageCopyDst
)

// FilterMode selects nearest or linear texture filtering.
type FilterMode int

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// AddressMode selects how out-of-range texture coordinates are resolved.
type AddressMode int

const (
	AddressRepeat AddressMode = iota
	AddressClamp
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
	Usage  TextureUsage
}

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label   string
	Filter  FilterMode
	Address AddressMode
}

// Resource is any backend object that must be released exactly once.
type Resource interface {
	Label() string
	Release()
	Released() bool
}

// Buffer is a backend buffer handle.
type Buffer interface {
	Resource
	Size() uint64
	Usage() BufferUsage
}

// Texture is a backend 2D texture handle.
type Texture interface {
	Resource
	Width() int
	Height() int
	Format() TextureFormat
}

// Sampler is a backend sampler handle.
type Sampler interface {
	Resource
	Filter() FilterMode
}

// Color is a linear RGBA color used for clears.
type Color struct {
	R, G, B, A float32
}

// LoadOp selects whether an attachment is cleared or kept at the start of a pass.
type LoadOp int

const (
	LoadClear LoadOp = iota
	LoadKeep
)

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	Texture Texture
	Load    LoadOp
	Clear   Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	Texture  Texture
	Load     LoadOp
	Clear    float32
	ReadOnly bool
}

// PassDescriptor describes a render pass over offscreen attachments.
type PassDescriptor struct {
	Label string
	Color []ColorAttachment
	Depth *DepthAttachment
}
