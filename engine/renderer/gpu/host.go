package gpu

import (
	"image"
	"image/color"
	"sync/atomic"
	"unsafe"

	"github.com/chewxy/math32"
)

// Invocation identifies one compute invocation, mirroring the WGSL builtins.
type Invocation struct {
	GlobalID      [3]uint32
	LocalID       [3]uint32
	WorkgroupID   [3]uint32
	NumWorkgroups [3]uint32
}

// HostBindings exposes the memory behind bound resources to host-executed kernels.
// Returned slices alias the backend's storage; writes are visible to later stages.
type HostBindings interface {
	// Bytes returns the contents of the buffer bound at (group, binding), or nil.
	Bytes(group, binding int) []byte
	// Image returns the texels of the texture bound at (group, binding), or nil.
	Image(group, binding int) *HostImage
}

// HostKernel is the host-side twin of a compute entry point. Backends without a device run it once
// per invocation, in workgroup order.
type HostKernel func(inv Invocation, b HostBindings)

// HostFragment is the host-side twin of a fullscreen fragment entry point.
// It returns the output color for pixel (x, y).
type HostFragment func(x, y int, b HostBindings) [4]float32

// AtomicAddUint32 atomically adds delta to the little-endian u32 at offset and returns the new value.
// It is the host equivalent of WGSL atomicAdd on an atomic<u32> in a storage buffer.
// offset must be 4-byte aligned.
func AtomicAddUint32(buf []byte, offset int, delta uint32) uint32 {
	return atomic.AddUint32(wordAt(buf, offset), delta)
}

// AtomicStoreUint32 atomically stores v at offset.
func AtomicStoreUint32(buf []byte, offset int, v uint32) {
	atomic.StoreUint32(wordAt(buf, offset), v)
}

// AtomicLoadUint32 atomically loads the u32 at offset.
func AtomicLoadUint32(buf []byte, offset int) uint32 {
	return atomic.LoadUint32(wordAt(buf, offset))
}

func wordAt(buf []byte, offset int) *uint32 {
	_ = buf[offset+3]
	return (*uint32)(unsafe.Pointer(&buf[offset]))
}

// HostImage is a float RGBA image stored in host memory. Depth formats use the R channel.
type HostImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewHostImage allocates a zeroed image.
func NewHostImage(width, height int) *HostImage {
	return &HostImage{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*4),
	}
}

// At returns the texel at (x, y). Coordinates are clamped to the image.
func (h *HostImage) At(x, y int) [4]float32 {
	x = max(0, min(x, h.Width-1))
	y = max(0, min(y, h.Height-1))
	i := (y*h.Width + x) * 4
	return [4]float32{h.Pix[i], h.Pix[i+1], h.Pix[i+2], h.Pix[i+3]}
}

// Set writes the texel at (x, y). Out-of-range writes are ignored.
func (h *HostImage) Set(x, y int, c [4]float32) {
	if x < 0 || y < 0 || x >= h.Width || y >= h.Height {
		return
	}
	i := (y*h.Width + x) * 4
	copy(h.Pix[i:i+4], c[:])
}

// Fill sets every texel to c.
func (h *HostImage) Fill(c [4]float32) {
	for i := 0; i < len(h.Pix); i += 4 {
		copy(h.Pix[i:i+4], c[:])
	}
}

// ToNRGBA quantizes the image to 8 bits per channel, saturating each component.
func (h *HostImage) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, h.Width, h.Height))
	for y := range h.Height {
		for x := range h.Width {
			c := h.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{
				R: quantize(c[0]),
				G: quantize(c[1]),
				B: quantize(c[2]),
				A: quantize(c[3]),
			})
		}
	}
	return img
}

func quantize(v float32) uint8 {
	return uint8(math32.Round(max(0, min(v, 1)) * 255))
}

// HostImageFromRGBA8 converts tightly packed RGBA8 or BGRA8 texels into a HostImage.
//
// Parameters:
//   - pixels: the packed texel data
//   - width, height: image size in texels
//   - bytesPerRow: row pitch in bytes (may exceed width*4 for aligned GPU read-backs)
//   - bgra: true when the data is BGRA ordered
//
// Returns:
//   - *HostImage: the converted image
func HostImageFromRGBA8(pixels []byte, width, height, bytesPerRow int, bgra bool) *HostImage {
	h := NewHostImage(width, height)
	for y := range height {
		row := pixels[y*bytesPerRow:]
		for x := range width {
			p := row[x*4 : x*4+4]
			r, g, b := p[0], p[1], p[2]
			if bgra {
				r, b = b, r
			}
			h.Set(x, y, [4]float32{
				float32(r) / 255.0,
				float32(g) / 255.0,
				float32(b) / 255.0,
				float32(p[3]) / 255.0,
			})
		}
	}
	return h
}
