package backend

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
)

// softwareResource implements gpu.Resource for host allocations.
type softwareResource struct {
	label     string
	released  atomic.Bool
	onRelease func()
}

func (r *softwareResource) Label() string {
	return r.label
}

func (r *softwareResource) Release() {
	if r.released.Swap(true) {
		return
	}
	if r.onRelease != nil {
		r.onRelease()
	}
}

func (r *softwareResource) Released() bool {
	return r.released.Load()
}

type softwareBuffer struct {
	softwareResource
	data  []byte
	usage gpu.BufferUsage
}

var _ gpu.Buffer = &softwareBuffer{}

func (b *softwareBuffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *softwareBuffer) Usage() gpu.BufferUsage {
	return b.usage
}

type softwareTexture struct {
	softwareResource
	img    *gpu.HostImage
	format gpu.TextureFormat
}

var _ gpu.Texture = &softwareTexture{}

func (t *softwareTexture) Width() int {
	return t.img.Width
}

func (t *softwareTexture) Height() int {
	return t.img.Height
}

func (t *softwareTexture) Format() gpu.TextureFormat {
	return t.format
}

type softwareSampler struct {
	softwareResource
	filter gpu.FilterMode
}

var _ gpu.Sampler = &softwareSampler{}

func (s *softwareSampler) Filter() gpu.FilterMode {
	return s.filter
}
