package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
)

type fakeReleaser struct{ released int }

func (f *fakeReleaser) Release() { f.released++ }

type fakeBuffer struct{ label string }

func (b *fakeBuffer) Label() string          { return b.label }
func (b *fakeBuffer) Release()               {}
func (b *fakeBuffer) Released() bool         { return false }
func (b *fakeBuffer) Size() uint64           { return 16 }
func (b *fakeBuffer) Usage() gpu.BufferUsage { return gpu.BufferUsageUniform }

func TestSetBufferInvalidatesCache(t *testing.T) {
	a, b := &fakeBuffer{"a"}, &fakeBuffer{"b"}
	p := NewBindGroupProvider("test", WithBuffer(0, a))

	group := &fakeReleaser{}
	p.SetCached("pipeline/0", group)
	v := p.Version()

	p.SetBuffer(0, a)
	assert.Equal(t, v, p.Version(), "rebinding the same buffer is a no-op")
	_, ok := p.Cached("pipeline/0")
	assert.True(t, ok)

	p.SetBuffer(0, b)
	assert.Greater(t, p.Version(), v)
	assert.Equal(t, 1, group.released)
	_, ok = p.Cached("pipeline/0")
	assert.False(t, ok)
	assert.Same(t, b, p.Buffer(0))
}

func TestSetCachedReplacesPrevious(t *testing.T) {
	p := NewBindGroupProvider("test")
	first, second := &fakeReleaser{}, &fakeReleaser{}

	p.SetCached("k", first)
	p.SetCached("k", second)
	assert.Equal(t, 1, first.released)

	p.Release()
	assert.Equal(t, 1, second.released)
	_, ok := p.Cached("k")
	assert.False(t, ok)
}

func TestBuffersReturnsCopy(t *testing.T) {
	p := NewBindGroupProvider("test", WithBuffers(map[int]gpu.Buffer{1: &fakeBuffer{"x"}}))
	m := p.Buffers()
	delete(m, 1)
	assert.NotNil(t, p.Buffer(1))
}
