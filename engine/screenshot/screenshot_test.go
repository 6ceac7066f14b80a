package screenshot

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

type fakeCapturer struct {
	mu      sync.Mutex
	armed   int
	reads   int
	img     *gpu.HostImage
	readErr error
}

func (f *fakeCapturer) CaptureSurface() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed++
}

func (f *fakeCapturer) ReadSurface() (*gpu.HostImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.img, nil
}

func testImage() *gpu.HostImage {
	img := gpu.NewHostImage(4, 2)
	img.Fill([4]float32{1, 0, 0, 1})
	img.Set(3, 1, [4]float32{0, 0, 1, 1})
	return img
}

func TestReadbackWaitsTwoFrames(t *testing.T) {
	src := &fakeCapturer{img: testImage()}
	s := NewScreenshotter(src, WithDirectory(t.TempDir()))
	defer s.Close()

	require.True(t, s.Request(10))
	assert.Equal(t, 1, src.armed)
	assert.True(t, s.Pending())

	require.NoError(t, s.Poll(10))
	require.NoError(t, s.Poll(11))
	assert.Equal(t, 0, src.reads)
	assert.True(t, s.Pending())

	require.NoError(t, s.Poll(12))
	assert.Equal(t, 1, src.reads)
	assert.False(t, s.Pending())

	s.Wait()
	assert.Len(t, s.Saved(), 1)
}

func TestRequestWhilePendingIsIgnored(t *testing.T) {
	src := &fakeCapturer{img: testImage()}
	s := NewScreenshotter(src, WithDirectory(t.TempDir()))
	defer s.Close()

	require.True(t, s.Request(1))
	assert.False(t, s.Request(2))
	assert.Equal(t, 1, src.armed)

	require.NoError(t, s.Poll(3))
	assert.True(t, s.Request(4))
}

func TestPNGContents(t *testing.T) {
	dir := t.TempDir()
	id := uuid.MustParse("0b7c2a36-4a5e-4c1f-9a0e-2f3d4c5b6a79")
	s := NewScreenshotter(&fakeCapturer{img: testImage()}, WithDirectory(dir), WithSessionID(id))

	s.Request(0)
	require.NoError(t, s.Poll(2))
	require.NoError(t, s.Close())

	saved := s.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, filepath.Join(dir, "cluster-0b7c2a36-001.png"), saved[0])

	f, err := os.Open(saved[0])
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
	_, _, b, _ = img.At(3, 1).RGBA()
	assert.Equal(t, uint32(0xffff), b)
}

func TestBMPIsOpaqueAndScaled(t *testing.T) {
	img := testImage()
	img.Set(0, 0, [4]float32{1, 1, 1, 0})
	s := NewScreenshotter(&fakeCapturer{img: img},
		WithDirectory(t.TempDir()),
		WithFormat(FormatBMP),
		WithScale(2),
	)
	s.Request(0)
	require.NoError(t, s.Poll(2))
	require.NoError(t, s.Close())

	saved := s.Saved()
	require.Len(t, saved, 1)
	assert.True(t, strings.HasSuffix(saved[0], ".bmp"))

	f, err := os.Open(saved[0])
	require.NoError(t, err)
	defer f.Close()
	decoded, err := bmp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
	assert.Equal(t, 4, decoded.Bounds().Dy())
	_, _, _, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestReadErrorIsReturned(t *testing.T) {
	s := NewScreenshotter(&fakeCapturer{readErr: errors.New("lost device")}, WithDirectory(t.TempDir()))
	defer s.Close()

	s.Request(5)
	err := s.Poll(7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lost device")
	assert.False(t, s.Pending())
}

func TestWriteErrorIsReportedByClose(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := NewScreenshotter(&fakeCapturer{img: testImage()}, WithDirectory(filepath.Join(blocker, "sub")))
	s.Request(0)
	require.NoError(t, s.Poll(2))
	assert.Error(t, s.Close())
	assert.Empty(t, s.Saved())
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": FormatPNG, ".BMP": FormatBMP, " Png ": FormatPNG} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("jpeg")
	assert.Error(t, err)
}

func TestRequestAfterCloseIsIgnored(t *testing.T) {
	src := &fakeCapturer{img: testImage()}
	s := NewScreenshotter(src, WithDirectory(t.TempDir()))
	require.NoError(t, s.Close())
	assert.False(t, s.Request(0))
	assert.Equal(t, 0, src.armed)
}
