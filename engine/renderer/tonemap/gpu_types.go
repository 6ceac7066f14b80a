package tonemap

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// Source is the WGSL blit: a fullscreen triangle vertex stage (vs_blit) and the tone-mapping
// fragment stage (fs_tonemap).
//
//go:embed assets/tonemap.wgsl
var Source string

// GPUTonemapParamsSource is the canonical WGSL definition of the TonemapParams struct.
// Matches GPUTonemapParams layout exactly (16 bytes).
//
//go:embed assets/tonemap_params.wgsl
var GPUTonemapParamsSource string

// GPUTonemapParamsSize is the byte size of the marshalled GPUTonemapParams.
const GPUTonemapParamsSize = 16

// GPUTonemapParams is the blit uniform.
type GPUTonemapParams struct {
	Exposure float32 // offset 0
	Mode     uint32  // offset 4
}

// Marshal serializes the GPUTonemapParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUTonemapParams) Marshal() []byte {
	buf := make([]byte, GPUTonemapParamsSize)
	common.PutFloat32s(buf, 0, g.Exposure)
	binary.LittleEndian.PutUint32(buf[4:], g.Mode)
	return buf
}

// UnmarshalGPUTonemapParams decodes the first GPUTonemapParamsSize bytes of buf.
func UnmarshalGPUTonemapParams(buf []byte) GPUTonemapParams {
	return GPUTonemapParams{
		Exposure: common.Float32At(buf, 0),
		Mode:     binary.LittleEndian.Uint32(buf[4:]),
	}
}
