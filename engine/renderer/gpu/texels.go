package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float16Bits converts f to IEEE 754 binary16, rounding to nearest.
func Float16Bits(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	rawExp := (b >> 23) & 0xff
	mant := b & 0x7fffff

	if rawExp == 0xff {
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	}

	exp := int32(rawExp) - 127 + 15
	switch {
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		h := uint16(mant >> shift)
		if (mant>>(shift-1))&1 != 0 {
			h++
		}
		return sign | h
	}

	h := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		h++
	}
	return h
}

// Float16From converts an IEEE 754 binary16 value to float32.
func Float16From(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		f := float32(mant) / 16777216.0
		if sign != 0 {
			return -f
		}
		return f
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}

// DecodeTexels converts tightly packed texel data of the given format into a HostImage.
// Channels missing from the format read as 0, alpha as 1.
//
// Parameters:
//   - format: the texel format of data
//   - data: width*height texels, row by row
//   - width, height: the image size in texels
//
// Returns:
//   - *HostImage: the decoded image
//   - error: ErrUnsupported for formats without a host representation, or a size mismatch
func DecodeTexels(format TextureFormat, data []byte, width, height int) (*HostImage, error) {
	bpt := format.BytesPerTexel()
	if bpt == 0 || format == FormatD24S8 {
		return nil, fmt.Errorf("decode %s texels: %w", format, ErrUnsupported)
	}
	if len(data) < width*height*bpt {
		return nil, fmt.Errorf("decode %s texels: have %d bytes, need %d", format, len(data), width*height*bpt)
	}

	img := NewHostImage(width, height)
	for i := range width * height {
		t := data[i*bpt : (i+1)*bpt]
		var c [4]float32
		switch format {
		case FormatRGBA8:
			c = [4]float32{float32(t[0]) / 255, float32(t[1]) / 255, float32(t[2]) / 255, float32(t[3]) / 255}
		case FormatBGRA8:
			c = [4]float32{float32(t[2]) / 255, float32(t[1]) / 255, float32(t[0]) / 255, float32(t[3]) / 255}
		case FormatRGBA16F:
			for ch := range 4 {
				c[ch] = Float16From(binary.LittleEndian.Uint16(t[ch*2:]))
			}
		case FormatRG16F:
			c = [4]float32{Float16From(binary.LittleEndian.Uint16(t)), Float16From(binary.LittleEndian.Uint16(t[2:])), 0, 1}
		case FormatR32F, FormatD32F:
			c = [4]float32{math.Float32frombits(binary.LittleEndian.Uint32(t)), 0, 0, 1}
		case FormatRGBA32F:
			for ch := range 4 {
				c[ch] = math.Float32frombits(binary.LittleEndian.Uint32(t[ch*4:]))
			}
		case FormatD16:
			c = [4]float32{float32(binary.LittleEndian.Uint16(t)) / 65535, 0, 0, 1}
		}
		copy(img.Pix[i*4:i*4+4], c[:])
	}
	return img, nil
}

// EncodeTexels converts a HostImage into tightly packed texel data of the given format.
//
// Parameters:
//   - format: the target texel format
//   - img: the source image
//
// Returns:
//   - []byte: the packed texels
//   - error: ErrUnsupported for formats without a host representation
func EncodeTexels(format TextureFormat, img *HostImage) ([]byte, error) {
	bpt := format.BytesPerTexel()
	if bpt == 0 || format == FormatD24S8 {
		return nil, fmt.Errorf("encode %s texels: %w", format, ErrUnsupported)
	}

	out := make([]byte, img.Width*img.Height*bpt)
	for i := range img.Width * img.Height {
		c := img.Pix[i*4 : i*4+4]
		t := out[i*bpt : (i+1)*bpt]
		switch format {
		case FormatRGBA8:
			for ch := range 4 {
				t[ch] = quantize(c[ch])
			}
		case FormatBGRA8:
			t[0], t[1], t[2], t[3] = quantize(c[2]), quantize(c[1]), quantize(c[0]), quantize(c[3])
		case FormatRGBA16F:
			for ch := range 4 {
				binary.LittleEndian.PutUint16(t[ch*2:], Float16Bits(c[ch]))
			}
		case FormatRG16F:
			binary.LittleEndian.PutUint16(t, Float16Bits(c[0]))
			binary.LittleEndian.PutUint16(t[2:], Float16Bits(c[1]))
		case FormatR32F, FormatD32F:
			binary.LittleEndian.PutUint32(t, math.Float32bits(c[0]))
		case FormatRGBA32F:
			for ch := range 4 {
				binary.LittleEndian.PutUint32(t[ch*4:], math.Float32bits(c[ch]))
			}
		case FormatD16:
			binary.LittleEndian.PutUint16(t, uint16(max(0, min(c[0], 1))*65535+0.5))
		}
	}
	return out, nil
}
