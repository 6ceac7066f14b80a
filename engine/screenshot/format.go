package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Format is an image file format screenshots are encoded in.
type Format string

const (
	FormatPNG Format = "png"
	FormatBMP Format = "bmp"
)

// ParseFormat resolves a format by its case-insensitive name or file extension.
//
// Parameters:
//   - name: "png" or "bmp", optionally with a leading dot
//
// Returns:
//   - Format: the format
//   - error: an error if the format is not supported
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))); f {
	case FormatPNG, FormatBMP:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported screenshot format %q (png, bmp)", name)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// encode writes img to w in format f. BMP carries no alpha, so the image is flattened onto an
// opaque RGBA canvas first.
func (f Format) encode(w io.Writer, img image.Image) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		b := img.Bounds()
		opaque := image.NewRGBA(b)
		draw.Draw(opaque, b, image.Opaque, image.Point{}, draw.Src)
		draw.Draw(opaque, b, img, b.Min, draw.Over)
		return bmp.Encode(w, opaque)
	default:
		return fmt.Errorf("unsupported screenshot format %q", string(f))
	}
}

// scaled resamples img by factor with a Catmull-Rom filter. A factor of 1, zero or below returns
// img unchanged.
func scaled(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
