package tile

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// decodeLDR decodes an 8/16-bit image and normalizes it to [0, 1] floats.
// Opaque images become RGB buffers, everything else RGBA with straight alpha.
func decodeLDR(data []byte, format Format) (*Buffer, error) {
	r := bytes.NewReader(data)

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatGIF:
		img, err = gif.Decode(r)
	case FormatTIFF:
		img, err = tiff.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return imageToBuffer(img), nil
}

func imageToBuffer(img image.Image) *Buffer {
	bounds := img.Bounds()
	layout := LayoutRGBA
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		layout = LayoutRGB
	}

	buf := NewBuffer(bounds.Dx(), bounds.Dy(), layout)
	nch := layout.Channels()
	for y := 0; y < buf.Height; y++ {
		row := buf.Row(y)
		for x := 0; x < buf.Width; x++ {
			c := color.NRGBA64Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA64)
			px := row[x*nch : x*nch+nch]
			px[0] = float32(c.R) / 0xffff
			px[1] = float32(c.G) / 0xffff
			px[2] = float32(c.B) / 0xffff
			if nch == 4 {
				px[3] = float32(c.A) / 0xffff
			}
		}
	}
	return buf
}
