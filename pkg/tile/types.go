package tile

import (
	"fmt"
)

// Layout describes the channels stored for every pixel of a Buffer
type Layout int

// Supported channel layouts
const (
	LayoutGray Layout = iota + 1
	LayoutRGB
	LayoutRGBA
)

// Channels returns the number of float32 values stored per pixel
func (l Layout) Channels() int {
	switch l {
	case LayoutGray:
		return 1
	case LayoutRGB:
		return 3
	case LayoutRGBA:
		return 4
	}
	return 0
}

// HasColor reports whether the layout carries separate red, green and blue channels
func (l Layout) HasColor() bool {
	return l == LayoutRGB || l == LayoutRGBA
}

func (l Layout) String() string {
	switch l {
	case LayoutGray:
		return "gray-float"
	case LayoutRGB:
		return "rgb-float"
	case LayoutRGBA:
		return "rgba-float"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// Buffer holds a decoded floating point image.
// Pixels are stored row-major with the top row first; every row holds
// Width*Channels values.
type Buffer struct {
	Width  int
	Height int
	Layout Layout
	Pix    []float32
}

// MaxPixels bounds the size of any decoded or allocated buffer
const MaxPixels = 10000 * 10000

// checkSize rejects image headers whose dimensions are not positive or
// exceed MaxPixels. It runs before anything is allocated.
func checkSize(width, height int64, layout Layout) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrUnsupported, width, height)
	}
	if width > MaxPixels || height > MaxPixels || width*height > MaxPixels {
		return fmt.Errorf("%w: %dx%d %s exceeds %d pixels", ErrUnsupported, width, height, layout, MaxPixels)
	}
	return nil
}

// NewBuffer allocates a zero-initialized buffer
func NewBuffer(width, height int, layout Layout) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Layout: layout,
		Pix:    make([]float32, width*height*layout.Channels()),
	}
}

// Stride returns the number of values in one row
func (b *Buffer) Stride() int {
	return b.Width * b.Layout.Channels()
}

// Row returns the scanline y. The slice aliases the buffer.
func (b *Buffer) Row(y int) []float32 {
	stride := b.Stride()
	return b.Pix[y*stride : (y+1)*stride : (y+1)*stride]
}

// At returns channel c of the pixel at (x, y)
func (b *Buffer) At(x, y, c int) float32 {
	return b.Pix[(y*b.Width+x)*b.Layout.Channels()+c]
}

// Set stores v into channel c of the pixel at (x, y)
func (b *Buffer) Set(x, y, c int, v float32) {
	b.Pix[(y*b.Width+x)*b.Layout.Channels()+c] = v
}

// Clone returns a deep copy of the buffer
func (b *Buffer) Clone() *Buffer {
	pix := make([]float32, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{
		Width:  b.Width,
		Height: b.Height,
		Layout: b.Layout,
		Pix:    pix,
	}
}

// WithAlpha returns the buffer itself when it already has an alpha channel,
// otherwise a RGBA copy whose alpha channel is zero. Gray values are
// replicated into red, green and blue.
func (b *Buffer) WithAlpha() *Buffer {
	if b.Layout == LayoutRGBA {
		return b
	}
	out := NewBuffer(b.Width, b.Height, LayoutRGBA)
	src := b.Layout.Channels()
	for i, j := 0, 0; i < len(b.Pix); i, j = i+src, j+4 {
		if src == 1 {
			out.Pix[j], out.Pix[j+1], out.Pix[j+2] = b.Pix[i], b.Pix[i], b.Pix[i]
			continue
		}
		out.Pix[j], out.Pix[j+1], out.Pix[j+2] = b.Pix[i], b.Pix[i+1], b.Pix[i+2]
	}
	return out
}

// Bytes returns the in-memory size of the pixel data
func (b *Buffer) Bytes() uint64 {
	return uint64(len(b.Pix)) * 4
}
