package tile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	exr "github.com/mrjoshuak/go-openexr"
)

var exrMagic = []byte{0x76, 0x2f, 0x31, 0x01}

// EncodeEXR writes buf as a single-part, uncompressed OpenEXR scanline
// image with 32-bit FLOAT channels.
func EncodeEXR(w io.Writer, buf *Buffer) error {
	return encodeEXR(w, buf, exr.PixelTypeFloat, exr.CompressionNone)
}

func encodeEXR(w io.Writer, buf *Buffer, pixelType exr.PixelType, compression exr.Compression) error {
	names := exrChannelNames(buf.Layout)
	if names == nil {
		return fmt.Errorf("exr: %w: %s", ErrCannotExport, buf.Layout)
	}

	// the writer patches the chunk offset table, so it needs to seek
	var ws io.WriteSeeker
	var mem *seekBuffer
	if s, ok := w.(io.WriteSeeker); ok {
		// the caller owns w; keep the writer from closing it
		ws = struct{ io.WriteSeeker }{s}
	} else {
		mem = &seekBuffer{}
		ws = mem
	}

	window := exr.Box2i{Min: exr.V2i{X: 0, Y: 0}, Max: exr.V2i{X: int32(buf.Width - 1), Y: int32(buf.Height - 1)}}
	h := exr.NewHeader()
	h.SetDataWindow(window)
	h.SetDisplayWindow(window)
	h.SetCompression(compression)
	h.SetLineOrder(exr.LineOrderIncreasing)
	h.SetPixelAspectRatio(1.0)
	h.SetScreenWindowCenter(exr.V2f{X: 0, Y: 0})
	h.SetScreenWindowWidth(1.0)

	cl := exr.NewChannelList()
	for _, name := range names {
		cl.Add(exr.NewChannel(name, pixelType))
	}
	h.SetChannels(cl)

	fb, err := planarFrameBuffer(buf, names)
	if err != nil {
		return err
	}

	sw, err := exr.NewScanlineWriter(ws, h)
	if err != nil {
		return err
	}
	sw.SetFrameBuffer(fb)
	if err := sw.WritePixels(0, buf.Height-1); err != nil {
		sw.Close()
		return err
	}
	if err := sw.Close(); err != nil {
		return err
	}

	if mem != nil {
		_, err := w.Write(mem.buf)
		return err
	}
	return nil
}

func exrChannelNames(layout Layout) []string {
	switch layout {
	case LayoutGray:
		return []string{"Y"}
	case LayoutRGB:
		return []string{"R", "G", "B"}
	case LayoutRGBA:
		return []string{"R", "G", "B", "A"}
	}
	return nil
}

// planarFrameBuffer splits the interleaved pixels of buf into one float plane
// per channel name.
func planarFrameBuffer(buf *Buffer, names []string) (*exr.FrameBuffer, error) {
	fb := exr.NewFrameBuffer()
	n := len(names)
	for c, name := range names {
		plane := make([]float32, buf.Width*buf.Height)
		for i := range plane {
			plane[i] = buf.Pix[i*n+c]
		}
		if err := fb.Insert(name, exr.NewSliceFromFloat32(plane, buf.Width, buf.Height)); err != nil {
			return nil, err
		}
	}
	return fb, nil
}

// decodeEXR decodes single-part OpenEXR images, scanline or tiled, with any
// compression the reader supports. HALF, FLOAT and UINT channels all end up
// as float32.
func decodeEXR(data []byte) (buf *Buffer, err error) {
	// the reader follows offsets and sizes taken from the file
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("exr: %w: corrupt file: %v", ErrUnsupported, r)
		}
	}()

	f, err := exr.OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("exr: %w: %v", ErrUnsupported, err)
	}
	h := f.Header(0)
	if h == nil {
		return nil, fmt.Errorf("exr: %w: missing header", ErrUnsupported)
	}

	dw := h.DataWindow()
	if dw.Min.X != 0 || dw.Min.Y != 0 {
		return nil, fmt.Errorf("exr: %w: data window must start at 0,0", ErrUnsupported)
	}
	width := int64(dw.Max.X) + 1
	height := int64(dw.Max.Y) + 1

	cl := h.Channels()
	if cl == nil || cl.Len() == 0 {
		return nil, fmt.Errorf("exr: %w: no channels", ErrUnsupported)
	}
	channels := make([]string, cl.Len())
	for i := range channels {
		ch := cl.At(i)
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return nil, fmt.Errorf("exr: %w: subsampled channel %q", ErrUnsupported, ch.Name)
		}
		channels[i] = ch.Name
	}
	layout, names, err := exrLayout(channels)
	if err != nil {
		return nil, err
	}
	if err := checkSize(width, height, layout); err != nil {
		return nil, fmt.Errorf("exr: %w", err)
	}

	w, ht := int(width), int(height)
	fb := exr.NewFrameBuffer()
	planes := make([][]float32, len(names))
	for i, name := range names {
		planes[i] = make([]float32, w*ht)
		if err := fb.Insert(name, exr.NewSliceFromFloat32(planes[i], w, ht)); err != nil {
			return nil, fmt.Errorf("exr: %w: %v", ErrUnsupported, err)
		}
	}

	if h.IsTiled() {
		err = readTiledEXR(f, fb)
	} else {
		err = readScanlineEXR(f, fb, ht)
	}
	if err != nil {
		return nil, fmt.Errorf("exr: %w: %v", ErrUnsupported, err)
	}

	buf = NewBuffer(w, ht, layout)
	n := len(planes)
	for c, plane := range planes {
		for i, v := range plane {
			buf.Pix[i*n+c] = v
		}
	}
	return buf, nil
}

func readScanlineEXR(f *exr.File, fb *exr.FrameBuffer, height int) error {
	r, err := exr.NewScanlineReader(f)
	if err != nil {
		return err
	}
	r.SetFrameBuffer(fb)
	return r.ReadPixels(0, height-1)
}

func readTiledEXR(f *exr.File, fb *exr.FrameBuffer) error {
	r, err := exr.NewTiledReader(f)
	if err != nil {
		return err
	}
	if r.NumTilesX() == 0 || r.NumTilesY() == 0 {
		return errors.New("no tiles")
	}
	r.SetFrameBuffer(fb)
	return r.ReadTiles(0, 0, r.NumTilesX()-1, r.NumTilesY()-1)
}

// exrLayout picks the buffer layout for a channel list and returns the file
// channels that fill it, in pixel order.
func exrLayout(channels []string) (Layout, []string, error) {
	found := map[string]bool{}
	for _, name := range channels {
		found[name] = true
	}

	if found["R"] && found["G"] && found["B"] {
		if found["A"] {
			return LayoutRGBA, []string{"R", "G", "B", "A"}, nil
		}
		return LayoutRGB, []string{"R", "G", "B"}, nil
	}
	if found["Y"] {
		return LayoutGray, []string{"Y"}, nil
	}
	if len(channels) == 1 {
		return LayoutGray, channels, nil
	}
	return 0, nil, fmt.Errorf("exr: %w: no R,G,B or Y channels", ErrUnsupported)
}

// seekBuffer is an in-memory io.WriteSeeker
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.pos = int(pos)
	return pos, nil
}
