package tile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// EncodePFM writes buf as a little-endian Portable Float Map.
// PFM has no alpha channel, so RGBA buffers cannot be exported.
func EncodePFM(w io.Writer, buf *Buffer) error {
	var magic string
	switch buf.Layout {
	case LayoutRGB:
		magic = "PF"
	case LayoutGray:
		magic = "Pf"
	default:
		return fmt.Errorf("pfm: %w: %s", ErrCannotExport, buf.Layout)
	}

	if _, err := fmt.Fprintf(w, "%s\n%d %d\n-1.0\n", magic, buf.Width, buf.Height); err != nil {
		return err
	}

	line := make([]byte, buf.Stride()*4)
	// rows run bottom to top
	for y := buf.Height - 1; y >= 0; y-- {
		for i, v := range buf.Row(y) {
			binary.LittleEndian.PutUint32(line[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func decodePFM(data []byte) (*Buffer, error) {
	if len(data) < 3 || data[0] != 'P' {
		return nil, fmt.Errorf("pfm: %w: bad magic number", ErrUnsupported)
	}
	var layout Layout
	switch data[1] {
	case 'F':
		layout = LayoutRGB
	case 'f':
		layout = LayoutGray
	default:
		return nil, fmt.Errorf("pfm: %w: bad magic number", ErrUnsupported)
	}

	pos := 2
	token := func() (string, error) {
		for pos < len(data) && isSpace(data[pos]) {
			pos++
		}
		start := pos
		for pos < len(data) && !isSpace(data[pos]) {
			pos++
		}
		if start == pos {
			return "", fmt.Errorf("pfm: %w: truncated header", ErrUnsupported)
		}
		return string(data[start:pos]), nil
	}

	var fields [3]string
	for i := range fields {
		f, err := token()
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	// exactly one whitespace byte separates the header from the raster
	pos++

	width, err := strconv.Atoi(fields[0])
	if err != nil || width <= 0 {
		return nil, fmt.Errorf("pfm: %w: bad width %q", ErrUnsupported, fields[0])
	}
	height, err := strconv.Atoi(fields[1])
	if err != nil || height <= 0 {
		return nil, fmt.Errorf("pfm: %w: bad height %q", ErrUnsupported, fields[1])
	}
	scale, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || scale == 0 {
		return nil, fmt.Errorf("pfm: %w: bad scale %q", ErrUnsupported, fields[2])
	}
	var order binary.ByteOrder = binary.BigEndian
	if scale < 0 {
		order = binary.LittleEndian
	}

	if err := checkSize(int64(width), int64(height), layout); err != nil {
		return nil, fmt.Errorf("pfm: %w", err)
	}
	need := int64(width) * int64(height) * int64(layout.Channels()) * 4
	if pos > len(data) || int64(len(data)-pos) < need {
		return nil, fmt.Errorf("pfm: %w: truncated raster", ErrUnsupported)
	}

	buf := NewBuffer(width, height, layout)
	raster := data[pos:]
	stride := buf.Stride()
	for y := 0; y < height; y++ {
		row := buf.Row(height - 1 - y)
		for i := range row {
			row[i] = math.Float32frombits(order.Uint32(raster[(y*stride+i)*4:]))
		}
	}
	return buf, nil
}
