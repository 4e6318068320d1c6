package tile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies an image file format
type Format int

// Known formats
const (
	FormatUnknown Format = iota
	FormatEXR
	FormatPFM
	FormatPNG
	FormatJPEG
	FormatGIF
	FormatTIFF
	FormatBMP
	FormatWebP
)

var formatNames = map[Format]string{
	FormatUnknown: "unknown",
	FormatEXR:     "exr",
	FormatPFM:     "pfm",
	FormatPNG:     "png",
	FormatJPEG:    "jpeg",
	FormatGIF:     "gif",
	FormatTIFF:    "tiff",
	FormatBMP:     "bmp",
	FormatWebP:    "webp",
}

func (f Format) String() string {
	return formatNames[f]
}

// Codec errors
var (
	ErrUnknownFormat = errors.New("cannot determine image format")
	ErrUnsupported   = errors.New("unsupported image data")
	ErrCannotExport  = errors.New("format cannot store this pixel layout")
	ErrEmptyPath     = errors.New("empty path")
)

// Processor loads and saves tile buffers on the local filesystem
type Processor struct{}

// NewProcessor creates a new tile processor
func NewProcessor() *Processor {
	return &Processor{}
}

// Load reads the file at path and decodes it into a float buffer.
// The format is detected from the file signature first and from the
// extension when the signature is not recognized.
func (p *Processor) Load(path string) (*Buffer, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	format := Sniff(data)
	if format == FormatUnknown {
		format = FormatFromPath(path)
	}
	if format == FormatUnknown {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	buf, err := DecodeFormat(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Save encodes buf as 32-bit float data into path. The output format is
// taken from the extension and must be EXR or PFM. The file is written to a
// temporary name first and renamed into place, so a failed save never
// leaves a partial file behind.
func (p *Processor) Save(buf *Buffer, path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if buf == nil {
		return fmt.Errorf("%s: nothing to save", path)
	}

	var encode func(io.Writer, *Buffer) error
	seeks := false
	switch format := FormatFromPath(path); format {
	case FormatEXR:
		encode, seeks = EncodeEXR, true
	case FormatPFM:
		encode = EncodePFM
	case FormatUnknown:
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	default:
		return fmt.Errorf("can't save %s as %s: %w", path, format, ErrCannotExport)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeTo(tmp, buf, encode, seeks); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// writeTo encodes buf into f. Seeking encoders write to the file directly,
// streaming ones go through a buffered writer.
func writeTo(f *os.File, buf *Buffer, encode func(io.Writer, *Buffer) error, seeks bool) error {
	if seeks {
		return encode(f, buf)
	}
	w := bufio.NewWriter(f)
	if err := encode(w, buf); err != nil {
		return err
	}
	return w.Flush()
}

// Sniff detects the image format from the leading bytes of data
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, exrMagic):
		return FormatEXR
	case len(data) >= 3 && data[0] == 'P' && (data[1] == 'F' || data[1] == 'f') && isSpace(data[2]):
		return FormatPFM
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}):
		return FormatPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF8")):
		return FormatGIF
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	}
	return FormatUnknown
}

// FormatFromPath guesses the format from the file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exr":
		return FormatEXR
	case ".pfm":
		return FormatPFM
	case ".png":
		return FormatPNG
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".gif":
		return FormatGIF
	case ".tif", ".tiff":
		return FormatTIFF
	case ".bmp":
		return FormatBMP
	case ".webp":
		return FormatWebP
	}
	return FormatUnknown
}

// Decode reads all of r and decodes it, detecting the format by signature
func Decode(r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	format := Sniff(data)
	if format == FormatUnknown {
		return nil, ErrUnknownFormat
	}
	return DecodeFormat(data, format)
}

// DecodeFormat decodes data that is known to be in the given format
func DecodeFormat(data []byte, format Format) (*Buffer, error) {
	switch format {
	case FormatEXR:
		return decodeEXR(data)
	case FormatPFM:
		return decodePFM(data)
	case FormatUnknown:
		return nil, ErrUnknownFormat
	}
	return decodeLDR(data, format)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
