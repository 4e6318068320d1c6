package stitcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kiesman99/tilemerge/internal/collector"
	"github.com/kiesman99/tilemerge/pkg/tile"
)

// ErrNoAlpha is returned when the alpha frame is requested without alpha tiles
var ErrNoAlpha = errors.New("no alpha tiles uploaded")

// Options contains all merge parameters of one request
type Options struct {
	Strategy      collector.Strategy
	Order         collector.Order
	Width, Height int
	AlphaMarker   string

	// Alpha selects the composed alpha frame instead of the primary frame.
	Alpha bool
}

// Upload is one tile received in memory
type Upload struct {
	Name string
	Data []byte
}

// Result contains the merged frame encoded as OpenEXR
type Result struct {
	ImageData    []byte
	Width        int
	Height       int
	Layout       tile.Layout
	PrimaryTiles int
	AlphaTiles   int
}

// TileError represents uploads that are not decodable tiles
type TileError struct {
	Message         string
	FailedTiles     []FailedTile
	SuccessfulTiles int
	TotalTiles      int
}

func (e *TileError) Error() string {
	return e.Message
}

// FailedTile represents a single rejected upload
type FailedTile struct {
	Name  string
	Error string
}

// Stitcher merges uploaded tiles without touching the filesystem
type Stitcher struct{}

// New creates a new stitcher instance
func New() *Stitcher {
	return &Stitcher{}
}

// Stitch validates the uploads, merges them and encodes the selected frame.
// Uploads are classified by name exactly like files on the command line.
func (s *Stitcher) Stitch(ctx context.Context, opts *Options, uploads []Upload) (*Result, error) {
	loader := make(memLoader, len(uploads))
	names := make([]string, 0, len(uploads))
	var failedTiles []FailedTile

	for _, u := range uploads {
		switch {
		case u.Name == "":
			failedTiles = append(failedTiles, FailedTile{Error: "missing file name"})
		case loader[u.Name] != nil:
			failedTiles = append(failedTiles, FailedTile{Name: u.Name, Error: "duplicate file name"})
		case tile.Sniff(u.Data) == tile.FormatUnknown:
			failedTiles = append(failedTiles, FailedTile{Name: u.Name, Error: tile.ErrUnknownFormat.Error()})
		default:
			loader[u.Name] = u.Data
			names = append(names, u.Name)
		}
	}

	if len(failedTiles) > 0 {
		return nil, &TileError{
			Message:         fmt.Sprintf("%d of %d uploads are not usable tiles", len(failedTiles), len(uploads)),
			FailedTiles:     failedTiles,
			SuccessfulTiles: len(names),
			TotalTiles:      len(uploads),
		}
	}

	primary, alpha := tile.Classify(names, opts.AlphaMarker)

	col := collector.New(collector.Options{
		Strategy: opts.Strategy,
		Order:    opts.Order,
		Width:    opts.Width,
		Height:   opts.Height,
		Loader:   loader,
	})
	if opts.Alpha {
		if len(alpha) == 0 {
			return nil, ErrNoAlpha
		}
		// the alpha frame is merged from the alpha tiles alone
		for _, name := range alpha {
			col.AddPrimary(name)
		}
	} else {
		for _, name := range primary {
			col.AddPrimary(name)
		}
		for _, name := range alpha {
			col.AddAlpha(name)
		}
	}

	img, err := col.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, collector.ErrNoTiles
	}

	var out bytes.Buffer
	if err := tile.EncodeEXR(&out, img); err != nil {
		return nil, fmt.Errorf("failed to encode output image: %w", err)
	}

	return &Result{
		ImageData:    out.Bytes(),
		Width:        img.Width,
		Height:       img.Height,
		Layout:       img.Layout,
		PrimaryTiles: len(primary),
		AlphaTiles:   len(alpha),
	}, nil
}

// memLoader serves uploaded tiles by name
type memLoader map[string][]byte

func (m memLoader) Load(name string) (*tile.Buffer, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return tile.DecodeFormat(data, tile.Sniff(data))
}
