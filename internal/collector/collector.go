// Package collector merges rendered tiles into a single frame.
//
// A Collector gathers the paths of primary tiles and alpha tiles and merges
// them once, with one of two strategies: Summation adds full-frame samples
// cell by cell and folds the alpha tiles into the alpha channel, Stacking
// places horizontal bands one below the other.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/kiesman99/tilemerge/pkg/tile"
)

// Strategy selects the merge algorithm
type Strategy int

// Merge strategies
const (
	Summation Strategy = iota
	Stacking
)

var strategyNames = map[string]Strategy{
	"add":       Summation,
	"sum":       Summation,
	"summation": Summation,
	"paste":     Stacking,
	"stack":     Stacking,
	"stacking":  Stacking,
}

func (s Strategy) String() string {
	switch s {
	case Summation:
		return "summation"
	case Stacking:
		return "stacking"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// StrategyNames returns every accepted strategy name, sorted
func StrategyNames() []string {
	names := make([]string, 0, len(strategyNames))
	for name := range strategyNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseStrategy maps a command line name to a Strategy.
// Unknown names produce an error that suggests the closest known names.
func ParseStrategy(name string) (Strategy, error) {
	if s, ok := strategyNames[strings.ToLower(name)]; ok {
		return s, nil
	}

	err := fmt.Errorf("%w '%s', allowed: %s", ErrUnknownStrategy, name, strings.Join(StrategyNames(), ", "))
	if matches := fuzzy.Find(strings.ToLower(name), StrategyNames()); len(matches) > 0 {
		err = fmt.Errorf("%w (did you mean '%s'?)", err, matches[0].Str)
	}
	return 0, err
}

// Order selects where the first registered band lands when stacking
type Order int

// Band orders
const (
	// Forward stacks bands top to bottom in registration order.
	Forward Order = iota
	// Reverse stacks bands bottom to top: the first registered band
	// ends at the bottom edge of the frame.
	Reverse
)

func (o Order) String() string {
	if o == Reverse {
		return "reverse"
	}
	return "forward"
}

// ParseOrder maps "forward" or "reverse" to an Order. The empty string is Forward.
func ParseOrder(name string) (Order, error) {
	switch strings.ToLower(name) {
	case "", "forward":
		return Forward, nil
	case "reverse":
		return Reverse, nil
	}
	return Forward, fmt.Errorf("unknown band order '%s', allowed: forward, reverse", name)
}

// Collector errors
var (
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrEmptyOutputPath   = errors.New("empty output path")
	ErrNoTiles           = errors.New("no primary tiles to merge")
	ErrFinalized         = errors.New("collector already finalized")
	ErrDimensionMismatch = errors.New("tile dimensions do not match")
	ErrLayoutMismatch    = errors.New("tile pixel layout does not match")
	ErrNoColor           = errors.New("tile has no color channels")
	ErrBandOverflow      = errors.New("band does not fit into the output")
	ErrTooLarge          = errors.New("requested image size too large")
	ErrNilBuffer         = errors.New("loader returned no buffer")
)

// MaxPixels bounds the size of a stacked output buffer
const MaxPixels = tile.MaxPixels

// Loader decodes the tile stored at path
type Loader interface {
	Load(path string) (*tile.Buffer, error)
}

// Writer encodes buf into path
type Writer interface {
	Save(buf *tile.Buffer, path string) error
}

// ProgressEvent reports that one tile has been merged
type ProgressEvent struct {
	Stage string
	Path  string
	Done  int
	Total int
}

// Options configures a Collector
type Options struct {
	Strategy Strategy
	Order    Order

	// Width and Height, when both positive, fix the output size instead of
	// inferring it from the tiles.
	Width, Height int

	// Loader and Writer default to the filesystem tile processor.
	Loader Loader
	Writer Writer

	// Progress is called after every merged tile; it may be nil.
	Progress func(ProgressEvent)
}

// Collector accumulates tile paths and merges them once
type Collector struct {
	opts        Options
	chunks      []string
	alphaChunks []string
	finalized   bool
}

// New creates a collector
func New(opts Options) *Collector {
	if opts.Loader == nil || opts.Writer == nil {
		p := tile.NewProcessor()
		if opts.Loader == nil {
			opts.Loader = p
		}
		if opts.Writer == nil {
			opts.Writer = p
		}
	}
	return &Collector{opts: opts}
}

// Strategy returns the merge strategy of the collector
func (c *Collector) Strategy() Strategy {
	return c.opts.Strategy
}

// AddPrimary registers a primary tile. Empty paths are rejected.
func (c *Collector) AddPrimary(path string) bool {
	if path == "" || c.finalized {
		return false
	}
	c.chunks = append(c.chunks, path)
	return true
}

// AddAlpha registers an alpha tile. Empty paths are rejected.
func (c *Collector) AddAlpha(path string) bool {
	if path == "" || c.finalized {
		return false
	}
	c.alphaChunks = append(c.alphaChunks, path)
	return true
}

// Primary returns the registered primary tiles in order
func (c *Collector) Primary() []string {
	return append([]string(nil), c.chunks...)
}

// Alpha returns the registered alpha tiles in order
func (c *Collector) Alpha() []string {
	return append([]string(nil), c.alphaChunks...)
}

// SetSize fixes the output size. Non-positive values restore inference.
func (c *Collector) SetSize(width, height int) {
	c.opts.Width = width
	c.opts.Height = height
}

// Finalize merges the registered tiles. It returns nil without error when
// no primary tile was registered. A collector can be finalized only once.
func (c *Collector) Finalize(ctx context.Context) (*tile.Buffer, error) {
	if c.finalized {
		return nil, ErrFinalized
	}
	c.finalized = true

	if len(c.chunks) == 0 {
		return nil, nil
	}

	Logger().Debug("merging tiles",
		"strategy", c.opts.Strategy.String(),
		"primary", len(c.chunks),
		"alpha", len(c.alphaChunks))

	switch c.opts.Strategy {
	case Summation:
		return c.sum(ctx)
	case Stacking:
		return c.stack(ctx)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, c.opts.Strategy)
}

// FinalizeAndSave merges the tiles and writes the result to output as
// 32-bit float HDR data. The writer is not called when there is nothing to save.
func (c *Collector) FinalizeAndSave(ctx context.Context, output string) error {
	if output == "" {
		return ErrEmptyOutputPath
	}

	Logger().Info("finalize & save", "output", output)
	img, err := c.Finalize(ctx)
	if err != nil {
		return err
	}
	if img == nil {
		return ErrNoTiles
	}

	if err := c.opts.Writer.Save(img, output); err != nil {
		return fmt.Errorf("can't save %s: %w", output, err)
	}
	Logger().Info("saved",
		"output", output,
		"size", fmt.Sprintf("%dx%d", img.Width, img.Height),
		"layout", img.Layout.String(),
		"bytes", humanize.Bytes(img.Bytes()))
	return nil
}

// load decodes one tile. The returned buffer belongs to the caller for one merge step.
func (c *Collector) load(ctx context.Context, path string) (*tile.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := c.opts.Loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("can't load %s: %w", path, err)
	}
	if buf == nil {
		return nil, fmt.Errorf("can't load %s: %w", path, ErrNilBuffer)
	}
	return buf, nil
}

func (c *Collector) progress(stage, path string, done, total int) {
	if c.opts.Progress != nil {
		c.opts.Progress(ProgressEvent{Stage: stage, Path: path, Done: done, Total: total})
	}
}
