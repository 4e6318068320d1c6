package collector

import (
	"context"
	"fmt"

	"github.com/kiesman99/tilemerge/pkg/tile"
)

// sum adds all primary tiles cell by cell into a copy of the first tile and
// then folds the red, green and blue sum of every alpha tile into the alpha
// channel. No normalization is applied.
func (c *Collector) sum(ctx context.Context) (*tile.Buffer, error) {
	total := len(c.chunks) + len(c.alphaChunks)

	first, err := c.load(ctx, c.chunks[0])
	if err != nil {
		return nil, err
	}
	if c.opts.Width > 0 && c.opts.Height > 0 &&
		(first.Width != c.opts.Width || first.Height != c.opts.Height) {
		return nil, fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrDimensionMismatch,
			c.chunks[0], first.Width, first.Height, c.opts.Width, c.opts.Height)
	}

	// the first tile seeds the sum; nothing else references it
	acc := first
	c.progress("sum", c.chunks[0], 1, total)

	if acc.Layout.HasColor() {
		for i, path := range c.chunks[1:] {
			chunk, err := c.load(ctx, path)
			if err != nil {
				return nil, err
			}
			if err := sameShape(acc, chunk, path); err != nil {
				return nil, err
			}
			if chunk.Layout != acc.Layout {
				return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrLayoutMismatch, path, chunk.Layout, acc.Layout)
			}
			addRows(acc, chunk)
			Logger().Debug("added tile", "path", path)
			c.progress("sum", path, i+2, total)
		}
	} else if len(c.chunks) > 1 {
		// only RGB and RGBA tiles are summed
		Logger().Warn("skipping primary tiles with unsupported pixel layout",
			"layout", acc.Layout.String(),
			"skipped", len(c.chunks)-1)
	}

	if len(c.alphaChunks) == 0 {
		return acc, nil
	}

	acc = acc.WithAlpha()
	for i, path := range c.alphaChunks {
		chunk, err := c.load(ctx, path)
		if err != nil {
			return nil, err
		}
		if err := sameShape(acc, chunk, path); err != nil {
			return nil, err
		}
		if !chunk.Layout.HasColor() {
			return nil, fmt.Errorf("%w: alpha tile %s is %s", ErrNoColor, path, chunk.Layout)
		}
		foldAlpha(acc, chunk)
		Logger().Debug("folded alpha tile", "path", path)
		c.progress("alpha", path, len(c.chunks)+i+1, total)
	}
	return acc, nil
}

// stack copies the primary tiles as horizontal bands into a new buffer.
// Every destination row is written by exactly one tile; values are assigned,
// never summed.
func (c *Collector) stack(ctx context.Context) (*tile.Buffer, error) {
	total := len(c.chunks)

	first, err := c.load(ctx, c.chunks[0])
	if err != nil {
		return nil, err
	}

	width, height := c.opts.Width, c.opts.Height
	if width <= 0 || height <= 0 {
		width = first.Width
		if height, err = c.measure(ctx, first.Height); err != nil {
			return nil, err
		}
	}
	if int64(width)*int64(height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, width, height)
	}

	out := tile.NewBuffer(width, height, first.Layout)
	Logger().Debug("allocated output",
		"width", width,
		"height", height,
		"layout", out.Layout.String(),
		"order", c.opts.Order.String())

	offset := 0
	if c.opts.Order == Reverse {
		offset = height
	}

	for i, path := range c.chunks {
		chunk := first
		if i > 0 {
			if chunk, err = c.load(ctx, path); err != nil {
				return nil, err
			}
		}
		first = nil

		if chunk.Width != width {
			return nil, fmt.Errorf("%w: %s is %d pixels wide, expected %d", ErrDimensionMismatch, path, chunk.Width, width)
		}
		if chunk.Layout != out.Layout {
			return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrLayoutMismatch, path, chunk.Layout, out.Layout)
		}

		var top int
		if c.opts.Order == Reverse {
			offset -= chunk.Height
			top = offset
		} else {
			top = offset
			offset += chunk.Height
		}
		if top < 0 || top+chunk.Height > height {
			return nil, fmt.Errorf("%w: %s needs rows %d-%d of %d", ErrBandOverflow, path, top, top+chunk.Height-1, height)
		}

		for y := 0; y < chunk.Height; y++ {
			copy(out.Row(top+y), chunk.Row(y))
		}
		Logger().Debug("pasted tile", "path", path, "row", top, "height", chunk.Height)
		c.progress("paste", path, i+1, total)
	}
	return out, nil
}

// measure returns the summed height of all primary tiles. Tiles after the
// first are loaded only for their size and released right away.
func (c *Collector) measure(ctx context.Context, firstHeight int) (int, error) {
	height := firstHeight
	for _, path := range c.chunks[1:] {
		chunk, err := c.load(ctx, path)
		if err != nil {
			return 0, err
		}
		height += chunk.Height
	}
	return height, nil
}

func sameShape(acc, chunk *tile.Buffer, path string) error {
	if chunk.Width != acc.Width || chunk.Height != acc.Height {
		return fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrDimensionMismatch,
			path, chunk.Width, chunk.Height, acc.Width, acc.Height)
	}
	return nil
}

// addRows adds src into dst; both share width, height and layout
func addRows(dst, src *tile.Buffer) {
	for y := 0; y < dst.Height; y++ {
		d, s := dst.Row(y), src.Row(y)
		for i := range d {
			d[i] += s[i]
		}
	}
}

// foldAlpha adds R+G+B of src into the alpha channel of the RGBA buffer dst
func foldAlpha(dst, src *tile.Buffer) {
	sc := src.Layout.Channels()
	for y := 0; y < dst.Height; y++ {
		d, s := dst.Row(y), src.Row(y)
		for x := 0; x < dst.Width; x++ {
			d[x*4+3] += s[x*sc] + s[x*sc+1] + s[x*sc+2]
		}
	}
}
