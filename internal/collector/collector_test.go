package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/tilemerge/pkg/tile"
)

// mapLoader serves fresh copies of in-memory tiles and counts the loads
type mapLoader struct {
	tiles map[string]*tile.Buffer
	loads map[string]int
}

func newMapLoader(tiles map[string]*tile.Buffer) *mapLoader {
	return &mapLoader{tiles: tiles, loads: map[string]int{}}
}

func (m *mapLoader) Load(path string) (*tile.Buffer, error) {
	m.loads[path]++
	buf, ok := m.tiles[path]
	if !ok {
		return nil, fmt.Errorf("%s: no such tile", path)
	}
	return buf.Clone(), nil
}

// recordingWriter keeps every saved buffer
type recordingWriter struct {
	saved map[string]*tile.Buffer
	err   error
}

func (w *recordingWriter) Save(buf *tile.Buffer, path string) error {
	if w.err != nil {
		return w.err
	}
	if w.saved == nil {
		w.saved = map[string]*tile.Buffer{}
	}
	w.saved[path] = buf
	return nil
}

func rgb(width, height int, pixels ...[3]float32) *tile.Buffer {
	buf := tile.NewBuffer(width, height, tile.LayoutRGB)
	for i, px := range pixels {
		for c := 0; c < 3; c++ {
			buf.Set(i%width, i/width, c, px[c])
		}
	}
	return buf
}

// band returns a tile of the given height where every value is v
func band(width, height int, v float32) *tile.Buffer {
	buf := tile.NewBuffer(width, height, tile.LayoutRGB)
	for i := range buf.Pix {
		buf.Pix[i] = v
	}
	return buf
}

func newCollector(strategy Strategy, loader Loader, w *recordingWriter) *Collector {
	if w == nil {
		w = &recordingWriter{}
	}
	return New(Options{Strategy: strategy, Loader: loader, Writer: w})
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"add", "sum", "Summation"} {
		s, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, Summation, s, name)
	}
	for _, name := range []string{"paste", "STACK", "stacking"} {
		s, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, Stacking, s, name)
	}
}

func TestParseStrategy_Unknown(t *testing.T) {
	_, err := ParseStrategy("pste")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Contains(t, err.Error(), "did you mean 'paste'")
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, Forward, o)

	o, err = ParseOrder("Reverse")
	require.NoError(t, err)
	assert.Equal(t, Reverse, o)

	_, err = ParseOrder("up")
	assert.Error(t, err)
}

func TestAdd_RejectsEmptyPath(t *testing.T) {
	c := newCollector(Summation, newMapLoader(nil), nil)
	assert.False(t, c.AddPrimary(""))
	assert.False(t, c.AddAlpha(""))
	assert.True(t, c.AddPrimary("a.exr"))
	assert.True(t, c.AddAlpha("a.Alpha.exr"))
	assert.Equal(t, []string{"a.exr"}, c.Primary())
	assert.Equal(t, []string{"a.Alpha.exr"}, c.Alpha())
}

func TestSum_TwoTiles(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{
		"a": rgb(2, 2, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}, [3]float32{0, 0, 1}, [3]float32{1, 1, 1}),
		"b": rgb(2, 2, [3]float32{1, 1, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}, [3]float32{0, 0, 1}),
	})
	c := newCollector(Summation, loader, nil)
	c.AddPrimary("a")
	c.AddPrimary("b")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	want := rgb(2, 2, [3]float32{2, 1, 1}, [3]float32{1, 1, 0}, [3]float32{0, 1, 1}, [3]float32{1, 1, 2})
	assert.Equal(t, want, got)
}

func TestSum_OrderIndependent(t *testing.T) {
	tiles := map[string]*tile.Buffer{
		"a": band(3, 2, 0.5),
		"b": band(3, 2, 0.25),
		"c": band(3, 2, 2),
	}

	forward := newCollector(Summation, newMapLoader(tiles), nil)
	backward := newCollector(Summation, newMapLoader(tiles), nil)
	for _, p := range []string{"a", "b", "c"} {
		forward.AddPrimary(p)
	}
	for _, p := range []string{"c", "b", "a"} {
		backward.AddPrimary(p)
	}

	x, err := forward.Finalize(context.Background())
	require.NoError(t, err)
	y, err := backward.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, x, y)
	assert.Equal(t, band(3, 2, 2.75), x)
}

func TestSum_SingleTileIsUnchanged(t *testing.T) {
	a := band(2, 2, 7)
	c := newCollector(Summation, newMapLoader(map[string]*tile.Buffer{"a": a}), nil)
	c.AddPrimary("a")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestSum_FoldsAlpha(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{
		"a":       rgb(1, 1, [3]float32{0.5, 0.5, 0.5}),
		"a.Alpha": rgb(1, 1, [3]float32{0.1, 0.2, 0.3}),
		"b.Alpha": rgb(1, 1, [3]float32{1, 0, 0}),
	})
	c := newCollector(Summation, loader, nil)
	c.AddPrimary("a")
	c.AddAlpha("a.Alpha")
	c.AddAlpha("b.Alpha")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tile.LayoutRGBA, got.Layout)
	assert.Equal(t, float32(0.5), got.At(0, 0, 0))
	assert.InDelta(t, 1.6, got.At(0, 0, 3), 1e-6)
}

func rgba(width, height int, pixels ...[4]float32) *tile.Buffer {
	buf := tile.NewBuffer(width, height, tile.LayoutRGBA)
	for i, px := range pixels {
		for c := 0; c < 4; c++ {
			buf.Set(i%width, i/width, c, px[c])
		}
	}
	return buf
}

func TestSum_RGBAPrimaries(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{
		"a": rgba(2, 1, [4]float32{1, 2, 3, 0.5}, [4]float32{0, 0.25, 0, 1}),
		"b": rgba(2, 1, [4]float32{0.5, 0.5, 0.5, 0.25}, [4]float32{4, 0, 1, 2}),
	})
	c := newCollector(Summation, loader, nil)
	c.AddPrimary("a")
	c.AddPrimary("b")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tile.LayoutRGBA, got.Layout)
	assert.Equal(t, []float32{1.5, 2.5, 3.5, 0.75, 4, 0.25, 1, 3}, got.Pix)

	loader.tiles["m.Alpha"] = rgb(2, 1, [3]float32{0.25, 0.25, 0.5}, [3]float32{1, 1, 1})
	c = newCollector(Summation, loader, nil)
	c.AddPrimary("a")
	c.AddPrimary("b")
	c.AddAlpha("m.Alpha")

	got, err = c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5, 3.5, 1.75, 4, 0.25, 1, 6}, got.Pix,
		"alpha folds on top of the summed alpha channel")
}

func TestSum_AlphaTileNeedsColor(t *testing.T) {
	gray := tile.NewBuffer(1, 1, tile.LayoutGray)
	loader := newMapLoader(map[string]*tile.Buffer{
		"a":       band(1, 1, 1),
		"a.Alpha": gray,
	})
	c := newCollector(Summation, loader, nil)
	c.AddPrimary("a")
	c.AddAlpha("a.Alpha")

	_, err := c.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrNoColor)
}

func TestSum_SkipsGrayPrimaries(t *testing.T) {
	gray := tile.NewBuffer(1, 1, tile.LayoutGray)
	gray.Pix[0] = 3
	loader := newMapLoader(map[string]*tile.Buffer{"a": gray, "b": gray})
	c := newCollector(Summation, loader, nil)
	c.AddPrimary("a")
	c.AddPrimary("b")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, got.Pix)
	assert.Zero(t, loader.loads["b"], "unsupported tiles are not loaded")
}

func TestSum_Mismatch(t *testing.T) {
	rgba := tile.NewBuffer(2, 2, tile.LayoutRGBA)
	tests := []struct {
		name string
		b    *tile.Buffer
		want error
	}{
		{"dimensions", band(2, 3, 1), ErrDimensionMismatch},
		{"layout", rgba, ErrLayoutMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newMapLoader(map[string]*tile.Buffer{"a": band(2, 2, 1), "b": tt.b})
			c := newCollector(Summation, loader, nil)
			c.AddPrimary("a")
			c.AddPrimary("b")

			_, err := c.Finalize(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSum_ExplicitSizeMustMatch(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{"a": band(2, 2, 1)})
	c := New(Options{Strategy: Summation, Width: 4, Height: 4, Loader: loader, Writer: &recordingWriter{}})
	c.AddPrimary("a")

	_, err := c.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStack_Forward(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{
		"0": band(2, 1, 1),
		"1": band(2, 2, 2),
		"2": band(2, 1, 3),
	})
	c := newCollector(Stacking, loader, nil)
	for _, p := range []string{"0", "1", "2"} {
		c.AddPrimary(p)
	}

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Width)
	require.Equal(t, 4, got.Height, "height is the sum of the band heights")
	for y, want := range []float32{1, 2, 2, 3} {
		assert.Equal(t, want, got.At(1, y, 2), "row %d", y)
	}
}

func TestStack_TwoBands(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{
		"A": rgb(2, 1, [3]float32{1, 2, 3}, [3]float32{4, 5, 6}),
		"B": rgb(2, 1, [3]float32{7, 8, 9}, [3]float32{10, 11, 12}),
	})
	c := newCollector(Stacking, loader, nil)
	c.AddPrimary("A")
	c.AddPrimary("B")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	want := rgb(2, 2, [3]float32{1, 2, 3}, [3]float32{4, 5, 6}, [3]float32{7, 8, 9}, [3]float32{10, 11, 12})
	assert.Equal(t, want, got)
}

func TestStack_Reverse(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{
		"0": band(2, 1, 1),
		"1": band(2, 2, 2),
		"2": band(2, 1, 3),
	})
	c := New(Options{Strategy: Stacking, Order: Reverse, Loader: loader, Writer: &recordingWriter{}})
	for _, p := range []string{"0", "1", "2"} {
		c.AddPrimary(p)
	}

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	for y, want := range []float32{3, 2, 2, 1} {
		assert.Equal(t, want, got.At(0, y, 0), "row %d", y)
	}
}

func TestStack_ExplicitSize(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{"0": band(2, 1, 1)})
	c := New(Options{Strategy: Stacking, Width: 2, Height: 3, Loader: loader, Writer: &recordingWriter{}})
	c.AddPrimary("0")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Height)
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, got.Pix,
		"rows without a band stay zero")
	assert.Equal(t, 1, loader.loads["0"], "no measuring pass with an explicit size")
}

func TestStack_PartialSizeIsInferred(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{"0": band(2, 1, 1), "1": band(2, 1, 1)})
	c := New(Options{Strategy: Stacking, Width: 5, Loader: loader, Writer: &recordingWriter{}})
	c.AddPrimary("0")
	c.AddPrimary("1")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Width)
	assert.Equal(t, 2, got.Height)
}

func TestStack_Errors(t *testing.T) {
	rgba := tile.NewBuffer(2, 1, tile.LayoutRGBA)
	tests := []struct {
		name   string
		second *tile.Buffer
		width  int
		height int
		want   error
	}{
		{"width", band(3, 1, 1), 0, 0, ErrDimensionMismatch},
		{"layout", rgba, 0, 0, ErrLayoutMismatch},
		{"overflow", band(2, 1, 1), 2, 1, ErrBandOverflow},
		{"too large", band(2, 1, 1), 20000, 20000, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newMapLoader(map[string]*tile.Buffer{"0": band(2, 1, 1), "1": tt.second})
			c := New(Options{Strategy: Stacking, Width: tt.width, Height: tt.height, Loader: loader, Writer: &recordingWriter{}})
			c.AddPrimary("0")
			c.AddPrimary("1")

			_, err := c.Finalize(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFinalize_Empty(t *testing.T) {
	w := &recordingWriter{}
	c := newCollector(Summation, newMapLoader(nil), w)
	c.AddAlpha("only.Alpha")

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	err = newCollector(Stacking, newMapLoader(nil), w).FinalizeAndSave(context.Background(), "out.exr")
	assert.ErrorIs(t, err, ErrNoTiles)
	assert.Empty(t, w.saved, "writer must not be called without tiles")
}

func TestFinalize_Once(t *testing.T) {
	c := newCollector(Summation, newMapLoader(map[string]*tile.Buffer{"a": band(1, 1, 1)}), nil)
	c.AddPrimary("a")

	_, err := c.Finalize(context.Background())
	require.NoError(t, err)
	_, err = c.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrFinalized)
	assert.False(t, c.AddPrimary("b"), "finalized collectors accept no tiles")
}

func TestFinalize_LoadError(t *testing.T) {
	c := newCollector(Summation, newMapLoader(map[string]*tile.Buffer{"a": band(1, 1, 1)}), nil)
	c.AddPrimary("a")
	c.AddPrimary("missing")

	_, err := c.Finalize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't load missing")
}

func TestFinalize_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newCollector(Stacking, newMapLoader(map[string]*tile.Buffer{"a": band(1, 1, 1)}), nil)
	c.AddPrimary("a")
	_, err := c.Finalize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFinalizeAndSave(t *testing.T) {
	w := &recordingWriter{}
	c := newCollector(Summation, newMapLoader(map[string]*tile.Buffer{"a": band(1, 1, 1), "b": band(1, 1, 2)}), w)
	c.AddPrimary("a")
	c.AddPrimary("b")

	require.NoError(t, c.FinalizeAndSave(context.Background(), "frame.exr"))
	require.Contains(t, w.saved, "frame.exr")
	assert.Equal(t, band(1, 1, 3), w.saved["frame.exr"])
}

func TestFinalizeAndSave_Errors(t *testing.T) {
	c := newCollector(Summation, newMapLoader(map[string]*tile.Buffer{"a": band(1, 1, 1)}), nil)
	c.AddPrimary("a")
	assert.ErrorIs(t, c.FinalizeAndSave(context.Background(), ""), ErrEmptyOutputPath)

	diskFull := errors.New("disk full")
	c = newCollector(Summation, newMapLoader(map[string]*tile.Buffer{"a": band(1, 1, 1)}), &recordingWriter{err: diskFull})
	c.AddPrimary("a")
	err := c.FinalizeAndSave(context.Background(), "frame.exr")
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "can't save frame.exr")
}

func TestProgress(t *testing.T) {
	var events []ProgressEvent
	loader := newMapLoader(map[string]*tile.Buffer{"a": band(1, 1, 1), "b": band(1, 1, 1), "c.Alpha": band(1, 1, 1)})
	c := New(Options{
		Strategy: Summation,
		Loader:   loader,
		Writer:   &recordingWriter{},
		Progress: func(e ProgressEvent) { events = append(events, e) },
	})
	c.AddPrimary("a")
	c.AddPrimary("b")
	c.AddAlpha("c.Alpha")

	_, err := c.Finalize(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, ProgressEvent{Stage: "alpha", Path: "c.Alpha", Done: 3, Total: 3}, events[2])
}

func TestSetSize(t *testing.T) {
	loader := newMapLoader(map[string]*tile.Buffer{"0": band(2, 1, 1)})
	c := newCollector(Stacking, loader, nil)
	c.AddPrimary("0")
	c.SetSize(2, 2)

	got, err := c.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Height)
	assert.Equal(t, float32(0), got.At(0, 1, 0))
}
