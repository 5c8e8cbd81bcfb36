package rimage

import (
	"github.com/pkg/errors"
)

// CropRows returns a grid holding rows [0, rows) of g. The result shares no memory with g.
func (g *LabelGrid) CropRows(rows int) (*LabelGrid, error) {
	if rows <= 0 || rows > g.Height {
		return nil, errors.Errorf("cannot keep %d rows of a grid with %d rows", rows, g.Height)
	}
	out := &LabelGrid{Width: g.Width, Height: rows, Data: make([]int32, g.Width*rows)}
	copy(out.Data, g.Data[:g.Width*rows])
	return out, nil
}

// ResizeNearest resamples g to width x height with nearest-neighbor lookup. Destination
// pixel (u, v) samples source (floor(u*sx), floor(v*sy)) where sx and sy are the
// source-to-destination size ratios, clamped to the last column and row. Labels are
// categorical, so no value is ever interpolated.
func (g *LabelGrid) ResizeNearest(width, height int) (*LabelGrid, error) {
	if g.Width <= 0 || g.Height <= 0 {
		return nil, errors.Errorf("cannot resize an empty grid (%d, %d)", g.Width, g.Height)
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid target size (%d, %d)", width, height)
	}
	sx := float64(g.Width) / float64(width)
	sy := float64(g.Height) / float64(height)

	cols := make([]int, width)
	for u := range cols {
		cols[u] = min(int(float64(u)*sx), g.Width-1)
	}

	out := &LabelGrid{Width: width, Height: height, Data: make([]int32, width*height)}
	for v := 0; v < height; v++ {
		srcRow := min(int(float64(v)*sy), g.Height-1)
		src := g.Data[srcRow*g.Width : (srcRow+1)*g.Width]
		dst := out.Data[v*width : (v+1)*width]
		for u, su := range cols {
			dst[u] = src[su]
		}
	}
	return out, nil
}
