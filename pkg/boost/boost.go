// Package boost merges caller-supplied regions of interest into a saliency
// grid. Each region raises every overlapped cell by weight x overlap
// fraction; overlapping regions sum and the result is clamped back to [0,1].
package boost

import (
	"github.com/imageturbo/smartcrop/pkg/saliency"
)

// Region is a weighted rectangle in raster pixel coordinates. Weight is
// clamped to [0,1]; degenerate regions (non-positive weight or area, fully
// out of bounds) contribute nothing and never raise an error.
type Region struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Weight float64 `json:"weight"`
}

// Apply adds every region's contribution to the grid in place.
func Apply(g *saliency.Grid, regions []Region) {
	for _, region := range regions {
		applyRegion(g, region)
	}
	for i, v := range g.Cells {
		if v > 1 {
			g.Cells[i] = 1
		}
	}
}

func applyRegion(g *saliency.Grid, region Region) {
	if region.Width <= 0 || region.Height <= 0 || region.Weight <= 0 {
		return
	}
	weight := region.Weight
	if weight > 1 {
		weight = 1
	}

	// Clip the region to the raster; an out-of-bounds region collapses to
	// nothing here.
	x0, y0 := region.X, region.Y
	x1, y1 := region.X+region.Width, region.Y+region.Height
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > g.RasterW {
		x1 = g.RasterW
	}
	if y1 > g.RasterH {
		y1 = g.RasterH
	}
	if x0 >= x1 || y0 >= y1 {
		return
	}

	// Only cells the clipped region can touch.
	cx0 := x0 / g.BlockW
	cy0 := y0 / g.BlockH
	cx1 := (x1 - 1) / g.BlockW
	cy1 := (y1 - 1) / g.BlockH

	for cy := cy0; cy <= cy1; cy++ {
		for cx := cx0; cx <= cx1; cx++ {
			bx, by, bw, bh := g.BlockRect(cx, cy)
			ow := min(x1, bx+bw) - max(x0, bx)
			oh := min(y1, by+bh) - max(y0, by)
			if ow <= 0 || oh <= 0 {
				continue
			}
			frac := float64(ow*oh) / float64(bw*bh)
			g.Set(cx, cy, g.At(cx, cy)+weight*frac)
		}
	}
}
