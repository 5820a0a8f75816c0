// Package saliency reduces a raster to a coarse grid of visual-interest
// scores. Each grid cell covers a fixed-size pixel block; the grid resolution
// is capped so analysis cost stays bounded on arbitrarily large rasters.
//
// Per block, four signals are computed and combined with tunable weights:
// edge magnitude, local contrast, saturation, and skin-tone likelihood. A
// final min-max pass rescales the whole grid to [0,1]; the rescale is
// monotonic, so a block with strictly stronger raw signal never ends up below
// a weaker one.
package saliency

import (
	"math"
	"runtime"
	"sync"

	"github.com/imageturbo/smartcrop/pkg/raster"
)

// Config holds the tunable scoring constants.
type Config struct {
	EdgeWeight       float64
	ContrastWeight   float64
	SaturationWeight float64
	SkinWeight       float64
	MaxGridDim       int
	Workers          int
}

// Reference skin model: chroma prototype in normalized-rgb space with a
// brightness gate. Normalized rgb discards intensity, which keeps the match
// stable across lighting.
const (
	skinThreshold     = 0.8
	skinBrightnessMin = 0.2
	skinBrightnessMax = 1.0
)

var skinPrototype = [3]float64{0.78, 0.57, 0.44}

// DefaultConfig returns the reference scoring weights.
func DefaultConfig() Config {
	return Config{
		EdgeWeight:       0.4,
		ContrastWeight:   0.2,
		SaturationWeight: 0.2,
		SkinWeight:       0.2,
		MaxGridDim:       64,
		Workers:          0,
	}
}

// Grid is the block-resolution saliency map. Cells are row-major and always
// hold values in [0,1].
type Grid struct {
	Cols    int
	Rows    int
	BlockW  int
	BlockH  int
	RasterW int
	RasterH int
	Cells   []float64
}

// At returns the cell value at grid coordinates (cx, cy).
func (g *Grid) At(cx, cy int) float64 {
	return g.Cells[cy*g.Cols+cx]
}

// Set stores a cell value at grid coordinates (cx, cy).
func (g *Grid) Set(cx, cy int, v float64) {
	g.Cells[cy*g.Cols+cx] = v
}

// BlockRect returns the pixel rectangle covered by cell (cx, cy), clipped to
// the raster. Edge cells may cover fewer pixels than BlockW x BlockH.
func (g *Grid) BlockRect(cx, cy int) (x, y, w, h int) {
	x = cx * g.BlockW
	y = cy * g.BlockH
	w = g.BlockW
	h = g.BlockH
	if x+w > g.RasterW {
		w = g.RasterW - x
	}
	if y+h > g.RasterH {
		h = g.RasterH - y
	}
	return x, y, w, h
}

// Mapper computes saliency grids.
type Mapper struct {
	config Config
}

// New creates a Mapper with the reference weights.
func New() *Mapper {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Mapper with custom weights.
func NewWithConfig(config Config) *Mapper {
	if config.MaxGridDim <= 0 {
		config.MaxGridDim = DefaultConfig().MaxGridDim
	}
	return &Mapper{config: config}
}

// blockAcc accumulates per-block pixel sums during the first pass.
type blockAcc struct {
	sumLuma   float64
	sumLumaSq float64
	sumEdge   float64
	sumSat    float64
	skin      float64
	count     float64
}

// Map scores the raster and returns the normalized grid. The raster is only
// read; repeated calls on the same input produce identical grids.
func (m *Mapper) Map(r *raster.Raster) *Grid {
	g := newGrid(r.Width, r.Height, m.config.MaxGridDim)
	acc := make([]blockAcc, g.Cols*g.Rows)

	m.accumulate(r, g, acc)
	m.combine(g, acc)
	normalize(g)
	return g
}

func newGrid(w, h, maxDim int) *Grid {
	blockW := (w + maxDim - 1) / maxDim
	if blockW < 1 {
		blockW = 1
	}
	blockH := (h + maxDim - 1) / maxDim
	if blockH < 1 {
		blockH = 1
	}
	cols := (w + blockW - 1) / blockW
	rows := (h + blockH - 1) / blockH
	return &Grid{
		Cols:    cols,
		Rows:    rows,
		BlockW:  blockW,
		BlockH:  blockH,
		RasterW: w,
		RasterH: h,
		Cells:   make([]float64, cols*rows),
	}
}

// accumulate runs the per-pixel pass. Workers each own a contiguous band of
// block rows, so no two goroutines touch the same accumulator.
func (m *Mapper) accumulate(r *raster.Raster, g *Grid, acc []blockAcc) {
	workers := m.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > g.Rows {
		workers = g.Rows
	}

	var wg sync.WaitGroup
	rowsPerWorker := (g.Rows + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if end > g.Rows {
			end = g.Rows
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(blockRow0, blockRow1 int) {
			defer wg.Done()
			accumulateBand(r, g, acc, blockRow0, blockRow1)
		}(start, end)
	}
	wg.Wait()
}

func accumulateBand(r *raster.Raster, g *Grid, acc []blockAcc, blockRow0, blockRow1 int) {
	y0 := blockRow0 * g.BlockH
	y1 := blockRow1 * g.BlockH
	if y1 > r.Height {
		y1 = r.Height
	}
	for y := y0; y < y1; y++ {
		cy := y / g.BlockH
		rowAcc := acc[cy*g.Cols:]
		for x := 0; x < r.Width; x++ {
			pr, pg, pb, _ := r.RGBAt(x, y)
			l := luma(pr, pg, pb)

			a := &rowAcc[x/g.BlockW]
			a.sumLuma += l
			a.sumLumaSq += l * l
			a.sumEdge += edgeMagnitude(r, x, y, l)
			a.sumSat += saturation(pr, pg, pb)
			if skinLikeness(pr, pg, pb) > skinThreshold &&
				l/255.0 >= skinBrightnessMin && l/255.0 <= skinBrightnessMax {
				a.skin++
			}
			a.count++
		}
	}
}

// combine turns the accumulated sums into weighted block scores. Contrast
// needs the neighborhood means, so it can only run after the pixel pass.
func (m *Mapper) combine(g *Grid, acc []blockAcc) {
	for cy := 0; cy < g.Rows; cy++ {
		for cx := 0; cx < g.Cols; cx++ {
			a := acc[cy*g.Cols+cx]
			if a.count == 0 {
				continue
			}
			n := a.count
			edge := a.sumEdge / n
			sat := a.sumSat / n
			skin := a.skin / n

			nm := neighborhoodMean(g, acc, cx, cy)
			// RMS deviation of block luma around the neighborhood mean,
			// from the accumulated first and second moments.
			variance := a.sumLumaSq/n - 2*nm*(a.sumLuma/n) + nm*nm
			if variance < 0 {
				variance = 0
			}
			contrast := math.Sqrt(variance) / 127.5
			if contrast > 1 {
				contrast = 1
			}

			score := m.config.EdgeWeight*edge +
				m.config.ContrastWeight*contrast +
				m.config.SaturationWeight*sat +
				m.config.SkinWeight*skin
			g.Set(cx, cy, score)
		}
	}
}

func neighborhoodMean(g *Grid, acc []blockAcc, cx, cy int) float64 {
	var sum, count float64
	for ny := cy - 1; ny <= cy+1; ny++ {
		if ny < 0 || ny >= g.Rows {
			continue
		}
		for nx := cx - 1; nx <= cx+1; nx++ {
			if nx < 0 || nx >= g.Cols {
				continue
			}
			a := acc[ny*g.Cols+nx]
			sum += a.sumLuma
			count += a.count
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// normalize rescales the whole grid to [0,1] with a min-max pass. A uniform
// grid maps to all zeros, which the window search treats as the centered
// fallback.
func normalize(g *Grid) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range g.Cells {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max <= min {
		for i := range g.Cells {
			g.Cells[i] = 0
		}
		return
	}
	span := max - min
	for i, v := range g.Cells {
		g.Cells[i] = (v - min) / span
	}
}

// luma is Rec.709 relative luminance on 8-bit channels, in [0,255].
func luma(r, g, b uint8) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}

// edgeMagnitude estimates the luma gradient at (x, y) with a 4-neighbor
// Laplacian, scaled into [0,1]. Border pixels score zero.
func edgeMagnitude(r *raster.Raster, x, y int, center float64) float64 {
	if x == 0 || y == 0 || x >= r.Width-1 || y >= r.Height-1 {
		return 0
	}
	lu := lumaAt(r, x, y-1)
	ld := lumaAt(r, x, y+1)
	ll := lumaAt(r, x-1, y)
	lr := lumaAt(r, x+1, y)
	e := math.Abs(center*4.0-lu-ld-ll-lr) / 255.0
	if e > 1 {
		e = 1
	}
	return e
}

func lumaAt(r *raster.Raster, x, y int) float64 {
	pr, pg, pb, _ := r.RGBAt(x, y)
	return luma(pr, pg, pb)
}

// saturation is HSL saturation in [0,1].
func saturation(r, g, b uint8) float64 {
	cMax, cMin := r, r
	if g > cMax {
		cMax = g
	}
	if g < cMin {
		cMin = g
	}
	if b > cMax {
		cMax = b
	}
	if b < cMin {
		cMin = b
	}
	if cMax == cMin {
		return 0
	}
	maximum := float64(cMax) / 255.0
	minimum := float64(cMin) / 255.0
	l := (maximum + minimum) / 2.0
	d := maximum - minimum
	if l > 0.5 {
		return d / (2.0 - maximum - minimum)
	}
	return d / (maximum + minimum)
}

// skinLikeness measures how close a pixel's chroma sits to the skin
// prototype, 1 meaning an exact match.
func skinLikeness(r, g, b uint8) float64 {
	rf, gf, bf := float64(r), float64(g), float64(b)
	mag := math.Sqrt(rf*rf + gf*gf + bf*bf)
	if mag == 0 {
		return 0
	}
	rd := rf/mag - skinPrototype[0]
	gd := gf/mag - skinPrototype[1]
	bd := bf/mag - skinPrototype[2]
	return 1.0 - math.Sqrt(rd*rd+gd*gd+bd*bd)
}
