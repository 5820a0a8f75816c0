// Package window searches crop window positions over a saliency grid.
//
// The window size is fixed by the caller (largest fit of the target ratio by
// default); only translation is searched. Candidates are generated at
// grid-cell granularity plus the exact centered position, so search cost is
// bounded by the grid resolution and the centered fallback for zero-saliency
// rasters is always reachable.
//
// Ties are broken deterministically: closest window center to the raster
// center, then smallest y, then smallest x.
package window

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/imageturbo/smartcrop/pkg/saliency"
)

// Window is a candidate crop rectangle with its composite score. A returned
// window always lies fully inside the raster the grid was built from.
type Window struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Score  float64 `json:"score"`
}

// Config holds the tunable search constants.
type Config struct {
	// ThirdsWeight scales the rule-of-thirds bonus relative to the mean
	// saliency term.
	ThirdsWeight float64
	// ThirdsSigma is the Gaussian bump width, as a fraction of the window
	// extent.
	ThirdsSigma float64
	Workers     int
}

// DefaultConfig returns the reference search constants.
func DefaultConfig() Config {
	return Config{
		ThirdsWeight: 0.25,
		ThirdsSigma:  1.0 / 12.0,
		Workers:      0,
	}
}

// Searcher evaluates candidate windows against a grid.
type Searcher struct {
	config Config
}

// New creates a Searcher with the reference constants.
func New() *Searcher {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Searcher with custom constants.
func NewWithConfig(config Config) *Searcher {
	if config.ThirdsSigma <= 0 {
		config.ThirdsSigma = DefaultConfig().ThirdsSigma
	}
	return &Searcher{config: config}
}

// Best returns the highest-scoring window of the given size. The size must
// fit inside the raster the grid describes.
func (s *Searcher) Best(g *saliency.Grid, width, height int) (Window, error) {
	if width <= 0 || height <= 0 {
		return Window{}, fmt.Errorf("window size must be positive, got %dx%d", width, height)
	}
	if width > g.RasterW || height > g.RasterH {
		return Window{}, fmt.Errorf("window %dx%d exceeds raster %dx%d", width, height, g.RasterW, g.RasterH)
	}

	xs := positions(g.RasterW, width, g.BlockW)
	ys := positions(g.RasterH, height, g.BlockH)

	workers := s.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Per-row scoring is independent; rows reduce to one best candidate each
	// and the final pick runs sequentially in row order so the tie-break
	// stays deterministic.
	rowBest := make([]Window, len(ys))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, y := range ys {
		wg.Add(1)
		sem <- struct{}{}
		go func(i, y int) {
			defer wg.Done()
			defer func() { <-sem }()
			best := Window{Score: math.Inf(-1)}
			for _, x := range xs {
				cand := Window{X: x, Y: y, Width: width, Height: height}
				cand.Score = s.score(g, cand)
				if better(cand, best, g.RasterW, g.RasterH) {
					best = cand
				}
			}
			rowBest[i] = best
		}(i, y)
	}
	wg.Wait()

	best := rowBest[0]
	for _, cand := range rowBest[1:] {
		if better(cand, best, g.RasterW, g.RasterH) {
			best = cand
		}
	}
	return best, nil
}

// positions generates candidate offsets along one axis: block-granular steps,
// the far edge, and the exact centered offset.
func positions(rasterDim, windowDim, block int) []int {
	limit := rasterDim - windowDim
	var out []int
	for p := 0; p <= limit; p += block {
		out = append(out, p)
	}
	centered := limit / 2
	out = appendUnique(out, centered)
	out = appendUnique(out, limit)
	return out
}

func appendUnique(ps []int, p int) []int {
	for _, q := range ps {
		if q == p {
			return ps
		}
	}
	// Keep the slice sorted so within-row scan order is stable.
	i := len(ps)
	for i > 0 && ps[i-1] > p {
		i--
	}
	ps = append(ps, 0)
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	return ps
}

// score is the area-weighted mean saliency over the window plus the
// rule-of-thirds bonus.
func (s *Searcher) score(g *saliency.Grid, w Window) float64 {
	cx0 := w.X / g.BlockW
	cy0 := w.Y / g.BlockH
	cx1 := (w.X + w.Width - 1) / g.BlockW
	cy1 := (w.Y + w.Height - 1) / g.BlockH

	var base, bonus float64
	for cy := cy0; cy <= cy1; cy++ {
		for cx := cx0; cx <= cx1; cx++ {
			bx, by, bw, bh := g.BlockRect(cx, cy)
			ox0 := max(w.X, bx)
			oy0 := max(w.Y, by)
			ox1 := min(w.X+w.Width, bx+bw)
			oy1 := min(w.Y+w.Height, by+bh)
			if ox0 >= ox1 || oy0 >= oy1 {
				continue
			}
			area := float64((ox1 - ox0) * (oy1 - oy0))
			v := g.At(cx, cy)
			base += v * area

			// Cell-overlap center in window-relative [0,1] coordinates.
			u := (float64(ox0+ox1)/2 - float64(w.X)) / float64(w.Width)
			vv := (float64(oy0+oy1)/2 - float64(w.Y)) / float64(w.Height)
			bonus += v * area * s.thirds(u) * s.thirds(vv)
		}
	}
	windowArea := float64(w.Width * w.Height)
	return base/windowArea + s.config.ThirdsWeight*bonus/windowArea
}

// thirds is the one-axis Gaussian bump profile, peaking at 1/3 and 2/3.
func (s *Searcher) thirds(u float64) float64 {
	sigma := s.config.ThirdsSigma
	d1 := u - 1.0/3.0
	d2 := u - 2.0/3.0
	return math.Exp(-d1*d1/(2*sigma*sigma)) + math.Exp(-d2*d2/(2*sigma*sigma))
}

// better reports whether a beats b under the score ordering and the
// documented tie-break chain.
func better(a, b Window, rasterW, rasterH int) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	da := centerDistSq(a, rasterW, rasterH)
	db := centerDistSq(b, rasterW, rasterH)
	if da != db {
		return da < db
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// centerDistSq is the squared distance between window center and raster
// center, in doubled coordinates to stay integral.
func centerDistSq(w Window, rasterW, rasterH int) int64 {
	dx := int64(2*w.X + w.Width - rasterW)
	dy := int64(2*w.Y + w.Height - rasterH)
	return dx*dx + dy*dy
}
