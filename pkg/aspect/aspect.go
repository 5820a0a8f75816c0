// Package aspect parses crop aspect specifications and solves the target
// window size for a given source raster.
package aspect

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Ratio is a normalized width:height relationship. Both components are
// positive for a valid ratio.
type Ratio struct {
	W float64
	H float64
}

// Parse parses a "W:H" ratio string such as "16:9" or "1.91:1".
func Parse(s string) (Ratio, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Ratio{}, fmt.Errorf("aspect ratio %q must have the form \"W:H\"", s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("aspect ratio width %q is not numeric", parts[0])
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("aspect ratio height %q is not numeric", parts[1])
	}
	if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return Ratio{}, fmt.Errorf("aspect ratio components must be positive, got %g:%g", w, h)
	}
	return Ratio{W: w, H: h}, nil
}

// FromSize returns the ratio implied by explicit pixel dimensions.
func FromSize(width, height int) Ratio {
	return Ratio{W: float64(width), H: float64(height)}
}

// Value returns the ratio as a single width/height scalar.
func (r Ratio) Value() float64 {
	return r.W / r.H
}

// Fit returns the largest rectangle of ratio r that fits entirely inside a
// srcW x srcH raster. The result is never larger than the source and never
// smaller than 1x1.
func (r Ratio) Fit(srcW, srcH int) (int, int) {
	scale := math.Min(float64(srcW)/r.W, float64(srcH)/r.H)
	// Floor the height, then derive the width from it so the pair stays on
	// the requested ratio within rounding.
	h := int(r.H * scale)
	if h < 1 {
		h = 1
	}
	if h > srcH {
		h = srcH
	}
	w := int(math.Round(float64(h) * r.Value()))
	if w < 1 {
		w = 1
	}
	if w > srcW {
		w = srcW
	}
	return w, h
}

// Fits reports whether a window of ratio r with both sides at least one
// pixel fits inside a srcW x srcH raster. An extreme ratio on a small
// raster collapses one ideal dimension below half a pixel, which no
// integer window can honor.
func (r Ratio) Fits(srcW, srcH int) bool {
	scale := math.Min(float64(srcW)/r.W, float64(srcH)/r.H)
	return r.W*scale >= 0.5 && r.H*scale >= 0.5
}

// WindowSize resolves the crop window size for explicit requested dimensions.
// A non-positive request component means unset and defaults to the source
// dimension. Requests that fit the source are honored exactly; oversized
// requests collapse to the largest rectangle of the implied ratio that fits.
func WindowSize(srcW, srcH, reqW, reqH int) (int, int) {
	w, h := reqW, reqH
	if w <= 0 {
		w = srcW
	}
	if h <= 0 {
		h = srcH
	}
	if w <= srcW && h <= srcH {
		return w, h
	}
	return FromSize(w, h).Fit(srcW, srcH)
}
