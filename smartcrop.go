// Package smartcrop selects, from a decoded image, the sub-rectangle of a
// requested aspect ratio that best preserves the visually interesting
// content.
//
// The pipeline reduces the raster to a coarse saliency grid (edge, contrast,
// saturation and skin-tone signals), merges caller-supplied boost regions
// into it, and searches candidate window positions of the target size for the
// highest composite score. Output is deterministic: identical input bytes and
// options always produce the identical window.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//		"os"
//
//		"github.com/imageturbo/smartcrop"
//	)
//
//	func main() {
//		data, err := os.ReadFile("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		engine := smartcrop.New()
//
//		// Find the best 1:1 window without touching any pixels.
//		win, err := engine.AnalyzeBytes(data, smartcrop.Options{AspectRatio: "1:1"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("best crop: %dx%d at (%d,%d) score=%.3f\n",
//			win.Width, win.Height, win.X, win.Y, win.Score)
//
//		// Or materialize the crop as PNG bytes in one call.
//		out, err := engine.CropBytes(data, smartcrop.Options{AspectRatio: "1:1"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := os.WriteFile("photo_square.png", out, 0o644); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The pipeline stages live in their own packages:
//
// 1. Aspect (pkg/aspect): target ratio parsing and window size solving
// 2. Saliency (pkg/saliency): the block-resolution interest grid
// 3. Boost (pkg/boost): caller region-of-interest overlay
// 4. Window (pkg/window): translation search with rule-of-thirds bias
// 5. Codec (pkg/codec): the external decode/encode collaborators
//
// Every call is stateless and run-to-completion; the synchronous and
// asynchronous forms return byte-identical results.
package smartcrop

import (
	"fmt"
	"image"
	"io"
	"log"
	"math"

	"github.com/imageturbo/smartcrop/pkg/aspect"
	"github.com/imageturbo/smartcrop/pkg/boost"
	"github.com/imageturbo/smartcrop/pkg/codec"
	"github.com/imageturbo/smartcrop/pkg/raster"
	"github.com/imageturbo/smartcrop/pkg/saliency"
	"github.com/imageturbo/smartcrop/pkg/window"
)

// Version of the smartcrop library
const Version = "1.0.0"

// Window is the selected crop rectangle. It always lies fully inside the
// source raster and matches the requested ratio within one pixel.
type Window = window.Window

// BoostRegion is a caller-supplied weighted rectangle biasing the saliency
// toward a known area of interest.
type BoostRegion = boost.Region

// Options selects the crop target. AspectRatio ("W:H"), when set, takes
// precedence over Width/Height; with neither set the target defaults to the
// source's own ratio, which yields the full frame.
type Options struct {
	Width       int           `json:"width,omitempty"`
	Height      int           `json:"height,omitempty"`
	AspectRatio string        `json:"aspectRatio,omitempty"`
	Boost       []BoostRegion `json:"boost,omitempty"`
}

// Config holds the tuning constants for both pipeline stages plus an
// optional debug logger.
type Config struct {
	Saliency saliency.Config
	Window   window.Config
	Log      *log.Logger
}

// Engine runs the crop pipeline. It is stateless between calls and safe for
// concurrent use.
type Engine struct {
	mapper   *saliency.Mapper
	searcher *window.Searcher
	log      *log.Logger
}

// New creates an Engine with the reference tuning.
func New() *Engine {
	return NewWithConfig(Config{
		Saliency: saliency.DefaultConfig(),
		Window:   window.DefaultConfig(),
	})
}

// NewWithConfig creates an Engine with custom tuning.
func NewWithConfig(config Config) *Engine {
	logger := config.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		mapper:   saliency.NewWithConfig(config.Saliency),
		searcher: window.NewWithConfig(config.Window),
		log:      logger,
	}
}

// Analyze finds the best crop window for a decoded image. No pixels are
// copied; the result is the window coordinates and score only.
func (e *Engine) Analyze(img image.Image, opts Options) (Window, error) {
	ratio, err := resolveSpec(opts)
	if err != nil {
		return Window{}, err
	}
	return e.analyzeRaster(raster.FromImage(img), opts, ratio)
}

// AnalyzeRaster is Analyze for callers that already hold a raw raster.
func (e *Engine) AnalyzeRaster(r *raster.Raster, opts Options) (Window, error) {
	ratio, err := resolveSpec(opts)
	if err != nil {
		return Window{}, err
	}
	return e.analyzeRaster(r, opts, ratio)
}

// AnalyzeBytes decodes the input and finds the best crop window. The aspect
// specification is checked before any pixel work begins.
func (e *Engine) AnalyzeBytes(data []byte, opts Options) (Window, error) {
	ratio, err := resolveSpec(opts)
	if err != nil {
		return Window{}, err
	}
	img, err := codec.Decode(data)
	if err != nil {
		return Window{}, &DecodeError{Err: err}
	}
	return e.analyzeRaster(raster.FromImage(img), opts, ratio)
}

// Crop finds the best window and materializes it as a new raster. The pixel
// copy is byte-exact per row and channel.
func (e *Engine) Crop(img image.Image, opts Options) (Window, *raster.Raster, error) {
	ratio, err := resolveSpec(opts)
	if err != nil {
		return Window{}, nil, err
	}
	src := raster.FromImage(img)
	win, err := e.analyzeRaster(src, opts, ratio)
	if err != nil {
		return Window{}, nil, err
	}
	sub, err := src.Sub(win.X, win.Y, win.Width, win.Height)
	if err != nil {
		return Window{}, nil, &InternalError{Reason: err.Error()}
	}
	return win, sub, nil
}

// CropBytes decodes the input, crops it and encodes the result as PNG, the
// fixed lossless format of this path. Callers wanting other output formats
// can run Analyze and apply codec.CropRect themselves.
func (e *Engine) CropBytes(data []byte, opts Options) ([]byte, error) {
	ratio, err := resolveSpec(opts)
	if err != nil {
		return nil, err
	}
	img, err := codec.Decode(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	src := raster.FromImage(img)
	win, err := e.analyzeRaster(src, opts, ratio)
	if err != nil {
		return nil, err
	}
	sub, err := src.Sub(win.X, win.Y, win.Width, win.Height)
	if err != nil {
		return nil, &InternalError{Reason: err.Error()}
	}
	return codec.EncodePNG(sub.ToImage())
}

// Metadata probes the input header without decoding pixel data.
func Metadata(data []byte) (codec.Metadata, error) {
	meta, err := codec.DecodeMeta(data)
	if err != nil {
		return codec.Metadata{}, &DecodeError{Err: err}
	}
	return meta, nil
}

// AnalyzeReply carries one asynchronous Analyze result.
type AnalyzeReply struct {
	Window Window
	Err    error
}

// CropReply carries one asynchronous Crop result.
type CropReply struct {
	Window Window
	Raster *raster.Raster
	Err    error
}

// BytesReply carries one asynchronous CropBytes result.
type BytesReply struct {
	Data []byte
	Err  error
}

// AnalyzeAsync runs Analyze on a new goroutine. The returned channel is
// buffered and delivers exactly one reply, identical to the synchronous call.
func (e *Engine) AnalyzeAsync(img image.Image, opts Options) <-chan AnalyzeReply {
	ch := make(chan AnalyzeReply, 1)
	go func() {
		win, err := e.Analyze(img, opts)
		ch <- AnalyzeReply{Window: win, Err: err}
	}()
	return ch
}

// AnalyzeBytesAsync runs AnalyzeBytes on a new goroutine.
func (e *Engine) AnalyzeBytesAsync(data []byte, opts Options) <-chan AnalyzeReply {
	ch := make(chan AnalyzeReply, 1)
	go func() {
		win, err := e.AnalyzeBytes(data, opts)
		ch <- AnalyzeReply{Window: win, Err: err}
	}()
	return ch
}

// CropAsync runs Crop on a new goroutine.
func (e *Engine) CropAsync(img image.Image, opts Options) <-chan CropReply {
	ch := make(chan CropReply, 1)
	go func() {
		win, sub, err := e.Crop(img, opts)
		ch <- CropReply{Window: win, Raster: sub, Err: err}
	}()
	return ch
}

// CropBytesAsync runs CropBytes on a new goroutine.
func (e *Engine) CropBytesAsync(data []byte, opts Options) <-chan BytesReply {
	ch := make(chan BytesReply, 1)
	go func() {
		data, err := e.CropBytes(data, opts)
		ch <- BytesReply{Data: data, Err: err}
	}()
	return ch
}

// resolveSpec validates the aspect specification up front, before any decode
// or pixel work. It returns the parsed ratio when AspectRatio is set.
func resolveSpec(opts Options) (*aspect.Ratio, error) {
	if opts.AspectRatio != "" {
		r, err := aspect.Parse(opts.AspectRatio)
		if err != nil {
			return nil, &ParseError{Reason: err.Error()}
		}
		return &r, nil
	}
	if opts.Width < 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("requested width must be positive, got %d", opts.Width)}
	}
	if opts.Height < 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("requested height must be positive, got %d", opts.Height)}
	}
	return nil, nil
}

// analyzeRaster runs the scoring pipeline. The ratio argument is non-nil when
// Options carried an aspect string.
func (e *Engine) analyzeRaster(r *raster.Raster, opts Options, ratio *aspect.Ratio) (Window, error) {
	if r == nil || r.Width <= 0 || r.Height <= 0 {
		return Window{}, &ValidationError{Reason: "raster dimensions must be positive"}
	}

	var targetW, targetH int
	if ratio != nil {
		targetW, targetH = ratio.Fit(r.Width, r.Height)
		// An extreme ratio on a small raster can clamp the fit off the
		// ratio entirely. That is a degenerate request, not a search bug.
		if !ratio.Fits(r.Width, r.Height) ||
			math.Abs(float64(targetW)-float64(targetH)*ratio.Value()) > 1.0 {
			return Window{}, &ValidationError{Reason: fmt.Sprintf(
				"no %g:%g crop fits inside a %dx%d image", ratio.W, ratio.H, r.Width, r.Height)}
		}
	} else {
		targetW, targetH = aspect.WindowSize(r.Width, r.Height, opts.Width, opts.Height)
	}
	e.log.Printf("smartcrop: source %dx%d target window %dx%d", r.Width, r.Height, targetW, targetH)

	grid := e.mapper.Map(r)
	boost.Apply(grid, opts.Boost)

	win, err := e.searcher.Best(grid, targetW, targetH)
	if err != nil {
		return Window{}, &InternalError{Reason: err.Error()}
	}
	if err := checkWindow(win, r, ratio); err != nil {
		return Window{}, err
	}
	e.log.Printf("smartcrop: best window %dx%d at (%d,%d) score=%.4f", win.Width, win.Height, win.X, win.Y, win.Score)
	return win, nil
}

// checkWindow fails loudly if the search produced a window that violates the
// containment or ratio invariants.
func checkWindow(w Window, r *raster.Raster, ratio *aspect.Ratio) error {
	if w.X < 0 || w.Y < 0 || w.X+w.Width > r.Width || w.Y+w.Height > r.Height {
		return &InternalError{Reason: fmt.Sprintf("window %dx%d at (%d,%d) escapes raster %dx%d",
			w.Width, w.Height, w.X, w.Y, r.Width, r.Height)}
	}
	if ratio != nil {
		// Width predicted by the ratio must agree within one pixel.
		want := float64(w.Height) * ratio.Value()
		if math.Abs(want-float64(w.Width)) > 1.0 {
			return &InternalError{Reason: fmt.Sprintf("window %dx%d is off the requested %g:%g ratio",
				w.Width, w.Height, ratio.W, ratio.H)}
		}
	}
	return nil
}

// GetVersion returns the library version.
func GetVersion() string {
	return Version
}
