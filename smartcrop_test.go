package smartcrop

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imageturbo/smartcrop/pkg/raster"
)

// createTestImage builds an image with a textured subject off-center
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/6 && x < width/2 && y > height/4 && y < 3*height/4 {
				if (x+y)%2 == 0 {
					img.Set(x, y, color.RGBA{240, 60, 60, 255})
				} else {
					img.Set(x, y, color.RGBA{40, 40, 200, 255})
				}
			} else {
				img.Set(x, y, color.RGBA{70, 70, 70, 255})
			}
		}
	}
	return img
}

func solidImage(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestScenarioSquare(t *testing.T) {
	engine := New()
	win, err := engine.Analyze(createTestImage(800, 600), Options{AspectRatio: "1:1"})
	require.NoError(t, err)

	assert.Equal(t, win.Width, win.Height, "1:1 crop must be square")
	assert.LessOrEqual(t, win.Width, 600)
	assert.LessOrEqual(t, win.X+win.Width, 800)
	assert.LessOrEqual(t, win.Y+win.Height, 600)
	assert.GreaterOrEqual(t, win.X, 0)
	assert.GreaterOrEqual(t, win.Y, 0)
}

func TestScenarioPortraitStrip(t *testing.T) {
	engine := New()
	win, err := engine.Analyze(createTestImage(1200, 400), Options{AspectRatio: "9:16"})
	require.NoError(t, err)

	assert.Less(t, win.Width, win.Height, "9:16 crop must be portrait")
	assert.LessOrEqual(t, win.Height, 400)
	want := math.Round(float64(win.Height) * 9.0 / 16.0)
	assert.InDelta(t, want, float64(win.Width), 1.0)
}

func TestScenarioEmptyInput(t *testing.T) {
	engine := New()

	_, err := engine.AnalyzeBytes(nil, Options{AspectRatio: "1:1"})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)

	_, err = engine.CropBytes([]byte{}, Options{})
	require.ErrorAs(t, err, &decodeErr)

	_, err = engine.AnalyzeBytes([]byte("not an image"), Options{})
	require.ErrorAs(t, err, &decodeErr)
}

func TestScenarioInvalidAspect(t *testing.T) {
	engine := New()

	// The aspect specification is rejected before any pixel work: even
	// undecodable bytes surface the ParseError, not a DecodeError.
	_, err := engine.AnalyzeBytes([]byte("garbage"), Options{AspectRatio: "invalid"})
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)

	_, err = engine.Analyze(createTestImage(100, 100), Options{AspectRatio: "0:1"})
	require.ErrorAs(t, err, &parseErr)

	_, err = engine.CropBytes(nil, Options{AspectRatio: "-16:9"})
	require.ErrorAs(t, err, &parseErr)
}

func TestNegativeDimensions(t *testing.T) {
	engine := New()

	_, err := engine.Analyze(createTestImage(100, 100), Options{Width: -10})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = engine.Analyze(createTestImage(100, 100), Options{Height: -1})
	require.ErrorAs(t, err, &validationErr)
}

func TestUnsatisfiableRatio(t *testing.T) {
	engine := New()
	img := solidImage(10, 10, color.RGBA{120, 120, 120, 255})

	// A valid but extreme ratio that no window inside a 10x10 image can
	// honor is a degenerate request, not an engine failure.
	for _, spec := range []string{"1000:1", "1:1000"} {
		_, err := engine.Analyze(img, Options{AspectRatio: spec})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, spec)
		var internalErr *InternalError
		assert.False(t, errors.As(err, &internalErr), "%s should not surface as an internal failure", spec)
	}
}

func TestCommonRatiosStayOnRatio(t *testing.T) {
	engine := New()
	img := createTestImage(777, 513)

	ratios := map[string]float64{
		"1:1":  1,
		"16:9": 16.0 / 9.0,
		"9:16": 9.0 / 16.0,
		"4:3":  4.0 / 3.0,
		"3:2":  3.0 / 2.0,
		"21:9": 21.0 / 9.0,
	}
	for spec, value := range ratios {
		win, err := engine.Analyze(img, Options{AspectRatio: spec})
		require.NoError(t, err, spec)

		assert.GreaterOrEqual(t, win.X, 0, spec)
		assert.GreaterOrEqual(t, win.Y, 0, spec)
		assert.LessOrEqual(t, win.X+win.Width, 777, spec)
		assert.LessOrEqual(t, win.Y+win.Height, 513, spec)
		assert.InDelta(t, float64(win.Height)*value, float64(win.Width), 1.0, spec)
	}
}

func TestDefaultsToSourceRatio(t *testing.T) {
	engine := New()
	win, err := engine.Analyze(createTestImage(320, 240), Options{})
	require.NoError(t, err)

	assert.Equal(t, Window{X: 0, Y: 0, Width: 320, Height: 240, Score: win.Score}, win,
		"no specification should yield the full frame")
}

func TestExplicitSizeHonored(t *testing.T) {
	engine := New()
	win, err := engine.Analyze(createTestImage(400, 300), Options{Width: 120, Height: 90})
	require.NoError(t, err)

	assert.Equal(t, 120, win.Width)
	assert.Equal(t, 90, win.Height)
}

func TestOversizedRequestShrinksToFit(t *testing.T) {
	engine := New()
	win, err := engine.Analyze(createTestImage(400, 300), Options{Width: 800, Height: 600})
	require.NoError(t, err)

	assert.LessOrEqual(t, win.Width, 400)
	assert.LessOrEqual(t, win.Height, 300)
	assert.InDelta(t, float64(win.Height)*(800.0/600.0), float64(win.Width), 1.0)
}

func TestUniformImageCentersWindow(t *testing.T) {
	engine := New()
	win, err := engine.Analyze(solidImage(640, 480, color.RGBA{120, 120, 120, 255}), Options{AspectRatio: "1:1"})
	require.NoError(t, err)

	assert.Equal(t, 480, win.Width)
	assert.Equal(t, 480, win.Height)
	assert.Equal(t, (640-480)/2, win.X, "degenerate input must center the window")
	assert.Equal(t, 0, win.Y)
}

func TestDeterministicAcrossCalls(t *testing.T) {
	engine := New()
	img := createTestImage(500, 350)
	opts := Options{AspectRatio: "16:9", Boost: []BoostRegion{{X: 50, Y: 50, Width: 100, Height: 100, Weight: 0.5}}}

	first, err := engine.Analyze(img, opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		win, err := engine.Analyze(img, opts)
		require.NoError(t, err)
		assert.Equal(t, first, win, "run %d diverged", i)
	}
}

func TestAsyncMatchesSync(t *testing.T) {
	engine := New()
	img := createTestImage(480, 360)
	data := encodePNG(t, img)
	opts := Options{AspectRatio: "4:3"}

	syncWin, err := engine.AnalyzeBytes(data, opts)
	require.NoError(t, err)
	reply := <-engine.AnalyzeBytesAsync(data, opts)
	require.NoError(t, reply.Err)
	assert.Equal(t, syncWin, reply.Window)

	syncOut, err := engine.CropBytes(data, opts)
	require.NoError(t, err)
	asyncOut := <-engine.CropBytesAsync(data, opts)
	require.NoError(t, asyncOut.Err)
	assert.Equal(t, syncOut, asyncOut.Data, "async crop bytes must match sync byte for byte")
}

func TestBoostNeverLowersSelectedScore(t *testing.T) {
	engine := New()
	img := createTestImage(600, 400)
	opts := Options{AspectRatio: "1:1"}

	plain, err := engine.Analyze(img, opts)
	require.NoError(t, err)

	// Boost a flat low-interest corner.
	opts.Boost = []BoostRegion{{X: 450, Y: 300, Width: 120, Height: 90, Weight: 0.9}}
	boosted, err := engine.Analyze(img, opts)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, boosted.Score, plain.Score)
}

func TestBoostAttractsWindow(t *testing.T) {
	engine := New()
	img := solidImage(900, 300, color.RGBA{100, 100, 100, 255})

	// On a featureless image a strong boost dominates the search.
	win, err := engine.Analyze(img, Options{
		AspectRatio: "1:1",
		Boost:       []BoostRegion{{X: 600, Y: 0, Width: 300, Height: 300, Weight: 1}},
	})
	require.NoError(t, err)

	assert.Greater(t, win.X+win.Width, 600, "window should reach into the boosted region")
}

func TestCropMatchesAnalyze(t *testing.T) {
	engine := New()
	img := createTestImage(640, 400)
	opts := Options{AspectRatio: "3:2"}

	win, sub, err := engine.Crop(img, opts)
	require.NoError(t, err)
	assert.Equal(t, win.Width, sub.Width)
	assert.Equal(t, win.Height, sub.Height)

	// The same window applied by hand yields identical bytes.
	analyzed, err := engine.Analyze(img, opts)
	require.NoError(t, err)
	require.Equal(t, win, analyzed)

	manual, err := raster.FromImage(img).Sub(analyzed.X, analyzed.Y, analyzed.Width, analyzed.Height)
	require.NoError(t, err)
	assert.Equal(t, manual.Pix, sub.Pix, "crop must be pixel-identical to analyze plus manual extraction")
}

func TestCropBytesProducesDecodablePNG(t *testing.T) {
	engine := New()
	data := encodePNG(t, createTestImage(320, 240))

	out, err := engine.CropBytes(data, Options{AspectRatio: "1:1"})
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	b := decoded.Bounds()
	assert.Equal(t, b.Dx(), b.Dy(), "crop output must be square")
	assert.Equal(t, 240, b.Dy())
}

func TestCropBytesPreservesTransparency(t *testing.T) {
	engine := New()
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetNRGBA(x, y, color.NRGBA{200, 100, 50, 128})
		}
	}

	out, err := engine.CropBytes(encodePNG(t, src), Options{})
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	nrgba, ok := decoded.(*image.NRGBA)
	require.True(t, ok, "PNG output should decode as NRGBA")
	assert.Equal(t, color.NRGBA{200, 100, 50, 128}, nrgba.NRGBAAt(3, 3),
		"semi-transparent pixels must survive the crop unchanged")
}

func TestMetadata(t *testing.T) {
	data := encodePNG(t, createTestImage(123, 45))

	meta, err := Metadata(data)
	require.NoError(t, err)
	assert.Equal(t, 123, meta.Width)
	assert.Equal(t, 45, meta.Height)
	assert.Equal(t, "png", meta.Format)

	_, err = Metadata(nil)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	engine := New()
	img := createTestImage(400, 300)
	opts := Options{AspectRatio: "1:1"}

	want, err := engine.Analyze(img, opts)
	require.NoError(t, err)

	results := make(chan AnalyzeReply, 16)
	for i := 0; i < 16; i++ {
		go func() {
			win, err := engine.Analyze(img, opts)
			results <- AnalyzeReply{Window: win, Err: err}
		}()
	}
	for i := 0; i < 16; i++ {
		r := <-results
		require.NoError(t, r.Err)
		assert.Equal(t, want, r.Window)
	}
}
