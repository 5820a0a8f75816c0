// Package codec is the decode/encode collaborator for the crop engine. The
// engine itself never parses container formats; this package turns
// JPEG/PNG/WebP bytes into images and crop results back into bytes.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Metadata describes an image container without decoding pixel data.
type Metadata struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	HasAlpha bool   `json:"hasAlpha"`
}

// Decode decodes an image from raw bytes, with a WebP fallback for encoders
// that emit containers the registered decoders reject.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input buffer")
	}
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("unknown or unsupported image format")
}

// DecodeMeta reads container metadata from the header without decoding the
// full image.
func DecodeMeta(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, fmt.Errorf("empty input buffer")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("unknown or unsupported image format")
	}
	return Metadata{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		HasAlpha: modelHasAlpha(cfg.ColorModel),
	}, nil
}

func modelHasAlpha(m color.Model) bool {
	switch m {
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model, color.NYCbCrAModel:
		return true
	}
	return false
}

// Load reads an image from disk. imaging handles the registered formats;
// explicit WebP decode covers files the registered decoder rejects.
func Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if img, err := webp.Decode(f); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("unknown image format for %s", path)
}

// EncodePNG encodes to PNG, the fixed lossless format of the crop path.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes to JPEG with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWebP encodes to WebP, lossy or lossless.
func EncodeWebP(img image.Image, quality int, lossless bool) ([]byte, error) {
	var buf bytes.Buffer
	opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, fmt.Errorf("webp encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode writes img in the named format: "png", "jpg"/"jpeg" or "webp".
func Encode(w io.Writer, img image.Image, format string, quality int, lossless bool) error {
	var data []byte
	var err error
	switch strings.ToLower(format) {
	case "png":
		data, err = EncodePNG(img)
	case "jpg", "jpeg":
		data, err = EncodeJPEG(img, quality)
	case "webp":
		data, err = EncodeWebP(img, quality, lossless)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Save writes img to a file in the named format.
func Save(img image.Image, path, format string, quality int, lossless bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Encode(f, img, format, quality, lossless)
}

// CropRect is the plain crop-by-coordinates primitive for callers that ran
// analyze and want to apply the window themselves. The rectangle is clipped
// to the image bounds; an empty result is an error.
func CropRect(img image.Image, x, y, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("crop dimensions must be positive, got %dx%d", width, height)
	}
	rect := image.Rect(x, y, x+width, y+height).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop rectangle %dx%d at (%d,%d) lies outside the image", width, height, x, y)
	}
	return imaging.Crop(img, rect), nil
}

// FillTo scales img to exactly width x height, cropping overflow around the
// center.
func FillTo(img image.Image, width, height int) image.Image {
	return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
}
