// Package raster holds the decoded pixel buffer the crop engine operates on.
//
// A Raster is a plain row-major 8-bit pixel slab with 3 (RGB) or 4 (RGBA)
// channels. The engine treats it as read-only: analysis never mutates it, and
// cropping copies rows into a fresh Raster.
package raster

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/clone"
)

// Raster is a decoded image buffer. Pix is row-major, Channels bytes per
// pixel, no row padding. The engine never writes to Pix.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// New wraps a caller-owned pixel buffer. The buffer length must match
// width*height*channels exactly and channels must be 3 or 4.
func New(width, height, channels int, pix []uint8) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster dimensions must be positive, got %dx%d", width, height)
	}
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("raster channel count must be 3 or 4, got %d", channels)
	}
	if want := width * height * channels; len(pix) != want {
		return nil, fmt.Errorf("raster buffer length %d does not match %dx%dx%d (want %d)", len(pix), width, height, channels, want)
	}
	return &Raster{Width: width, Height: height, Channels: channels, Pix: pix}, nil
}

// FromImage converts any image.Image into a 4-channel Raster. Channel bytes
// are straight (non-premultiplied) alpha, so semi-transparent pixels survive
// the round trip through ToImage unchanged.
func FromImage(img image.Image) *Raster {
	src := asNRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w*4:(y+1)*w*4], src.Pix[off:off+w*4])
	}
	return &Raster{Width: w, Height: h, Channels: 4, Pix: pix}
}

// asNRGBA converts img to straight-alpha NRGBA. Opaque source formats take
// the RGBA fast path, where premultiplied and straight bytes coincide.
func asNRGBA(img image.Image) *image.NRGBA {
	switch im := img.(type) {
	case *image.NRGBA:
		return im
	case *image.YCbCr, *image.Gray, *image.CMYK:
		rgba := clone.AsRGBA(im)
		return &image.NRGBA{Pix: rgba.Pix, Stride: rgba.Stride, Rect: rgba.Rect}
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// RGBAt returns the color at (x, y). Alpha is 255 for 3-channel rasters.
// Callers must keep x and y in bounds.
func (r *Raster) RGBAt(x, y int) (uint8, uint8, uint8, uint8) {
	i := (y*r.Width + x) * r.Channels
	if r.Channels == 3 {
		return r.Pix[i], r.Pix[i+1], r.Pix[i+2], 255
	}
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2], r.Pix[i+3]
}

// Sub copies the sub-rectangle into a new Raster. Rows are copied
// byte-exactly, one copy per row. The rectangle must lie fully inside r.
func (r *Raster) Sub(x, y, width, height int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("sub-raster dimensions must be positive, got %dx%d", width, height)
	}
	if x < 0 || y < 0 || x+width > r.Width || y+height > r.Height {
		return nil, fmt.Errorf("sub-raster %dx%d at (%d,%d) exceeds raster bounds %dx%d", width, height, x, y, r.Width, r.Height)
	}
	ch := r.Channels
	pix := make([]uint8, width*height*ch)
	for row := 0; row < height; row++ {
		srcOff := ((y+row)*r.Width + x) * ch
		copy(pix[row*width*ch:(row+1)*width*ch], r.Pix[srcOff:srcOff+width*ch])
	}
	return &Raster{Width: width, Height: height, Channels: ch, Pix: pix}, nil
}

// ToImage converts the raster back into an image for encoding.
func (r *Raster) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	if r.Channels == 4 {
		for y := 0; y < r.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+r.Width*4], r.Pix[y*r.Width*4:(y+1)*r.Width*4])
		}
		return img
	}
	for y := 0; y < r.Height; y++ {
		src := r.Pix[y*r.Width*3:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < r.Width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 255
		}
	}
	return img
}
