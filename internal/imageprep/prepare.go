// Package imageprep turns user photos into the compact JPEG the vision
// model receives.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrPrepareFailed wraps every failure to read or re-encode a photo.
	ErrPrepareFailed = errors.New("failed to prepare image")
	// ErrTooManyPixels is returned, wrapped in ErrPrepareFailed, for images
	// whose header declares more than MaxPixels pixels.
	ErrTooManyPixels = errors.New("image dimensions too large")
)

const (
	DefaultMaxWidth  = 1024
	DefaultQuality   = 60
	DefaultMaxPixels = 40_000_000
)

// Options controls resizing and compression.
type Options struct {
	MaxWidth int
	Quality  int
	// MaxPixels caps width*height before the image is decoded.
	MaxPixels int64
}

// DefaultOptions returns the standard preparation settings.
func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxWidth, Quality: DefaultQuality, MaxPixels: DefaultMaxPixels}
}

// Preparer downsizes and re-encodes photos.
type Preparer struct {
	opts Options
}

// NewPreparer creates a preparer. Zero fields fall back to the defaults.
func NewPreparer(opts Options) *Preparer {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Preparer{opts: opts}
}

// Prepare decodes a JPEG, PNG, GIF or WebP image, scales it down to the
// maximum width keeping its aspect ratio, and returns it as base64 JPEG.
// Images already narrow enough are never upscaled. The header is checked
// first so oversized images are rejected without allocating their pixels.
func (p *Preparer) Prepare(r io.Reader) (string, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPrepareFailed, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.opts.MaxPixels {
		return "", fmt.Errorf("%w: %w (%dx%d)", ErrPrepareFailed, ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPrepareFailed, err)
	}

	img := resize(src, p.opts.MaxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPrepareFailed, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// PrepareFile prepares the image stored at path.
func (p *Preparer) PrepareFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPrepareFailed, err)
	}
	defer f.Close()
	return p.Prepare(f)
}

func resize(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return src
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
