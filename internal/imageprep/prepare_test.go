package imageprep

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeader returns a PNG that declares w x h RGBA pixels but carries no
// image data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.WriteString("IHDR")
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(append([]byte("IHDR"), ihdr...)))
	return buf.Bytes()
}

func decodeResult(t *testing.T, encoded string) image.Config {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	return cfg
}

func TestPrepare_DownscalesWideImages(t *testing.T) {
	p := NewPreparer(DefaultOptions())

	out, err := p.Prepare(bytes.NewReader(pngImage(t, 2048, 1536)))
	require.NoError(t, err)

	cfg := decodeResult(t, out)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 768, cfg.Height)
}

func TestPrepare_NeverUpscales(t *testing.T) {
	p := NewPreparer(Options{})

	out, err := p.Prepare(bytes.NewReader(pngImage(t, 300, 200)))
	require.NoError(t, err)

	cfg := decodeResult(t, out)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestPrepare_CustomWidth(t *testing.T) {
	p := NewPreparer(Options{MaxWidth: 100, Quality: 80})

	out, err := p.Prepare(bytes.NewReader(pngImage(t, 400, 100)))
	require.NoError(t, err)

	cfg := decodeResult(t, out)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestPrepare_InvalidImage(t *testing.T) {
	p := NewPreparer(DefaultOptions())

	_, err := p.Prepare(strings.NewReader("definitely not an image"))
	assert.True(t, errors.Is(err, ErrPrepareFailed))
}

func TestPrepareFile_Missing(t *testing.T) {
	p := NewPreparer(DefaultOptions())

	_, err := p.PrepareFile(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.True(t, errors.Is(err, ErrPrepareFailed))
}

func TestPrepare_RejectsOversizedDimensions(t *testing.T) {
	p := NewPreparer(DefaultOptions())

	_, err := p.Prepare(bytes.NewReader(pngHeader(12000, 12000)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPrepareFailed))
	assert.True(t, errors.Is(err, ErrTooManyPixels))
	assert.Contains(t, err.Error(), "12000x12000")
}

func TestPrepare_PixelBudget(t *testing.T) {
	img := pngImage(t, 400, 100)

	_, err := NewPreparer(Options{MaxPixels: 39_999}).Prepare(bytes.NewReader(img))
	assert.True(t, errors.Is(err, ErrTooManyPixels))

	out, err := NewPreparer(Options{MaxPixels: 40_000}).Prepare(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 400, decodeResult(t, out).Width)
}
