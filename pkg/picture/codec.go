package picture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	// Decoders registered with the image package.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded raster size (width*height).
const DefaultMaxPixels = 40_000_000

// Codec canonicalizes arbitrary image encodings into a single PNG form.
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	// MaxPixels rejects rasters larger than this before decoding them.
	// Zero means DefaultMaxPixels.
	MaxPixels int
}

// NewCodec returns a Codec with the given pixel limit.
func NewCodec(maxPixels int) *Codec {
	return &Codec{MaxPixels: maxPixels}
}

// encoder is shared: png.Encoder without a BufferPool is stateless.
var encoder = png.Encoder{CompressionLevel: png.BestCompression}

// Canonicalize decodes raw and re-encodes the raster as PNG with fixed
// settings and no metadata. Visually identical inputs produce byte-identical
// output regardless of their source encoding.
func (c *Codec) Canonicalize(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrNotAnImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAnImage, err)
	}

	limit := c.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > limit/cfg.Height {
		return nil, fmt.Errorf("%w: %s raster %dx%d out of bounds", ErrNotAnImage, format, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrNotAnImage, format, err)
	}

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, normalize(img)); err != nil {
		return nil, fmt.Errorf("encoding canonical png: %w", err)
	}

	return buf.Bytes(), nil
}

// normalize copies img into a non-premultiplied RGBA raster anchored at the
// origin so the encoder always sees the same color model and bounds.
func normalize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
