package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
)

const (
	// DefaultMaxPixels rejects decompression bombs before a full decode.
	DefaultMaxPixels = 64 * 1024 * 1024

	fallbackFormat = "jpeg"
)

// formats we can write back, keyed by the name image.Decode reports
var encodable = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
}

var extByFormat = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

var formatByExt = map[string]string{
	"jpg": "jpeg",
	"png": "png",
	"gif": "gif",
}

type CompressorConfig struct {
	MaxPixels int
}

// Compressor resizes with Lanczos and walks quality down from the rule's
// starting point until the byte budget is met or the floor is reached.
type Compressor struct {
	maxPixels int
}

func NewCompressor(cfg CompressorConfig) ports.CompressorPort {
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Compressor{maxPixels: cfg.MaxPixels}
}

func (c *Compressor) Probe(data []byte) (*ports.ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEncodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > c.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", models.ErrEncodeFailure, cfg.Width, cfg.Height)
	}

	// dimensions are reported as displayed, matching what compress decodes
	width, height := cfg.Width, cfg.Height
	if format == "jpeg" && swapsAxes(exifOrientation(data)) {
		width, height = height, width
	}

	ext, ok := extByFormat[format]
	if !ok {
		ext = format
	}
	return &ports.ImageInfo{Format: format, Ext: ext, Width: width, Height: height}, nil
}

func (c *Compressor) Compress(data []byte, category models.ImageCategory) (*ports.CompressResult, error) {
	info, err := c.Probe(data)
	if err != nil {
		return nil, err
	}

	target := info.Format
	if _, ok := encodable[target]; !ok {
		target = fallbackFormat
	}
	return c.compress(data, models.RuleFor(category), target)
}

func (c *Compressor) Recompress(data []byte, category models.ImageCategory, ext string) (*ports.CompressResult, error) {
	target, ok := formatByExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for %q", models.ErrEncodeFailure, ext)
	}
	if _, err := c.Probe(data); err != nil {
		return nil, err
	}
	return c.compress(data, models.RuleFor(category), target)
}

func (c *Compressor) compress(data []byte, rule models.ImageRule, target string) (*ports.CompressResult, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEncodeFailure, err)
	}

	img = fit(img, rule)

	out, quality, err := encodeWithinBudget(img, target, rule)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &ports.CompressResult{
		Data:      out,
		Format:    target,
		Ext:       extByFormat[target],
		Width:     b.Dx(),
		Height:    b.Dy(),
		Quality:   quality,
		BudgetMet: int64(len(out)) <= rule.MaxBytes,
	}, nil
}

// fit only ever shrinks; images already inside the box are returned as is.
func fit(img image.Image, rule models.ImageRule) image.Image {
	if !rule.HasDimensionLimit() {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= rule.MaxWidth && b.Dy() <= rule.MaxHeight {
		return img
	}
	return imaging.Fit(img, rule.MaxWidth, rule.MaxHeight, imaging.Lanczos)
}

// encodeWithinBudget returns the first encoding at or under rule.MaxBytes,
// or the floor-quality encoding when none fits.
func encodeWithinBudget(img image.Image, target string, rule models.ImageRule) ([]byte, int, error) {
	quality := rule.Quality
	if quality <= 0 || quality > 100 {
		quality = models.DefaultQuality
	}

	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := encode(&buf, img, target, quality); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", models.ErrEncodeFailure, err)
		}
		if int64(buf.Len()) <= rule.MaxBytes || quality <= models.QualityFloor {
			break
		}
		quality -= models.QualityStep
		if quality < models.QualityFloor {
			quality = models.QualityFloor
		}
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, quality, nil
}

func encode(buf *bytes.Buffer, img image.Image, target string, quality int) error {
	switch target {
	case "png":
		return imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(pngLevel(quality)))
	case "gif":
		return imaging.Encode(buf, img, imaging.GIF, imaging.GIFNumColors(gifColors(quality)))
	default:
		return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}

// PNG is lossless, so lower quality only buys harder compression.
func pngLevel(quality int) png.CompressionLevel {
	if quality >= models.DefaultQuality {
		return png.DefaultCompression
	}
	return png.BestCompression
}

// gifColors scales the palette with quality, 256 colours at 100.
func gifColors(quality int) int {
	n := 256 * quality / 100
	if n < 2 {
		n = 2
	}
	if n > 256 {
		n = 256
	}
	return n
}
