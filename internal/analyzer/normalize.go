package analyzer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	// Register the WEBP decoder, imaging only brings jpeg/png/gif/bmp/tiff.
	_ "golang.org/x/image/webp"
)

// Colour modes of the source photo, named the way image tools usually report them.
const (
	ModeRGB     = "RGB"
	ModeRGBA    = "RGBA"
	ModeGray    = "L"
	ModeGray16  = "I;16"
	ModePalette = "P"
	ModeCMYK    = "CMYK"
	ModeRGB16   = "RGB;16"
	ModeRGBA16  = "RGBA;16"
	ModeUnknown = "unknown"
)

// Metadata describes what normalization did to a photo.
type Metadata struct {
	Format         string `json:"format" yaml:"format"`
	Mode           string `json:"mode" yaml:"mode"`
	OriginalWidth  int    `json:"original_width" yaml:"original_width"`
	OriginalHeight int    `json:"original_height" yaml:"original_height"`
	Width          int    `json:"width" yaml:"width"`
	Height         int    `json:"height" yaml:"height"`
	OriginalBytes  int    `json:"original_bytes" yaml:"original_bytes"`
	ProcessedBytes int    `json:"processed_bytes" yaml:"processed_bytes"`
	Hash           string `json:"hash" yaml:"hash"`
	Resized        bool   `json:"resized" yaml:"resized"`
	Converted      bool   `json:"converted" yaml:"converted"`
}

// Normalized is a photo bounded to the configured size, orientation-corrected,
// colour-consistent and re-encoded as JPEG.
type Normalized struct {
	Image *image.NRGBA // pixel grid the features are computed on
	Data  []byte       // re-encoded JPEG
	Meta  Metadata
}

// ContentHash returns the hex SHA-256 of the raw bytes, used to spot duplicates.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Normalize decodes raw photo bytes and turns them into a Normalized image.
// It fails with ErrDecode, ErrUnsupportedFormat, ErrImageTooSmall or
// ErrTooManyPixels.
func (a *Analyzer) Normalize(data []byte) (n *Normalized, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if _, ok := a.formats[format]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if cfg.Width < a.cfg.MinDimension || cfg.Height < a.cfg.MinDimension {
		return nil, fmt.Errorf("%w: %dx%d, minimum is %dpx per side",
			ErrImageTooSmall, cfg.Width, cfg.Height, a.cfg.MinDimension)
	}

	// A small compressed file can declare a huge canvas; refuse it before
	// the decoder allocates the pixels.
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > a.cfg.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d, limit is %d pixels",
			ErrTooManyPixels, cfg.Width, cfg.Height, a.cfg.MaxPixels)
	}

	// Decoders and filters work on untrusted input.
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("%w: %v", ErrDecode, r)
		}
	}()

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	mode := colorMode(cfg.ColorModel)
	meta := Metadata{
		Format:         format,
		Mode:           mode,
		OriginalWidth:  cfg.Width,
		OriginalHeight: cfg.Height,
		OriginalBytes:  len(data),
		Hash:           ContentHash(data),
		Converted:      mode != ModeRGB && mode != ModeGray,
	}

	img := imaging.Clone(src)
	if meta.Converted {
		flatten(img)
	}

	b := img.Bounds()
	if b.Dx() > a.cfg.MaxDimension || b.Dy() > a.cfg.MaxDimension {
		img = imaging.Fit(img, a.cfg.MaxDimension, a.cfg.MaxDimension, imaging.Lanczos)
		meta.Resized = true
	}

	img = a.enhance(img)

	var out image.Image = img
	if mode == ModeGray {
		out = toGray(img)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, out, imaging.JPEG, imaging.JPEGQuality(a.cfg.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode normalized image: %w", err)
	}

	meta.Width = img.Bounds().Dx()
	meta.Height = img.Bounds().Dy()
	meta.ProcessedBytes = buf.Len()

	return &Normalized{Image: img, Data: buf.Bytes(), Meta: meta}, nil
}

// enhance applies the configured contrast, saturation and sharpness factors.
func (a *Analyzer) enhance(img *image.NRGBA) *image.NRGBA {
	e := a.cfg.Enhancement

	if e.Contrast > 0 && e.Contrast != 1 {
		img = imaging.AdjustContrast(img, (e.Contrast-1)*100)
	}
	if e.Saturation > 0 && e.Saturation != 1 {
		img = imaging.AdjustSaturation(img, (e.Saturation-1)*100)
	}
	if e.Sharpness > 0 && e.Sharpness != 1 {
		img = sharpen(img, e.Sharpness)
	}

	return img
}

// sharpen extrapolates from a smoothed copy towards the original:
// out = smooth + factor*(orig-smooth). A factor above 1 sharpens.
func sharpen(img *image.NRGBA, factor float64) *image.NRGBA {
	smooth := imaging.Blur(img, 1)
	dst := imaging.Clone(img)

	for i := 0; i < len(dst.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			s := float64(smooth.Pix[i+c])
			v := s + factor*(float64(img.Pix[i+c])-s)
			dst.Pix[i+c] = clamp8(v)
		}
	}

	return dst
}

// flatten drops the alpha channel, keeping the straight colour values.
func flatten(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}

func toGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

func colorMode(m color.Model) string {
	// Palette is a slice and must not reach the comparisons below.
	if _, ok := m.(color.Palette); ok {
		return ModePalette
	}

	switch m {
	case color.YCbCrModel, color.RGBAModel:
		return ModeRGB
	case color.NRGBAModel, color.NYCbCrAModel:
		return ModeRGBA
	case color.GrayModel:
		return ModeGray
	case color.Gray16Model:
		return ModeGray16
	case color.CMYKModel:
		return ModeCMYK
	case color.RGBA64Model:
		return ModeRGB16
	case color.NRGBA64Model:
		return ModeRGBA16
	default:
		return ModeUnknown
	}
}

func clamp8(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// IsDecodeError reports whether err is one of the decode-time failures.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrImageTooSmall) ||
		errors.Is(err, ErrTooManyPixels)
}
