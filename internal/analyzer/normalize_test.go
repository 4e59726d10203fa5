package analyzer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"testing"
)

func TestNormalize_DownsizesLargeImages(t *testing.T) {
	a := New(DefaultConfig())

	tests := []struct {
		name          string
		width, height int
	}{
		{"landscape", 2048, 1000},
		{"portrait", 700, 3000},
		{"square", 1500, 1500},
		{"exactly max", 1024, 1024},
		{"small", 300, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodePNG(t, gradientImage(tt.width, tt.height))

			n, err := a.Normalize(data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if n.Meta.Width > 1024 || n.Meta.Height > 1024 {
				t.Errorf("expected dimensions within 1024, got %dx%d", n.Meta.Width, n.Meta.Height)
			}

			wantResized := tt.width > 1024 || tt.height > 1024
			if n.Meta.Resized != wantResized {
				t.Errorf("expected resized=%v, got %v", wantResized, n.Meta.Resized)
			}

			if !wantResized && (n.Meta.Width != tt.width || n.Meta.Height != tt.height) {
				t.Errorf("expected %dx%d, got %dx%d", tt.width, tt.height, n.Meta.Width, n.Meta.Height)
			}

			cfg, format, err := image.DecodeConfig(bytes.NewReader(n.Data))
			if err != nil {
				t.Fatalf("normalized output does not decode: %v", err)
			}
			if format != FormatJPEG {
				t.Errorf("expected jpeg output, got %s", format)
			}
			if cfg.Width != n.Meta.Width || cfg.Height != n.Meta.Height {
				t.Errorf("metadata %dx%d does not match encoded %dx%d",
					n.Meta.Width, n.Meta.Height, cfg.Width, cfg.Height)
			}
		})
	}
}

func TestNormalize_PreservesAspectRatio(t *testing.T) {
	a := New(DefaultConfig())

	n, err := a.Normalize(encodePNG(t, gradientImage(2048, 1000)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.Meta.Width != 1024 || n.Meta.Height != 500 {
		t.Errorf("expected 1024x500, got %dx%d", n.Meta.Width, n.Meta.Height)
	}
	if n.Meta.OriginalWidth != 2048 || n.Meta.OriginalHeight != 1000 {
		t.Errorf("expected original 2048x1000, got %dx%d", n.Meta.OriginalWidth, n.Meta.OriginalHeight)
	}
}

func TestNormalize_TooSmall(t *testing.T) {
	a := New(DefaultConfig())

	for _, size := range [][2]int{{99, 300}, {300, 99}, {50, 50}} {
		data := encodePNG(t, createTestImage(size[0], size[1], color.NRGBA{0, 200, 0, 255}))

		_, err := a.Normalize(data)
		if !errors.Is(err, ErrImageTooSmall) {
			t.Errorf("%dx%d: expected ErrImageTooSmall, got %v", size[0], size[1], err)
		}
	}
}

func TestNormalize_TooManyPixels(t *testing.T) {
	a := New(DefaultConfig())

	_, err := a.Normalize(pngHeader(9000, 9000+1000))
	if !errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("expected ErrTooManyPixels, got %v", err)
	}
	if !IsDecodeError(err) {
		t.Error("expected a pixel bomb to count as a decode-time failure")
	}
}

func TestNormalize_MaxPixelsIsConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPixels = 50_000
	a := New(cfg)

	if _, err := a.Normalize(encodePNG(t, createTestImage(300, 300, color.NRGBA{0, 200, 0, 255}))); !errors.Is(err, ErrTooManyPixels) {
		t.Errorf("300x300: expected ErrTooManyPixels, got %v", err)
	}
	if _, err := a.Normalize(encodePNG(t, createTestImage(200, 200, color.NRGBA{0, 200, 0, 255}))); err != nil {
		t.Errorf("200x200: expected success under the limit, got %v", err)
	}
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	a := New(DefaultConfig())

	src := image.NewPaletted(image.Rect(0, 0, 200, 200), color.Palette{
		color.RGBA{0, 200, 0, 255},
		color.RGBA{0, 0, 0, 255},
	})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, src, nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}

	_, err := a.Normalize(buf.Bytes())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalize_FormatRestrictedByConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedFormats = []string{FormatJPEG}
	a := New(cfg)

	_, err := a.Normalize(encodePNG(t, gradientImage(200, 200)))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for png, got %v", err)
	}

	if _, err := a.Normalize(encodeJPEG(t, gradientImage(200, 200))); err != nil {
		t.Errorf("expected jpeg to pass, got %v", err)
	}
}

func TestNormalize_WEBPIsRecognized(t *testing.T) {
	a := New(DefaultConfig())

	_, err := a.Normalize(webpHeader(50, 50))
	if !errors.Is(err, ErrImageTooSmall) {
		t.Errorf("expected webp header to reach the size check, got %v", err)
	}

	// Large enough, but the stream holds no pixel data.
	_, err = a.Normalize(webpHeader(400, 300))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode for truncated webp, got %v", err)
	}
}

func TestNormalize_DecodeErrors(t *testing.T) {
	a := New(DefaultConfig())

	jpg := encodeJPEG(t, gradientImage(200, 200))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated jpeg", jpg[:len(jpg)/3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Normalize(tt.data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
			if !IsDecodeError(err) {
				t.Errorf("expected IsDecodeError to be true for %v", err)
			}
		})
	}
}

func TestNormalize_AppliesEXIFOrientation(t *testing.T) {
	a := New(DefaultConfig())

	data := withOrientation(encodeJPEG(t, gradientImage(240, 120)), 6)

	n, err := a.Normalize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.Meta.Width != 120 || n.Meta.Height != 240 {
		t.Errorf("expected rotated 120x240, got %dx%d", n.Meta.Width, n.Meta.Height)
	}
}

func TestNormalize_ColorModes(t *testing.T) {
	a := New(DefaultConfig())

	paletted := image.NewPaletted(image.Rect(0, 0, 150, 150), color.Palette{
		color.RGBA{20, 160, 40, 255},
		color.RGBA{120, 80, 30, 255},
	})
	translucent := createTestImage(150, 150, color.NRGBA{0, 180, 0, 128})
	gray := image.NewGray(image.Rect(0, 0, 150, 150))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i % 256)
	}

	tests := []struct {
		name          string
		data          []byte
		wantMode      string
		wantConverted bool
	}{
		{"rgb jpeg", encodeJPEG(t, gradientImage(150, 150)), ModeRGB, false},
		{"opaque png", encodePNG(t, gradientImage(150, 150)), ModeRGB, false},
		{"paletted png", encodePNG(t, paletted), ModePalette, true},
		{"translucent png", encodePNG(t, translucent), ModeRGBA, true},
		{"gray png", encodePNG(t, gray), ModeGray, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := a.Normalize(tt.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n.Meta.Mode != tt.wantMode {
				t.Errorf("expected mode %s, got %s", tt.wantMode, n.Meta.Mode)
			}
			if n.Meta.Converted != tt.wantConverted {
				t.Errorf("expected converted=%v, got %v", tt.wantConverted, n.Meta.Converted)
			}
			for i := 3; i < len(n.Image.Pix); i += 4 {
				if n.Image.Pix[i] != 0xff {
					t.Fatalf("expected opaque pixels after normalization, got alpha %d", n.Image.Pix[i])
				}
			}
		})
	}
}

func TestNormalize_GrayStaysGray(t *testing.T) {
	a := New(DefaultConfig())

	gray := image.NewGray(image.Rect(0, 0, 160, 120))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}

	n, err := a.Normalize(encodePNG(t, gray))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := jpeg.Decode(bytes.NewReader(n.Data))
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if _, ok := out.(*image.Gray); !ok {
		t.Errorf("expected grayscale jpeg, got %T", out)
	}
}

func TestNormalize_Metadata(t *testing.T) {
	a := New(DefaultConfig())
	data := encodePNG(t, gradientImage(300, 200))

	n, err := a.Normalize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.Meta.Format != FormatPNG {
		t.Errorf("expected format png, got %s", n.Meta.Format)
	}
	if n.Meta.OriginalBytes != len(data) {
		t.Errorf("expected original bytes %d, got %d", len(data), n.Meta.OriginalBytes)
	}
	if n.Meta.ProcessedBytes != len(n.Data) {
		t.Errorf("expected processed bytes %d, got %d", len(n.Data), n.Meta.ProcessedBytes)
	}
	if n.Meta.Hash != ContentHash(data) || len(n.Meta.Hash) != 64 {
		t.Errorf("unexpected hash %q", n.Meta.Hash)
	}

	again, err := a.Normalize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(again.Data, n.Data) {
		t.Error("expected normalization to be deterministic")
	}
}

func TestNormalize_EnhancementIncreasesContrast(t *testing.T) {
	img := gradientImage(200, 200)
	data := encodePNG(t, img)

	plain, err := New(identityConfig()).Normalize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	enhanced, err := New(DefaultConfig()).Normalize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := New(DefaultConfig())
	fp := a.ExtractFeatures(plain.Image)
	fe := a.ExtractFeatures(enhanced.Image)

	if fe.Contrast <= fp.Contrast {
		t.Errorf("expected enhanced contrast above %f, got %f", fp.Contrast, fe.Contrast)
	}
}
