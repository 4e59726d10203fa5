package analyzer

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestAnalyze_UniformGreenIsAccepted(t *testing.T) {
	a := New(DefaultConfig())

	report, err := a.Analyze(encodePNG(t, createTestImage(200, 200, color.NRGBA{0, 200, 0, 255})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Features.GreenRatio < 0.95 {
		t.Errorf("expected green ratio >= 0.95, got %f", report.Features.GreenRatio)
	}
	if !report.Verdict.Accepted {
		t.Errorf("expected accepted, got reasons %v", report.Verdict.Reasons)
	}
	if len(report.Data) == 0 || report.Image == nil {
		t.Error("expected normalized output in the report")
	}
}

func TestAnalyze_BlackIsTooDark(t *testing.T) {
	a := New(DefaultConfig())

	report, err := a.Analyze(encodePNG(t, createTestImage(200, 200, color.NRGBA{0, 0, 0, 255})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Features.Brightness > 1 {
		t.Errorf("expected brightness ~0, got %f", report.Features.Brightness)
	}
	if report.Verdict.Accepted {
		t.Error("expected black image to be rejected")
	}
	if !contains(report.Verdict.Reasons, ReasonTooDark) {
		t.Errorf("expected %q among %v", ReasonTooDark, report.Verdict.Reasons)
	}
}

func TestAnalyze_WhiteIsOverexposed(t *testing.T) {
	a := New(DefaultConfig())

	report, err := a.Analyze(encodePNG(t, createTestImage(200, 200, color.NRGBA{255, 255, 255, 255})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Features.Brightness < 254 {
		t.Errorf("expected brightness ~255, got %f", report.Features.Brightness)
	}
	if report.Verdict.Accepted {
		t.Error("expected white image to be rejected")
	}
	if !contains(report.Verdict.Reasons, ReasonOverexposed) {
		t.Errorf("expected %q among %v", ReasonOverexposed, report.Verdict.Reasons)
	}
}

func TestAnalyze_TooSmallNeverReachesExtraction(t *testing.T) {
	a := New(DefaultConfig())

	report, err := a.Analyze(encodePNG(t, createTestImage(80, 80, color.NRGBA{0, 200, 0, 255})))
	if !errors.Is(err, ErrImageTooSmall) {
		t.Fatalf("expected ErrImageTooSmall, got %v", err)
	}
	if report != nil {
		t.Error("expected no report for a rejected decode")
	}
}

func TestAnalyze_SecondPassIsStable(t *testing.T) {
	a := New(identityConfig())

	first, err := a.Analyze(encodePNG(t, gradientImage(300, 200)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := a.Analyze(first.Data)
	if err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}

	f1, f2 := first.Features, second.Features
	checks := []struct {
		name      string
		a, b, eps float64
	}{
		{"brightness", f1.Brightness, f2.Brightness, 1.5},
		{"contrast", f1.Contrast, f2.Contrast, 1.5},
		{"green ratio", f1.GreenRatio, f2.GreenRatio, 0.02},
		{"brown ratio", f1.BrownRatio, f2.BrownRatio, 0.02},
		{"texture", f1.TextureComplexity, f2.TextureComplexity, 1.0},
		{"edge strength", f1.EdgeStrength, f2.EdgeStrength, 1.0},
	}
	for _, c := range checks {
		if math.Abs(c.a-c.b) > c.eps {
			t.Errorf("%s drifted from %f to %f", c.name, c.a, c.b)
		}
	}

	if first.Verdict.Accepted != second.Verdict.Accepted {
		t.Errorf("expected the same verdict on both passes")
	}
}

// panicImage fails on pixel access.
type panicImage struct{}

func (panicImage) ColorModel() color.Model { return color.NRGBAModel }
func (panicImage) Bounds() image.Rectangle { return image.Rect(0, 0, 10, 10) }
func (panicImage) At(x, y int) color.Color { panic("broken pixel buffer") }

func TestAssess_RecoversFromFaults(t *testing.T) {
	a := New(DefaultConfig())

	f, v := a.assess(panicImage{})

	if v.Accepted {
		t.Error("expected a rejected verdict")
	}
	if len(v.Reasons) != 1 || v.Reasons[0] != ReasonUnanalyzable {
		t.Errorf("expected %q, got %v", ReasonUnanalyzable, v.Reasons)
	}
	if f.Brightness != 0 || len(f.DominantColors) != 0 {
		t.Errorf("expected neutral features, got %+v", f)
	}
}

func TestNew_FillsDefaults(t *testing.T) {
	a := New(Config{MaxDimension: 512})
	cfg := a.Config()

	if cfg.MaxDimension != 512 {
		t.Errorf("expected max dimension 512, got %d", cfg.MaxDimension)
	}
	if cfg.MinDimension != 100 || cfg.JPEGQuality != 85 {
		t.Errorf("expected defaults, got min=%d quality=%d", cfg.MinDimension, cfg.JPEGQuality)
	}
	if len(cfg.AllowedFormats) != 3 {
		t.Errorf("expected default formats, got %v", cfg.AllowedFormats)
	}

	cfg.AllowedFormats[0] = "gif"
	if a.Config().AllowedFormats[0] == "gif" {
		t.Error("expected Config to return a copy")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
