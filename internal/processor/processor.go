package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/google/uuid"

	"github.com/aliskhannn/plantphoto/internal/analyzer"
	"github.com/aliskhannn/plantphoto/internal/storage/file"
)

const (
	previewMaxSide = 512
	previewQuality = 80
	contentTypeJPG = "image/jpeg"
)

var (
	acceptedColor = color.NRGBA{R: 46, G: 160, B: 67, A: 255}
	rejectedColor = color.NRGBA{R: 200, G: 40, B: 40, A: 255}
	unknownColor  = color.NRGBA{R: 90, G: 90, B: 90, A: 255}
)

// fileStorage defines the interface for file storage.
// It allows saving files to a backend (e.g., MinIO).
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader, size int64, contentType string) (string, error)
}

// Derived holds the object keys of the files produced for an analyzed photo.
type Derived struct {
	NormalizedPath string
	PreviewPath    string
}

// Processor stores the derived artifacts of an analyzed photo: the
// normalized JPEG and a verdict preview.
type Processor struct {
	fileStorage fileStorage
}

// New creates a new Processor with the given file storage backend.
func New(fs fileStorage) *Processor {
	return &Processor{fileStorage: fs}
}

// Process saves the normalized image and its preview for photo id.
func (p *Processor) Process(ctx context.Context, id uuid.UUID, report *analyzer.Report) (Derived, error) {
	if report == nil || len(report.Data) == 0 {
		return Derived{}, fmt.Errorf("process: empty report for photo %s", id)
	}

	name := id.String() + ".jpg"

	// Save normalized version.
	normalized, err := p.fileStorage.Save(
		ctx, file.DirNormalized, name, bytes.NewReader(report.Data), int64(len(report.Data)), contentTypeJPG,
	)
	if err != nil {
		return Derived{}, fmt.Errorf("process: failed to save normalized image: %w", err)
	}

	// Render and save preview.
	preview, err := RenderPreview(report)
	if err != nil {
		return Derived{}, fmt.Errorf("process: failed to render preview: %w", err)
	}

	previewPath, err := p.fileStorage.Save(
		ctx, file.DirPreviews, name, bytes.NewReader(preview), int64(len(preview)), contentTypeJPG,
	)
	if err != nil {
		return Derived{}, fmt.Errorf("process: failed to save preview: %w", err)
	}

	return Derived{NormalizedPath: normalized, PreviewPath: previewPath}, nil
}

// RenderPreview draws a thumbnail of the normalized photo framed in the
// verdict colour, with a strip of dominant colour swatches underneath whose
// widths follow each colour's share of the image.
func RenderPreview(report *analyzer.Report) ([]byte, error) {
	src, err := previewSource(report)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(src, previewMaxSide, previewMaxSide, imaging.Lanczos)
	w, h := thumb.Bounds().Dx(), thumb.Bounds().Dy()

	strip := h / 8
	if strip < 12 {
		strip = 12
	}
	border := math.Max(2, float64(w)/100)

	dc := gg.NewContext(w, h+strip)
	dc.SetColor(unknownColor)
	dc.Clear()
	dc.DrawImage(thumb, 0, 0)

	frame := rejectedColor
	label := "REJECTED"
	if report.Verdict.Accepted {
		frame = acceptedColor
		label = "ACCEPTED"
	}

	// Frame around the photo.
	dc.SetColor(frame)
	dc.SetLineWidth(border)
	dc.DrawRectangle(border/2, border/2, float64(w)-border, float64(h)-border)
	dc.Stroke()

	// Swatches, left to right in dominance order.
	x := 0.0
	for _, c := range report.Features.DominantColors {
		sw := float64(w) * c.Percentage / 100
		dc.SetRGB255(int(c.Color.R), int(c.Color.G), int(c.Color.B))
		dc.DrawRectangle(x, float64(h), sw, float64(strip))
		dc.Fill()
		x += sw
	}

	// Status label on a band of the verdict colour.
	tw, th := dc.MeasureString(label)
	dc.SetColor(frame)
	dc.DrawRectangle(border, border, tw+8, th+8)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(label, border+4, border+4, 0, 1)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, dc.Image(), imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return buf.Bytes(), nil
}

// previewSource returns the normalized pixels of the report, decoding the
// normalized JPEG when the pixels were not kept.
func previewSource(report *analyzer.Report) (image.Image, error) {
	if report == nil {
		return nil, fmt.Errorf("no report to render")
	}
	if report.Image != nil {
		return report.Image, nil
	}
	if len(report.Data) == 0 {
		return nil, fmt.Errorf("report has no image")
	}

	img, err := imaging.Decode(bytes.NewReader(report.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode normalized image: %w", err)
	}

	return img, nil
}
