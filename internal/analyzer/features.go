package analyzer

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Color is an 8-bit RGB colour.
type Color struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// Hex returns the colour as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// DominantColor is a quantized colour and its share of all pixels, in percent.
type DominantColor struct {
	Color      Color   `json:"color" yaml:"color"`
	Hex        string  `json:"hex" yaml:"hex"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// FeatureVector holds the measurements the admission decision is based on.
type FeatureVector struct {
	Brightness        float64         `json:"brightness" yaml:"brightness"`
	Contrast          float64         `json:"contrast" yaml:"contrast"`
	GreenRatio        float64         `json:"green_ratio" yaml:"green_ratio"`
	BrownRatio        float64         `json:"brown_ratio" yaml:"brown_ratio"`
	TextureComplexity float64         `json:"texture_complexity" yaml:"texture_complexity"`
	EdgeStrength      float64         `json:"edge_strength" yaml:"edge_strength"`
	HasClearEdges     bool            `json:"has_clear_edges" yaml:"has_clear_edges"`
	DominantColors    []DominantColor `json:"dominant_colors" yaml:"dominant_colors"`
}

const (
	// quantShift drops the low-order bits of each channel when counting colours.
	quantShift = 4

	greenMargin = 1.1
	minFoliage  = 40
	maxFoliage  = 250
)

// ExtractFeatures computes the feature vector of an image.
// It is deterministic and has no side effects.
func (a *Analyzer) ExtractFeatures(img image.Image) FeatureVector {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return FeatureVector{}
	}

	// Buffers live only for this call.
	total := w * h
	values := make([]float64, 0, total*3)

	gray := make([]float64, total)
	counts := make(map[uint32]int)

	var green, brown int
	var edgeSum float64

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]

			values = append(values, float64(r), float64(g), float64(b))
			gray[y*w+x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)

			if isFoliage(r, g, b) {
				green++
			}
			if isBrown(r, g, b) {
				brown++
			}

			counts[quantize(r, g, b)]++

			if y > 0 {
				above := src.Pix[(y-1)*src.Stride+x*4+1]
				edgeSum += math.Abs(float64(g) - float64(above))
			}
		}
	}

	mean, std := stat.PopMeanStdDev(values, nil)

	var edge float64
	if h > 1 {
		edge = edgeSum / float64(w*(h-1))
	}

	return FeatureVector{
		Brightness:        round(mean, 2),
		Contrast:          round(std, 2),
		GreenRatio:        round(float64(green)/float64(total), 4),
		BrownRatio:        round(float64(brown)/float64(total), 4),
		TextureComplexity: round(textureComplexity(gray, w, h), 2),
		EdgeStrength:      round(edge, 2),
		HasClearEdges:     edge > a.cfg.Thresholds.MinEdgeStrength,
		DominantColors:    dominantColors(counts, total, a.cfg.DominantColors),
	}
}

// isFoliage matches pixels where green clearly dominates red and blue and
// stays within a plausible leaf intensity band.
func isFoliage(r, g, b uint8) bool {
	gf := float64(g)
	return gf > greenMargin*float64(r) &&
		gf > greenMargin*float64(b) &&
		g >= minFoliage && g <= maxFoliage
}

// isBrown matches the red > green > blue ordering of dead or diseased tissue.
func isBrown(r, g, b uint8) bool {
	return r > g && g > b &&
		r >= 60 && r <= 200 &&
		g >= 30 && g <= 150 &&
		b <= 100
}

// textureComplexity is the mean absolute finite difference of the grayscale
// image, averaged over the horizontal and vertical axes.
func textureComplexity(gray []float64, w, h int) float64 {
	var dx, dy float64
	var nx, ny int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := gray[y*w+x]
			if x+1 < w {
				dx += math.Abs(gray[y*w+x+1] - v)
				nx++
			}
			if y+1 < h {
				dy += math.Abs(gray[(y+1)*w+x] - v)
				ny++
			}
		}
	}

	var sum float64
	var axes int
	if nx > 0 {
		sum += dx / float64(nx)
		axes++
	}
	if ny > 0 {
		sum += dy / float64(ny)
		axes++
	}
	if axes == 0 {
		return 0
	}

	return sum / float64(axes)
}

func quantize(r, g, b uint8) uint32 {
	return uint32(r>>quantShift)<<16 | uint32(g>>quantShift)<<8 | uint32(b>>quantShift)
}

// bucketColor returns the centre colour of a quantization bucket.
func bucketColor(key uint32) Color {
	centre := func(v uint32) uint8 {
		return uint8(v<<quantShift | 1<<(quantShift-1))
	}
	return Color{
		R: centre(key >> 16 & 0xff),
		G: centre(key >> 8 & 0xff),
		B: centre(key & 0xff),
	}
}

// dominantColors returns the n most frequent buckets, largest share first.
// Percentages are truncated, so they never add up to more than 100.
func dominantColors(counts map[uint32]int, total, n int) []DominantColor {
	type bucket struct {
		key   uint32
		count int
	}

	buckets := make([]bucket, 0, len(counts))
	for k, c := range counts {
		buckets = append(buckets, bucket{key: k, count: c})
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return buckets[i].key < buckets[j].key
	})

	if len(buckets) > n {
		buckets = buckets[:n]
	}

	colors := make([]DominantColor, 0, len(buckets))
	for _, b := range buckets {
		c := bucketColor(b.key)
		pct := float64(b.count) / float64(total) * 100
		colors = append(colors, DominantColor{
			Color:      c,
			Hex:        c.Hex(),
			Percentage: math.Floor(pct*1e4) / 1e4,
		})
	}

	return colors
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
