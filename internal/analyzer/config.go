package analyzer

// Format names as reported by image.DecodeConfig.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWEBP = "webp"
)

// Enhancement holds the multiplicative factors applied to a photo during
// normalization. A factor of 1.0 leaves the property unchanged.
type Enhancement struct {
	Contrast   float64 `mapstructure:"contrast"`
	Saturation float64 `mapstructure:"saturation"`
	Sharpness  float64 `mapstructure:"sharpness"`
}

// Thresholds drives the admission decision.
// Min/Max values reject a photo, the rest only raise advisory issues.
type Thresholds struct {
	MinGreenRatio float64 `mapstructure:"min_green_ratio"`
	MinBrightness float64 `mapstructure:"min_brightness"`
	MaxBrightness float64 `mapstructure:"max_brightness"`

	MaxBrownRatio    float64 `mapstructure:"max_brown_ratio"`
	MinContrast      float64 `mapstructure:"min_contrast"`
	DimBrightness    float64 `mapstructure:"dim_brightness"`
	BrightBrightness float64 `mapstructure:"bright_brightness"`
	MinEdgeStrength  float64 `mapstructure:"min_edge_strength"`
}

// Config is the immutable configuration of an Analyzer.
// It is copied by New, so later changes to the caller's value have no effect.
type Config struct {
	MinDimension   int         `mapstructure:"min_dimension"`   // smallest accepted width/height, px
	MaxDimension   int         `mapstructure:"max_dimension"`   // larger photos are downsized to fit
	MaxPixels      int64       `mapstructure:"max_pixels"`      // declared width*height above this is refused before decoding
	AllowedFormats []string    `mapstructure:"allowed_formats"` // e.g. jpeg, png, webp
	JPEGQuality    int         `mapstructure:"jpeg_quality"`    // quality of the re-encoded output
	DominantColors int         `mapstructure:"dominant_colors"` // number of colours reported
	Enhancement    Enhancement `mapstructure:"enhancement"`
	Thresholds     Thresholds  `mapstructure:"thresholds"`
}

// DefaultConfig returns the configuration used by the photo gate in production.
func DefaultConfig() Config {
	return Config{
		MinDimension:   100,
		MaxDimension:   1024,
		MaxPixels:      89_478_485,
		AllowedFormats: []string{FormatJPEG, FormatPNG, FormatWEBP},
		JPEGQuality:    85,
		DominantColors: 5,
		Enhancement: Enhancement{
			Contrast:   1.1,
			Saturation: 1.1,
			Sharpness:  1.1,
		},
		Thresholds: Thresholds{
			MinGreenRatio:    0.05,
			MinBrightness:    30,
			MaxBrightness:    250,
			MaxBrownRatio:    0.3,
			MinContrast:      20,
			DimBrightness:    50,
			BrightBrightness: 220,
			MinEdgeStrength:  20,
		},
	}
}

// withDefaults fills zero values with the defaults so a partially filled
// Config (e.g. from a config file) stays usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.MinDimension <= 0 {
		c.MinDimension = d.MinDimension
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = d.MaxDimension
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = d.MaxPixels
	}
	if len(c.AllowedFormats) == 0 {
		c.AllowedFormats = d.AllowedFormats
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = d.JPEGQuality
	}
	if c.DominantColors <= 0 {
		c.DominantColors = d.DominantColors
	}
	if c.Enhancement == (Enhancement{}) {
		c.Enhancement = d.Enhancement
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = d.Thresholds
	}

	formats := make([]string, len(c.AllowedFormats))
	copy(formats, c.AllowedFormats)
	c.AllowedFormats = formats

	return c
}
