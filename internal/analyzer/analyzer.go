// Package analyzer decides whether an uploaded photo is an analyzable plant
// photo before it is forwarded to the diagnosis model.
//
// A photo goes through a linear pipeline: Normalize (decode, orient, convert,
// resize, enhance, re-encode), ExtractFeatures (pixel statistics) and
// Validate (rule-based verdict). An Analyzer keeps no state between calls and
// is safe for concurrent use.
package analyzer

import "image"

// Analyzer runs the admission pipeline with a fixed configuration.
type Analyzer struct {
	cfg     Config
	formats map[string]struct{}
}

// New creates an Analyzer. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Analyzer {
	cfg = cfg.withDefaults()

	formats := make(map[string]struct{}, len(cfg.AllowedFormats))
	for _, f := range cfg.AllowedFormats {
		formats[f] = struct{}{}
	}

	return &Analyzer{cfg: cfg, formats: formats}
}

// Config returns a copy of the analyzer configuration.
func (a *Analyzer) Config() Config {
	cfg := a.cfg
	cfg.AllowedFormats = append([]string(nil), a.cfg.AllowedFormats...)
	return cfg
}

// Report is the outcome of analyzing one photo.
type Report struct {
	Meta     Metadata      `json:"metadata" yaml:"metadata"`
	Features FeatureVector `json:"features" yaml:"features"`
	Verdict  Verdict       `json:"verdict" yaml:"verdict"`

	Data  []byte       `json:"-" yaml:"-"` // normalized JPEG
	Image *image.NRGBA `json:"-" yaml:"-"` // normalized pixels
}

// Analyze normalizes a photo and decides whether it is admitted.
//
// Decode-time failures are returned as errors (see ErrDecode,
// ErrUnsupportedFormat, ErrImageTooSmall) and no report is produced.
// Everything after decoding always yields a report: a fault during feature
// extraction becomes a rejected verdict with ReasonUnanalyzable.
func (a *Analyzer) Analyze(data []byte) (*Report, error) {
	n, err := a.Normalize(data)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Meta:  n.Meta,
		Data:  n.Data,
		Image: n.Image,
	}
	report.Features, report.Verdict = a.assess(n.Image)

	return report, nil
}

func (a *Analyzer) assess(img image.Image) (f FeatureVector, v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			f, v = FeatureVector{}, failedVerdict()
		}
	}()

	f = a.ExtractFeatures(img)
	v = a.Validate(f)

	return f, v
}
