package analyzer

// Rejection reasons.
const (
	ReasonNoPlant      = "does not appear to contain a plant"
	ReasonTooDark      = "image too dark"
	ReasonOverexposed  = "image overexposed"
	ReasonUnanalyzable = "could not analyze image"
)

// Advisory issues; they never reject a photo.
const (
	IssueBrownAreas   = "significant brown or yellow areas"
	IssueLowContrast  = "low contrast"
	IssueRatherDark   = "image is rather dark"
	IssueRatherBright = "image is rather bright"
	IssueBlurry       = "image may be blurry"
)

// Verdict is the admission decision for one photo.
//
// Every rejecting rule that fires adds its reason, in rule order, so the
// user learns about all problems at once instead of one per upload.
type Verdict struct {
	Accepted bool     `json:"accepted" yaml:"accepted"`
	Reasons  []string `json:"reasons" yaml:"reasons"`
	Issues   []string `json:"issues" yaml:"issues"`
}

// Validate applies the admission rules to a feature vector.
func (a *Analyzer) Validate(f FeatureVector) Verdict {
	t := a.cfg.Thresholds
	v := Verdict{Reasons: []string{}, Issues: []string{}}

	if f.GreenRatio < t.MinGreenRatio {
		v.Reasons = append(v.Reasons, ReasonNoPlant)
	}
	if f.Brightness < t.MinBrightness {
		v.Reasons = append(v.Reasons, ReasonTooDark)
	}
	if f.Brightness > t.MaxBrightness {
		v.Reasons = append(v.Reasons, ReasonOverexposed)
	}

	if f.BrownRatio > t.MaxBrownRatio {
		v.Issues = append(v.Issues, IssueBrownAreas)
	}
	if f.Contrast < t.MinContrast {
		v.Issues = append(v.Issues, IssueLowContrast)
	}
	// The dim/bright bands only matter when the hard limits did not fire.
	if f.Brightness >= t.MinBrightness && f.Brightness < t.DimBrightness {
		v.Issues = append(v.Issues, IssueRatherDark)
	}
	if f.Brightness <= t.MaxBrightness && f.Brightness > t.BrightBrightness {
		v.Issues = append(v.Issues, IssueRatherBright)
	}
	if !f.HasClearEdges {
		v.Issues = append(v.Issues, IssueBlurry)
	}

	v.Accepted = len(v.Reasons) == 0

	return v
}

// failedVerdict is the neutral answer when a photo could not be analyzed.
func failedVerdict() Verdict {
	return Verdict{
		Accepted: false,
		Reasons:  []string{ReasonUnanalyzable},
		Issues:   []string{},
	}
}
