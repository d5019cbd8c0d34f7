package risk

import "motorisk/internal/feature"

// Level is the three-band classification of a risk score.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

const (
	mediumThreshold = 0.3
	highThreshold   = 0.7
)

// Classify maps a score to its band: [0, 0.3) Low, [0.3, 0.7) Medium, [0.7, 1] High.
// NaN is classified as High.
func Classify(score float64) Level {
	switch {
	case score < mediumThreshold:
		return LevelLow
	case score < highThreshold:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Assessment is the result of scoring one listing.
// ClaimedPrice and Residual are both nil when no claim was supplied.
type Assessment struct {
	PredictedPrice float64  `json:"predicted_price"`
	ClaimedPrice   *float64 `json:"claimed_price"`
	Residual       *float64 `json:"residual"`
	RiskScore      float64  `json:"risk_score"`
	RiskLevel      Level    `json:"risk_level"`
}

// HasClaim reports whether the assessment compared against a claimed price.
func (a Assessment) HasClaim() bool {
	return a.ClaimedPrice != nil
}

// RuleHit is the contribution of one listing rule that matched.
type RuleHit struct {
	Rule  string  `json:"rule"`
	AddOn float64 `json:"add_on"`
}

// Breakdown shows how the final score was put together, before clamping.
type Breakdown struct {
	// Base is the residual component, or the fixed no-claim default.
	Base    float64   `json:"base"`
	Age     float64   `json:"age"`
	Mileage float64   `json:"mileage"`
	Rules   []RuleHit `json:"rules,omitempty"`
}

// Report is an Assessment together with what the scorer observed on the way.
type Report struct {
	Assessment  Assessment     `json:"assessment"`
	DataQuality feature.Report `json:"data_quality"`
	Breakdown   Breakdown      `json:"breakdown"`
}
