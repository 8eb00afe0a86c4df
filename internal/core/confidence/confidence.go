// Package confidence contains the pure confidence scoring and freshness rules
// for assembled context. No I/O; callers pass the current time explicitly.
package confidence

import (
	"math"

	"github.com/example/apm/internal/errs"
)

// Band classifies how trustworthy an assembled context is.
type Band string

const (
	BandGreen  Band = "green"
	BandYellow Band = "yellow"
	BandRed    Band = "red"
)

// Factor weights. They sum to 1.0 so the composite stays in [0,1].
const (
	WeightSixWCompleteness     = 0.35
	WeightPluginFactsQuality   = 0.25
	WeightAmalgamationCoverage = 0.25
	WeightFreshness            = 0.15
)

// Factors are the four sub-scores feeding the composite score.
type Factors struct {
	SixWCompleteness     float64 `json:"six_w_completeness"`
	PluginFactsQuality   float64 `json:"plugin_facts_quality"`
	AmalgamationCoverage float64 `json:"amalgamation_coverage"`
	FreshnessFactor      float64 `json:"freshness_factor"`
}

// Payload is the scored result attached to every assembled context.
type Payload struct {
	Score   float64 `json:"score"`
	Band    Band    `json:"band"`
	Factors Factors `json:"factors"`
}

// Score computes the weighted composite. Out-of-range factors are rejected,
// never clamped; only the composite is clamped. The composite is rounded to
// four decimals so band boundaries classify exactly.
func Score(f Factors) (Payload, error) {
	checks := []struct {
		name  string
		value float64
	}{
		{"six_w_completeness", f.SixWCompleteness},
		{"plugin_facts_quality", f.PluginFactsQuality},
		{"amalgamation_coverage", f.AmalgamationCoverage},
		{"freshness_factor", f.FreshnessFactor},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || c.value < 0 || c.value > 1 {
			return Payload{}, errs.Invalid(c.name, "%v is outside [0,1]", c.value)
		}
	}

	raw := WeightSixWCompleteness*f.SixWCompleteness +
		WeightPluginFactsQuality*f.PluginFactsQuality +
		WeightAmalgamationCoverage*f.AmalgamationCoverage +
		WeightFreshness*f.FreshnessFactor

	score := clamp01(math.Round(raw*10000) / 10000)
	return Payload{Score: score, Band: BandFor(score), Factors: f}, nil
}

// BandFor maps a score to its band: green above 0.8, yellow from 0.5 to 0.8
// inclusive, red below 0.5.
func BandFor(score float64) Band {
	switch {
	case score > 0.8:
		return BandGreen
	case score >= 0.5:
		return BandYellow
	default:
		return BandRed
	}
}

// Ratio returns num/den clamped to [0,1], or 0 when den is zero.
func Ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return clamp01(float64(num) / float64(den))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
