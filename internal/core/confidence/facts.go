package confidence

import "math"

// TechnologyFact is a detected-technology fact supplied by the plugin collaborator.
type TechnologyFact struct {
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// fullCoverageTechnologies is the number of detected technologies treated as
// complete coverage of a project's stack.
const fullCoverageTechnologies = 3

// PluginFactsQuality scores coverage and depth of the supplied facts:
// min(n,3)/3 multiplied by the mean fact confidence. Fact confidences are
// clamped into [0,1] since they come from an external collaborator.
func PluginFactsQuality(facts map[string]TechnologyFact) float64 {
	if len(facts) == 0 {
		return 0
	}

	var sum float64
	for _, f := range facts {
		c := f.Confidence
		if math.IsNaN(c) {
			c = 0
		}
		sum += clamp01(c)
	}
	mean := sum / float64(len(facts))

	n := len(facts)
	if n > fullCoverageTechnologies {
		n = fullCoverageTechnologies
	}
	coverage := float64(n) / fullCoverageTechnologies

	return clamp01(math.Round(coverage*mean*10000) / 10000)
}
