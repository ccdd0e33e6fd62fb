package archive

// BodyConfidence holds per-region pose confidence scores in [0,100].
type BodyConfidence struct {
	Head  float64 `json:"head"`
	Torso float64 `json:"torso"`
	Arms  float64 `json:"arms"`
	Legs  float64 `json:"legs"`
}

func (c BodyConfidence) InRange() bool {
	for _, v := range []float64{c.Head, c.Torso, c.Arms, c.Legs} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

func (c BodyConfidence) Mean() float64 {
	return (c.Head + c.Torso + c.Arms + c.Legs) / 4
}

// UncertaintyLevelFor grades the mean confidence: >= 80 low, >= 50 moderate,
// otherwise high.
func UncertaintyLevelFor(c BodyConfidence) UncertaintyLevel {
	return band(c.Mean())
}

// UncertaintyLevel grades the recorded confidence. ok is false when no
// confidence was ever supplied.
func (s *Session) UncertaintyLevel() (level UncertaintyLevel, ok bool) {
	if !s.Uncertainty.ConfidenceSet {
		return "", false
	}
	return UncertaintyLevelFor(s.Uncertainty.Confidence.Data()), true
}

// RegionBand grades one region's score with the same thresholds.
func RegionBand(score float64) UncertaintyLevel {
	return band(score)
}

func band(score float64) UncertaintyLevel {
	switch {
	case score >= 80:
		return UncertaintyLow
	case score >= 50:
		return UncertaintyModerate
	default:
		return UncertaintyHigh
	}
}
