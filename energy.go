package numus

import (
	"github.com/viterin/vek"
)

type (
	// Range is a closed interval that normalized values are mapped into.
	Range struct {
		Min float64
		Max float64
	}

	// Params are the continuous control parameters derived from energy.
	Params struct {
		Density       float64 // probability that a pattern hit actually sounds
		Velocity      float64 // amplitude scale
		Cutoff        float64 // low-pass cutoff, Hz
		DelayFeedback float64
		ReverbSize    float64
		HatOpen       float64 // ratio of open to closed hats
		Ghost         float64 // ratio of ghost notes
	}

	// EnergyMap maps a normalized energy to Params, one Range per parameter.
	EnergyMap struct {
		Density       Range
		Velocity      Range
		Cutoff        Range
		DelayFeedback Range
		ReverbSize    Range
		HatOpen       Range
		Ghost         Range
	}

	// Category is the energy bracket used to cap how many tracks may play at
	// once.
	Category int
)

const (
	Silence Category = iota
	Intro
	Development
	Peak
	Climax
	NumCategories
)

var categoryNames = [NumCategories]string{"silence", "intro", "development", "peak", "climax"}

// DefaultEnergyMap holds the ranges used by the DJ show programs.
var DefaultEnergyMap = EnergyMap{
	Density:       Range{0.3, 1.0},
	Velocity:      Range{0.5, 1.0},
	Cutoff:        Range{600, 3200},
	DelayFeedback: Range{0.15, 0.45},
	ReverbSize:    Range{0.4, 0.75},
	HatOpen:       Range{0.2, 0.6},
	Ghost:         Range{0.1, 0.35},
}

// Map linearly maps x in [0,1] into the range. x is clamped.
func (r Range) Map(x float64) float64 {
	return r.Min + clamp01(x)*(r.Max-r.Min)
}

// Params evaluates every range at once for the energy, which is clamped to
// [0,1].
func (m EnergyMap) Params(energy float64) Params {
	lo := []float64{m.Density.Min, m.Velocity.Min, m.Cutoff.Min, m.DelayFeedback.Min, m.ReverbSize.Min, m.HatOpen.Min, m.Ghost.Min}
	hi := []float64{m.Density.Max, m.Velocity.Max, m.Cutoff.Max, m.DelayFeedback.Max, m.ReverbSize.Max, m.HatOpen.Max, m.Ghost.Max}
	span := vek.Sub(hi, lo)
	vek.MulNumber_Inplace(span, clamp01(energy))
	vek.Add_Inplace(span, lo)
	v := span
	return Params{
		Density:       v[0],
		Velocity:      v[1],
		Cutoff:        v[2],
		DelayFeedback: v[3],
		ReverbSize:    v[4],
		HatOpen:       v[5],
		Ghost:         v[6],
	}
}

// CategoryOf brackets a normalized energy: below 0.1 is Silence, below 0.3
// Intro, below 0.6 Development, below 0.9 Peak and the rest Climax.
func CategoryOf(energy float64) Category {
	switch {
	case energy < 0.1:
		return Silence
	case energy < 0.3:
		return Intro
	case energy < 0.6:
		return Development
	case energy < 0.9:
		return Peak
	default:
		return Climax
	}
}

func (c Category) String() string {
	if c < 0 || c >= NumCategories {
		return "unknown"
	}
	return categoryNames[c]
}
