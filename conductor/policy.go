package conductor

import (
	"github.com/tsb/numus"
)

// Policy decides, once per bar, which tracks play. A track is a candidate
// when the energy exceeds its threshold and its digit draw for the bar
// matches its slot: Digit(source, bar*n+track) mod Spread == track mod
// Spread, where n is the number of tracks. The draw staggers tracks so they
// do not all enter on the same bar at high energy. At most Caps[category]
// candidates play; lower track indices rank higher.
type Policy struct {
	Thresholds []*float64 // nil means the track never plays
	Sources    []string
	Caps       [numus.NumCategories]int
	Spread     int
}

// NewPolicy builds the policy for the tracks of a performance.
func NewPolicy(p *numus.Performance) *Policy {
	ret := &Policy{
		Thresholds: make([]*float64, len(p.Tracks)),
		Sources:    make([]string, len(p.Tracks)),
		Caps:       p.CategoryCaps(),
		Spread:     p.SpreadModulus(),
	}
	for i, t := range p.Tracks {
		ret.Thresholds[i] = t.Threshold
		ret.Sources[i] = t.Source
	}
	return ret
}

// PassesThreshold reports whether energy exceeds the threshold of the track.
// Unknown tracks and tracks without a threshold never pass.
func (p *Policy) PassesThreshold(track int, energy float64) bool {
	if track < 0 || track >= len(p.Thresholds) || p.Thresholds[track] == nil {
		return false
	}
	return energy > *p.Thresholds[track]
}

// Slot reports whether the digit draw lets the track play in bar.
func (p *Policy) Slot(track, bar int) bool {
	if p.Spread <= 1 {
		return true
	}
	var source string
	if track >= 0 && track < len(p.Sources) {
		source = p.Sources[track]
	}
	d := numus.Digit(source, bar*len(p.Thresholds)+track)
	return d%p.Spread == track%p.Spread
}

// ShouldActivate combines PassesThreshold and Slot for one track, ignoring
// the concurrency cap.
func (p *Policy) ShouldActivate(track int, energy float64, bar int) bool {
	return p.PassesThreshold(track, energy) && p.Slot(track, bar)
}

// Cap returns how many tracks may play at once at the energy.
func (p *Policy) Cap(energy float64) int {
	return p.Caps[numus.CategoryOf(energy)]
}

// Decide returns, for every track, whether it plays in bar. Candidates beyond
// the cap are rejected, highest track index first.
func (p *Policy) Decide(energy float64, bar int) []bool {
	ret := make([]bool, len(p.Thresholds))
	left := p.Cap(energy)
	for i := range ret {
		if left <= 0 {
			break
		}
		if p.ShouldActivate(i, energy, bar) {
			ret[i] = true
			left--
		}
	}
	return ret
}
