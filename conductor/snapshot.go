package conductor

import (
	"github.com/tsb/numus"
	"github.com/tsb/numus/clock"
)

// Snapshot is the shared state of one tick. The conductor writes a new
// snapshot before every broadcast and never modifies it afterwards, so track
// routines may read it without locking.
type Snapshot struct {
	clock.Event

	RawEnergy  float64 // as resolved from the energy curve
	Energy     float64 // normalized to [0,1]
	Category   numus.Category
	Params     numus.Params
	MasterGain float64
	Section    string

	// Active is decided on the downbeat and shared by every tick of the bar.
	Active []bool

	InTransition bool
	Transition   numus.TransitionWindow
	Crossfade    numus.Crossfade
}

// Automation converts the snapshot to an automation frame.
func (s *Snapshot) Automation() numus.Automation {
	ret := numus.Automation{
		Tick:       s.Tick,
		Bar:        s.Bar,
		Energy:     s.Energy,
		MasterGain: s.MasterGain,
		Section:    s.Section,
		Crossfade:  s.Crossfade,
	}
	if s.InTransition {
		ret.Transition = true
		ret.From = s.Transition.From
		ret.To = s.Transition.To
	}
	return ret
}

// NumActive counts the tracks playing in the bar.
func (s *Snapshot) NumActive() int {
	ret := 0
	for _, a := range s.Active {
		if a {
			ret++
		}
	}
	return ret
}

// IsActive reports whether track plays in the bar.
func (s *Snapshot) IsActive(track int) bool {
	return track >= 0 && track < len(s.Active) && s.Active[track]
}

// SectionGain returns the crossfade gain for a track of the given section and
// whether the section is audible at all: tracks without a section always
// are, other tracks only while their section is current or part of the
// running transition.
func (s *Snapshot) SectionGain(section string) (gain float64, audible bool) {
	if section == "" {
		return 1, true
	}
	if s.InTransition {
		if section == s.Transition.From || section == s.Transition.To {
			return s.Transition.GainFor(section, s.Crossfade), true
		}
	}
	return 1, section == s.Section
}
