package conductor

import (
	"github.com/tsb/numus"
)

// Sequence chains the transition windows of a performance. Each window gets
// its own controller; the sequence hands over to the next one when the
// previous has become inert.
type Sequence struct {
	perf        *numus.Performance
	handoff     numus.Handoff
	controllers []numus.TransitionController
}

// NewSequence builds the sequence. Windows are expected in chronological,
// non-overlapping order, as checked by Performance.Validate.
func NewSequence(p *numus.Performance) *Sequence {
	h := p.TransitionHandoff()
	ret := &Sequence{perf: p, handoff: h}
	for _, w := range p.Transitions {
		ret.controllers = append(ret.controllers, numus.TransitionController{Window: w, Handoff: h})
	}
	return ret
}

// At returns the running transition at bar, with its crossfade. ok is false
// between transitions, where the crossfade is the neutral one.
func (s *Sequence) At(bar int) (w numus.TransitionWindow, xf numus.Crossfade, ok bool) {
	for _, c := range s.controllers {
		if !c.Window.Active(bar) {
			continue
		}
		if xf, ok := c.Tick(bar); ok {
			return c.Window, xf, true
		}
	}
	return numus.TransitionWindow{}, s.handoff.Neutral(), false
}

// Section returns the current section at bar. It is the section of the
// performance layout, unless a transition that ended inside that section has
// already handed over to its target.
func (s *Sequence) Section(bar int) string {
	var name string
	start := 0
	if sec, ok := s.perf.SectionAt(bar); ok {
		name = sec.Name
		start = s.sectionStart(bar)
	} else if len(s.controllers) > 0 {
		name = s.controllers[0].Window.From
	}
	for _, c := range s.controllers {
		if c.Window.Done(bar) && c.Window.EndBar() > start {
			name = c.Window.To
		}
	}
	return name
}

func (s *Sequence) sectionStart(bar int) int {
	acc := 0
	for i, sec := range s.perf.Sections {
		if bar < acc+sec.Bars || i == len(s.perf.Sections)-1 {
			return acc
		}
		acc += sec.Bars
	}
	return acc
}
