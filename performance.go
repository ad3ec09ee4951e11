package numus

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Performance includes everything needed to run a show: the tempo, the
	// energy curve, the sections and the transitions between them, and the
	// tracks. Times in Energy and Fade are given in bars.
	Performance struct {
		Name        string `yaml:",omitempty"`
		BPM         int
		BeatsPerBar int `yaml:",omitempty"` // 0 means DefaultBeatsPerBar
		Bars        int `yaml:",omitempty"` // length; 0 means the sum of section lengths

		// Energy is resolved at time tick/BeatsPerBar and divided by
		// EnergyScale, so curves may be written in 0..100. Lissajous is used
		// instead when Energy is empty and Lissajous.Period > 0.
		Energy        []Segment  `yaml:",omitempty"`
		Lissajous     *Lissajous `yaml:",omitempty"`
		EnergyScale   float64    `yaml:",omitempty"`
		DefaultEnergy float64    `yaml:",omitempty"`

		Sections    []Section          `yaml:",omitempty"`
		Transitions []TransitionWindow `yaml:",omitempty"`
		Handoff     *Handoff           `yaml:",omitempty"`
		Fade        Fade               `yaml:",omitempty"`

		// Caps is the number of tracks allowed to play at once in each energy
		// Category; Spread is the modulus used to stagger tracks over bars.
		Caps   []int `yaml:",omitempty,flow"`
		Spread int   `yaml:",omitempty"`

		Tracks []Track
	}

	// Section is a named part of the show lasting Bars bars; tracks refer to
	// sections by name and transitions crossfade between them.
	Section struct {
		Name string
		Bars int
	}
)

const (
	DefaultBeatsPerBar = 4
	DefaultSpread      = 4
)

// DefaultCaps allow nothing in silence, one track at low energy and at most
// three at the peak.
var DefaultCaps = [NumCategories]int{0, 1, 2, 3, 3}

// ReadPerformance parses a performance from .json or .yml contents, trying
// JSON first.
func ReadPerformance(data []byte) (Performance, error) {
	var p Performance
	if errJSON := json.Unmarshal(data, &p); errJSON != nil {
		p = Performance{}
		if errYaml := yaml.Unmarshal(data, &p); errYaml != nil {
			return Performance{}, fmt.Errorf("the performance could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	return p, nil
}

// Marshal encodes the performance as YAML.
func (p *Performance) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Meter returns BeatsPerBar, defaulting to DefaultBeatsPerBar.
func (p *Performance) Meter() int {
	if p.BeatsPerBar <= 0 {
		return DefaultBeatsPerBar
	}
	return p.BeatsPerBar
}

// Scale returns EnergyScale, defaulting to 1.
func (p *Performance) Scale() float64 {
	if p.EnergyScale <= 0 {
		return 1
	}
	return p.EnergyScale
}

// SpreadModulus returns Spread, defaulting to DefaultSpread.
func (p *Performance) SpreadModulus() int {
	if p.Spread <= 0 {
		return DefaultSpread
	}
	return p.Spread
}

// CategoryCaps returns the concurrency caps, padded with DefaultCaps.
func (p *Performance) CategoryCaps() [NumCategories]int {
	ret := DefaultCaps
	copy(ret[:], p.Caps)
	return ret
}

// TransitionHandoff returns Handoff, defaulting to DefaultHandoff.
func (p *Performance) TransitionHandoff() Handoff {
	if p.Handoff == nil {
		return DefaultHandoff
	}
	return *p.Handoff
}

// TotalBars returns Bars, or the sum of the section lengths if Bars is 0, or
// the end of the energy curve, rounded up, if there are no sections either.
func (p *Performance) TotalBars() int {
	if p.Bars > 0 {
		return p.Bars
	}
	ret := 0
	for _, s := range p.Sections {
		ret += s.Bars
	}
	if ret == 0 && len(p.Energy) > 0 {
		if e, err := NewEnvelope(p.Energy...); err == nil {
			ret = int(math.Ceil(e.Duration()))
		}
	}
	return ret
}

// TotalTicks is TotalBars in ticks.
func (p *Performance) TotalTicks() int {
	return p.TotalBars() * p.Meter()
}

// BeatDuration is the wall-clock length of one tick.
func (p *Performance) BeatDuration() time.Duration {
	if p.BPM <= 0 {
		return 0
	}
	return time.Minute / time.Duration(p.BPM)
}

// SectionAt returns the section playing at bar. Bars past the end belong to
// the last section; ok is false only if there are no sections.
func (p *Performance) SectionAt(bar int) (s Section, ok bool) {
	if len(p.Sections) == 0 {
		return Section{}, false
	}
	acc := 0
	for _, s := range p.Sections {
		if bar < acc+s.Bars {
			return s, true
		}
		acc += s.Bars
	}
	return p.Sections[len(p.Sections)-1], true
}

// EnergySource builds the energy source of the performance: the segment
// envelope, or the Lissajous cycle if there are no segments.
func (p *Performance) EnergySource() (EnergySource, error) {
	if len(p.Energy) == 0 && p.Lissajous != nil && p.Lissajous.Period > 0 {
		return *p.Lissajous, nil
	}
	e, err := NewEnvelope(p.Energy...)
	if err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}
	e.Default = p.DefaultEnergy
	return e, nil
}

// Validate checks that the performance looks playable: positive BPM, at
// least one track, a well formed energy curve, transitions between known
// sections in chronological order and valid tracks. It is meant to be called
// before the show starts; nothing is validated at runtime.
func (p *Performance) Validate() error {
	if p.BPM < 1 {
		return errors.New("BPM should be > 0")
	}
	if len(p.Tracks) == 0 {
		return errors.New("performance contains no tracks")
	}
	if p.TotalBars() <= 0 {
		return errors.New("performance length is zero; set bars or sections")
	}
	if _, err := p.EnergySource(); err != nil {
		return err
	}
	if len(p.Energy) > 0 && p.Energy[0].Start != 0 {
		return fmt.Errorf("energy: first segment starts at %v instead of 0: %w", p.Energy[0].Start, ErrSegmentGap)
	}
	for _, c := range p.Caps {
		if c < 0 {
			return fmt.Errorf("negative cap %d", c)
		}
	}
	sections := map[string]bool{}
	for i, s := range p.Sections {
		if s.Name == "" || s.Bars <= 0 {
			return fmt.Errorf("section %d: needs a name and positive bars", i)
		}
		if sections[s.Name] {
			return fmt.Errorf("section %q defined twice", s.Name)
		}
		sections[s.Name] = true
	}
	prevEnd := 0
	for i, w := range p.Transitions {
		if w.DurationBars <= 0 {
			return fmt.Errorf("transition %d: durationbars should be > 0", i)
		}
		if w.StartBar < prevEnd {
			return fmt.Errorf("transition %d: starts at bar %d before the previous one ends at %d", i, w.StartBar, prevEnd)
		}
		prevEnd = w.EndBar()
		if len(sections) > 0 && (!sections[w.From] || !sections[w.To]) {
			return fmt.Errorf("transition %d: unknown section %q or %q", i, w.From, w.To)
		}
	}
	names := map[string]bool{}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if names[t.Name] {
			return fmt.Errorf("track %q defined twice", t.Name)
		}
		names[t.Name] = true
		if t.Section != "" && len(sections) > 0 && !sections[t.Section] {
			return fmt.Errorf("track %q: unknown section %q", t.Name, t.Section)
		}
	}
	return nil
}

// Copy makes a deep copy of a Performance.
func (p *Performance) Copy() Performance {
	ret := *p
	ret.Energy = append([]Segment(nil), p.Energy...)
	ret.Sections = append([]Section(nil), p.Sections...)
	ret.Transitions = append([]TransitionWindow(nil), p.Transitions...)
	ret.Caps = append([]int(nil), p.Caps...)
	if p.Lissajous != nil {
		l := *p.Lissajous
		ret.Lissajous = &l
	}
	if p.Handoff != nil {
		h := *p.Handoff
		ret.Handoff = &h
	}
	ret.Tracks = make([]Track, len(p.Tracks))
	for i := range p.Tracks {
		ret.Tracks[i] = p.Tracks[i].Copy()
	}
	return ret
}

// Resolved returns a copy with every default made explicit: the meter, the
// length, the energy scale, the spread, the caps, the handoff and, for each
// track, its source, subdivision, amplitude and gate. It plays exactly like
// the original.
func (p *Performance) Resolved() Performance {
	ret := p.Copy()
	ret.BeatsPerBar = p.Meter()
	ret.Bars = p.TotalBars()
	ret.EnergyScale = p.Scale()
	ret.Spread = p.SpreadModulus()
	caps := p.CategoryCaps()
	ret.Caps = caps[:]
	h := p.TransitionHandoff()
	ret.Handoff = &h
	for i := range ret.Tracks {
		t := &ret.Tracks[i]
		if !IsSource(t.Source) {
			t.Source = DefaultSource
		}
		t.Subdivision = t.StepsPerTick()
		t.Amp = t.Gain()
		if t.Gate <= 0 {
			t.Gate = 1
		}
	}
	return ret
}
