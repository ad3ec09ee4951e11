package numus

import (
	"errors"
	"fmt"
)

// Track is the configuration of one independent part of the performance: a
// drummer, the bass, a pad. Threshold is the normalized energy the track
// needs to exceed to play; a track without a threshold never plays. The
// rhythm comes either from a named pattern, from a literal Steps string
// ("x..x..x.") or from the Euclidean parameters Length/Pulses/Rotation.
type Track struct {
	Name      string
	Section   string   `yaml:",omitempty"`
	Threshold *float64 `yaml:",omitempty"`
	Source    string   `yaml:",omitempty"` // digit source name, see Digits

	Pattern  string `yaml:",omitempty"`
	Steps    string `yaml:",omitempty"`
	Length   int    `yaml:",omitempty"`
	Pulses   int    `yaml:",omitempty"`
	Rotation int    `yaml:",omitempty"`

	// Subdivision is the number of pattern steps per tick (beat); 0 means 1.
	Subdivision int `yaml:",omitempty"`

	Channel uint8   `yaml:",omitempty"`
	Note    uint8   `yaml:",omitempty"`
	Amp     float64 `yaml:",omitempty"` // 0 means 1
	Gate    float64 `yaml:",omitempty"` // note length in steps; 0 means 1
}

// Rhythm resolves the track's pattern. Named patterns take precedence over a
// literal step string, which takes precedence over Euclidean parameters.
func (t *Track) Rhythm() (Pattern, error) {
	switch {
	case t.Pattern != "":
		p, ok := LookupPattern(t.Pattern)
		if !ok {
			return nil, fmt.Errorf("track %q: unknown pattern %q", t.Name, t.Pattern)
		}
		return p, nil
	case t.Steps != "":
		return ParsePattern(t.Steps), nil
	case t.Length > 0:
		return Euclid(t.Length, t.Pulses, t.Rotation), nil
	}
	return nil, fmt.Errorf("track %q: no pattern, steps or length given", t.Name)
}

// StepsPerTick returns Subdivision, defaulting to 1.
func (t *Track) StepsPerTick() int {
	if t.Subdivision <= 0 {
		return 1
	}
	return t.Subdivision
}

// Gain returns Amp, defaulting to 1.
func (t *Track) Gain() float64 {
	if t.Amp == 0 {
		return 1
	}
	return t.Amp
}

// Validate checks the track can be played.
func (t *Track) Validate() error {
	if t.Name == "" {
		return errors.New("track has no name")
	}
	if t.Threshold != nil && (*t.Threshold < 0 || *t.Threshold > 1) {
		return fmt.Errorf("track %q: threshold %v outside [0,1]", t.Name, *t.Threshold)
	}
	if t.Source != "" && !IsSource(t.Source) {
		return fmt.Errorf("track %q: unknown digit source %q", t.Name, t.Source)
	}
	if t.Channel > 15 {
		return fmt.Errorf("track %q: channel %d > 15", t.Name, t.Channel)
	}
	if t.Note > 127 {
		return fmt.Errorf("track %q: note %d > 127", t.Name, t.Note)
	}
	if _, err := t.Rhythm(); err != nil {
		return err
	}
	return nil
}

// Copy makes a deep copy of a Track.
func (t *Track) Copy() Track {
	ret := *t
	if t.Threshold != nil {
		th := *t.Threshold
		ret.Threshold = &th
	}
	return ret
}

// Float is a helper for optional fields like Track.Threshold.
func Float(v float64) *float64 {
	return &v
}
