package conductor

import (
	"math"

	"github.com/tsb/numus"
	"github.com/tsb/numus/clock"
)

// routine runs one track. It owns its pattern, its digit cursor and its
// outbox; the conductor reads the outbox only after the tick barrier.
type routine struct {
	index   int
	track   numus.Track
	pattern numus.Pattern
	source  *numus.DigitSource
	sub     *clock.Subscription
	out     []numus.Trigger
	bars    int // bars played so far
}

func newRoutine(index int, t numus.Track) (*routine, error) {
	p, err := t.Rhythm()
	if err != nil {
		return nil, err
	}
	return &routine{index: index, track: t, pattern: p, source: numus.NewDigitSource(t.Source)}, nil
}

// run handles ticks until the subscription is closed.
func (r *routine) run(snapshot func() *Snapshot) {
	for ev := range r.sub.C {
		r.step(ev, snapshot())
		r.sub.Done()
	}
}

// step fills the outbox with the triggers of the tick. Every phrase shifts
// the digit cursor by the phrase number, whether or not the track plays.
func (r *routine) step(ev clock.Event, s *Snapshot) {
	r.out = r.out[:0]
	if ev.Phrase {
		r.source.Offset(ev.Bar / 4)
	}
	if s == nil || !s.IsActive(r.index) {
		return
	}
	gain, audible := s.SectionGain(r.track.Section)
	if !audible || gain <= 0 || s.MasterGain <= 0 {
		return
	}
	if ev.Downbeat {
		r.bars++
	}
	highPass, cutoff := 0.0, s.Params.Cutoff
	if s.InTransition {
		switch r.track.Section {
		case s.Transition.From:
			highPass = s.Crossfade.FilterFrom
		case s.Transition.To:
			cutoff = math.Min(cutoff, s.Crossfade.FilterTo)
		}
	}
	spt := r.track.StepsPerTick()
	gate := r.track.Gate
	if gate <= 0 {
		gate = 1
	}
	name := r.source.Name()
	for i := 0; i < spt; i++ {
		step := ev.Tick*spt + i
		if !r.pattern.At(step) {
			continue
		}
		if numus.Draw(name, step, 0, 1) > s.Params.Density {
			continue
		}
		accent := numus.PhaseDraw(name, step, 0.85, 1)
		r.out = append(r.out, numus.Trigger{
			Track:    r.track.Name,
			Tick:     ev.Tick,
			Bar:      ev.Bar,
			Step:     step,
			Offset:   float64(i) / float64(spt),
			Channel:  r.track.Channel,
			Note:     r.track.Note,
			Gate:     gate / float64(spt),
			Amp:      r.track.Gain() * s.Params.Velocity * accent * gain * s.MasterGain,
			Cutoff:   cutoff,
			HighPass: highPass,
			Pan:      r.source.Next(-0.8, 0.8),
		})
	}
}
