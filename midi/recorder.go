// Package midi connects a performance to MIDI: Recorder writes the triggers
// and the automation into a Standard MIDI File, Output plays them on a live
// MIDI port.
package midi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/tsb/numus"
)

// TicksPerBeat is the resolution of the recorded files.
const TicksPerBeat = 960

// Controllers used for the automation track and for per-note parameters.
const (
	CCPan        = 10
	CCCutoff     = 74
	CCEnergy     = 20
	CCMasterGain = 21
	CCGainFrom   = 22
	CCGainTo     = 23
)

// AutomationChannel is the MIDI channel of the automation track.
const AutomationChannel = 15

var (
	ErrClosed = errors.New("midi: already closed")
	ErrNoPort = errors.New("midi: no such output port")
)

type (
	// Recorder collects triggers and automation frames and writes them as a
	// format 1 Standard MIDI File: a tempo track, one track per performance
	// track in order of first appearance and an automation track.
	Recorder struct {
		bpm         float64
		beatsPerBar uint8

		mu         sync.Mutex
		tracks     map[string]*eventList
		order      []string
		automation eventList
		lastCC     [128]int
		written    bool
	}

	eventList struct {
		events []timedMsg
	}

	timedMsg struct {
		tick uint32
		seq  int // insertion order, keeps ties stable
		msg  gomidi.Message
	}
)

// NewRecorder returns a recorder for a performance played at bpm.
func NewRecorder(bpm float64, beatsPerBar int) *Recorder {
	r := &Recorder{bpm: bpm, beatsPerBar: uint8(beatsPerBar), tracks: map[string]*eventList{}}
	if r.beatsPerBar == 0 {
		r.beatsPerBar = numus.DefaultBeatsPerBar
	}
	for i := range r.lastCC {
		r.lastCC[i] = -1
	}
	return r
}

// Trigger records the note, preceded by its pan and cutoff controllers.
func (r *Recorder) Trigger(t numus.Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written {
		return ErrClosed
	}
	l, ok := r.tracks[t.Track]
	if !ok {
		l = &eventList{}
		r.tracks[t.Track] = l
		r.order = append(r.order, t.Track)
	}
	start := beatsToTicks(float64(t.Tick) + t.Offset)
	length := beatsToTicks(t.Gate)
	if length == 0 {
		length = 1
	}
	ch := t.Channel & 0x0f
	l.add(start, gomidi.ControlChange(ch, CCPan, unitToCC((t.Pan+1)/2)))
	l.add(start, gomidi.ControlChange(ch, CCCutoff, unitToCC(t.Cutoff/numus.OpenLowPass)))
	l.add(start, gomidi.NoteOn(ch, t.Note&0x7f, Velocity(t.Amp)))
	l.add(start+length, gomidi.NoteOff(ch, t.Note&0x7f))
	return nil
}

// Automate records the controllers of the frame that changed since the
// previous one.
func (r *Recorder) Automate(a numus.Automation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written {
		return ErrClosed
	}
	tick := beatsToTicks(float64(a.Tick))
	for _, cc := range [...]struct {
		num uint8
		v   float64
	}{
		{CCEnergy, a.Energy},
		{CCMasterGain, a.MasterGain},
		{CCGainFrom, a.Crossfade.GainFrom},
		{CCGainTo, a.Crossfade.GainTo},
	} {
		v := unitToCC(cc.v)
		if r.lastCC[cc.num] == int(v) {
			continue
		}
		r.lastCC[cc.num] = int(v)
		r.automation.add(tick, gomidi.ControlChange(AutomationChannel, cc.num, v))
	}
	return nil
}

// SMF builds the file from everything recorded so far.
func (r *Recorder) SMF() (*smf.SMF, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)
	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(r.beatsPerBar, 4))
	tempo.Add(0, smf.MetaTempo(r.bpm))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return nil, fmt.Errorf("error adding tempo track: %w", err)
	}
	for _, name := range r.order {
		if err := s.Add(r.tracks[name].track(name)); err != nil {
			return nil, fmt.Errorf("error adding track %v: %w", name, err)
		}
	}
	if len(r.automation.events) > 0 {
		if err := s.Add(r.automation.track("automation")); err != nil {
			return nil, fmt.Errorf("error adding automation track: %w", err)
		}
	}
	return s, nil
}

// WriteTo writes the file to w. Afterwards the recorder refuses new events.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	s, err := r.SMF()
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.written = true
	r.mu.Unlock()
	return s.WriteTo(w)
}

// WriteFile writes the file to path.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %v: %w", path, err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("could not write %v: %w", path, err)
	}
	return f.Close()
}

func (l *eventList) add(tick uint32, msg gomidi.Message) {
	l.events = append(l.events, timedMsg{tick: tick, seq: len(l.events), msg: msg})
}

// track sorts the events by time and converts them to delta times.
func (l *eventList) track(name string) smf.Track {
	events := append([]timedMsg(nil), l.events...)
	sort.Slice(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].seq < events[j].seq
	})
	var t smf.Track
	t.Add(0, smf.MetaTrackSequenceName(name))
	var prev uint32
	for _, e := range events {
		t.Add(e.tick-prev, e.msg)
		prev = e.tick
	}
	t.Close(0)
	return t
}

// Velocity maps an amplitude in [0,1] to a note-on velocity in [1,127].
func Velocity(amp float64) uint8 {
	v := uint8(math.Round(clamp(amp, 0, 1) * 127))
	if v == 0 {
		return 1
	}
	return v
}

func unitToCC(x float64) uint8 {
	return uint8(math.Round(clamp(x, 0, 1) * 127))
}

func beatsToTicks(beats float64) uint32 {
	if !(beats > 0) {
		return 0
	}
	return uint32(math.Round(beats * TicksPerBeat))
}

func clamp(x, lo, hi float64) float64 {
	if !(x > lo) {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
