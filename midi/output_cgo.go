//go:build cgo

package midi

import (
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/tsb/numus"
)

// Output sends triggers to a live MIDI port. Note offs are scheduled on
// wall-clock timers, so the gate length depends on the tempo given to
// OpenOutput.
type Output struct {
	driver *rtmididrv.Driver
	out    drivers.Out
	send   func(msg gomidi.Message) error
	beat   time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// Ports lists the names of the available MIDI output ports.
func Ports() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("could not open the rtmidi driver: %w", err)
	}
	defer drv.Close()
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("could not list MIDI outputs: %w", err)
	}
	ret := make([]string, len(outs))
	for i, o := range outs {
		ret[i] = o.String()
	}
	return ret, nil
}

// OpenOutput opens the first MIDI output port whose name starts with
// namePrefix; an empty prefix takes the first port.
func OpenOutput(namePrefix string, bpm float64) (*Output, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("could not open the rtmidi driver: %w", err)
	}
	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("could not list MIDI outputs: %w", err)
	}
	for _, out := range outs {
		if !strings.HasPrefix(out.String(), namePrefix) {
			continue
		}
		if err := out.Open(); err != nil {
			drv.Close()
			return nil, fmt.Errorf("opening MIDI output %v failed: %w", out, err)
		}
		send, err := gomidi.SendTo(out)
		if err != nil {
			out.Close()
			drv.Close()
			return nil, fmt.Errorf("opening MIDI output %v failed: %w", out, err)
		}
		beat := time.Duration(0)
		if bpm > 0 {
			beat = time.Duration(float64(time.Minute) / bpm)
		}
		return &Output{driver: drv, out: out, send: send, beat: beat, timers: map[*time.Timer]struct{}{}}, nil
	}
	drv.Close()
	return nil, fmt.Errorf("could not find a MIDI output starting with %q: %w", namePrefix, ErrNoPort)
}

// Trigger sends the pan, the note on and schedules the note off.
func (o *Output) Trigger(t numus.Trigger) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	ch, key := t.Channel&0x0f, t.Note&0x7f
	if err := o.send(gomidi.ControlChange(ch, CCPan, unitToCC((t.Pan+1)/2))); err != nil {
		return fmt.Errorf("MIDI send failed: %w", err)
	}
	if err := o.send(gomidi.NoteOn(ch, key, Velocity(t.Amp))); err != nil {
		return fmt.Errorf("MIDI send failed: %w", err)
	}
	gate := time.Duration((t.Offset + t.Gate) * float64(o.beat))
	var timer *time.Timer
	timer = time.AfterFunc(gate, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.timers, timer)
		if !o.closed {
			o.send(gomidi.NoteOff(ch, key))
		}
	})
	o.timers[timer] = struct{}{}
	return nil
}

// Close silences every channel and closes the port.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	for timer := range o.timers {
		timer.Stop()
	}
	for ch := uint8(0); ch < 16; ch++ {
		o.send(gomidi.ControlChange(ch, 123, 0)) // all notes off
	}
	err := o.out.Close()
	o.driver.Close()
	return err
}
