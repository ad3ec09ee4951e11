package oto

import (
	"fmt"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/tsb/numus"
)

// scoreChunk is the number of frames rendered between two trigger
// deliveries; small enough that a chunk never holds MaxVoices onsets.
const scoreChunk = 512

// Score collects the triggers of an offline run and renders them afterwards
// through a Monitor. Each trigger is handed to the monitor only when the
// rendering reaches its chunk, so arbitrarily long performances render
// without dropping voices. Score implements numus.TriggerSink and
// beep.Streamer.
type Score struct {
	bpm      float64
	monitor  *Monitor
	triggers []numus.Trigger
	next     int
	frame    int
	buf      []float32
}

// NewScore returns an empty score for a performance at bpm.
func NewScore(bpm float64) *Score {
	if bpm <= 0 {
		bpm = 120
	}
	return &Score{bpm: bpm, monitor: NewMonitor(bpm)}
}

// Trigger records t. Triggers must arrive in tick order, as the conductor
// delivers them.
func (s *Score) Trigger(t numus.Trigger) error {
	s.triggers = append(s.triggers, t)
	return nil
}

// Len returns the number of recorded triggers.
func (s *Score) Len() int { return len(s.triggers) }

// Frames returns the number of frames spanned by ticks beats.
func (s *Score) Frames(ticks int) int {
	return int(float64(ticks) * SampleRate * 60 / s.bpm)
}

// Stream renders the next frames. It never runs out; wrap it with
// beep.Take to bound it.
func (s *Score) Stream(samples [][2]float64) (int, bool) {
	for done := 0; done < len(samples); {
		n := min(len(samples)-done, scoreChunk)
		s.deliver(s.frame + n)
		s.buf = resize(s.buf, 2*n)
		s.monitor.Render(s.buf)
		for i := 0; i < n; i++ {
			samples[done+i][0] = float64(s.buf[2*i])
			samples[done+i][1] = float64(s.buf[2*i+1])
		}
		done += n
		s.frame += n
	}
	return len(samples), true
}

// Err always returns nil.
func (s *Score) Err() error { return nil }

// deliver hands the monitor every trigger starting before frame end.
func (s *Score) deliver(end int) {
	spb := SampleRate * 60 / s.bpm
	for ; s.next < len(s.triggers); s.next++ {
		t := s.triggers[s.next]
		if int((float64(t.Tick)+t.Offset)*spb) >= end {
			return
		}
		s.monitor.Trigger(t)
	}
}

func (s *Score) rewind() {
	s.monitor.Reset(s.bpm)
	s.next, s.frame = 0, 0
}

// WriteWav renders the first ticks beats as a 16-bit stereo .wav file.
func (s *Score) WriteWav(w io.WriteSeeker, ticks int) error {
	s.rewind()
	format := beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(w, beep.Take(s.Frames(ticks), s), format); err != nil {
		return fmt.Errorf("could not encode wav: %w", err)
	}
	return nil
}

// WriteRaw renders the first ticks beats as raw 16-bit little-endian
// stereo samples.
func (s *Score) WriteRaw(w io.Writer, ticks int) error {
	s.rewind()
	samples := make([][2]float64, 4096)
	interleaved := make([]float32, 0, 2*len(samples))
	var pcm []byte
	for left := s.Frames(ticks); left > 0; {
		n, _ := s.Stream(samples[:min(left, len(samples))])
		interleaved = interleaved[:0]
		for _, f := range samples[:n] {
			interleaved = append(interleaved, float32(f[0]), float32(f[1]))
		}
		pcm = FloatBufferTo16BitLE(interleaved, pcm[:0])
		if _, err := w.Write(pcm); err != nil {
			return fmt.Errorf("could not write raw audio: %w", err)
		}
		left -= n
	}
	return nil
}
