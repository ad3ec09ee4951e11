package oto

import (
	"math"
	"sync"

	"github.com/viterin/vek/vek32"

	"github.com/tsb/numus"
)

// SampleRate of the rendered audio.
const SampleRate = 44100

// MaxVoices bounds the number of simultaneously sounding voices; the oldest
// voice is dropped when a trigger arrives while the limit is reached.
const MaxVoices = 64

type (
	// Monitor renders triggers as short decaying sine blips so a performance
	// can be auditioned without a synthesizer. Each trigger is placed at its
	// own tick, so the monitor works the same for real-time and offline runs.
	// It implements numus.TriggerSink and io.Reader (interleaved stereo
	// float32 little-endian samples).
	Monitor struct {
		samplesPerBeat float64

		mu     sync.Mutex
		voices []voice
		frame  int64 // frames rendered so far
		left   []float32
		right  []float32
		tmp    []float32
		out    []float32
	}

	voice struct {
		start  int64
		length int
		freq   float64
		decay  float64 // per-sample envelope multiplier
		gainL  float32
		gainR  float32
	}
)

// NewMonitor returns a monitor for a performance at bpm.
func NewMonitor(bpm float64) *Monitor {
	if bpm <= 0 {
		bpm = 120
	}
	return &Monitor{samplesPerBeat: SampleRate * 60 / bpm}
}

// Reset silences the monitor and restarts its timeline at tick 0 for a new
// performance at bpm.
func (m *Monitor) Reset(bpm float64) {
	if bpm <= 0 {
		bpm = 120
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samplesPerBeat = SampleRate * 60 / bpm
	m.voices = m.voices[:0]
	m.frame = 0
}

// Trigger queues a voice. Triggers in the past start immediately.
func (m *Monitor) Trigger(t numus.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := int64((float64(t.Tick) + t.Offset) * m.samplesPerBeat)
	if start < m.frame {
		start = m.frame
	}
	length := int(t.Gate * m.samplesPerBeat)
	if length < SampleRate/100 {
		length = SampleRate / 100
	}
	// constant power pan
	angle := (clampPan(t.Pan) + 1) * math.Pi / 4
	amp := math.Max(0, math.Min(t.Amp, 1)) * 0.25
	v := voice{
		start:  start,
		length: length,
		freq:   NoteFrequency(t.Note),
		decay:  math.Pow(0.001, 1/float64(length)), // -60 dB at the end of the gate
		gainL:  float32(amp * math.Cos(angle)),
		gainR:  float32(amp * math.Sin(angle)),
	}
	if len(m.voices) >= MaxVoices {
		m.voices = m.voices[1:]
	}
	m.voices = append(m.voices, v)
	return nil
}

// Voices returns the number of voices queued or sounding.
func (m *Monitor) Voices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render fills buf with the next len(buf)/2 interleaved stereo frames.
func (m *Monitor) Render(buf []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames := len(buf) / 2
	m.left = resize(m.left, frames)
	m.right = resize(m.right, frames)
	m.tmp = resize(m.tmp, frames)
	clear(m.left)
	clear(m.right)
	end := m.frame + int64(frames)
	kept := m.voices[:0]
	for _, v := range m.voices {
		vEnd := v.start + int64(v.length)
		if v.start < end && vEnd > m.frame {
			from := max(v.start, m.frame)
			to := min(vEnd, end)
			n := int(to - from)
			tmp := m.tmp[:n]
			offset := int(from - v.start)
			env := math.Pow(v.decay, float64(offset))
			w := 2 * math.Pi * v.freq / SampleRate
			for i := range tmp {
				tmp[i] = float32(math.Sin(w*float64(offset+i)) * env)
				env *= v.decay
			}
			a := int(from - m.frame)
			vek32.Add_Inplace(m.left[a:a+n], vek32.MulNumber(tmp, v.gainL))
			vek32.Add_Inplace(m.right[a:a+n], vek32.MulNumber(tmp, v.gainR))
		}
		if vEnd > end {
			kept = append(kept, v)
		}
	}
	m.voices = kept
	for i := 0; i < frames; i++ {
		buf[2*i] = m.left[i]
		buf[2*i+1] = m.right[i]
	}
	m.frame = end
}

// Read implements io.Reader for the audio player. It never returns an
// error; silence is rendered when nothing plays.
func (m *Monitor) Read(p []byte) (int, error) {
	frames := len(p) / 8
	m.out = resize(m.out, frames*2)
	m.Render(m.out)
	FloatBufferToFloat32LE(m.out, p[:0])
	return frames * 8, nil
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note.
func NoteFrequency(note uint8) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}

func clampPan(p float64) float64 {
	return math.Max(-1, math.Min(p, 1))
}

func resize(b []float32, n int) []float32 {
	if cap(b) < n {
		return make([]float32, n)
	}
	return b[:n]
}
