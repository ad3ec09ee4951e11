package numus

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type (
	// Segment is a time-bounded ramp from StartValue to EndValue, shaped by
	// Curve. Times are in bars; Start < End.
	Segment struct {
		Start      float64
		End        float64
		StartValue float64
		EndValue   float64
		Curve      CurveKind `yaml:",omitempty"`
	}

	// Envelope is an ordered, contiguous list of segments. ValueAt never
	// fails: times before the first segment clamp to its StartValue, times at
	// or after the last segment clamp to its EndValue and an empty envelope
	// returns Default.
	Envelope struct {
		segments []Segment
		Default  float64
	}

	// EnergySource is anything that resolves a value at a time in bars;
	// implemented by *Envelope and Lissajous.
	EnergySource interface {
		ValueAt(t float64) float64
	}

	// Lissajous is a perpetual energy cycle:
	//   0.5 + 0.5 * sin(2πt/Period) * cos(2πt/(Period*φ))
	Lissajous struct {
		Period float64
	}
)

var (
	ErrZeroLengthSegment = errors.New("segment start must be before its end")
	ErrSegmentGap        = errors.New("segments leave a gap")
	ErrSegmentOverlap    = errors.New("segments overlap")
	ErrNotFinite         = errors.New("segment contains a non-finite number")
)

// NewEnvelope constructs an envelope from segments, which must be sorted,
// non-overlapping and gapless.
func NewEnvelope(segments ...Segment) (*Envelope, error) {
	e := &Envelope{}
	for i, s := range segments {
		if err := e.AddSegment(s.Start, s.End, s.StartValue, s.EndValue, s.Curve); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return e, nil
}

// AddSegment appends a segment. The segment must have start < end and must
// begin exactly where the previous one ended.
func (e *Envelope) AddSegment(start, end, startValue, endValue float64, kind CurveKind) error {
	for _, v := range [...]float64{start, end, startValue, endValue} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNotFinite
		}
	}
	if !(start < end) {
		return fmt.Errorf("[%v, %v): %w", start, end, ErrZeroLengthSegment)
	}
	if n := len(e.segments); n > 0 {
		prev := e.segments[n-1].End
		if start > prev {
			return fmt.Errorf("[%v, %v) after %v: %w", start, end, prev, ErrSegmentGap)
		}
		if start < prev {
			return fmt.Errorf("[%v, %v) before %v: %w", start, end, prev, ErrSegmentOverlap)
		}
	}
	e.segments = append(e.segments, Segment{Start: start, End: end, StartValue: startValue, EndValue: endValue, Curve: kind})
	return nil
}

// ValueAt resolves the envelope at time t.
func (e *Envelope) ValueAt(t float64) float64 {
	n := len(e.segments)
	if n == 0 || math.IsNaN(t) {
		return e.Default
	}
	if first := e.segments[0]; t < first.Start {
		return first.StartValue
	}
	if last := e.segments[n-1]; t >= last.End {
		return last.EndValue
	}
	// first segment whose end is after t; segments are contiguous so it
	// also covers t
	i := sort.Search(n, func(i int) bool { return e.segments[i].End > t })
	if i >= n {
		return e.Default
	}
	return e.segments[i].valueAt(t)
}

func (s Segment) valueAt(t float64) float64 {
	progress := (t - s.Start) / (s.End - s.Start)
	return Lerp(s.StartValue, s.EndValue, progress, s.Curve)
}

// Duration returns the end time of the last segment, or 0 if there are none.
func (e *Envelope) Duration() float64 {
	if len(e.segments) == 0 {
		return 0
	}
	return e.segments[len(e.segments)-1].End
}

func (l Lissajous) ValueAt(t float64) float64 {
	if l.Period <= 0 {
		return 0.5
	}
	a := math.Sin(2 * math.Pi * t / l.Period)
	b := math.Cos(2 * math.Pi * t / (l.Period * Phi))
	return clamp01(0.5 + 0.5*a*b)
}
