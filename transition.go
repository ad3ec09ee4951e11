package numus

import "math"

type (
	// TransitionWindow crossfades from one section to another over
	// DurationBars bars starting at StartBar.
	TransitionWindow struct {
		From         string
		To           string
		StartBar     int
		DurationBars int
	}

	// Handoff configures the frequency handoff during a crossfade: the
	// outgoing section's high-pass cutoff rises from HighPassStart to
	// HighPassEnd while the incoming section's low-pass cutoff moves from
	// LowPassStart to LowPassEnd. Frequencies are in Hz.
	Handoff struct {
		HighPassStart float64
		HighPassEnd   float64
		LowPassStart  float64
		LowPassEnd    float64
	}

	// Crossfade is the automation for one bar of a transition.
	Crossfade struct {
		GainFrom   float64
		GainTo     float64
		FilterFrom float64 // high-pass cutoff of the outgoing section
		FilterTo   float64 // low-pass cutoff of the incoming section
	}

	// TransitionController emits crossfade automation for one window. Once the
	// window has ended the controller is inert.
	TransitionController struct {
		Window  TransitionWindow
		Handoff Handoff
	}

	// Fade is a master fade-in at the start and fade-out at the end of a
	// performance. Times are in bars.
	Fade struct {
		In       float64
		Out      float64
		InCurve  CurveKind `yaml:",omitempty"`
		OutCurve CurveKind `yaml:",omitempty"`
	}
)

// OpenLowPass is a low-pass cutoff high enough to pass everything audible.
const OpenLowPass = 20000.0

// DefaultHandoff narrows the outgoing section to its upper band (high-pass
// 120 Hz → 800 Hz) while the incoming section opens up (low-pass 2500 Hz →
// 20 kHz), so the two never double the low end.
var DefaultHandoff = Handoff{
	HighPassStart: 120,
	HighPassEnd:   800,
	LowPassStart:  2500,
	LowPassEnd:    OpenLowPass,
}

// NeutralCrossfade is the automation outside of any transition with the
// default handoff.
var NeutralCrossfade = DefaultHandoff.Neutral()

// EqualPower returns the cos/sin gain pair for progress in [0,1]. The sum of
// the squares is always 1.
func EqualPower(progress float64) (from, to float64) {
	p := clamp01(progress)
	return math.Cos(p * math.Pi / 2), math.Sin(p * math.Pi / 2)
}

// Progress returns (bar-StartBar)/DurationBars clamped to [0,1]. A window with
// non-positive duration is complete as soon as it starts.
func (w TransitionWindow) Progress(bar int) float64 {
	if w.DurationBars <= 0 {
		if bar >= w.StartBar {
			return 1
		}
		return 0
	}
	return clamp01(float64(bar-w.StartBar) / float64(w.DurationBars))
}

// EndBar is the first bar after the window.
func (w TransitionWindow) EndBar() int {
	return w.StartBar + max(w.DurationBars, 0)
}

// Active reports whether bar is inside [StartBar, EndBar).
func (w TransitionWindow) Active(bar int) bool {
	return bar >= w.StartBar && bar < w.EndBar()
}

// Done reports whether the window has ended at bar.
func (w TransitionWindow) Done(bar int) bool {
	return bar >= w.EndBar()
}

// Neutral is the crossfade outside of any transition: the outgoing section at
// full gain, the incoming one silent, the high-pass resting at HighPassStart
// and the low-pass open at LowPassEnd. The high-pass of the outgoing section
// therefore does not step when a window starts.
func (h Handoff) Neutral() Crossfade {
	return Crossfade{GainFrom: 1, GainTo: 0, FilterFrom: h.HighPassStart, FilterTo: h.LowPassEnd}
}

// At returns the crossfade for the given progress.
func (h Handoff) At(progress float64) Crossfade {
	from, to := EqualPower(progress)
	p := clamp01(progress)
	return Crossfade{
		GainFrom:   from,
		GainTo:     to,
		FilterFrom: h.HighPassStart + (h.HighPassEnd-h.HighPassStart)*p,
		FilterTo:   h.LowPassStart + (h.LowPassEnd-h.LowPassStart)*p,
	}
}

// Tick returns the automation for the bar. Before the window it returns
// the handoff's Neutral crossfade; inside it the equal-power gains and the frequency
// handoff. ok is false once the window has ended, in which case nothing
// should be emitted.
func (c TransitionController) Tick(bar int) (xf Crossfade, ok bool) {
	switch {
	case c.Window.Done(bar):
		return Crossfade{}, false
	case bar < c.Window.StartBar:
		return c.Handoff.Neutral(), true
	default:
		return c.Handoff.At(c.Window.Progress(bar)), true
	}
}

// GainFor returns the gain a track belonging to section gets from the
// crossfade; tracks of unrelated sections play at full gain.
func (w TransitionWindow) GainFor(section string, xf Crossfade) float64 {
	switch section {
	case w.From:
		return xf.GainFrom
	case w.To:
		return xf.GainTo
	}
	return 1
}

// Gain returns the master gain at time t (in bars) of a performance lasting
// total bars. The fade-out mirrors the fade-in: its progress runs from 1 at
// total-Out down to 0 at total.
func (f Fade) Gain(t, total float64) float64 {
	if f.In > 0 && t < f.In {
		return Interpolate(t/f.In, f.InCurve)
	}
	if f.Out > 0 && total > 0 && t > total-f.Out {
		return Interpolate((total-t)/f.Out, f.OutCurve)
	}
	return 1
}
