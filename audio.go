package numus

type (
	// Trigger asks the audio layer to play a sound now. Offset is the position
	// inside the tick, in beats [0,1), for subdivided patterns.
	Trigger struct {
		Track    string
		Tick     int
		Bar      int
		Step     int
		Offset   float64
		Channel  uint8
		Note     uint8
		Gate     float64 // length in beats
		Amp      float64
		Cutoff   float64 // low-pass, Hz
		HighPass float64 // high-pass, Hz; 0 when the track is not fading out
		Pan      float64 // -1 (left) .. 1 (right)
	}

	// Automation is the per-tick control state for the audio layer: master
	// energy, the master fade and, during a transition, the crossfade.
	Automation struct {
		Tick       int
		Bar        int
		Energy     float64
		MasterGain float64
		Section    string
		Transition bool
		From       string
		To         string
		Crossfade  Crossfade
	}

	// TriggerSink consumes triggers. It is called from a single goroutine, in
	// a deterministic order.
	TriggerSink interface {
		Trigger(t Trigger) error
	}

	// AutomationSink consumes automation frames, one per tick.
	AutomationSink interface {
		Automate(a Automation) error
	}

	// TriggerFunc adapts a function to a TriggerSink.
	TriggerFunc func(t Trigger) error
)

func (f TriggerFunc) Trigger(t Trigger) error { return f(t) }
