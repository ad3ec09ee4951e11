package conductor_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"runtime"
	"testing"

	"github.com/tsb/numus"
	"github.com/tsb/numus/conductor"
)

type recorder struct {
	triggers   []numus.Trigger
	automation []numus.Automation
}

func (r *recorder) Trigger(t numus.Trigger) error {
	r.triggers = append(r.triggers, t)
	return nil
}

func (r *recorder) Automate(a numus.Automation) error {
	r.automation = append(r.automation, a)
	return nil
}

type failingSink struct{}

func (failingSink) Trigger(numus.Trigger) error { return errors.New("device unplugged") }

func rampPerformance() numus.Performance {
	return numus.Performance{
		Name:        "ramp",
		BPM:         120,
		Bars:        16,
		Energy:      []numus.Segment{{Start: 0, End: 16, StartValue: 20, EndValue: 100}},
		EnergyScale: 100,
		Spread:      1,
		Tracks: []numus.Track{
			{Name: "kick", Threshold: numus.Float(0.1), Pattern: "four_on_floor", Subdivision: 4, Note: 36},
			{Name: "hat", Threshold: numus.Float(0.5), Pattern: "offbeat_hat", Subdivision: 4, Note: 42, Channel: 1},
		},
	}
}

func run(t *testing.T, perf numus.Performance, opts ...conductor.Option) (*recorder, *conductor.Conductor) {
	t.Helper()
	rec := &recorder{}
	opts = append(opts, conductor.WithTriggerSink(rec), conductor.WithAutomationSink(rec))
	c, err := conductor.New(perf, opts...)
	if err != nil {
		t.Fatalf("conductor.New failed: %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return rec, c
}

func TestRunIsDeterministic(t *testing.T) {
	a, _ := run(t, rampPerformance())
	b, _ := run(t, rampPerformance())
	if len(a.triggers) == 0 {
		t.Fatal("performance produced no triggers")
	}
	if !reflect.DeepEqual(a.triggers, b.triggers) {
		t.Fatal("two runs of the same performance produced different triggers")
	}
	if !reflect.DeepEqual(a.automation, b.automation) {
		t.Fatal("two runs of the same performance produced different automation")
	}
}

func TestResolvedPerformancePlaysTheSame(t *testing.T) {
	perf := rampPerformance()
	a, _ := run(t, perf)
	b, _ := run(t, perf.Resolved())
	if !reflect.DeepEqual(a.triggers, b.triggers) {
		t.Fatal("resolving the defaults changed the triggers")
	}
}

func TestTriggersFollowEnergy(t *testing.T) {
	rec, c := run(t, rampPerformance())
	if got := c.Stats().Ticks; got != 64 {
		t.Fatalf("got %v ticks, expected 64", got)
	}
	if len(rec.automation) != 64 {
		t.Fatalf("got %v automation frames, expected 64", len(rec.automation))
	}
	prevTick, prevTrack := -1, ""
	for _, tr := range rec.triggers {
		if tr.Track == "hat" && tr.Bar < 7 {
			t.Fatalf("hat played in bar %d below its threshold", tr.Bar)
		}
		if tr.Tick < prevTick || (tr.Tick == prevTick && prevTrack == "hat" && tr.Track == "kick") {
			t.Fatalf("triggers out of order at tick %d", tr.Tick)
		}
		prevTick, prevTrack = tr.Tick, tr.Track
		if tr.Amp <= 0 || tr.Amp > 1 {
			t.Fatalf("amp %v out of range", tr.Amp)
		}
		if tr.Pan < -0.8 || tr.Pan > 0.8 {
			t.Fatalf("pan %v out of range", tr.Pan)
		}
	}
	// at energy 0.2 the cap allows a single track
	for _, tr := range rec.triggers {
		if tr.Bar == 0 && tr.Track != "kick" {
			t.Fatalf("unexpected %s in bar 0", tr.Track)
		}
	}
}

func TestSnapshotsMatchTriggers(t *testing.T) {
	var names []string
	checked := 0
	hook := func(s *conductor.Snapshot, triggers []numus.Trigger) {
		if s.Energy < 0 || s.Energy > 1 {
			t.Errorf("tick %d: energy %v not normalized", s.Tick, s.Energy)
		}
		for _, tr := range triggers {
			idx := -1
			for i, n := range names {
				if n == tr.Track {
					idx = i
				}
			}
			if !s.IsActive(idx) {
				t.Errorf("tick %d: inactive track %s triggered", s.Tick, tr.Track)
			}
			checked++
		}
	}
	c, err := conductor.New(rampPerformance(), conductor.WithHook(hook))
	if err != nil {
		t.Fatalf("conductor.New failed: %v", err)
	}
	names = c.TrackNames()
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if checked == 0 {
		t.Fatal("hook saw no triggers")
	}
	if err := c.Run(context.Background()); !errors.Is(err, conductor.ErrAlreadyRun) {
		t.Fatalf("second Run returned %v, expected ErrAlreadyRun", err)
	}
}

func crossfadePerformance() numus.Performance {
	return numus.Performance{
		BPM:         128,
		Energy:      []numus.Segment{{Start: 0, End: 16, StartValue: 1, EndValue: 1}},
		Sections:    []numus.Section{{Name: "a", Bars: 8}, {Name: "b", Bars: 8}},
		Transitions: []numus.TransitionWindow{{From: "a", To: "b", StartBar: 4, DurationBars: 4}},
		Spread:      1,
		Caps:        []int{3, 3, 3, 3, 3},
		Tracks: []numus.Track{
			{Name: "lead-a", Section: "a", Threshold: numus.Float(0), Steps: "x"},
			{Name: "lead-b", Section: "b", Threshold: numus.Float(0), Steps: "x", Channel: 1},
		},
	}
}

func TestCrossfade(t *testing.T) {
	rec, _ := run(t, crossfadePerformance())
	for _, a := range rec.automation {
		inside := a.Bar >= 4 && a.Bar < 8
		if a.Transition != inside {
			t.Fatalf("bar %d: transition %v", a.Bar, a.Transition)
		}
		if sum := a.Crossfade.GainFrom*a.Crossfade.GainFrom + a.Crossfade.GainTo*a.Crossfade.GainTo; math.Abs(sum-1) > 1e-9 {
			t.Fatalf("bar %d: gains not equal power: %v", a.Bar, sum)
		}
		if a.Bar == 6 && math.Abs(a.Crossfade.GainFrom-math.Sqrt2/2) > 1e-9 {
			t.Fatalf("bar 6: got gainFrom %v, expected %v", a.Crossfade.GainFrom, math.Sqrt2/2)
		}
		// the high-pass rests where the window starts it
		if a.Bar <= 4 && a.Crossfade.FilterFrom != numus.DefaultHandoff.HighPassStart {
			t.Fatalf("bar %d: got high-pass %v, expected %v", a.Bar, a.Crossfade.FilterFrom, numus.DefaultHandoff.HighPassStart)
		}
		if a.Bar < 4 && a.Crossfade.FilterTo != numus.OpenLowPass {
			t.Fatalf("bar %d: got low-pass %v outside the transition", a.Bar, a.Crossfade.FilterTo)
		}
	}
	var aBars, bBars = map[int]bool{}, map[int]bool{}
	for _, tr := range rec.triggers {
		switch tr.Track {
		case "lead-a":
			aBars[tr.Bar] = true
			if tr.Bar >= 4 && tr.HighPass <= 0 {
				t.Fatalf("bar %d: outgoing track without high-pass", tr.Bar)
			}
		case "lead-b":
			bBars[tr.Bar] = true
		}
	}
	for bar := 0; bar < 16; bar++ {
		if aBars[bar] != (bar < 8) {
			t.Errorf("lead-a playing in bar %d: %v", bar, aBars[bar])
		}
		// the incoming gain is zero on the first bar of the window
		if bBars[bar] != (bar >= 5) {
			t.Errorf("lead-b playing in bar %d: %v", bar, bBars[bar])
		}
	}
}

func TestAccentAndPanDetail(t *testing.T) {
	perf := numus.Performance{
		BPM:    120,
		Bars:   8,
		Energy: []numus.Segment{{Start: 0, End: 8, StartValue: 1, EndValue: 1}},
		Spread: 1,
		Tracks: []numus.Track{{Name: "rim", Threshold: numus.Float(0), Steps: "x", Source: "golden"}},
	}
	m := numus.DefaultEnergyMap
	m.Density = numus.Range{Min: 1, Max: 1}
	m.Velocity = numus.Range{Min: 1, Max: 1}
	rec, _ := run(t, perf, conductor.WithEnergyMap(m))
	if len(rec.triggers) != 32 {
		t.Fatalf("got %v triggers, expected 32", len(rec.triggers))
	}
	src := numus.NewDigitSource("golden")
	for _, tr := range rec.triggers {
		if expected := numus.PhaseDraw("golden", tr.Step, 0.85, 1); math.Abs(tr.Amp-expected) > 1e-9 {
			t.Fatalf("tick %d: got amp %v, expected %v", tr.Tick, tr.Amp, expected)
		}
		if tr.Tick%16 == 0 {
			src.Offset(tr.Bar / 4)
		}
		if expected := src.Next(-0.8, 0.8); tr.Pan != expected {
			t.Fatalf("tick %d: got pan %v, expected %v", tr.Tick, tr.Pan, expected)
		}
	}
}

func TestSinkErrorsDoNotStopTheShow(t *testing.T) {
	rec, c := run(t, rampPerformance(), conductor.WithTriggerSink(failingSink{}))
	st := c.Stats()
	if st.SinkErrors != len(rec.triggers) || st.SinkErrors == 0 {
		t.Fatalf("got %v sink errors for %v triggers", st.SinkErrors, len(rec.triggers))
	}
	if st.Ticks != 64 {
		t.Fatalf("performance stopped early at tick %v", st.Ticks)
	}
}

func TestStop(t *testing.T) {
	perf := rampPerformance()
	perf.BPM = 6000
	var c *conductor.Conductor
	hook := func(s *conductor.Snapshot, _ []numus.Trigger) {
		if s.Tick == 9 {
			c.Stop()
		}
	}
	c, err := conductor.New(perf, conductor.WithHook(hook))
	if err != nil {
		t.Fatalf("conductor.New failed: %v", err)
	}
	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := c.Stats().Ticks; got != 10 {
		t.Fatalf("got %v ticks, expected 10", got)
	}
}

func TestStopFromAnotherGoroutine(t *testing.T) {
	perf := rampPerformance()
	perf.Bars = 4096
	perf.Energy[0].End = 4096
	perf.Caps = []int{6, 6, 6, 6, 6}
	for _, n := range []string{"snare", "clap", "ride", "tom", "perc", "shaker"} {
		perf.Tracks = append(perf.Tracks, numus.Track{Name: n, Threshold: numus.Float(0), Steps: "x.x.", Subdivision: 4, Channel: 2})
	}
	rec := &recorder{}
	c, err := conductor.New(perf, conductor.WithTriggerSink(rec), conductor.WithAutomationSink(rec))
	if err != nil {
		t.Fatalf("conductor.New failed: %v", err)
	}
	finished := make(chan struct{})
	go func() {
		for {
			select {
			case <-finished:
				return
			default:
			}
			if s := c.Snapshot(); s != nil && s.Tick >= 100 {
				c.Stop()
				return
			}
			runtime.Gosched()
		}
	}()
	err = c.Run(context.Background())
	close(finished)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	st := c.Stats()
	if st.Ticks >= perf.TotalTicks() {
		t.Fatalf("performance was not stopped, ran %v ticks", st.Ticks)
	}
	if len(rec.automation) != st.Ticks {
		t.Fatalf("got %v automation frames for %v ticks", len(rec.automation), st.Ticks)
	}
	for _, tr := range rec.triggers {
		if tr.Tick >= st.Ticks {
			t.Fatalf("trigger of the abandoned tick %d reached the sinks", tr.Tick)
		}
	}
}

func TestInvalidPerformance(t *testing.T) {
	perf := rampPerformance()
	perf.Energy = append(perf.Energy, numus.Segment{Start: 20, End: 24})
	if _, err := conductor.New(perf); !errors.Is(err, numus.ErrSegmentGap) {
		t.Fatalf("conductor.New returned %v, expected a gap error", err)
	}
	perf = rampPerformance()
	perf.Tracks[0].Pattern = "no_such_pattern"
	if _, err := conductor.New(perf); err == nil {
		t.Fatal("conductor.New should fail on an unknown pattern")
	}
}
