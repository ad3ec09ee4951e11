// Package conductor runs a performance: it owns the scheduler, resolves the
// energy and the transitions once per tick, decides which tracks play once
// per bar and runs every track as its own goroutine synchronized on the
// scheduler's broadcast.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsb/numus"
	"github.com/tsb/numus/clock"
)

type (
	// Conductor is the single writer of all shared state of a performance.
	// A Conductor runs once; create a new one for a new performance.
	Conductor struct {
		perf     numus.Performance
		sched    *clock.Scheduler
		energy   numus.EnergySource
		mapping  numus.EnergyMap
		policy   *Policy
		sequence *Sequence
		routines []*routine

		triggerSinks    []numus.TriggerSink
		automationSinks []numus.AutomationSink
		hooks           []func(*Snapshot, []numus.Trigger)
		logger          *slog.Logger

		snapshot atomic.Pointer[Snapshot]
		started  atomic.Bool
		wg       sync.WaitGroup

		// orchestrator state, touched only from the scheduler callback
		active     []bool
		section    string
		transition bool

		stats Stats
	}

	// Stats are counters of a finished (or running) performance.
	Stats struct {
		Ticks      int
		Triggers   int
		SinkErrors int
		BarsPlayed map[string]int
	}

	// Option configures a Conductor.
	Option func(*Conductor)
)

var ErrAlreadyRun = errors.New("conductor: performance already started")

// WithLogger sets the logger; by default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conductor) { c.logger = l }
}

// WithTriggerSink adds a sink receiving every trigger.
func WithTriggerSink(s numus.TriggerSink) Option {
	return func(c *Conductor) { c.triggerSinks = append(c.triggerSinks, s) }
}

// WithAutomationSink adds a sink receiving one automation frame per tick.
func WithAutomationSink(s numus.AutomationSink) Option {
	return func(c *Conductor) { c.automationSinks = append(c.automationSinks, s) }
}

// WithEnergyMap replaces numus.DefaultEnergyMap.
func WithEnergyMap(m numus.EnergyMap) Option {
	return func(c *Conductor) { c.mapping = m }
}

// WithHook adds a function called after every tick, once all its triggers
// have been delivered.
func WithHook(f func(s *Snapshot, triggers []numus.Trigger)) Option {
	return func(c *Conductor) { c.hooks = append(c.hooks, f) }
}

// New validates the performance and prepares it to be run. All
// configuration errors are reported here; nothing fails once the
// performance runs.
func New(p numus.Performance, opts ...Option) (*Conductor, error) {
	perf := p.Copy()
	if err := perf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid performance: %w", err)
	}
	energy, err := perf.EnergySource()
	if err != nil {
		return nil, err
	}
	c := &Conductor{
		perf:    perf,
		sched:   clock.New(perf.Meter()),
		energy:  energy,
		mapping: numus.DefaultEnergyMap,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.policy = NewPolicy(&c.perf)
	c.sequence = NewSequence(&c.perf)
	for i, t := range c.perf.Tracks {
		r, err := newRoutine(i, t)
		if err != nil {
			return nil, err
		}
		c.routines = append(c.routines, r)
	}
	c.active = make([]bool, len(c.routines))
	for _, o := range opts {
		o(c)
	}
	c.sched.OnTick(c.update)
	return c, nil
}

// Performance returns the performance being conducted.
func (c *Conductor) Performance() *numus.Performance { return &c.perf }

// Snapshot returns the state of the current tick, or nil before the first.
func (c *Conductor) Snapshot() *Snapshot { return c.snapshot.Load() }

// TrackNames returns the track names in track order.
func (c *Conductor) TrackNames() []string {
	ret := make([]string, len(c.routines))
	for i, r := range c.routines {
		ret[i] = r.track.Name
	}
	return ret
}

// Stats returns the counters. Call it after Run or Play has returned.
func (c *Conductor) Stats() Stats {
	ret := c.stats
	ret.BarsPlayed = make(map[string]int, len(c.routines))
	for _, r := range c.routines {
		ret.BarsPlayed[r.track.Name] = r.bars
	}
	return ret
}

// Run conducts the whole performance as fast as possible.
func (c *Conductor) Run(ctx context.Context) error {
	return c.run(ctx, 0)
}

// Play conducts the performance in real time, one tick per beat at the
// performance BPM.
func (c *Conductor) Play(ctx context.Context) error {
	return c.run(ctx, c.perf.BeatDuration())
}

// Stop ends the performance; Run or Play return without error and every
// track goroutine exits. Stop may be called from any goroutine; a tick being
// broadcast at that moment is abandoned and never reaches the sinks.
// Stopping is final.
func (c *Conductor) Stop() {
	c.sched.Stop()
}

func (c *Conductor) run(ctx context.Context, period time.Duration) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	for _, r := range c.routines {
		r.sub = c.sched.Subscribe()
		c.wg.Add(1)
		go func(r *routine) {
			defer c.wg.Done()
			r.run(c.snapshot.Load)
		}(r)
	}
	defer func() {
		c.sched.Stop()
		c.wg.Wait()
	}()
	total := c.perf.TotalTicks()
	c.logger.Info("performance started", "name", c.perf.Name, "bpm", c.perf.BPM, "bars", c.perf.TotalBars(), "tracks", len(c.routines))
	var ticker *time.Ticker
	if period > 0 {
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}
	for i := 0; i < total; i++ {
		ev, err := c.sched.Advance(ctx)
		if errors.Is(err, clock.ErrStopped) {
			c.logger.Info("performance stopped", "tick", c.stats.Ticks)
			return nil
		}
		if err != nil {
			return fmt.Errorf("tick %d: %w", i, err)
		}
		c.flush(ev)
		if ticker == nil || i == total-1 {
			continue
		}
		select {
		case <-ticker.C:
		case <-c.sched.Stopped():
			c.logger.Info("performance stopped", "tick", c.stats.Ticks)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.logger.Info("performance finished", "ticks", c.stats.Ticks, "triggers", c.stats.Triggers, "sinkErrors", c.stats.SinkErrors)
	return nil
}

// update is the scheduler callback: it builds and publishes the snapshot of
// the tick before the tracks are notified.
func (c *Conductor) update(ev clock.Event) {
	meter := float64(c.perf.Meter())
	t := float64(ev.Tick) / meter
	raw := c.energy.ValueAt(t)
	energy := raw / c.perf.Scale()
	switch {
	case !(energy > 0):
		energy = 0
	case energy > 1:
		energy = 1
	}
	s := &Snapshot{
		Event:      ev,
		RawEnergy:  raw,
		Energy:     energy,
		Category:   numus.CategoryOf(energy),
		Params:     c.mapping.Params(energy),
		MasterGain: c.perf.Fade.Gain(t, float64(c.perf.TotalBars())),
	}
	if ev.Downbeat {
		c.active = c.policy.Decide(energy, ev.Bar)
		c.updateSection(ev.Bar)
	}
	s.Active = c.active
	s.Section = c.section
	s.Transition, s.Crossfade, s.InTransition = c.sequence.At(ev.Bar)
	if ev.Downbeat {
		c.logTransition(s)
		c.logger.Debug("bar", "bar", ev.Bar, "energy", energy, "category", s.Category, "active", c.activeNames(), "section", s.Section)
	}
	c.snapshot.Store(s)
}

func (c *Conductor) updateSection(bar int) {
	sec := c.sequence.Section(bar)
	if sec != c.section {
		c.logger.Info("section", "bar", bar, "from", c.section, "to", sec)
		c.section = sec
	}
}

func (c *Conductor) logTransition(s *Snapshot) {
	switch {
	case s.InTransition && !c.transition:
		c.logger.Info("transition started", "bar", s.Bar, "from", s.Transition.From, "to", s.Transition.To, "bars", s.Transition.DurationBars)
	case !s.InTransition && c.transition:
		c.logger.Info("transition finished", "bar", s.Bar)
	}
	c.transition = s.InTransition
}

func (c *Conductor) activeNames() []string {
	var ret []string
	for i, a := range c.active {
		if a {
			ret = append(ret, c.routines[i].track.Name)
		}
	}
	return ret
}

// flush delivers the outboxes of the tick in track order, then the
// automation frame. Runs after the barrier, so the outboxes are stable.
func (c *Conductor) flush(ev clock.Event) {
	var triggers []numus.Trigger
	for _, r := range c.routines {
		triggers = append(triggers, r.out...)
	}
	for _, t := range triggers {
		for _, sink := range c.triggerSinks {
			if err := sink.Trigger(t); err != nil {
				c.sinkError("trigger", ev, err)
			}
		}
	}
	c.stats.Triggers += len(triggers)
	c.stats.Ticks++
	s := c.snapshot.Load()
	if s == nil {
		return
	}
	a := s.Automation()
	for _, sink := range c.automationSinks {
		if err := sink.Automate(a); err != nil {
			c.sinkError("automation", ev, err)
		}
	}
	for _, h := range c.hooks {
		h(s, triggers)
	}
}

func (c *Conductor) sinkError(kind string, ev clock.Event, err error) {
	c.stats.SinkErrors++
	c.logger.Warn("sink error", "kind", kind, "tick", ev.Tick, "err", err)
}
