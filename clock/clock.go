// Package clock implements the tick scheduler: a monotonic beat counter that
// derives bars and broadcasts one event per tick to every subscriber, in
// registration order, with a barrier so that no subscriber runs ahead.
package clock

import (
	"context"
	"errors"
	"sync"
	"time"
)

type (
	// Event is broadcast once per tick. Tick counts beats from 0; Bar is
	// Tick / BeatsPerBar and Beat the position inside the bar. Downbeat is
	// true on the first beat of every bar; Phrase, Section and Fill mark
	// downbeats of every 4th, 8th and 16th bar.
	Event struct {
		Tick     int
		Bar      int
		Beat     int
		Downbeat bool
		Phrase   bool
		Section  bool
		Fill     bool
	}

	// Scheduler owns the tick counter. It has two states, running and
	// stopped; stopped is terminal until Reset.
	Scheduler struct {
		beatsPerBar int

		mu        sync.Mutex
		tick      int
		stopped   bool
		advancing bool
		onTick    []func(Event)
		onBar     []func(Event)
		subs      []*Subscription
		finished  chan struct{}
	}

	// Subscription delivers events on C to a goroutine. After handling an
	// event, the goroutine must call Done; the scheduler does not advance to
	// the next tick before every live subscription has done so. C is closed
	// when the scheduler stops or the subscription is cancelled.
	Subscription struct {
		C <-chan Event

		c         chan Event
		ack       chan struct{}
		cancelled chan struct{}
		once      sync.Once
		onBar     bool
	}
)

var (
	// ErrStopped is returned by Advance after Stop.
	ErrStopped = errors.New("clock: scheduler stopped")
	// ErrBusy is returned by Advance if another Advance is in progress.
	ErrBusy = errors.New("clock: tick already being broadcast")
)

// New returns a running scheduler positioned before tick 0. A non-positive
// beatsPerBar is treated as 4.
func New(beatsPerBar int) *Scheduler {
	if beatsPerBar <= 0 {
		beatsPerBar = 4
	}
	return &Scheduler{beatsPerBar: beatsPerBar, finished: make(chan struct{})}
}

func (s *Scheduler) BeatsPerBar() int { return s.beatsPerBar }

// Tick returns the number of ticks broadcast so far, i.e. the tick the next
// heartbeat will emit.
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Bar returns the bar of the next tick.
func (s *Scheduler) Bar() int {
	return s.Tick() / s.beatsPerBar
}

// OnTick registers a callback run synchronously on every tick. Callbacks run
// in registration order, before subscriptions are notified.
func (s *Scheduler) OnTick(f func(Event)) {
	s.mu.Lock()
	s.onTick = append(s.onTick, f)
	s.mu.Unlock()
}

// OnBar registers a callback run synchronously on every downbeat, after the
// OnTick callbacks of the same tick.
func (s *Scheduler) OnBar(f func(Event)) {
	s.mu.Lock()
	s.onBar = append(s.onBar, f)
	s.mu.Unlock()
}

// Subscribe registers a subscription receiving every tick.
func (s *Scheduler) Subscribe() *Subscription {
	return s.subscribe(false)
}

// SubscribeBars registers a subscription receiving only downbeats.
func (s *Scheduler) SubscribeBars() *Subscription {
	return s.subscribe(true)
}

func (s *Scheduler) subscribe(onBar bool) *Subscription {
	c := make(chan Event)
	sub := &Subscription{C: c, c: c, ack: make(chan struct{}), cancelled: make(chan struct{}), onBar: onBar}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		sub.close()
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

// Done acknowledges the event last received from C.
func (sub *Subscription) Done() {
	select {
	case sub.ack <- struct{}{}:
	case <-sub.cancelled:
	}
}

// Cancel stops the subscription; C is closed and the subscription is never
// resumed. It is safe to call Cancel from the subscriber goroutine, even
// instead of Done.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() { close(sub.cancelled) })
}

func (sub *Subscription) close() {
	sub.Cancel()
	close(sub.c)
}

// Advance is one heartbeat: it emits the current tick to all callbacks and
// subscribers, waits until every subscriber has acknowledged it and then
// increments the tick. It returns ErrStopped after Stop. If Stop is called
// while the tick is being broadcast, the tick is abandoned: subscribers may
// still be handling it, so ErrStopped is returned and the tick is not
// counted. If ctx is cancelled while the tick is being broadcast, the
// scheduler is stopped, so that no subscriber ever sees a tick twice, and the
// context error is returned.
func (s *Scheduler) Advance(ctx context.Context) (Event, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Event{}, ErrStopped
	}
	if s.advancing {
		s.mu.Unlock()
		return Event{}, ErrBusy
	}
	s.advancing = true
	defer s.endAdvance()
	ev := s.event(s.tick)
	onTick := append([]func(Event){}, s.onTick...)
	onBar := append([]func(Event){}, s.onBar...)
	subs := s.liveSubs()
	s.mu.Unlock()

	for _, f := range onTick {
		f(ev)
	}
	if ev.Downbeat {
		for _, f := range onBar {
			f(ev)
		}
	}
	var notified []*Subscription
	for _, sub := range subs {
		if sub.onBar && !ev.Downbeat {
			continue
		}
		select {
		case sub.c <- ev:
			notified = append(notified, sub)
		case <-sub.cancelled:
		case <-ctx.Done():
			s.Stop()
			return ev, ctx.Err()
		}
	}
	for _, sub := range notified {
		select {
		case <-sub.ack:
		case <-sub.cancelled:
		case <-ctx.Done():
			s.Stop()
			return ev, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ev, ErrStopped
	}
	s.tick++
	return ev, nil
}

// endAdvance closes the subscription channels if Stop was called while the
// tick was being broadcast; Stop cannot close them itself then, as Advance
// might still be sending.
func (s *Scheduler) endAdvance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advancing = false
	if s.stopped {
		s.closeSubs()
	}
}

func (s *Scheduler) closeSubs() {
	for _, sub := range s.subs {
		close(sub.c)
	}
	s.subs = nil
}

// liveSubs drops cancelled subscriptions, closing their channels. Must be
// called with s.mu held.
func (s *Scheduler) liveSubs() []*Subscription {
	live := s.subs[:0]
	for _, sub := range s.subs {
		select {
		case <-sub.cancelled:
			close(sub.c)
		default:
			live = append(live, sub)
		}
	}
	s.subs = live
	return append([]*Subscription(nil), live...)
}

func (s *Scheduler) event(tick int) Event {
	bar := tick / s.beatsPerBar
	beat := tick % s.beatsPerBar
	down := beat == 0
	return Event{
		Tick:     tick,
		Bar:      bar,
		Beat:     beat,
		Downbeat: down,
		Phrase:   down && bar%4 == 0,
		Section:  down && bar%8 == 0,
		Fill:     down && bar%16 == 0,
	}
}

// Stop halts the scheduler. All subscription channels are closed so that
// subscriber goroutines observe no further events and exit. If a tick is
// being broadcast, its subscribers are released and the channels are closed
// when the broadcast returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for _, sub := range s.subs {
		sub.Cancel()
	}
	if !s.advancing {
		s.closeSubs()
	}
	close(s.finished)
}

// Stopped returns a channel that is closed when the scheduler stops.
func (s *Scheduler) Stopped() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Reset starts a new performance: the tick goes back to 0, the scheduler is
// running again, callbacks are kept and subscriptions are dropped.
func (s *Scheduler) Reset() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = 0
	s.stopped = false
	s.finished = make(chan struct{})
}

// RunTicks advances n ticks as fast as the subscribers allow.
func (s *Scheduler) RunTicks(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if _, err := s.Advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run advances one tick every period of wall-clock time until n ticks have
// been emitted (n < 0 runs until stopped), the scheduler is stopped or ctx is
// cancelled. A stop is not an error.
func (s *Scheduler) Run(ctx context.Context, period time.Duration, n int) error {
	if period <= 0 {
		return errors.New("clock: period should be > 0")
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for i := 0; n < 0 || i < n; i++ {
		if _, err := s.Advance(ctx); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
		if n >= 0 && i == n-1 {
			break
		}
		select {
		case <-ticker.C:
		case <-s.Stopped():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
