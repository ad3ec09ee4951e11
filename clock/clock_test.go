package clock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tsb/numus/clock"
)

func TestEventBars(t *testing.T) {
	s := clock.New(4)
	ctx := context.Background()
	for i := 0; i < 70; i++ {
		ev, err := s.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if ev.Tick != i {
			t.Fatalf("tick mismatch, got %v, expected %v", ev.Tick, i)
		}
		if ev.Bar != i/4 || ev.Beat != i%4 {
			t.Fatalf("tick %v: got bar %v beat %v", i, ev.Bar, ev.Beat)
		}
		if ev.Downbeat != (i%4 == 0) {
			t.Fatalf("tick %v: downbeat %v", i, ev.Downbeat)
		}
		if ev.Phrase != (i%16 == 0) || ev.Section != (i%32 == 0) || ev.Fill != (i%64 == 0) {
			t.Fatalf("tick %v: wrong cues %+v", i, ev)
		}
	}
	if got := s.Tick(); got != 70 {
		t.Fatalf("Tick() = %v, expected 70", got)
	}
}

func TestCallbackOrder(t *testing.T) {
	s := clock.New(3)
	var log []string
	s.OnTick(func(ev clock.Event) { log = append(log, "a") })
	s.OnBar(func(ev clock.Event) { log = append(log, "bar") })
	s.OnTick(func(ev clock.Event) { log = append(log, "b") })
	if err := s.RunTicks(context.Background(), 4); err != nil {
		t.Fatalf("RunTicks failed: %v", err)
	}
	expected := []string{"a", "b", "bar", "a", "b", "a", "b", "a", "b", "bar"}
	if len(log) != len(expected) {
		t.Fatalf("got %v, expected %v", log, expected)
	}
	for i := range expected {
		if log[i] != expected[i] {
			t.Fatalf("got %v, expected %v", log, expected)
		}
	}
}

func TestSubscriptionBarrier(t *testing.T) {
	const ticks = 50
	s := clock.New(4)
	subs := []*clock.Subscription{s.Subscribe(), s.Subscribe(), s.Subscribe()}
	bars := s.SubscribeBars()
	seen := make([][]int, len(subs)+1)
	var wg sync.WaitGroup
	var current int
	var mu sync.Mutex
	s.OnTick(func(ev clock.Event) {
		mu.Lock()
		current = ev.Tick
		mu.Unlock()
	})
	run := func(i int, sub *clock.Subscription) {
		defer wg.Done()
		for ev := range sub.C {
			mu.Lock()
			if ev.Tick != current {
				t.Errorf("subscriber %d saw tick %d while scheduler is at %d", i, ev.Tick, current)
			}
			mu.Unlock()
			seen[i] = append(seen[i], ev.Tick)
			sub.Done()
		}
	}
	for i, sub := range subs {
		wg.Add(1)
		go run(i, sub)
	}
	wg.Add(1)
	go run(len(subs), bars)
	if err := s.RunTicks(context.Background(), ticks); err != nil {
		t.Fatalf("RunTicks failed: %v", err)
	}
	s.Stop()
	wg.Wait()
	for i := range subs {
		if len(seen[i]) != ticks {
			t.Fatalf("subscriber %d saw %d ticks, expected %d", i, len(seen[i]), ticks)
		}
		for j, v := range seen[i] {
			if v != j {
				t.Fatalf("subscriber %d: tick %d skipped or duplicated, got %v", i, j, v)
			}
		}
	}
	if got := seen[len(subs)]; len(got) != 13 || got[1] != 4 {
		t.Fatalf("bar subscriber got %v", got)
	}
}

func TestStop(t *testing.T) {
	s := clock.New(4)
	sub := s.Subscribe()
	done := make(chan struct{})
	go func() {
		for range sub.C {
			sub.Done()
		}
		close(done)
	}()
	if _, err := s.Advance(context.Background()); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	s.Stop()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber did not exit after Stop")
	}
	if _, err := s.Advance(context.Background()); !errors.Is(err, clock.ErrStopped) {
		t.Fatalf("Advance after Stop returned %v, expected ErrStopped", err)
	}
	late := s.Subscribe()
	if _, ok := <-late.C; ok {
		t.Fatal("subscription after Stop should be closed")
	}
	s.Reset()
	ev, err := s.Advance(context.Background())
	if err != nil || ev.Tick != 0 {
		t.Fatalf("after Reset got %+v, %v", ev, err)
	}
}

func TestStopDuringBroadcast(t *testing.T) {
	s := clock.New(4)
	sub := s.Subscribe()
	received := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.C {
			close(received)
			<-release
			sub.Done()
		}
	}()
	go func() {
		<-received
		s.Stop()
	}()
	if _, err := s.Advance(context.Background()); !errors.Is(err, clock.ErrStopped) {
		t.Fatalf("Advance interrupted by Stop returned %v, expected ErrStopped", err)
	}
	if got := s.Tick(); got != 0 {
		t.Fatalf("abandoned tick was counted, Tick() = %v", got)
	}
	close(release)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber did not exit after Stop")
	}
}

func TestCancelSubscription(t *testing.T) {
	s := clock.New(4)
	sub := s.Subscribe()
	other := s.Subscribe()
	go func() {
		for range other.C {
			other.Done()
		}
	}()
	go func() {
		<-sub.C
		sub.Cancel()
	}()
	if err := s.RunTicks(context.Background(), 8); err != nil {
		t.Fatalf("RunTicks failed: %v", err)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("cancelled subscription should be closed")
	}
	s.Stop()
}

func TestContextCancel(t *testing.T) {
	s := clock.New(4)
	s.Subscribe() // never read
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Advance(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Advance returned %v, expected deadline exceeded", err)
	}
	if _, err := s.Advance(context.Background()); !errors.Is(err, clock.ErrStopped) {
		t.Fatalf("scheduler should stop after a cancelled broadcast, got %v", err)
	}
}

func TestRun(t *testing.T) {
	s := clock.New(4)
	count := 0
	s.OnTick(func(clock.Event) { count++ })
	if err := s.Run(context.Background(), time.Millisecond, 5); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("got %v ticks, expected 5", count)
	}
}
