package app

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCountdownTicksUntilStopped(t *testing.T) {
	c := newCountdown(5 * time.Millisecond)
	var ticks atomic.Int32

	c.start(func() { ticks.Add(1) })
	time.Sleep(40 * time.Millisecond)
	c.stop()
	after := ticks.Load()
	if after == 0 {
		t.Fatal("expected at least one tick")
	}

	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("expected no ticks after stop, got %d extra", ticks.Load()-after)
	}
}

func TestCountdownStopIdempotent(t *testing.T) {
	c := newCountdown(time.Millisecond)
	c.start(func() {})
	c.stop()
	c.stop() // must be a no-op
}

func TestCountdownRestartCancelsPrevious(t *testing.T) {
	c := newCountdown(5 * time.Millisecond)
	var first, second atomic.Int32

	c.start(func() { first.Add(1) })
	c.start(func() { second.Add(1) })
	time.Sleep(30 * time.Millisecond)
	c.stop()

	if first.Load() > 1 {
		t.Fatalf("expected first ticker cancelled promptly, got %d ticks", first.Load())
	}
	if second.Load() == 0 {
		t.Fatal("expected second ticker to run")
	}
}
