package engine

import (
	"testing"
	"time"
)

func TestSimDate(t *testing.T) {
	cases := map[uint64]string{
		0:  "Jan, year 1",
		1:  "Feb, year 1",
		11: "Dec, year 1",
		12: "Jan, year 2",
		25: "Feb, year 3",
	}
	for tick, want := range cases {
		if got := SimDate(tick); got != want {
			t.Fatalf("SimDate(%d) = %q, want %q", tick, got, want)
		}
	}
}

func TestLoopRunsAndStops(t *testing.T) {
	c := newTestCity(1)
	l := NewLoop(c)
	l.Interval = time.Millisecond

	fired := make(chan struct{}, 1)
	l.OnMonth = func(tick uint64, res TickResult) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}

	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop never ticked")
	}

	l.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}

	if c.Stats().Tick == 0 {
		t.Fatalf("loop should have advanced the city")
	}
}
