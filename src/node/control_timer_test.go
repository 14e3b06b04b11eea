package node

import (
	"testing"
	"time"
)

func TestControlTimer(t *testing.T) {
	timer := NewControlTimer(func(d time.Duration) <-chan time.Time {
		return time.After(d)
	})

	go timer.Run(10 * time.Millisecond)
	defer timer.Shutdown()

	select {
	case <-timer.tickCh:
	case <-time.After(time.Second):
		t.Fatal("timer should tick")
	}

	// no Reset, no tick
	select {
	case <-timer.tickCh:
		t.Fatal("timer should stay idle until Reset")
	case <-time.After(50 * time.Millisecond):
	}

	timer.Reset(10 * time.Millisecond)

	select {
	case <-timer.tickCh:
	case <-time.After(time.Second):
		t.Fatal("timer should tick after Reset")
	}
}

func TestControlTimerShutdown(t *testing.T) {
	timer := NewRandomControlTimer()

	done := make(chan struct{})
	go func() {
		timer.Run(time.Hour)
		close(done)
	}()

	timer.Shutdown()
	timer.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return after Shutdown")
	}

	// Reset on a stopped timer does not block
	timer.Reset(time.Millisecond)
}
