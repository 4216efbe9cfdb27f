package subs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestManager() *Manager {
	return New(zerolog.Nop())
}

func TestTrackSubscriptionWrapperRunsUnsubscribeOnce(t *testing.T) {
	m := newTestManager()
	var calls int32
	unsub, err := m.TrackSubscription(func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatalf("TrackSubscription: %v", err)
	}

	unsub()
	unsub()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected unsubscribe to run exactly once, ran %d times", got)
	}
}

func TestTrackSubscriptionSelfUnsubscribeThenCleanupDoesNotDoubleRelease(t *testing.T) {
	m := newTestManager()
	var calls int32
	unsub, _ := m.TrackSubscription(func() { atomic.AddInt32(&calls, 1) })

	unsub()
	counts := m.Cleanup()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one release, got %d", got)
	}
	if counts.Unsubscribed != 0 {
		t.Fatalf("cleanup should not count an already-released subscription, got %+v", counts)
	}
}

func TestCleanupInvokesAllTrackedUnsubscribes(t *testing.T) {
	m := newTestManager()
	var calls int32
	for i := 0; i < 3; i++ {
		if _, err := m.TrackSubscription(func() { atomic.AddInt32(&calls, 1) }); err != nil {
			t.Fatalf("TrackSubscription: %v", err)
		}
	}

	counts := m.Cleanup()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 unsubscribes to run, got %d", got)
	}
	if counts.Unsubscribed != 3 {
		t.Fatalf("expected Unsubscribed=3, got %+v", counts)
	}
}

func TestCleanupSwallowsPanicsFromUnsubscribe(t *testing.T) {
	m := newTestManager()
	var ranSecond bool
	if _, err := m.TrackSubscription(func() { panic("boom") }); err != nil {
		t.Fatalf("TrackSubscription: %v", err)
	}
	if _, err := m.TrackSubscription(func() { ranSecond = true }); err != nil {
		t.Fatalf("TrackSubscription: %v", err)
	}

	counts := m.Cleanup()

	if !ranSecond {
		t.Fatal("a panicking unsubscribe must not prevent the remaining ones from running")
	}
	if counts.Unsubscribed != 2 {
		t.Fatalf("expected both to count despite the panic, got %+v", counts)
	}
}

func TestSetIntervalFiresRepeatedlyAndStopsOnCleanup(t *testing.T) {
	m := newTestManager()
	var calls int32
	cancel, err := m.SetInterval(5*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	defer cancel()

	time.Sleep(30 * time.Millisecond)
	counts := m.Cleanup()

	if counts.Intervals != 1 {
		t.Fatalf("expected Intervals=1, got %+v", counts)
	}
	fired := atomic.LoadInt32(&calls)
	if fired < 2 {
		t.Fatalf("expected the interval to have fired multiple times, got %d", fired)
	}

	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != fired {
		t.Fatalf("interval kept firing after cleanup: before=%d after=%d", fired, got)
	}
}

func TestSetTimeoutFiresOnceAndAutoRemoves(t *testing.T) {
	m := newTestManager()
	var calls int32
	_, err := m.SetTimeout(5*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}

	time.Sleep(25 * time.Millisecond)
	counts := m.Cleanup()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected the timeout to fire exactly once, got %d", got)
	}
	if counts.Timeouts != 0 {
		t.Fatalf("a timeout that already fired must not still be tracked at cleanup, got %+v", counts)
	}
}

func TestSetTimeoutCancelBeforeFiringPreventsCallback(t *testing.T) {
	m := newTestManager()
	var calls int32
	cancel, err := m.SetTimeout(20*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}

	cancel()
	time.Sleep(30 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("a cancelled timeout must never fire, got %d calls", got)
	}
}

func TestIntervalErrorIsLoggedNotPropagated(t *testing.T) {
	m := newTestManager()
	var calls int32
	cancel, err := m.SetInterval(5*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return errBoom
	})
	if err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	defer cancel()

	time.Sleep(15 * time.Millisecond)
	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("expected the interval to keep firing despite returning an error each time")
	}
}

func TestTrackingAfterCleanupFailsExplicitly(t *testing.T) {
	m := newTestManager()
	m.Cleanup()

	if _, err := m.TrackSubscription(func() {}); err == nil {
		t.Fatal("expected TrackSubscription to fail after cleanup")
	}
	if _, err := m.SetInterval(time.Millisecond, func() error { return nil }); err == nil {
		t.Fatal("expected SetInterval to fail after cleanup")
	}
	if _, err := m.SetTimeout(time.Millisecond, func() error { return nil }); err == nil {
		t.Fatal("expected SetTimeout to fail after cleanup")
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
