package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestFirstInvocationHappensAfterIntervalNotImmediately(t *testing.T) {
	s := New(context.Background())
	defer s.StopAll()

	var calls int64
	if err := s.Register("t", 40*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("expected no invocation before the first interval elapses")
	}

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt64(&calls) < 1 {
		t.Fatalf("expected at least one invocation after the interval elapsed")
	}
}

func TestOverlappingTickIsSkippedAndCounted(t *testing.T) {
	s := New(context.Background())
	defer s.StopAll()

	release := make(chan struct{})
	started := make(chan struct{}, 1)

	if err := s.Register("slow", 15*time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	<-started
	// Several ticks will fire while the first execution blocks on release.
	time.Sleep(80 * time.Millisecond)
	close(release)
	time.Sleep(30 * time.Millisecond)

	stats, ok := s.Stats("slow")
	if !ok {
		t.Fatalf("expected stats for registered task")
	}
	if stats.Overlapped == 0 {
		t.Fatalf("expected at least one overlapped tick to be recorded")
	}
}

func TestStatsRecordFailures(t *testing.T) {
	s := New(context.Background())
	defer s.StopAll()

	if err := s.Register("failing", 15*time.Millisecond, func(ctx context.Context) error {
		return errAlways
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	stats, ok := s.Stats("failing")
	if !ok {
		t.Fatalf("expected stats")
	}
	if stats.Invocations == 0 || stats.Failures == 0 {
		t.Fatalf("expected invocations and failures to be recorded, got %+v", stats)
	}
	if stats.LastError == nil {
		t.Fatalf("expected LastError to be set")
	}
}

func TestSetEnabledFalseSkipsExecution(t *testing.T) {
	s := New(context.Background())
	defer s.StopAll()

	var calls int64
	if err := s.Register("toggle", 15*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.SetEnabled("toggle", false); err != nil {
		t.Fatalf("setEnabled: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("expected disabled task to never execute, got %d calls", calls)
	}
}

func TestStopAllCancelsAllTasks(t *testing.T) {
	s := New(context.Background())

	var calls int64
	if err := s.Register("a", 15*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := s.Register("b", 15*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}); err != nil {
		t.Fatalf("register b: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	s.StopAll()
	after := atomic.LoadInt64(&calls)
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt64(&calls) != after {
		t.Fatalf("expected no further invocations after StopAll")
	}
}

type staticError string

func (e staticError) Error() string { return string(e) }

const errAlways = staticError("boom")
