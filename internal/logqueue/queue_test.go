package logqueue

import "testing"

// TestDropOldestUnderPressure covers a burst that
// outruns the parser drops the oldest lines rather than blocking the reader.
func TestDropOldestUnderPressure(t *testing.T) {
	var dropped int
	q := New(Config{MaxSize: 3, OnDrop: func(n int) { dropped += n }})

	for i := 0; i < 5; i++ {
		q.Enqueue(string(rune('a' + i)))
	}

	stats := q.Stats()
	if stats.CurrentDepth != 3 {
		t.Fatalf("expected depth 3, got %d", stats.CurrentDepth)
	}
	if stats.TotalDropped != 2 || dropped != 2 {
		t.Fatalf("expected 2 dropped, got stats=%d callback=%d", stats.TotalDropped, dropped)
	}

	item, ok := q.Dequeue()
	if !ok || item != "c" {
		t.Fatalf("expected oldest survivor 'c', got %q ok=%v", item, ok)
	}
}

func TestEnqueueManyDropsFromFrontFirst(t *testing.T) {
	q := New(Config{MaxSize: 2})
	q.Enqueue("1")
	q.EnqueueMany([]string{"2", "3", "4"})

	remaining := q.DequeueMany(10)
	if len(remaining) != 2 || remaining[0] != "3" || remaining[1] != "4" {
		t.Fatalf("expected [3 4], got %v", remaining)
	}
}

func TestHighWaterMarkFiresOnceUntilDrainedBelowThreshold(t *testing.T) {
	var fired int
	q := New(Config{MaxSize: 10, HighWaterMark: 0.8, OnHighWaterMark: func() { fired++ }})

	for i := 0; i < 8; i++ {
		q.Enqueue("x")
	}
	if fired != 1 {
		t.Fatalf("expected high water callback once, got %d", fired)
	}
	q.Enqueue("x")
	if fired != 1 {
		t.Fatalf("expected no repeat callback while still above threshold, got %d", fired)
	}

	q.DequeueMany(5)
	q.Enqueue("x")
	if fired != 1 {
		t.Fatalf("unexpected high-water retrigger below threshold: %d", fired)
	}
}

func TestDequeueEmptyReturnsNotOK(t *testing.T) {
	q := New(Config{MaxSize: 1})
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty dequeue to report ok=false")
	}
}
