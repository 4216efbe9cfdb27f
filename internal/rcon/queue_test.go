package rcon

import (
	"context"
	"testing"
	"time"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/rcon/codec"
)

// TestFIFOOrderingGuarantee exercises the command queue's FIFO ordering guarantee:
// for commands submitted in order A then B, A's completion fires strictly before
// B's, because at most one command is ever in flight.
func TestFIFOOrderingGuarantee(t *testing.T) {
	q := newCommandQueue()

	a := q.submit("cmdA", time.Second)
	b := q.submit("cmdB", time.Second)

	// b must not yet be ready to send its EXEC frames.
	select {
	case <-b.ready:
		t.Fatalf("expected b to wait for a to complete")
	default:
	}

	var order []string
	done := make(chan struct{}, 2)

	go func() {
		s, err := a.result(context.Background())
		if err != nil {
			t.Errorf("unexpected error for a: %v", err)
		}
		order = append(order, "a:"+s)
		done <- struct{}{}
	}()

	q.handleFrame(codec.Packet{Type: codec.TypeResponse, ID: codec.IDMid, Body: "hello "})
	q.handleFrame(codec.Packet{Type: codec.TypeResponse, ID: codec.IDEnd})
	<-done

	select {
	case <-b.ready:
	case <-time.After(time.Second):
		t.Fatalf("expected b to become ready after a completes")
	}

	go func() {
		s, err := b.result(context.Background())
		if err != nil {
			t.Errorf("unexpected error for b: %v", err)
		}
		order = append(order, "b:"+s)
		done <- struct{}{}
	}()

	q.handleFrame(codec.Packet{Type: codec.TypeResponse, ID: codec.IDMid, Body: "world"})
	q.handleFrame(codec.Packet{Type: codec.TypeResponse, ID: codec.IDEnd})
	<-done

	if len(order) != 2 || order[0] != "a:hello " || order[1] != "b:world" {
		t.Fatalf("unexpected completion order: %v", order)
	}
}

func TestCommandTimeoutIsRecoverableAndAdvancesQueue(t *testing.T) {
	q := newCommandQueue()
	a := q.submit("cmdA", 10*time.Millisecond)
	b := q.submit("cmdB", time.Second)

	_, err := a.result(context.Background())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.KindCommandTimeout {
		t.Fatalf("expected KindCommandTimeout, got %v ok=%v", kind, ok)
	}
	if !errs.IsRecoverable(err) {
		t.Fatalf("expected COMMAND_TIMEOUT to be recoverable")
	}

	select {
	case <-b.ready:
	case <-time.After(time.Second):
		t.Fatalf("expected queue to advance to b after a timed out")
	}
}

func TestAbortAllFailsQueuedAndInFlightCommands(t *testing.T) {
	q := newCommandQueue()
	a := q.submit("cmdA", time.Second)
	b := q.submit("cmdB", time.Second)

	q.abortAll()

	for name, cmd := range map[string]*command{"a": a, "b": b} {
		_, err := cmd.result(context.Background())
		if err == nil {
			t.Fatalf("expected %s to be aborted", name)
		}
		kind, ok := errs.KindOf(err)
		if !ok || kind != errs.KindCommandAborted {
			t.Fatalf("expected KindCommandAborted for %s, got %v", name, kind)
		}
		if errs.IsRecoverable(err) {
			t.Fatalf("expected COMMAND_ABORTED to be non-recoverable for %s", name)
		}
	}
}

func TestAwaitTurnUnblocksOnAbortBeforePromotion(t *testing.T) {
	q := newCommandQueue()
	a := q.submit("cmdA", time.Second)
	b := q.submit("cmdB", time.Second)

	go q.abortAll()

	if err := b.awaitTurn(context.Background()); err == nil {
		t.Fatalf("expected awaitTurn to report the abort error")
	}
	_ = a
}
