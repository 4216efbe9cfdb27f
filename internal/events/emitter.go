// Package events implements the typed event emitter (C9): a listener
// registry keyed by event name with registration-ordered, synchronous
// dispatch. Grounded on an event-emitter's shape (a mutex-guarded map of
// name -> listener slice, on/once/removeListener), but the dispatch model is
// rebuilt: spawning one goroutine per listener per Emit call gives no
// registration-order delivery guarantee and no protection against a
// panicking handler. This implementation calls handlers synchronously, in
// registration order, recovering panics so one bad handler never stops the
// rest.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opsquad/supervisor/internal/errs"
)

// Handler receives an emitted event's payload.
type Handler func(payload interface{})

// ErrorLogger receives a handler panic or error, tagged with the event name.
type ErrorLogger func(event string, err error)

// Unsubscribe removes the listener it was returned for. Calling it more than
// once is a no-op.
type Unsubscribe func()

type listener struct {
	id       uint64
	once     bool
	callback Handler
}

// Bus is the listener registry. The zero value is not usable; construct with
// New.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]listener
	nextID    uint64
	onError   ErrorLogger
}

// New constructs an empty Bus. onError, if non-nil, is called whenever a
// handler panics; a nil onError silently discards these panics.
func New(onError ErrorLogger) *Bus {
	return &Bus{
		listeners: make(map[string][]listener),
		onError:   onError,
	}
}

// On registers a handler for every future emission of name, invoked in
// registration order relative to other handlers on the same name.
func (b *Bus) On(name string, h Handler) Unsubscribe {
	return b.register(name, h, false)
}

// Once registers a handler that fires at most once, then is removed
// automatically.
func (b *Bus) Once(name string, h Handler) Unsubscribe {
	return b.register(name, h, true)
}

func (b *Bus) register(name string, h Handler, once bool) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[name] = append(b.listeners[name], listener{id: id, once: once, callback: h})
	b.mu.Unlock()

	var removed bool
	var mu sync.Mutex
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if removed {
			return
		}
		removed = true
		b.removeByID(name, id)
	}
}

// Off removes every listener registered for name.
func (b *Bus) Off(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, name)
}

func (b *Bus) removeByID(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ls := b.listeners[name]
	for i, l := range ls {
		if l.id == id {
			b.listeners[name] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered for name, in registration order, with
// payload. A handler panic is recovered and reported to onError rather than
// propagating, so later handlers still run. Once-listeners are removed after
// they fire.
func (b *Bus) Emit(name string, payload interface{}) {
	b.mu.Lock()
	snapshot := append([]listener(nil), b.listeners[name]...)
	b.mu.Unlock()

	var onceIDs []uint64
	for _, l := range snapshot {
		b.invoke(name, l, payload)
		if l.once {
			onceIDs = append(onceIDs, l.id)
		}
	}
	for _, id := range onceIDs {
		b.removeByID(name, id)
	}
}

func (b *Bus) invoke(name string, l listener, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			if b.onError != nil {
				b.onError(name, fmt.Errorf("event handler panicked: %v", r))
			}
		}
	}()
	l.callback(payload)
}

// WaitFor blocks until the next emission of name or until ctx is done,
// whichever comes first. A context deadline surfaces as KindCommandTimeout
// (TIMEOUT); an explicit cancellation surfaces as KindCommandAborted
// (CANCELLED).
func (b *Bus) WaitFor(ctx context.Context, name string) (interface{}, error) {
	result := make(chan interface{}, 1)
	var unsub Unsubscribe
	unsub = b.Once(name, func(payload interface{}) {
		select {
		case result <- payload:
		default:
		}
	})
	defer unsub()

	select {
	case payload := <-result:
		return payload, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.KindCommandTimeout, ctx.Err(), "events: waitFor timed out before %q was emitted", name)
		}
		return nil, errs.Wrap(errs.KindCommandAborted, ctx.Err(), "events: waitFor cancelled before %q was emitted", name)
	}
}
