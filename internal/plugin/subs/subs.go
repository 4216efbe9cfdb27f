// Package subs implements the subscription manager (C13): per-plugin
// bookkeeping of event unsubscribe functions, intervals, and timeouts, so
// that a single cleanup() call can unwind everything a plugin registered
// during mount regardless of how many of each it created.
//
// Grounded on an event manager's Unsubscribe (closes the subscriber's
// channel and deletes its map entry); generalized here to also track
// intervals and timeouts, using time.Ticker/time.Timer directly — an RCON
// connection manager's own ticker loops are likewise built on the stdlib
// timer primitives, so there is no third-party scheduling library to adopt
// for this concern.
package subs

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/errs"
)

// Counts is the tally cleanup() returns.
type Counts struct {
	Unsubscribed int
	Intervals    int
	Timeouts     int
}

type entry struct {
	unsub func()
}

type timerKind int

const (
	timerInterval timerKind = iota
	timerTimeout
)

type timer struct {
	kind timerKind
	stop func()
}

// Manager tracks one plugin's subscriptions, intervals, and timeouts.
type Manager struct {
	mu     sync.Mutex
	log    zerolog.Logger
	nextID uint64
	subs   map[uint64]entry
	timers map[uint64]timer
	closed bool
}

// New constructs a Manager scoped to a single plugin instance.
func New(log zerolog.Logger) *Manager {
	return &Manager{
		log:    log,
		subs:   make(map[uint64]entry),
		timers: make(map[uint64]timer),
	}
}

// TrackSubscription records an unsubscribe function and returns a wrapper
// around it: calling the wrapper both runs the original unsubscribe and
// removes the bookkeeping entry, so a plugin that unsubscribes itself before
// unmount does not leave a stale entry for cleanup to double-release.
// Calling the wrapper more than once is a no-op after the first call.
func (m *Manager) TrackSubscription(unsub func()) (func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errs.New(errs.KindPluginLifecycle, "subs: manager already cleaned up")
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = entry{unsub: unsub}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			unsub()
		})
	}, nil
}

// SetInterval wraps fn to run every interval, catching and logging any error
// fn returns rather than letting it propagate, and registers the ticker for
// cleanup(). The returned cancel function stops the ticker early.
func (m *Manager) SetInterval(interval time.Duration, fn func() error) (cancel func(), err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errs.New(errs.KindPluginLifecycle, "subs: manager already cleaned up")
	}
	id := m.nextID
	m.nextID++

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	m.timers[id] = timer{kind: timerInterval, stop: func() { ticker.Stop(); close(done) }}
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := fn(); err != nil {
					m.log.Error().Err(err).Msg("plugin interval callback failed")
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			t, ok := m.timers[id]
			delete(m.timers, id)
			m.mu.Unlock()
			if ok {
				t.stop()
			}
		})
	}, nil
}

// SetTimeout wraps fn to run once after delay, catching and logging any
// error it returns, and automatically removes itself from tracking once it
// fires. The returned cancel function prevents fn from firing if called
// before delay elapses.
func (m *Manager) SetTimeout(delay time.Duration, fn func() error) (cancel func(), err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errs.New(errs.KindPluginLifecycle, "subs: manager already cleaned up")
	}
	id := m.nextID
	m.nextID++

	var fired sync.Once
	t := time.AfterFunc(delay, func() {
		fired.Do(func() {
			m.mu.Lock()
			delete(m.timers, id)
			m.mu.Unlock()
			if err := fn(); err != nil {
				m.log.Error().Err(err).Msg("plugin timeout callback failed")
			}
		})
	})
	m.timers[id] = timer{kind: timerTimeout, stop: func() { t.Stop() }}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			fired.Do(func() {})
			m.mu.Lock()
			tm, ok := m.timers[id]
			delete(m.timers, id)
			m.mu.Unlock()
			if ok {
				tm.stop()
			}
		})
	}, nil
}

// Cleanup invokes every tracked unsubscribe function (swallowing panics so
// one bad plugin callback cannot stop the rest from releasing), stops every
// tracked interval/timeout, and marks the manager closed: further
// TrackSubscription/SetInterval/SetTimeout calls fail explicitly rather than
// silently leaking past cleanup.
func (m *Manager) Cleanup() Counts {
	m.mu.Lock()
	subs := m.subs
	timers := m.timers
	m.subs = make(map[uint64]entry)
	m.timers = make(map[uint64]timer)
	m.closed = true
	m.mu.Unlock()

	var counts Counts
	for _, e := range subs {
		m.safeRun(e.unsub)
		counts.Unsubscribed++
	}
	for _, t := range timers {
		m.safeRun(t.stop)
		if t.kind == timerInterval {
			counts.Intervals++
		} else {
			counts.Timeouts++
		}
	}
	return counts
}

func (m *Manager) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("plugin cleanup callback panicked")
		}
	}()
	fn()
}
