package rcon

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/rcon/codec"
)

// command is one in-flight or queued RCON command.
type command struct {
	text    string
	count   uint32
	timeout time.Duration

	ready chan struct{} // closed once this command becomes the in-flight one

	mu       sync.Mutex
	body     strings.Builder
	done     chan struct{}
	err      error
	timer    *time.Timer
	finished bool
}

func (c *command) finish(err error) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.err = err
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	close(c.done)
}

// result blocks until the command completes, the timeout fires, or ctx is
// cancelled.
func (c *command) result(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.err != nil {
			return "", c.err
		}
		return c.body.String(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// awaitTurn blocks until cmd is the in-flight command (ready to have its EXEC
// frames written) or the command has already been aborted/finished first.
func (c *command) awaitTurn(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commandQueue serializes commands one at a time, FIFO:
// at most one outstanding command; completions for commands submitted in order A
// then B fire in that order because only one command is ever in flight.
type commandQueue struct {
	mu      sync.Mutex
	pending []*command
	current *command
	seq     uint32
}

func newCommandQueue() *commandQueue {
	return &commandQueue{}
}

// submit enqueues cmd for execution. If the queue was idle it becomes the
// in-flight command immediately (ready closed, timeout armed); otherwise it
// waits in pending and only starts its timeout once advance() promotes it,
// so a queued command's EXEC frames are never interleaved with an
// in-flight one's on the wire.
func (q *commandQueue) submit(text string, timeout time.Duration) *command {
	cmd := &command{
		text:    text,
		count:   atomic.AddUint32(&q.seq, 1),
		timeout: timeout,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}

	q.mu.Lock()
	if q.current == nil {
		q.current = cmd
		q.mu.Unlock()
		q.armTimeout(cmd)
		close(cmd.ready)
	} else {
		q.pending = append(q.pending, cmd)
		q.mu.Unlock()
	}

	return cmd
}

func (q *commandQueue) armTimeout(cmd *command) {
	cmd.timer = time.AfterFunc(cmd.timeout, func() {
		cmd.finish(errs.New(errs.KindCommandTimeout, "rcon: command timed out waiting for END frame"))
		q.advance(cmd)
	})
}

// failInFlight finishes cmd with err immediately (used when the write itself
// fails) and advances the queue.
func (q *commandQueue) failInFlight(cmd *command, err error) {
	cmd.finish(err)
	q.advance(cmd)
}

// handleFrame routes a decoded RESPONSE frame to the currently in-flight command,
// concatenating MID fragments and completing on the END echo.
func (q *commandQueue) handleFrame(pkt codec.Packet) {
	if pkt.Type != codec.TypeResponse {
		return
	}

	q.mu.Lock()
	cmd := q.current
	q.mu.Unlock()
	if cmd == nil {
		return
	}

	switch pkt.ID {
	case codec.IDMid:
		cmd.mu.Lock()
		cmd.body.WriteString(pkt.Body)
		cmd.mu.Unlock()
	case codec.IDEnd:
		cmd.finish(nil)
		q.advance(cmd)
	}
}

// advance pops the next pending command (if any) into the current slot and
// starts its execution. It can be reached twice for the same command (END
// frame and timeout); the q.current check makes every call after the first a
// no-op.
func (q *commandQueue) advance(completed *command) {
	q.mu.Lock()
	if q.current != completed {
		q.mu.Unlock()
		return
	}
	if len(q.pending) == 0 {
		q.current = nil
		q.mu.Unlock()
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.current = next
	q.mu.Unlock()

	q.armTimeout(next)
	close(next.ready)
}

// abortAll fails the in-flight and every queued command with COMMAND_ABORTED,
// per the disconnect-clears-the-queue rule.
func (q *commandQueue) abortAll() {
	q.mu.Lock()
	all := q.pending
	if q.current != nil {
		all = append([]*command{q.current}, all...)
	}
	q.pending = nil
	q.current = nil
	q.mu.Unlock()

	for _, cmd := range all {
		cmd.finish(errs.New(errs.KindCommandAborted, "rcon: connection dropped"))
	}
}
