// Package rcon implements the RCON connection (C2) and its command queue (C3):
// a TCP client over the wire codec in internal/rcon/codec, with an auth handshake,
// auto-reconnect with backoff and jitter, and a FIFO single-outstanding-command
// queue. Grounded on internal/squad-rcon-go/rcon.go's connect/auth/reconnect/
// byteReader shape, generalized to the explicit state machine below and rebuilt on
// top of the typed decode contract instead of a raw byte-at-a-time buffer scan.
package rcon

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/rcon/codec"
	"github.com/opsquad/supervisor/internal/rcon/parser"
)

// State is one of the connection's lifecycle states.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Conn.
type Config struct {
	Host                 string
	Port                 int
	Password             string
	ConnectTimeout       time.Duration
	AutoReconnect        bool
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 = infinite
	CommandTimeout       time.Duration
	HeartbeatInterval    time.Duration
}

func (c *Config) setDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
}

// ChatHandler receives classified unsolicited chat/admin events (C4 output).
type ChatHandler func(parser.ChatEvent)

// StateChangeHandler is notified on every state transition.
type StateChangeHandler func(from, to State)

// Conn is an RCON connection with an embedded command queue.
type Conn struct {
	cfg     Config
	log     zerolog.Logger
	onChat  ChatHandler
	onState StateChangeHandler

	mu       sync.RWMutex
	state    State
	conn     net.Conn
	attempts int

	queue *commandQueue

	ingressBuf []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Conn. Connect must be called to establish the session.
func New(cfg Config, log zerolog.Logger, onChat ChatHandler, onState StateChangeHandler) *Conn {
	cfg.setDefaults()
	return &Conn{
		cfg:     cfg,
		log:     log.With().Str("component", "rcon").Logger(),
		onChat:  onChat,
		onState: onState,
		state:   StateDisconnected,
		queue:   newCommandQueue(),
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("state transition")
		if c.onState != nil {
			c.onState(prev, s)
		}
	}
}

// Connect dials the server, performs the auth handshake, and starts the ingress
// loop and heartbeat. On success the connection is CONNECTED; on failure it
// schedules a reconnect if AutoReconnect is set, except when the server
// rejects the password (AUTH_FAILED), which is never retried.
func (c *Conn) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c.connectOnce()
}

func (c *Conn) connectOnce() error {
	c.setState(StateConnecting)

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, c.cfg.ConnectTimeout)
	if err != nil {
		c.setState(StateDisconnected)
		c.scheduleReconnect()
		return errs.Wrap(errs.KindConnectionRefused, err, "rcon: dial failed")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateAuthenticating)
	if err := c.authenticate(conn); err != nil {
		conn.Close()
		c.setState(StateDisconnected)
		if kind, ok := errs.KindOf(err); !ok || kind != errs.KindAuthFailed {
			c.scheduleReconnect()
		}
		return err
	}

	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	c.setState(StateConnected)

	c.wg.Add(2)
	go c.ingressLoop(conn)
	go c.heartbeatLoop()

	return nil
}

// authenticate sends the AUTH frame and waits for AUTH_RESPONSE, discarding the
// pre-auth RESPONSE/END echo frame.
func (c *Conn) authenticate(conn net.Conn) error {
	if _, err := conn.Write(codec.Encode(codec.TypeAuth, codec.IDEnd, c.cfg.Password)); err != nil {
		return errs.Wrap(errs.KindConnectionClosed, err, "rcon: auth write failed")
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 0, 256)
	tmp := make([]byte, 256)

	for {
		n, err := conn.Read(tmp)
		if err != nil {
			return errs.Wrap(errs.KindConnectionClosed, err, "rcon: auth read failed")
		}
		buf = append(buf, tmp[:n]...)

		for {
			res := codec.Decode(buf)
			switch res.Status {
			case codec.StatusOK:
				buf = buf[res.Consumed:]
				if res.Packet.Type == codec.TypeResponse && res.Packet.ID == codec.IDEnd {
					continue
				}
				if res.Packet.Type == codec.TypeAuthResponse {
					if res.Packet.ID == codec.IDAuthFailed {
						return errs.New(errs.KindAuthFailed, "rcon: authentication rejected")
					}
					return nil
				}
				continue
			case codec.StatusBrokenPacket:
				buf = buf[res.Consumed:]
				continue
			case codec.StatusIncomplete:
			default:
				return errs.New(errs.KindParseError, "rcon: malformed auth response")
			}
			break
		}
	}
}

func (c *Conn) scheduleReconnect() {
	if !c.cfg.AutoReconnect {
		return
	}
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	maxAttempts := c.cfg.MaxReconnectAttempts
	c.mu.Unlock()

	if maxAttempts > 0 && attempt > maxAttempts {
		c.log.Warn().Int("attempts", attempt).Msg("giving up reconnecting")
		return
	}

	delay := backoffDelay(c.cfg.ReconnectDelay, attempt)
	c.log.Info().Dur("delay", delay).Int("attempt", attempt).Msg("scheduling reconnect")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}
		if c.ctx.Err() != nil {
			return
		}
		c.connectOnce()
	}()
}

// backoffDelay computes min(base*2^attempt, 60s) with +/-10% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	const capDelay = 60 * time.Second
	d := base
	for i := 0; i < attempt && d < capDelay; i++ {
		d *= 2
	}
	if d > capDelay {
		d = capDelay
	}
	jitter := float64(d) * 0.10
	offset := (rand.Float64()*2 - 1) * jitter
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		result = 0
	}
	return result
}

func (c *Conn) ingressLoop(conn net.Conn) {
	defer c.wg.Done()
	reader := make([]byte, 4096)

	for {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := conn.Read(reader)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-c.ctx.Done():
					return
				default:
					continue
				}
			}
			c.handleDisconnect()
			return
		}

		c.mu.Lock()
		c.ingressBuf = append(c.ingressBuf, reader[:n]...)
		buf := c.ingressBuf
		c.mu.Unlock()

		packets, consumed, incomplete := codec.DecodeStream(buf)
		c.mu.Lock()
		c.ingressBuf = c.ingressBuf[consumed:]
		c.mu.Unlock()

		for _, pkt := range packets {
			c.dispatch(pkt)
		}

		if incomplete != nil && incomplete.Status != codec.StatusIncomplete {
			c.log.Warn().Str("reason", incomplete.Reason).Msg("rcon: malformed frame, resetting ingress buffer")
			c.mu.Lock()
			c.ingressBuf = nil
			c.mu.Unlock()
		}

		select {
		case <-c.ctx.Done():
			return
		default:
		}
	}
}

// dispatch classifies a decoded frame per the connection's ingress rules:
// unsolicited chat is routed to the chat classifier, everything else to the
// command queue as a correlated response fragment.
func (c *Conn) dispatch(pkt codec.Packet) {
	if parser.IsChatSuspected(pkt.Body) {
		if ev, ok := parser.ClassifyChat(pkt.Body); ok {
			if !ev.IDs.Invalid && c.onChat != nil {
				c.onChat(ev)
			}
			return
		}
	}

	c.queue.handleFrame(pkt)
}

func (c *Conn) handleDisconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.ingressBuf = nil
	c.mu.Unlock()

	c.setState(StateDisconnected)
	c.queue.abortAll()
	c.scheduleReconnect()
}

func (c *Conn) heartbeatLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.State() != StateConnected {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CommandTimeout)
			_, err := c.Execute(ctx, "ShowNextMap")
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Msg("heartbeat command failed")
			}
		}
	}
}

// Execute submits a command and blocks until its response is assembled, a
// COMMAND_TIMEOUT fires, or the connection aborts it.
func (c *Conn) Execute(ctx context.Context, command string) (string, error) {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return "", errs.New(errs.KindInvalidState, "rcon: not connected")
	}

	cmd := c.queue.submit(command, c.cfg.CommandTimeout)

	if err := cmd.awaitTurn(ctx); err != nil {
		return cmd.result(ctx)
	}

	if _, err := conn.Write(codec.Encode(codec.TypeExec, codec.IDMid, command)); err != nil {
		c.queue.failInFlight(cmd, errs.Wrap(errs.KindConnectionClosed, err, "rcon: write failed"))
		return cmd.result(ctx)
	}
	if _, err := conn.Write(codec.Encode(codec.TypeExec, codec.IDEnd, "")); err != nil {
		c.queue.failInFlight(cmd, errs.Wrap(errs.KindConnectionClosed, err, "rcon: write failed"))
		return cmd.result(ctx)
	}

	return cmd.result(ctx)
}

// Close transitions to DISCONNECTING, aborts in-flight commands, and closes the
// socket. Cancellation is cooperative: a handler that refuses to return cannot be
// forcibly killed.
func (c *Conn) Close() {
	c.setState(StateDisconnecting)
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	c.queue.abortAll()
	c.setState(StateDisconnected)
}
