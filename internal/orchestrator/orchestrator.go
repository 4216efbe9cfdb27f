// Package orchestrator implements the composition root (C12): it wires
// C2+C5-C11 together into a single running supervisor, exposes the
// read-model (player/squad/layer lookups) and the command API
// (broadcast/warn/kick/ban/execute), and owns the start/stop sequence.
// Grounded on an RCON-connection-manager's composition of the connection
// with event forwarding and periodic polling, generalized into an explicit
// single-server start/stop ordering.
package orchestrator

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/adminlist"
	"github.com/opsquad/supervisor/internal/correlate"
	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/events"
	"github.com/opsquad/supervisor/internal/logparser"
	"github.com/opsquad/supervisor/internal/logqueue"
	"github.com/opsquad/supervisor/internal/logsource"
	"github.com/opsquad/supervisor/internal/rcon"
	"github.com/opsquad/supervisor/internal/rcon/parser"
	"github.com/opsquad/supervisor/internal/scheduler"
	"github.com/opsquad/supervisor/internal/state"
)

// LogReaderMode selects which logsource.Source implementation Config.LogReader
// builds.
type LogReaderMode string

const (
	LogReaderLocal LogReaderMode = "local"
	LogReaderFTP   LogReaderMode = "ftp"
	LogReaderSFTP  LogReaderMode = "sftp"
)

// LogReaderConfig selects and configures the log reader (C5).
type LogReaderConfig struct {
	Mode  LogReaderMode
	Local logsource.LocalConfig
	FTP   logsource.FTPConfig
	SFTP  logsource.SFTPConfig

	// QueueMaxSize bounds the log line queue (C6). Defaults to 10000.
	QueueMaxSize int
}

// Config configures an Orchestrator:
// {RCON, LogReader, AdminListSources, UpdateIntervals, Plugins, Connectors}.
// Plugins/Connectors are consumed by the plugin host (C13-C19), not by the
// orchestrator itself.
type Config struct {
	RCON             rcon.Config
	LogReader        LogReaderConfig
	AdminListSources []adminlist.Source
	AdminListClient  *http.Client

	// UpdateIntervals overrides the scheduler's default task intervals by
	// name (see scheduler.DefaultTaskSpecs). Unnamed tasks keep their default.
	UpdateIntervals map[string]time.Duration

	// SettlingDelay is how long Start waits after the log reader comes up
	// before issuing the first parallel player/squad/map fetch. Defaults to
	// 2 seconds.
	SettlingDelay time.Duration

	// LayerHistoryDepth bounds the layer service's history. Defaults to
	// state.DefaultLayerHistoryDepth.
	LayerHistoryDepth int
}

func (c *Config) setDefaults() {
	if c.LogReader.QueueMaxSize <= 0 {
		c.LogReader.QueueMaxSize = 10000
	}
	if c.SettlingDelay <= 0 {
		c.SettlingDelay = 2 * time.Second
	}
}

// Orchestrator is the single-server composition root.
type Orchestrator struct {
	cfg Config
	log zerolog.Logger

	rc     *rcon.Conn
	source logsource.Source
	queue  *logqueue.Queue
	parser *logparser.Parser
	store  *correlate.Store
	bus    *events.Bus

	Players *state.PlayerService
	Squads  *state.SquadService
	Layers  *state.LayerService
	Admins  *state.AdminService

	sched *scheduler.Scheduler

	mu         sync.RWMutex
	running    bool
	drainCancel context.CancelFunc
	drainDone   chan struct{}

	// pendingMapChange is set by a NEW_GAME log event and consumed by the
	// next player-list fetch, gating the player service's tombstone-removal
	// policy.
	pendingMapChange atomic.Bool
}

// New constructs an Orchestrator. Start must be called to bring it up.
func New(cfg Config, log zerolog.Logger) (*Orchestrator, error) {
	cfg.setDefaults()
	log = log.With().Str("component", "orchestrator").Logger()

	o := &Orchestrator{
		cfg:    cfg,
		log:    log,
		parser: logparser.NewParser(),
		store:  correlate.New(),
		bus:    events.New(func(event string, err error) {
			log.Error().Err(err).Str("event", event).Msg("event handler failed")
		}),
	}

	o.Players = state.NewPlayerService(o.bus)
	o.Squads = state.NewSquadService(o.bus)
	o.Layers = state.NewLayerService(o.bus, cfg.LayerHistoryDepth)
	o.Admins = state.NewAdminService(cfg.AdminListSources, cfg.AdminListClient)

	o.queue = logqueue.New(logqueue.Config{
		MaxSize: cfg.LogReader.QueueMaxSize,
		OnDrop: func(n int) {
			log.Warn().Int("dropped", n).Msg("log queue dropped lines under pressure")
		},
	})

	src, err := buildSource(cfg.LogReader, log)
	if err != nil {
		return nil, err
	}
	o.source = src

	o.rc = rcon.New(cfg.RCON, log, o.handleChat, o.handleStateChange)

	return o, nil
}

func buildSource(cfg LogReaderConfig, log zerolog.Logger) (logsource.Source, error) {
	switch cfg.Mode {
	case LogReaderFTP:
		return logsource.NewFTP(cfg.FTP, log), nil
	case LogReaderSFTP:
		return logsource.NewSFTP(cfg.SFTP, log), nil
	case LogReaderLocal, "":
		return logsource.NewLocal(cfg.Local, log), nil
	default:
		return nil, errs.New(errs.KindOptionsValidation, "orchestrator: unknown log reader mode", "mode", cfg.Mode)
	}
}

func (o *Orchestrator) handleStateChange(from, to rcon.State) {
	o.log.Info().Stringer("from", from).Stringer("to", to).Msg("rcon state transition")
}

func (o *Orchestrator) handleChat(ev parser.ChatEvent) {
	if ev.IDs.Invalid {
		return
	}
	o.bus.Emit(string(ev.Kind), ev)
}

// Bus exposes the typed event emitter (C9) so the plugin host can subscribe.
func (o *Orchestrator) Bus() *events.Bus { return o.bus }

// IsRunning reports whether Start has completed successfully and Stop has
// not yet been called.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// Start brings the supervisor up in a fixed order: (1) RCON connect with
// auth, (2) admin lists load (non-fatal), (3) log parser start (fatal),
// (4) an initial parallel player/squad/map fetch after a settling delay,
// (5) scheduler tasks activate.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errs.New(errs.KindInvalidState, "orchestrator: already running")
	}
	o.mu.Unlock()

	if err := o.rc.Connect(ctx); err != nil {
		return err
	}

	if err := o.Admins.Refresh(ctx); err != nil {
		o.log.Warn().Err(err).Msg("initial admin list load failed; continuing with an empty admin list")
	}

	drainCtx, cancel := context.WithCancel(ctx)
	if err := o.source.Watch(drainCtx, func(line string) { o.queue.Enqueue(line) }); err != nil {
		cancel()
		o.rc.Close()
		return err
	}
	o.drainCancel = cancel
	o.drainDone = make(chan struct{})
	go o.drainLoop(drainCtx)

	select {
	case <-time.After(o.cfg.SettlingDelay):
	case <-ctx.Done():
	}
	o.fetchAll(ctx)

	o.sched = scheduler.New(ctx)
	o.registerScheduledTasks()

	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	return nil
}

// Stop tears the supervisor down in reverse order: scheduler, log reader,
// RCON connection.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.mu.Unlock()

	if o.sched != nil {
		o.sched.StopAll()
	}
	if o.drainCancel != nil {
		o.drainCancel()
	}
	o.source.Unwatch()
	<-o.drainDone
	o.rc.Close()
}

func (o *Orchestrator) drainLoop(ctx context.Context) {
	defer close(o.drainDone)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, line := range o.queue.DequeueMany(256) {
				ev, ok := o.parser.Parse(line)
				if !ok {
					continue
				}
				o.handleLogEvent(ev)
			}
		}
	}
}

func (o *Orchestrator) registerScheduledTasks() {
	for _, spec := range scheduler.DefaultTaskSpecs() {
		interval := spec.Interval
		if override, ok := o.cfg.UpdateIntervals[spec.Name]; ok && override > 0 {
			interval = override
		}

		var fn scheduler.TaskFunc
		switch spec.Name {
		case "playerList":
			fn = func(ctx context.Context) error { return o.fetchPlayers(ctx) }
		case "squadList":
			fn = func(ctx context.Context) error { return o.fetchSquads(ctx) }
		case "layerInfo":
			fn = func(ctx context.Context) error { return o.fetchLayerInfo(ctx) }
		case "adminList":
			fn = func(ctx context.Context) error { return o.Admins.Refresh(ctx) }
		default:
			continue
		}

		if err := o.sched.Register(spec.Name, interval, fn); err != nil {
			o.log.Error().Err(err).Str("task", spec.Name).Msg("failed to register scheduled task")
		}
	}
}
