// Package plugin defines the contract every plugin implements and the
// context object the plugin host injects at mount time. Grounded on an
// extension manager's Extension interface and ExtensionDefinition shape,
// narrowed to the {meta, optionsSpec, prepareToMount?, mount, unmount?}
// surface this module's plugin host specifies.
package plugin

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/events"
	"github.com/opsquad/supervisor/internal/orchestrator"
	"github.com/opsquad/supervisor/internal/plugin/breaker"
	"github.com/opsquad/supervisor/internal/plugin/connector"
	"github.com/opsquad/supervisor/internal/plugin/options"
	"github.com/opsquad/supervisor/internal/plugin/subs"
)

// Meta is a plugin's static identity, the fields the loader validates.
type Meta struct {
	Name           string
	Description    string
	Version        string
	DefaultEnabled bool
	Author         string
	URL            string
	Dependencies   []string
}

// Context is injected into a plugin at mount time, giving it scoped access
// to the event bus, the command API, the read-model, a child logger, and
// the connector registry. Subscriptions, intervals, and timeouts a plugin
// registers through Events/SetInterval/SetTimeout are tracked per-instance
// so Cleanup (called by the runner on unmount) revokes exactly this
// plugin's registrations and no one else's.
type Context struct {
	Events *ScopedBus
	// RCON and State both point at the same orchestrator, which owns both
	// the command API (Broadcast/Warn/Kick/Ban/Execute) and the read-model
	// (player/squad/layer lookups); they are split into two named fields
	// here only to match the PluginContext shape so a plugin's intent
	// ("I'm sending a command" vs "I'm reading state") stays visible at
	// the call site.
	RCON        *orchestrator.Orchestrator
	State       *orchestrator.Orchestrator
	Log         zerolog.Logger
	GetConnector func(ctx context.Context, name string) (connector.Connector, error)
	Options     map[string]interface{}

	subs *subs.Manager
}

// NewContext builds a plugin Context scoped to one plugin instance, name
// identifying it in logs and in subscription bookkeeping. brk, if non-nil,
// gates every handler this plugin registers through Events: a handler is
// skipped while brk is open, and a handler panic (recovered, same as the
// bus's own protection) is recorded as a breaker failure while a normal
// return is recorded as a success. A nil brk disables gating entirely,
// which is useful in tests that don't care about fault isolation.
func NewContext(name string, bus *events.Bus, orch *orchestrator.Orchestrator, registry *connector.Registry, log zerolog.Logger, resolvedOptions map[string]interface{}, brk *breaker.Breaker) *Context {
	sm := subs.New(log.With().Str("plugin", name).Logger())
	return &Context{
		Events: &ScopedBus{bus: bus, subs: sm, breaker: brk},
		RCON:   orch,
		State:  orch,
		Log:    log.With().Str("plugin", name).Logger(),
		GetConnector: func(ctx context.Context, connName string) (connector.Connector, error) {
			return registry.Get(ctx, connName)
		},
		Options: resolvedOptions,
		subs:    sm,
	}
}

// SetInterval registers a periodic callback, tracked for release on unmount.
func (c *Context) SetInterval(interval time.Duration, fn func() error) (cancel func(), err error) {
	return c.subs.SetInterval(interval, fn)
}

// SetTimeout registers a one-shot delayed callback, tracked for release on
// unmount.
func (c *Context) SetTimeout(delay time.Duration, fn func() error) (cancel func(), err error) {
	return c.subs.SetTimeout(delay, fn)
}

// Cleanup releases every subscription, interval, and timeout this context's
// plugin registered. Called by the runner as part of unmount, regardless of
// whether the plugin's own Unmount succeeded.
func (c *Context) Cleanup() subs.Counts {
	return c.subs.Cleanup()
}

// ScopedBus wraps the shared event bus so a plugin's On/Once calls are
// tracked by the per-instance subscription manager: calling the returned
// Unsubscribe both detaches the listener and removes the bookkeeping entry.
type ScopedBus struct {
	bus     *events.Bus
	subs    *subs.Manager
	breaker *breaker.Breaker
}

// On subscribes to every future emission of name. The returned function
// both unsubscribes the listener and untracks it.
func (s *ScopedBus) On(name string, h events.Handler) (func(), error) {
	unsub := s.bus.On(name, s.gate(h))
	return s.subs.TrackSubscription(func() { unsub() })
}

// Once subscribes to at most one future emission of name.
func (s *ScopedBus) Once(name string, h events.Handler) (func(), error) {
	unsub := s.bus.Once(name, s.gate(h))
	return s.subs.TrackSubscription(func() { unsub() })
}

// gate wraps h so it is skipped while the breaker is open and so its
// outcome (panic vs. normal return) feeds RecordFailure/RecordSuccess. With
// a nil breaker it returns h unchanged.
func (s *ScopedBus) gate(h events.Handler) events.Handler {
	if s.breaker == nil {
		return h
	}
	return func(payload interface{}) {
		if !s.breaker.Allow() {
			return
		}
		failed := true
		defer func() {
			if failed {
				s.breaker.RecordFailure()
			} else {
				s.breaker.RecordSuccess()
			}
		}()
		h(payload)
		failed = false
	}
}

// Emit re-exposes Bus.Emit so plugins can synthesize their own events for
// other plugins to consume.
func (s *ScopedBus) Emit(name string, payload interface{}) {
	s.bus.Emit(name, payload)
}

// Preparer is the optional prepareToMount() hook: plugins that need
// asynchronous setup before mounting (e.g. warming a cache) implement this
// in addition to Plugin.
type Preparer interface {
	PrepareToMount(ctx context.Context, pc *Context) error
}

// Plugin is the contract every plugin implements: {meta, optionsSpec,
// prepareToMount?, mount, unmount?}. Mount/Unmount are always present on the
// interface (a plugin with nothing to release on unmount just returns nil).
type Plugin interface {
	Meta() Meta
	OptionsSpec() options.Spec
	Mount(ctx context.Context, pc *Context) error
	Unmount(ctx context.Context, pc *Context) error
}

// Constructor builds a fresh Plugin instance. Plugins are registered as
// constructor references rather than loaded from a dynamic source path,
// since Go has no runtime dynamic-import analogue — the loader (C16)
// retains a named-registration API in place of path-based loading.
type Constructor func() Plugin
