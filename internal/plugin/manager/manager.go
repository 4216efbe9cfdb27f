// Package manager implements the plugin manager (C19): it owns the set of
// configured plugins, loads and mounts them in dependency order, and
// unmounts them in reverse, giving each one its own PluginContext, runner,
// and circuit breaker.
//
// Grounded on an extension manager's register/initialize/dispatch/shutdown
// shape — including its per-instance, error-collected-but-continuing
// shutdown loop — extended with an explicit Kahn topological sort over
// meta.dependencies, replacing initialization in arbitrary configured order
// with no dependency graph at all.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/events"
	"github.com/opsquad/supervisor/internal/orchestrator"
	"github.com/opsquad/supervisor/internal/plugin"
	"github.com/opsquad/supervisor/internal/plugin/breaker"
	"github.com/opsquad/supervisor/internal/plugin/connector"
	"github.com/opsquad/supervisor/internal/plugin/loader"
	"github.com/opsquad/supervisor/internal/plugin/options"
	"github.com/opsquad/supervisor/internal/plugin/runner"
)

// PluginEntry is one configured plugin: a name to load and the raw option
// values to resolve against its declared OptionsSpec. Reading this from a
// config file is outside this package's scope; callers hand entries in
// already decoded.
type PluginEntry struct {
	Name    string
	Enabled bool
	Options map[string]interface{}
}

// Config bounds the per-plugin breaker and runner defaults the manager
// applies to every mounted plugin.
type Config struct {
	Breaker breaker.Config
	Runner  runner.Config
}

// mounted records everything the manager needs to unmount a plugin later.
type mounted struct {
	name    string
	runner  *runner.Runner
	pc      *plugin.Context
	breaker *breaker.Breaker
}

// Manager owns plugin loading, mounting, and unmounting for one orchestrator
// instance.
type Manager struct {
	cfg        Config
	registry   *loader.Registry
	connectors *connector.Registry
	bus        *events.Bus
	orch       *orchestrator.Orchestrator
	log        zerolog.Logger

	mu      sync.Mutex
	entries map[string]PluginEntry
	loaded  map[string]loader.Result
	order   []string // mount order, for reverse unmount
	byName  map[string]*mounted
}

// New constructs a Manager. registry resolves configured names to
// constructors (C16); connectors is the shared connector registry (C15);
// bus and orch are handed to every plugin's Context unmodified.
func New(cfg Config, registry *loader.Registry, connectors *connector.Registry, bus *events.Bus, orch *orchestrator.Orchestrator, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		registry:   registry,
		connectors: connectors,
		bus:        bus,
		orch:       orch,
		log:        log,
		entries:    make(map[string]PluginEntry),
		loaded:     make(map[string]loader.Result),
		byName:     make(map[string]*mounted),
	}
}

// LoadAll invokes the loader for every enabled entry, recording each
// successful load for MountAll and collecting (not short-circuiting on)
// every failure.
func (m *Manager) LoadAll(entries []PluginEntry) []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errsOut []error
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		res, err := m.registry.Load(entry.Name)
		if err != nil {
			errsOut = append(errsOut, fmt.Errorf("plugin %q: %w", entry.Name, err))
			continue
		}
		m.entries[entry.Name] = entry
		m.loaded[entry.Name] = res
	}
	return errsOut
}

// MountAll mounts every loaded plugin in dependency order, computed with
// Kahn's algorithm over meta.Dependencies. A dependency that was never
// loaded is not an error — the dependent plugin is still mounted, with a
// warning logged. A dependency cycle leaves the involved plugins out of the
// topological order entirely; they are not mounted, and each failure to
// mount is reported as one of the returned errors.
func (m *Manager) MountAll(ctx context.Context) []error {
	m.mu.Lock()
	order, cyclic := m.topoOrderLocked()
	m.mu.Unlock()

	var errsOut []error
	for _, name := range cyclic {
		err := errs.New(errs.KindPluginLifecycle, "plugin dependency cycle detected; not mounted", "plugin", name)
		m.log.Error().Str("plugin", name).Msg("plugin dependency cycle detected; not mounted")
		errsOut = append(errsOut, err)
	}

	for _, name := range order {
		if err := m.mountOne(ctx, name); err != nil {
			m.log.Error().Err(err).Str("plugin", name).Msg("failed to mount plugin")
			errsOut = append(errsOut, err)
			continue
		}
		m.mu.Lock()
		m.order = append(m.order, name)
		m.mu.Unlock()
	}
	return errsOut
}

// UnmountAll unmounts every mounted plugin in the reverse of its mount
// order. Every plugin is given the chance to unmount even if an earlier one
// failed; every failure is collected and returned, none of them abort the
// loop.
func (m *Manager) UnmountAll(ctx context.Context) []error {
	m.mu.Lock()
	order := append([]string(nil), m.order...)
	m.mu.Unlock()

	var errsOut []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		m.mu.Lock()
		rec, ok := m.byName[name]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if err := rec.runner.Unmount(ctx); err != nil {
			errsOut = append(errsOut, fmt.Errorf("plugin %q: %w", name, err))
		}
	}

	m.mu.Lock()
	m.order = nil
	m.byName = make(map[string]*mounted)
	m.mu.Unlock()

	return errsOut
}

// State reports the lifecycle state of a mounted plugin.
func (m *Manager) State(name string) (runner.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byName[name]
	if !ok {
		return "", false
	}
	return rec.runner.State(), true
}

func (m *Manager) mountOne(ctx context.Context, name string) error {
	m.mu.Lock()
	res := m.loaded[name]
	entry := m.entries[name]
	m.mu.Unlock()

	resolved, verrs := options.Resolve(res.OptionsSpec, entry.Options, m.connectorLookup)
	if len(verrs) > 0 {
		return errs.New(errs.KindOptionsValidation, "plugin options failed validation", "plugin", name, "errors", verrs)
	}

	instance := res.Class()
	if instance == nil {
		return errs.New(errs.KindPluginLifecycle, "plugin constructor returned a nil instance", "plugin", name)
	}

	brk := breaker.New(m.cfg.Breaker)
	pc := plugin.NewContext(name, m.bus, m.orch, m.connectors, m.log, resolved, brk)
	r := runner.New(instance, pc, m.cfg.Runner, m.log)

	if err := r.Prepare(ctx); err != nil {
		return fmt.Errorf("plugin %q: prepare: %w", name, err)
	}
	if err := r.Mount(ctx); err != nil {
		return fmt.Errorf("plugin %q: mount: %w", name, err)
	}

	m.mu.Lock()
	m.byName[name] = &mounted{name: name, runner: r, pc: pc, breaker: brk}
	m.mu.Unlock()
	return nil
}

// connectorLookup adapts the connector registry's context-aware Get to the
// options package's ConnectorLookup shape, which Resolve calls with no
// context of its own; lazily connecting a connector during option
// resolution uses a background context since there is no natural
// per-mount deadline to inherit here.
func (m *Manager) connectorLookup(name string) (interface{}, error) {
	return m.connectors.Get(context.Background(), name)
}

// topoOrderLocked computes a Kahn topological order over the loaded
// plugins' dependency graph. Plugins are visited in a fixed, sorted
// iteration order so the result is deterministic given the same loaded
// set. Any plugin left out of the order because its in-degree never
// reached zero is returned in cyclic.
func (m *Manager) topoOrderLocked() (order []string, cyclic []string) {
	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	sort.Strings(names)

	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string)
	for _, name := range names {
		indegree[name] = 0
	}
	for _, name := range names {
		for _, dep := range m.loaded[name].Meta.Dependencies {
			if _, ok := m.loaded[dep]; !ok {
				m.log.Warn().Str("plugin", name).Str("dependency", dep).Msg("dependency not loaded; mounting anyway")
				continue
			}
			dependents[dep] = append(dependents[dep], name)
			indegree[name]++
		}
	}

	queue := make([]string, 0, len(names))
	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	visited := make(map[string]bool, len(names))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		visited[name] = true

		next := append([]string(nil), dependents[name]...)
		sort.Strings(next)
		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	for _, name := range names {
		if !visited[name] {
			cyclic = append(cyclic, name)
		}
	}
	return order, cyclic
}
