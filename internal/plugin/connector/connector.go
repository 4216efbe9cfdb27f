// Package connector implements the connector registry (C15): a typed store
// of {name -> factory} and {name -> instance}, making every external
// integration (Discord, a key/value store, a database) lazily initialized
// and shared across plugins.
//
// Grounded on a factory-registry shape ({type -> ConnectorFactory}, {id ->
// instance}), but made lazy: rather than eagerly creating every connector
// from a database row at startup, Get(name) creates and connects on first
// call and caches the result. DisconnectAll fans out over every initialized
// instance concurrently using golang.org/x/sync/errgroup for the goroutines,
// and collects every Disconnect error (not just the first) into a multierror.
package connector

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/opsquad/supervisor/internal/errs"
)

// Connector is the minimal contract every connector implementation
// satisfies; anything beyond this is connector-specific and lives behind a
// type assertion in the plugin code that uses it.
type Connector interface {
	Name() string
	IsConnected() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Factory constructs a Connector from its configuration. Factories are
// registered once (e.g. at startup, one per connector type) and instantiated
// lazily per configured name.
type Factory func(config map[string]interface{}) (Connector, error)

type registration struct {
	factory Factory
	config  map[string]interface{}
}

type cached struct {
	instance Connector
	initErr  error
}

// Registry is the C15 connector registry. The zero value is not usable;
// construct with New.
type Registry struct {
	mu            sync.Mutex
	registrations map[string]registration
	cache         map[string]cached
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		registrations: make(map[string]registration),
		cache:         make(map[string]cached),
	}
}

// Add records a lazily-initialized connector under name, built by factory
// from config when first requested via Get. Re-adding a name before it has
// ever been instantiated replaces the prior registration.
func (r *Registry) Add(name string, factory Factory, config map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[name] = registration{factory: factory, config: config}
	delete(r.cache, name)
}

// Register installs a pre-built, externally managed connector instance
// directly, bypassing the factory/connect step entirely — for connectors
// the host constructs and connects itself.
func (r *Registry) Register(name string, instance Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[name] = cached{instance: instance}
}

// Get returns the named connector, instantiating and connecting it on first
// call and caching the result (success or failure) for every subsequent
// call. A name whose init previously failed returns the same error again
// without retrying the factory or attempting another connect.
func (r *Registry) Get(ctx context.Context, name string) (Connector, error) {
	r.mu.Lock()
	if c, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return c.instance, c.initErr
	}
	reg, ok := r.registrations[name]
	if !ok {
		r.mu.Unlock()
		return nil, errs.New(errs.KindPluginConnector, "connector: no factory registered", "name", name)
	}
	r.mu.Unlock()

	instance, err := reg.factory(reg.config)
	if err == nil {
		err = instance.Connect(ctx)
	}
	if err != nil {
		err = errs.Wrap(errs.KindPluginConnector, err, "connector: initialization failed", "name", name)
	}

	r.mu.Lock()
	r.cache[name] = cached{instance: instance, initErr: err}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return instance, nil
}

// DisconnectAll calls Disconnect on every successfully initialized
// connector instance concurrently, collecting every error rather than
// stopping at the first (unlike errgroup.Group.Wait, which discards all but
// the first error, so the fan-out here reports through a multierror
// instead).
func (r *Registry) DisconnectAll(ctx context.Context) error {
	r.mu.Lock()
	instances := make([]Connector, 0, len(r.cache))
	for _, c := range r.cache {
		if c.initErr == nil && c.instance != nil {
			instances = append(instances, c.instance)
		}
	}
	r.mu.Unlock()

	var (
		mu   sync.Mutex
		merr *multierror.Error
		g    errgroup.Group
	)
	for _, inst := range instances {
		inst := inst
		g.Go(func() error {
			if err := inst.Disconnect(ctx); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return merr.ErrorOrNil()
}
