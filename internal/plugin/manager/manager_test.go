package manager

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/events"
	"github.com/opsquad/supervisor/internal/plugin"
	"github.com/opsquad/supervisor/internal/plugin/connector"
	"github.com/opsquad/supervisor/internal/plugin/loader"
	"github.com/opsquad/supervisor/internal/plugin/options"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) record(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *callLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type recorderPlugin struct {
	name       string
	deps       []string
	spec       options.Spec
	log        *callLog
	mountErr   error
	unmountErr error
}

func (p *recorderPlugin) Meta() plugin.Meta {
	return plugin.Meta{Name: p.name, Version: "1.0.0", Dependencies: p.deps}
}
func (p *recorderPlugin) OptionsSpec() options.Spec { return p.spec }
func (p *recorderPlugin) Mount(ctx context.Context, pc *plugin.Context) error {
	p.log.record("mount:" + p.name)
	return p.mountErr
}
func (p *recorderPlugin) Unmount(ctx context.Context, pc *plugin.Context) error {
	p.log.record("unmount:" + p.name)
	return p.unmountErr
}

func newTestManager(t *testing.T) (*Manager, *loader.Registry) {
	t.Helper()
	reg := loader.NewRegistry()
	connectors := connector.New()
	bus := events.New(nil)
	m := New(Config{}, reg, connectors, bus, nil, zerolog.Nop())
	return m, reg
}

func TestLoadAllSkipsDisabledEntries(t *testing.T) {
	m, reg := newTestManager(t)
	log := &callLog{}
	reg.Register("a", func() plugin.Plugin { return &recorderPlugin{name: "a", log: log} })

	errsOut := m.LoadAll([]PluginEntry{{Name: "a", Enabled: false}})
	if len(errsOut) != 0 {
		t.Fatalf("expected no errors, got %v", errsOut)
	}
	if _, ok := m.loaded["a"]; ok {
		t.Fatal("expected a disabled entry not to be loaded")
	}
}

func TestLoadAllCollectsErrorsForUnknownPlugins(t *testing.T) {
	m, _ := newTestManager(t)
	errsOut := m.LoadAll([]PluginEntry{{Name: "missing", Enabled: true}})
	if len(errsOut) != 1 {
		t.Fatalf("expected exactly one error, got %v", errsOut)
	}
}

func TestMountAllOrdersByDependencies(t *testing.T) {
	m, reg := newTestManager(t)
	log := &callLog{}
	reg.Register("a", func() plugin.Plugin { return &recorderPlugin{name: "a", log: log} })
	reg.Register("b", func() plugin.Plugin { return &recorderPlugin{name: "b", deps: []string{"a"}, log: log} })

	if errsOut := m.LoadAll([]PluginEntry{{Name: "b", Enabled: true}, {Name: "a", Enabled: true}}); len(errsOut) != 0 {
		t.Fatalf("LoadAll: %v", errsOut)
	}
	if errsOut := m.MountAll(context.Background()); len(errsOut) != 0 {
		t.Fatalf("MountAll: %v", errsOut)
	}

	calls := log.snapshot()
	if len(calls) != 2 || calls[0] != "mount:a" || calls[1] != "mount:b" {
		t.Fatalf("expected a to mount before b, got %v", calls)
	}

	stateA, ok := m.State("a")
	if !ok || stateA != "mounted" {
		t.Fatalf("expected a mounted, got %v ok=%v", stateA, ok)
	}
}

func TestMountAllMountsDespiteMissingDependency(t *testing.T) {
	m, reg := newTestManager(t)
	log := &callLog{}
	reg.Register("b", func() plugin.Plugin { return &recorderPlugin{name: "b", deps: []string{"ghost"}, log: log} })

	m.LoadAll([]PluginEntry{{Name: "b", Enabled: true}})
	if errsOut := m.MountAll(context.Background()); len(errsOut) != 0 {
		t.Fatalf("expected mounting despite a missing dependency, got %v", errsOut)
	}
	if state, ok := m.State("b"); !ok || state != "mounted" {
		t.Fatalf("expected b mounted, got %v ok=%v", state, ok)
	}
}

func TestMountAllDetectsCycleAndReportsErrorWithoutMounting(t *testing.T) {
	m, reg := newTestManager(t)
	log := &callLog{}
	reg.Register("a", func() plugin.Plugin { return &recorderPlugin{name: "a", deps: []string{"b"}, log: log} })
	reg.Register("b", func() plugin.Plugin { return &recorderPlugin{name: "b", deps: []string{"a"}, log: log} })

	m.LoadAll([]PluginEntry{{Name: "a", Enabled: true}, {Name: "b", Enabled: true}})
	errsOut := m.MountAll(context.Background())
	if len(errsOut) != 2 {
		t.Fatalf("expected an error for each plugin in the cycle, got %v", errsOut)
	}
	if len(log.snapshot()) != 0 {
		t.Fatalf("expected neither cyclic plugin to have mounted, got calls %v", log.snapshot())
	}
	if _, ok := m.State("a"); ok {
		t.Fatal("expected a not to be mounted")
	}
}

func TestUnmountAllRunsInReverseOrderAndCollectsErrors(t *testing.T) {
	m, reg := newTestManager(t)
	log := &callLog{}
	reg.Register("a", func() plugin.Plugin { return &recorderPlugin{name: "a", log: log} })
	reg.Register("b", func() plugin.Plugin {
		return &recorderPlugin{name: "b", deps: []string{"a"}, log: log, unmountErr: errors.New("b failed to clean up")}
	})

	m.LoadAll([]PluginEntry{{Name: "a", Enabled: true}, {Name: "b", Enabled: true}})
	if errsOut := m.MountAll(context.Background()); len(errsOut) != 0 {
		t.Fatalf("MountAll: %v", errsOut)
	}

	errsOut := m.UnmountAll(context.Background())
	if len(errsOut) != 1 {
		t.Fatalf("expected exactly one unmount error, got %v", errsOut)
	}

	calls := log.snapshot()
	var unmountCalls []string
	for _, c := range calls {
		if len(c) >= 7 && c[:7] == "unmount" {
			unmountCalls = append(unmountCalls, c)
		}
	}
	if len(unmountCalls) != 2 || unmountCalls[0] != "unmount:b" || unmountCalls[1] != "unmount:a" {
		t.Fatalf("expected b to unmount before a, got %v", unmountCalls)
	}

	if _, ok := m.State("a"); ok {
		t.Fatal("expected unmounted plugins to be cleared from manager state")
	}
}

func TestMountOptionValidationFailureReportsError(t *testing.T) {
	m, reg := newTestManager(t)
	log := &callLog{}
	spec := options.Spec{"token": options.Field{Type: options.TypeString, Required: true}}
	reg.Register("a", func() plugin.Plugin { return &recorderPlugin{name: "a", log: log, spec: spec} })

	m.LoadAll([]PluginEntry{{Name: "a", Enabled: true, Options: map[string]interface{}{}}})
	errsOut := m.MountAll(context.Background())
	if len(errsOut) != 1 {
		t.Fatalf("expected one validation error, got %v", errsOut)
	}
	if len(log.snapshot()) != 0 {
		t.Fatalf("expected Mount never to be called when options fail validation, got %v", log.snapshot())
	}
}
