package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/plugin"
	"github.com/opsquad/supervisor/internal/plugin/options"
)

type fakePlugin struct {
	meta plugin.Meta

	mountErr   error
	mountDelay time.Duration
	mountPanic bool

	unmountErr   error
	unmountDelay time.Duration
	unmountPanic bool

	prepareErr error
	prepared   atomic.Bool

	mounted   atomic.Bool
	unmounted atomic.Bool
}

func (p *fakePlugin) Meta() plugin.Meta        { return p.meta }
func (p *fakePlugin) OptionsSpec() options.Spec { return nil }
func (p *fakePlugin) Mount(ctx context.Context, pc *plugin.Context) error {
	if p.mountDelay > 0 {
		select {
		case <-time.After(p.mountDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.mountPanic {
		panic("boom mount")
	}
	if p.mountErr != nil {
		return p.mountErr
	}
	p.mounted.Store(true)
	return nil
}

func (p *fakePlugin) Unmount(ctx context.Context, pc *plugin.Context) error {
	if p.unmountDelay > 0 {
		select {
		case <-time.After(p.unmountDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.unmountPanic {
		panic("boom unmount")
	}
	p.unmounted.Store(true)
	return p.unmountErr
}

func (p *fakePlugin) PrepareToMount(ctx context.Context, pc *plugin.Context) error {
	p.prepared.Store(true)
	return p.prepareErr
}

func newTestContext() *plugin.Context {
	return plugin.NewContext("fake", nil, nil, nil, zerolog.Nop(), nil, nil)
}

func TestMountFromUnloadedSucceeds(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())

	if err := r.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if r.State() != StateMounted {
		t.Fatalf("expected state mounted, got %s", r.State())
	}
	if !p.mounted.Load() {
		t.Fatal("expected plugin.Mount to have run")
	}
	if r.Durations().Mount <= 0 {
		t.Fatal("expected a recorded mount duration")
	}
}

func TestPrepareThenMountSucceeds(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())

	if err := r.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !p.prepared.Load() {
		t.Fatal("expected PrepareToMount to have run")
	}
	if r.State() != StatePreparing {
		t.Fatalf("expected state preparing, got %s", r.State())
	}
	if err := r.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if r.State() != StateMounted {
		t.Fatalf("expected state mounted, got %s", r.State())
	}
}

func TestMountFailsOutsideUnloadedOrPreparing(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())
	if err := r.Mount(context.Background()); err != nil {
		t.Fatalf("first Mount: %v", err)
	}

	err := r.Mount(context.Background())
	if err == nil {
		t.Fatal("expected an error mounting an already-mounted plugin")
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindInvalidState {
		t.Fatalf("expected KindInvalidState, got %v (ok=%v)", kind, ok)
	}
}

func TestMountFailureMovesToErrorState(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}, mountErr: errors.New("setup failed")}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())

	if err := r.Mount(context.Background()); err == nil {
		t.Fatal("expected Mount to fail")
	}
	if r.State() != StateError {
		t.Fatalf("expected state error, got %s", r.State())
	}
	if r.LastError() == nil {
		t.Fatal("expected LastError to be recorded")
	}
}

func TestMountPanicIsRecoveredAndMovesToErrorState(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}, mountPanic: true}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())

	err := r.Mount(context.Background())
	if err == nil {
		t.Fatal("expected Mount to report the recovered panic as an error")
	}
	if r.State() != StateError {
		t.Fatalf("expected state error, got %s", r.State())
	}
}

func TestMountTimeoutIsEnforced(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}, mountDelay: 50 * time.Millisecond}
	r := New(p, newTestContext(), Config{MountTimeout: 5 * time.Millisecond}, zerolog.Nop())

	err := r.Mount(context.Background())
	if err == nil {
		t.Fatal("expected Mount to time out")
	}
	if r.State() != StateError {
		t.Fatalf("expected state error, got %s", r.State())
	}
}

func TestUnmountFromMountedAlwaysReachesUnloaded(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())
	mustMount(t, r)

	if err := r.Unmount(context.Background()); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if r.State() != StateUnloaded {
		t.Fatalf("expected state unloaded, got %s", r.State())
	}
	if !p.unmounted.Load() {
		t.Fatal("expected plugin.Unmount to have run")
	}
}

func TestUnmountForcesUnloadedEvenWhenPluginUnmountErrors(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}, unmountErr: errors.New("cleanup failed")}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())
	mustMount(t, r)

	err := r.Unmount(context.Background())
	if err == nil {
		t.Fatal("expected Unmount to surface the plugin's error")
	}
	if r.State() != StateUnloaded {
		t.Fatalf("expected state unloaded regardless of the plugin error, got %s", r.State())
	}
}

func TestUnmountForcesUnloadedEvenWhenPluginUnmountPanics(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}, unmountPanic: true}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())
	mustMount(t, r)

	err := r.Unmount(context.Background())
	if err == nil {
		t.Fatal("expected Unmount to report the recovered panic")
	}
	if r.State() != StateUnloaded {
		t.Fatalf("expected state unloaded regardless of the panic, got %s", r.State())
	}
}

func TestUnmountForcesUnloadedOnTimeout(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}, unmountDelay: 50 * time.Millisecond}
	r := New(p, newTestContext(), Config{UnmountTimeout: 5 * time.Millisecond}, zerolog.Nop())
	mustMount(t, r)

	err := r.Unmount(context.Background())
	if err == nil {
		t.Fatal("expected Unmount to time out")
	}
	if r.State() != StateUnloaded {
		t.Fatalf("expected state unloaded regardless of the timeout, got %s", r.State())
	}
}

func TestUnmountPermittedFromErrorState(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}, mountErr: errors.New("boom")}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())
	if err := r.Mount(context.Background()); err == nil {
		t.Fatal("expected Mount to fail")
	}
	if r.State() != StateError {
		t.Fatalf("expected state error, got %s", r.State())
	}

	if err := r.Unmount(context.Background()); err != nil {
		t.Fatalf("Unmount from error state: %v", err)
	}
	if r.State() != StateUnloaded {
		t.Fatalf("expected state unloaded, got %s", r.State())
	}
}

func TestUnmountRejectedFromUnloaded(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}}
	r := New(p, newTestContext(), Config{}, zerolog.Nop())

	err := r.Unmount(context.Background())
	if err == nil {
		t.Fatal("expected an error unmounting a never-mounted plugin")
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindInvalidState {
		t.Fatalf("expected KindInvalidState, got %v (ok=%v)", kind, ok)
	}
}

func TestUnmountReleasesTrackedRegistrations(t *testing.T) {
	p := &fakePlugin{meta: plugin.Meta{Name: "fake", Version: "1.0.0"}}
	pc := newTestContext()
	r := New(p, pc, Config{}, zerolog.Nop())
	mustMount(t, r)

	var fired atomic.Bool
	cancel, err := pc.SetInterval(time.Millisecond, func() error {
		fired.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	defer cancel()

	time.Sleep(5 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("expected the interval to have fired at least once before unmount")
	}

	if err := r.Unmount(context.Background()); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	fired.Store(false)
	time.Sleep(5 * time.Millisecond)
	if fired.Load() {
		t.Fatal("expected the interval to be stopped once unmount released tracked registrations")
	}
}

func mustMount(t *testing.T, r *Runner) {
	t.Helper()
	if err := r.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
}
