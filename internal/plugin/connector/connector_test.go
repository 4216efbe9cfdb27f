package connector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeConnector struct {
	name        string
	connected   atomic.Bool
	connectErr  error
	disconnects int32
	disconnectErr error
	connects    int32
}

func (f *fakeConnector) Name() string      { return f.name }
func (f *fakeConnector) IsConnected() bool { return f.connected.Load() }
func (f *fakeConnector) Connect(ctx context.Context) error {
	atomic.AddInt32(&f.connects, 1)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected.Store(true)
	return nil
}
func (f *fakeConnector) Disconnect(ctx context.Context) error {
	atomic.AddInt32(&f.disconnects, 1)
	f.connected.Store(false)
	return f.disconnectErr
}

func TestGetInstantiatesAndCachesOnFirstCall(t *testing.T) {
	r := New()
	fc := &fakeConnector{name: "discord"}
	calls := 0
	r.Add("discord", func(config map[string]interface{}) (Connector, error) {
		calls++
		return fc, nil
	}, nil)

	c1, err := r.Get(context.Background(), "discord")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	c2, err := r.Get(context.Background(), "discord")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if c1 != c2 {
		t.Fatal("expected the cached instance to be returned on the second call")
	}
	if calls != 1 {
		t.Fatalf("expected the factory to run exactly once, ran %d times", calls)
	}
	if !fc.IsConnected() {
		t.Fatal("expected Connect to have been called during Get")
	}
}

func TestFailedInitSuppressesRetries(t *testing.T) {
	r := New()
	calls := 0
	r.Add("broken", func(config map[string]interface{}) (Connector, error) {
		calls++
		return nil, errors.New("boom")
	}, nil)

	_, err1 := r.Get(context.Background(), "broken")
	_, err2 := r.Get(context.Background(), "broken")

	if err1 == nil || err2 == nil {
		t.Fatal("expected both calls to report the init failure")
	}
	if calls != 1 {
		t.Fatalf("expected the factory to be tried only once, tried %d times", calls)
	}
}

func TestGetUnknownNameIsAnError(t *testing.T) {
	r := New()
	if _, err := r.Get(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for a name with no registered factory")
	}
}

func TestRegisterInstallsPreBuiltInstanceWithoutFactory(t *testing.T) {
	r := New()
	fc := &fakeConnector{name: "preset"}
	fc.connected.Store(true)
	r.Register("preset", fc)

	got, err := r.Get(context.Background(), "preset")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != fc {
		t.Fatal("expected the pre-built instance to be returned verbatim")
	}
	if atomic.LoadInt32(&fc.connects) != 0 {
		t.Fatal("Register must not call Connect; the caller already manages the instance's lifecycle")
	}
}

func TestDisconnectAllCollectsEveryError(t *testing.T) {
	r := New()
	good := &fakeConnector{name: "good"}
	bad1 := &fakeConnector{name: "bad1", disconnectErr: errors.New("bad1 failed")}
	bad2 := &fakeConnector{name: "bad2", disconnectErr: errors.New("bad2 failed")}

	r.Register("good", good)
	r.Register("bad1", bad1)
	r.Register("bad2", bad2)

	// Register doesn't connect, so mark them connected to simulate a live registry.
	good.connected.Store(true)
	bad1.connected.Store(true)
	bad2.connected.Store(true)

	err := r.DisconnectAll(context.Background())
	if err == nil {
		t.Fatal("expected DisconnectAll to report the two failures")
	}
	if atomic.LoadInt32(&good.disconnects) != 1 || atomic.LoadInt32(&bad1.disconnects) != 1 || atomic.LoadInt32(&bad2.disconnects) != 1 {
		t.Fatal("expected every instance's Disconnect to run regardless of others failing")
	}
}

func TestDisconnectAllSkipsNeverInitializedConnectors(t *testing.T) {
	r := New()
	r.Add("never-requested", func(config map[string]interface{}) (Connector, error) {
		t.Fatal("factory must not run for a connector that was never Get'd")
		return nil, nil
	}, nil)

	if err := r.DisconnectAll(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
