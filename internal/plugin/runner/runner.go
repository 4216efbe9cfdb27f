// Package runner implements the plugin runner (C17): it executes a single
// plugin instance's lifecycle methods under a timeout and tracks its state
// machine, guaranteeing that unmount always completes and always releases
// the instance's subscriptions/intervals/timeouts regardless of what the
// plugin's own Unmount does.
//
// Grounded on the context.WithTimeout idiom an RCON connection manager uses
// throughout for bounding blocking calls, applied to an explicit
// unloaded -> preparing -> mounting -> mounted -> unmounting -> unloaded
// (+error) state machine with no precedent elsewhere in the codebase.
package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/plugin"
)

// State is one of the plugin runner's lifecycle states.
type State string

const (
	StateUnloaded   State = "unloaded"
	StatePreparing  State = "preparing"
	StateMounting   State = "mounting"
	StateMounted    State = "mounted"
	StateUnmounting State = "unmounting"
	StateError      State = "error"
)

// Config bounds how long the lifecycle methods are given to run.
type Config struct {
	MountTimeout   time.Duration
	UnmountTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.MountTimeout <= 0 {
		c.MountTimeout = 30 * time.Second
	}
	if c.UnmountTimeout <= 0 {
		c.UnmountTimeout = 10 * time.Second
	}
}

// Durations is the duration every lifecycle operation records.
type Durations struct {
	Prepare time.Duration
	Mount   time.Duration
	Unmount time.Duration
}

// Runner drives one plugin instance through its lifecycle.
type Runner struct {
	cfg      Config
	instance plugin.Plugin
	pc       *plugin.Context
	log      zerolog.Logger

	state     State
	durations Durations
	lastErr   error
}

// New constructs a Runner for instance, using pc as the context passed to
// every lifecycle method.
func New(instance plugin.Plugin, pc *plugin.Context, cfg Config, log zerolog.Logger) *Runner {
	cfg.setDefaults()
	return &Runner{
		cfg:      cfg,
		instance: instance,
		pc:       pc,
		log:      log.With().Str("plugin", instance.Meta().Name).Logger(),
		state:    StateUnloaded,
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State { return r.state }

// Durations returns the most recently recorded duration of each lifecycle
// operation.
func (r *Runner) Durations() Durations { return r.durations }

// LastError returns the error (if any) that moved the runner into StateError.
func (r *Runner) LastError() error { return r.lastErr }

// Prepare calls the plugin's optional PrepareToMount hook, if it implements
// Preparer. A plugin without the hook moves straight from unloaded to
// preparing with no work done. Prepare failure moves the runner to
// StateError.
func (r *Runner) Prepare(ctx context.Context) error {
	if r.state != StateUnloaded {
		return errs.New(errs.KindInvalidState, "runner: prepare requires state unloaded", "state", string(r.state))
	}
	r.state = StatePreparing

	preparer, ok := r.instance.(plugin.Preparer)
	if !ok {
		return nil
	}

	err, dur := r.runBounded(ctx, r.cfg.MountTimeout, func(ctx context.Context) error {
		return preparer.PrepareToMount(ctx, r.pc)
	})
	r.durations.Prepare = dur
	if err != nil {
		r.state = StateError
		r.lastErr = err
		return err
	}
	return nil
}

// Mount runs the plugin's Mount method. It is only valid from StateUnloaded
// or StatePreparing. On success the runner moves to StateMounted; on
// failure (including a panic recovered from the plugin) it moves to
// StateError.
func (r *Runner) Mount(ctx context.Context) error {
	if r.state != StateUnloaded && r.state != StatePreparing {
		return errs.New(errs.KindInvalidState, "runner: mount requires state unloaded or preparing", "state", string(r.state))
	}
	r.state = StateMounting

	err, dur := r.runBounded(ctx, r.cfg.MountTimeout, func(ctx context.Context) error {
		return r.instance.Mount(ctx, r.pc)
	})
	r.durations.Mount = dur
	if err != nil {
		r.state = StateError
		r.lastErr = err
		return err
	}
	r.state = StateMounted
	return nil
}

// Unmount runs the plugin's Unmount method and always releases the
// instance's tracked subscriptions/intervals/timeouts, whether or not the
// plugin's own Unmount succeeds, panics, or times out. Unmount is only
// valid from StateMounted or StateError, and the runner is always forced
// back to StateUnloaded regardless of outcome — unmount must always
// complete.
func (r *Runner) Unmount(ctx context.Context) error {
	if r.state != StateMounted && r.state != StateError {
		return errs.New(errs.KindInvalidState, "runner: unmount requires state mounted or error", "state", string(r.state))
	}
	r.state = StateUnmounting

	err, dur := r.runBounded(ctx, r.cfg.UnmountTimeout, func(ctx context.Context) error {
		return r.instance.Unmount(ctx, r.pc)
	})
	r.durations.Unmount = dur

	counts := r.pc.Cleanup()
	r.log.Debug().
		Int("unsubscribed", counts.Unsubscribed).
		Int("intervals", counts.Intervals).
		Int("timeouts", counts.Timeouts).
		Msg("plugin cleanup released tracked registrations")

	r.state = StateUnloaded
	if err != nil {
		r.log.Error().Err(err).Msg("plugin unmount reported an error; forcing unloaded regardless")
	}
	return err
}

// runBounded runs fn under a timeout derived from ctx, recovering any panic
// fn raises and reporting it as an error instead, and returns the elapsed
// duration alongside the outcome.
func (r *Runner) runBounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) (error, time.Duration) {
	start := time.Now()
	boundedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- errs.New(errs.KindPluginLifecycle, "runner: plugin lifecycle method panicked", "panic", rec)
			}
		}()
		done <- fn(boundedCtx)
	}()

	select {
	case err := <-done:
		return err, time.Since(start)
	case <-boundedCtx.Done():
		return errs.Wrap(errs.KindPluginLifecycle, boundedCtx.Err(), "runner: lifecycle method exceeded its timeout"), time.Since(start)
	}
}
