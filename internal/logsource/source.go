// Package logsource implements the log reader (C5): local, FTP, and SFTP tails
// sharing one watch/unwatch/isWatching surface. Grounded on
// internal/logwatcher_manager/log_sources.go's LocalFileSource/SFTPSource shapes,
// generalized to the explicit lifecycle and failure-kind contract of
// a log source: local file, FTP, or SFTP.
package logsource

import (
	"context"
	"sync"

	"github.com/opsquad/supervisor/internal/errs"
)

// Sink receives complete, newline-stripped log lines.
type Sink func(line string)

// Source is the shared contract for local/FTP/SFTP tails.
type Source interface {
	// Watch attaches sink and begins emitting lines. Returns ALREADY_WATCHING
	// if called while already watching.
	Watch(ctx context.Context, sink Sink) error
	// Unwatch detaches the sink and stops the tail. Returns NOT_WATCHING if
	// called while not watching.
	Unwatch() error
	IsWatching() bool
}

// lifecycle is embedded by each Source implementation to enforce the
// ALREADY_WATCHING / NOT_WATCHING rules uniformly.
type lifecycle struct {
	mu        sync.Mutex
	watching  bool
	cancel    context.CancelFunc
}

func (l *lifecycle) start(ctx context.Context) (context.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watching {
		return nil, errs.New(errs.KindAlreadyWatching, "logsource: already watching")
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.watching = true
	l.cancel = cancel
	return runCtx, nil
}

func (l *lifecycle) stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.watching {
		return errs.New(errs.KindNotWatching, "logsource: not watching")
	}
	l.watching = false
	if l.cancel != nil {
		l.cancel()
	}
	return nil
}

func (l *lifecycle) isWatching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watching
}

func (l *lifecycle) markStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watching = false
}
