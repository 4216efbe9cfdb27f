package logsource

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpcloud/tail"
	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/errs"
)

// LocalConfig configures a Local tail.
type LocalConfig struct {
	FilePath      string
	ReadFromStart bool
}

// Local tails a local log file, reopening on rotation (size-decrease or inode
// change) the way internal/logwatcher_manager/log_sources.go's LocalFileSource
// does via hpcloud/tail's Follow+ReOpen+Poll.
type Local struct {
	lifecycle
	cfg LocalConfig
	log zerolog.Logger
}

// NewLocal constructs a Local source.
func NewLocal(cfg LocalConfig, log zerolog.Logger) *Local {
	return &Local{cfg: cfg, log: log.With().Str("component", "logsource.local").Logger()}
}

func (l *Local) Watch(ctx context.Context, sink Sink) error {
	runCtx, err := l.start(ctx)
	if err != nil {
		return err
	}

	cleanPath := filepath.Clean(l.cfg.FilePath)
	location := &tail.SeekInfo{Whence: 2}
	if l.cfg.ReadFromStart {
		location = &tail.SeekInfo{Whence: 0}
	}

	t, err := tail.TailFile(cleanPath, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: location,
	})
	if err != nil {
		l.markStopped()
		return errs.Wrap(errs.KindWatchFailed, err, "logsource: failed to open local file")
	}

	go func() {
		defer t.Stop()
		backoff := time.Second
		for {
			select {
			case <-runCtx.Done():
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					l.log.Warn().Err(line.Err).Dur("backoff", backoff).Msg("local tail read error, retrying")
					select {
					case <-time.After(backoff):
					case <-runCtx.Done():
						return
					}
					if backoff < 30*time.Second {
						backoff *= 2
					}
					continue
				}
				backoff = time.Second
				sink(strings.TrimRight(line.Text, "\r"))
			}
		}
	}()

	return nil
}

func (l *Local) Unwatch() error { return l.stop() }
func (l *Local) IsWatching() bool { return l.isWatching() }
