package logsource

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"github.com/opsquad/supervisor/internal/errs"
)

// FTPConfig configures an FTP tail.
type FTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	FilePath      string
	PollInterval  time.Duration
	ReadFromStart bool
}

func (c *FTPConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// FTP polls a remote file's size at PollInterval, downloading the suffix on
// growth and reopening from zero on shrink (rotation), per
// internal/logwatcher_manager/log_sources.go's SFTPSource.fetchNewData shape,
// adapted to the jlaffaye/ftp client.
type FTP struct {
	lifecycle
	cfg     FTPConfig
	log     zerolog.Logger
	lastPos int64
}

// NewFTP constructs an FTP source.
func NewFTP(cfg FTPConfig, log zerolog.Logger) *FTP {
	cfg.setDefaults()
	return &FTP{cfg: cfg, log: log.With().Str("component", "logsource.ftp").Logger()}
}

func (f *FTP) dial() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(5*time.Second))
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionRefused, err, "logsource: ftp dial failed")
	}
	if err := conn.Login(f.cfg.Username, f.cfg.Password); err != nil {
		conn.Quit()
		return nil, errs.Wrap(errs.KindAuthFailed, err, "logsource: ftp login failed")
	}
	return conn, nil
}

func (f *FTP) Watch(ctx context.Context, sink Sink) error {
	runCtx, err := f.start(ctx)
	if err != nil {
		return err
	}

	conn, err := f.dial()
	if err != nil {
		f.markStopped()
		return err
	}

	if !f.cfg.ReadFromStart {
		if size, err := conn.FileSize(f.cfg.FilePath); err == nil {
			f.lastPos = size
		}
	}

	go func() {
		defer conn.Quit()
		ticker := time.NewTicker(f.cfg.PollInterval)
		defer ticker.Stop()
		backoff := time.Second

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				lines, err := f.fetchNewLines(conn)
				if err != nil {
					f.log.Warn().Err(err).Dur("backoff", backoff).Msg("ftp fetch failed, reconnecting")
					conn.Quit()
					select {
					case <-time.After(backoff):
					case <-runCtx.Done():
						return
					}
					if backoff < 30*time.Second {
						backoff *= 2
					}
					newConn, derr := f.dial()
					if derr != nil {
						continue
					}
					conn = newConn
					continue
				}
				backoff = time.Second
				for _, line := range lines {
					sink(line)
				}
			}
		}
	}()

	return nil
}

func (f *FTP) fetchNewLines(conn *ftp.ServerConn) ([]string, error) {
	size, err := conn.FileSize(f.cfg.FilePath)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, err, "logsource: ftp stat failed")
	}

	if size < f.lastPos {
		f.log.Info().Int64("old", f.lastPos).Int64("new", size).Msg("remote file shrank, treating as rotation")
		f.lastPos = 0
	}
	if size == f.lastPos {
		return nil, nil
	}

	resp, err := conn.RetrFrom(f.cfg.FilePath, uint64(f.lastPos))
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, err, "logsource: ftp retrieve failed")
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, err, "logsource: ftp read failed")
	}
	// A trailing partial line is left unread until a later poll sees its newline.
	end := strings.LastIndexByte(string(data), '\n')
	if end < 0 {
		return nil, nil
	}
	data = data[:end+1]
	f.lastPos += int64(len(data))

	return splitLines(data), nil
}

func splitLines(data []byte) []string {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, "\r")
	}
	return out
}

func (f *FTP) Unwatch() error   { return f.stop() }
func (f *FTP) IsWatching() bool { return f.isWatching() }
