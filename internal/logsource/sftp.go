package logsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/opsquad/supervisor/internal/errs"
)

// SFTPConfig configures an SFTP tail.
type SFTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	FilePath      string
	PollInterval  time.Duration
	ReadFromStart bool
}

func (c *SFTPConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// SFTP polls a remote file's size at PollInterval, downloading the suffix on
// growth and reopening from zero on shrink, identically to FTP but over an SSH
// session (internal/logwatcher_manager/log_sources.go's SFTPSource).
type SFTP struct {
	lifecycle
	cfg     SFTPConfig
	log     zerolog.Logger
	lastPos int64
}

// NewSFTP constructs an SFTP source.
func NewSFTP(cfg SFTPConfig, log zerolog.Logger) *SFTP {
	cfg.setDefaults()
	return &SFTP{cfg: cfg, log: log.With().Str("component", "logsource.sftp").Logger()}
}

type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
}

func (s *SFTP) dial() (*sftpSession, error) {
	config := &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(s.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	sshConn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionRefused, err, "logsource: sftp dial failed")
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, errs.Wrap(errs.KindAuthFailed, err, "logsource: sftp client init failed")
	}

	return &sftpSession{ssh: sshConn, client: client}, nil
}

func (s *sftpSession) close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.ssh != nil {
		s.ssh.Close()
	}
}

func (s *SFTP) Watch(ctx context.Context, sink Sink) error {
	runCtx, err := s.start(ctx)
	if err != nil {
		return err
	}

	session, err := s.dial()
	if err != nil {
		s.markStopped()
		return err
	}

	if !s.cfg.ReadFromStart {
		if stat, err := session.client.Stat(s.cfg.FilePath); err == nil {
			s.lastPos = stat.Size()
		}
	}

	go func() {
		defer session.close()
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		backoff := time.Second

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				lines, err := s.fetchNewLines(session)
				if err != nil {
					s.log.Warn().Err(err).Dur("backoff", backoff).Msg("sftp fetch failed, reconnecting")
					session.close()
					select {
					case <-time.After(backoff):
					case <-runCtx.Done():
						return
					}
					if backoff < 30*time.Second {
						backoff *= 2
					}
					newSession, derr := s.dial()
					if derr != nil {
						continue
					}
					session = newSession
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

func (s *SFTP) fetchNewLines(session *sftpSession) ([]string, error) {
	stat, err := session.client.Stat(s.cfg.FilePath)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, err, "logsource: sftp stat failed")
	}

	size := stat.Size()
	if size < s.lastPos {
		s.log.Info().Int64("old", s.lastPos).Int64("new", size).Msg("remote file shrank, treating as rotation")
		s.lastPos = 0
	}
	if size == s.lastPos {
		return nil, nil
	}

	remote, err := session.client.Open(s.cfg.FilePath)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, err, "logsource: sftp open failed")
	}
	defer remote.Close()

	if _, err := remote.Seek(s.lastPos, io.SeekStart); err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, err, "logsource: sftp seek failed")
	}

	data, err := io.ReadAll(remote)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, err, "logsource: sftp read failed")
	}
	// A trailing partial line is left unread until a later poll sees its newline.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, nil
	}
	data = data[:end+1]
	s.lastPos += int64(len(data))

	return splitLines(data), nil
}

func (s *SFTP) Unwatch() error   { return s.stop() }
func (s *SFTP) IsWatching() bool { return s.isWatching() }
