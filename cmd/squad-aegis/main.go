// Package main is the composition root: it loads configuration, wires the
// orchestrator (C12) to a plugin manager (C19) and connector registry
// (C15), and runs until a termination signal arrives.
//
// Grounded on cmd/server/main.go's shape — signal-derived context,
// zerolog global logger setup, errgroup-based service fan-out, a timed
// shutdown path — narrowed to this module's scope: no HTTP dashboard, no
// database, no concrete plugin catalogue. A reassignable package-level
// CancelCauseFunc/shutdownCtx pair is replaced with a context.WithTimeout
// scoped to run(), since this composition root has a single shutdown path
// and no externally callable stop function.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/opsquad/supervisor/connectors/discord"
	"github.com/opsquad/supervisor/connectors/valkey"
	"github.com/opsquad/supervisor/internal/adminlist"
	"github.com/opsquad/supervisor/internal/config"
	"github.com/opsquad/supervisor/internal/logsource"
	"github.com/opsquad/supervisor/internal/obs"
	"github.com/opsquad/supervisor/internal/orchestrator"
	"github.com/opsquad/supervisor/internal/plugin/connector"
	"github.com/opsquad/supervisor/internal/plugin/loader"
	"github.com/opsquad/supervisor/internal/plugin/manager"
	"github.com/opsquad/supervisor/internal/rcon"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("supervisor exited with an error")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configFiles()...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := obs.Setup(ctx, obs.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Pretty:  cfg.Log.Pretty,
		NoColor: cfg.Log.NoColor,
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	logger.Info().Msg("starting supervisor")

	updateIntervals, intervalErrs := cfg.UpdateIntervals()
	for _, e := range intervalErrs {
		logger.Warn().Err(e).Msg("ignoring unparseable update interval override")
	}

	orch, err := orchestrator.New(orchestrator.Config{
		RCON:              rconConfig(cfg.RCON),
		LogReader:         logReaderConfig(cfg.LogReader),
		AdminListSources:  adminListSources(cfg.AdminListSources),
		UpdateIntervals:   updateIntervals,
		SettlingDelay:     cfg.SettlingDelay,
		LayerHistoryDepth: cfg.LayerHistoryDepth,
	}, logger)
	if err != nil {
		return fmt.Errorf("constructing orchestrator: %w", err)
	}

	connectors := connector.New()
	factories := map[string]connector.Factory{
		"discord": func(settings map[string]interface{}) (connector.Connector, error) { return discord.New(settings) },
		"valkey":  func(settings map[string]interface{}) (connector.Connector, error) { return valkey.New(settings) },
	}
	for _, c := range cfg.Connectors {
		factory, ok := factories[c.Type]
		if !ok {
			logger.Error().Str("connector", c.Name).Str("type", c.Type).Msg("no registered factory for connector type")
			continue
		}
		connectors.Add(c.Name, factory, c.Settings)
	}

	// No concrete plugin catalogue ships with this module (out of scope), and
	// nothing registers a constructor here: pluginRegistry stays empty, so
	// LoadAll reports every enabled configured plugin entry as a load error.
	pluginRegistry := loader.NewRegistry()

	mgr := manager.New(manager.Config{}, pluginRegistry, connectors, orch.Bus(), orch, logger)

	entries := make([]manager.PluginEntry, 0, len(cfg.Plugins))
	for _, p := range cfg.Plugins {
		entries = append(entries, manager.PluginEntry{Name: p.Name, Enabled: p.Enabled, Options: p.Options})
	}
	for _, loadErr := range mgr.LoadAll(entries) {
		logger.Error().Err(loadErr).Msg("plugin failed to load")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := orch.Start(groupCtx); err != nil {
			return fmt.Errorf("starting orchestrator: %w", err)
		}
		logger.Info().Msg("orchestrator started")

		for _, mountErr := range mgr.MountAll(groupCtx) {
			logger.Error().Err(mountErr).Msg("plugin failed to mount")
		}

		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, unmountErr := range mgr.UnmountAll(shutdownCtx) {
			logger.Error().Err(unmountErr).Msg("plugin failed to unmount cleanly")
		}

		orch.Stop()
		if err := connectors.DisconnectAll(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error disconnecting connectors")
		}

		logger.Info().Msg("supervisor stopped")
		return nil
	})

	if err := group.Wait(); err != nil && groupCtx.Err() == nil {
		return err
	}
	return nil
}

// configFiles returns the optional config file path from
// SUPERVISOR_CONFIG_FILE, or none — config.Load tolerates a missing file
// and falls back to environment variables and defaults.
func configFiles() []string {
	if f := os.Getenv("SUPERVISOR_CONFIG_FILE"); f != "" {
		return []string{f}
	}
	return nil
}

func rconConfig(c config.RCONConfig) rcon.Config {
	return rcon.Config{
		Host:                 c.Host,
		Port:                 c.Port,
		Password:             c.Password,
		ConnectTimeout:       c.ConnectTimeout,
		AutoReconnect:        c.AutoReconnect,
		ReconnectDelay:       c.ReconnectDelay,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		CommandTimeout:       c.CommandTimeout,
		HeartbeatInterval:    c.HeartbeatInterval,
	}
}

func logReaderConfig(c config.LogReaderConfig) orchestrator.LogReaderConfig {
	mode := orchestrator.LogReaderLocal
	switch c.Mode {
	case "ftp":
		mode = orchestrator.LogReaderFTP
	case "sftp":
		mode = orchestrator.LogReaderSFTP
	}
	return orchestrator.LogReaderConfig{
		Mode: mode,
		Local: logsource.LocalConfig{
			FilePath:      c.Local.FilePath,
			ReadFromStart: c.Local.ReadFromStart,
		},
		FTP: logsource.FTPConfig{
			Host:          c.FTP.Host,
			Port:          c.FTP.Port,
			Username:      c.FTP.Username,
			Password:      c.FTP.Password,
			FilePath:      c.FTP.FilePath,
			PollInterval:  c.FTP.PollInterval,
			ReadFromStart: c.FTP.ReadFromStart,
		},
		SFTP: logsource.SFTPConfig{
			Host:          c.SFTP.Host,
			Port:          c.SFTP.Port,
			Username:      c.SFTP.Username,
			Password:      c.SFTP.Password,
			FilePath:      c.SFTP.FilePath,
			PollInterval:  c.SFTP.PollInterval,
			ReadFromStart: c.SFTP.ReadFromStart,
		},
		QueueMaxSize: c.QueueMaxSize,
	}
}

func adminListSources(cfgs []config.AdminListSourceConfig) []adminlist.Source {
	out := make([]adminlist.Source, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, adminlist.Source{
			LocalPath:    c.LocalPath,
			RemoteURL:    c.RemoteURL,
			RemoteFSPath: c.RemoteFSPath,
		})
	}
	return out
}
