// Package config loads the supervisor's configuration. It is an external
// collaborator: the orchestrator never imports it, cmd/squad-aegis loads a
// Config here and passes the plain structs it needs into orchestrator.Config,
// manager.PluginEntry, and the connector registry.
//
// Grounded on a tagged-struct-plus-loader split (defaults declared as struct
// tags, environment variables overlaid on top) including a `_ =
// godotenv.Load()` ".env" overlay step, built on cristalhq/aconfig (+
// aconfigyaml for YAML file sources) so the struct tags stay declarative
// instead of driving a bespoke reflect.Value walk.
package config

import (
	"fmt"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/joho/godotenv"
)

// RCONConfig is the RCON collaborator shape.
type RCONConfig struct {
	Host                 string        `default:"127.0.0.1"`
	Port                 int           `default:"21114"`
	Password             string        `required:"true"`
	ConnectTimeout       time.Duration `default:"10s"`
	AutoReconnect        bool          `default:"true"`
	ReconnectDelay       time.Duration `default:"5s"`
	MaxReconnectAttempts int           `default:"0"`
	CommandTimeout       time.Duration `default:"10s"`
	HeartbeatInterval    time.Duration `default:"30s"`
}

// LogReaderConfig selects and configures the log ingestion source.
type LogReaderConfig struct {
	Mode string `default:"local"` // "local" | "ftp" | "sftp"

	Local struct {
		FilePath      string `default:""`
		ReadFromStart bool   `default:"false"`
	}
	FTP struct {
		Host          string        `default:""`
		Port          int           `default:"21"`
		Username      string        `default:""`
		Password      string        `default:""`
		FilePath      string        `default:""`
		PollInterval  time.Duration `default:"5s"`
		ReadFromStart bool          `default:"false"`
	}
	SFTP struct {
		Host          string        `default:""`
		Port          int           `default:"22"`
		Username      string        `default:""`
		Password      string        `default:""`
		FilePath      string        `default:""`
		PollInterval  time.Duration `default:"5s"`
		ReadFromStart bool          `default:"false"`
	}

	QueueMaxSize int `default:"10000"`
}

// AdminListSourceConfig is one admin-list source per the file-format contract.
type AdminListSourceConfig struct {
	LocalPath    string `default:""`
	RemoteURL    string `default:""`
	RemoteFSPath string `default:""`
}

// PluginConfig is one configured plugin entry.
type PluginConfig struct {
	Name    string                 `default:""`
	Enabled bool                   `default:"true"`
	Options map[string]interface{} `default:""`
}

// ConnectorConfig is one configured connector entry. Type selects which
// registered factory builds it (e.g. "discord", "valkey"); Settings is
// passed to that factory unmodified.
type ConnectorConfig struct {
	Name     string                 `default:""`
	Type     string                 `default:""`
	Settings map[string]interface{} `default:""`
}

// LogConfig controls internal/obs's root logger.
type LogConfig struct {
	Level   string `default:"info"`
	File    string `default:""`
	Pretty  bool   `default:"true"`
	NoColor bool   `default:"false"`
}

// Config is the supervisor's full configuration, matching the collaborator
// shape:
// {rcon, logReader, adminListSources[], updateIntervals?, plugins[], connectors[]}.
type Config struct {
	RCON             RCONConfig
	LogReader        LogReaderConfig
	AdminListSources []AdminListSourceConfig
	Plugins          []PluginConfig
	Connectors       []ConnectorConfig
	Log              LogConfig

	// UpdateIntervalsRaw maps a scheduler task name to an override interval
	// expressed as a Go duration string (e.g. "30s"); UpdateIntervals converts
	// it to map[string]time.Duration for orchestrator.Config.UpdateIntervals.
	UpdateIntervalsRaw map[string]string `default:""`

	SettlingDelay     time.Duration `default:"2s"`
	LayerHistoryDepth int           `default:"10"`
}

// Load reads configuration from (in ascending priority) built-in defaults,
// an optional YAML file, a ".env" overlay, and the process environment.
// files may be empty; missing optional files are not an error.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:          true,
		EnvPrefix:          "SUPERVISOR",
		Files:              files,
		FileDecoders:       map[string]aconfig.FileDecoder{".yaml": aconfigyaml.New(), ".yml": aconfigyaml.New()},
		AllowUnknownFields: true,
	})
	if err := loader.Load(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// UpdateIntervals converts UpdateIntervalsRaw into the
// map[string]time.Duration shape orchestrator.Config expects, skipping (and
// reporting) any entry that fails to parse.
func (c Config) UpdateIntervals() (map[string]time.Duration, []error) {
	if len(c.UpdateIntervalsRaw) == 0 {
		return nil, nil
	}
	out := make(map[string]time.Duration, len(c.UpdateIntervalsRaw))
	var errsOut []error
	for name, raw := range c.UpdateIntervalsRaw {
		d, err := time.ParseDuration(raw)
		if err != nil {
			errsOut = append(errsOut, fmt.Errorf("config: updateIntervals[%q]: %w", name, err))
			continue
		}
		out[name] = d
	}
	return out, errsOut
}
