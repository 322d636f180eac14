package config

import (
	"time"

	"github.com/raoulx24/snapkeeper/internal/retention"
)

type Config struct {
	Storage      StorageConfig  `yaml:"storage" koanf:"storage"`
	Rescan       RescanConfig   `yaml:"rescan" koanf:"rescan"`
	Protocol     ProtocolConfig `yaml:"protocol" koanf:"protocol"`
	Server       ServerConfig   `yaml:"server" koanf:"server"`
	Sources      SourcesConfig  `yaml:"sources" koanf:"sources"`
	Logging      LoggingConfig  `yaml:"logging" koanf:"logging"`
	ConfigReload ReloadConfig   `yaml:"configReload" koanf:"configReload"`
}

type StorageConfig struct {
	Root        string  `yaml:"root" koanf:"root" validate:"required"`
	MaxFolderGB float64 `yaml:"maxFolderGB" koanf:"maxFolderGB" validate:"gt=0"`
}

type RescanConfig struct {
	Period int         `yaml:"period" koanf:"period" validate:"gt=0"` // seconds
	Watch  WatchConfig `yaml:"watch" koanf:"watch"`
}

type WatchConfig struct {
	Mode            string        `yaml:"mode" koanf:"mode" validate:"oneof=off fsnotify auto"`
	DebounceWindow  time.Duration `yaml:"debounceWindow" koanf:"debounceWindow" validate:"gte=0"`   // e.g. 500ms
	StabilityWindow time.Duration `yaml:"stabilityWindow" koanf:"stabilityWindow" validate:"gte=0"` // e.g. 2s
}

type ProtocolConfig struct {
	Password          string  `yaml:"password" koanf:"password" validate:"required"`
	URLTemplate       string  `yaml:"urlTemplate" koanf:"urlTemplate" validate:"required,contains=%d"`
	CommandsPerSecond float64 `yaml:"commandsPerSecond" koanf:"commandsPerSecond" validate:"gte=0"` // 0 = unlimited
}

type ServerConfig struct {
	Address         string        `yaml:"address" koanf:"address" validate:"required"`
	Path            string        `yaml:"path" koanf:"path" validate:"required,startswith=/"`
	CORSOrigins     []string      `yaml:"corsOrigins" koanf:"corsOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" koanf:"shutdownTimeout" validate:"gt=0"`
}

type SourcesConfig struct {
	RegistrationDir string `yaml:"registrationDir" koanf:"registrationDir"` // directory of JSON exports
	CommitRepo      string `yaml:"commitRepo" koanf:"commitRepo"`           // git repository path
}

type LoggingConfig struct {
	Level  string `yaml:"level" koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" koanf:"format" validate:"oneof=json console"`
}

type ReloadConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled"` // reload on SIGHUP
}

// Default returns the configuration used for every key the file and the
// environment leave unset.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Root:        "data",
			MaxFolderGB: 10,
		},
		Rescan: RescanConfig{
			Period: 300,
			Watch: WatchConfig{
				Mode:            "auto",
				DebounceWindow:  500 * time.Millisecond,
				StabilityWindow: 2 * time.Second,
			},
		},
		Protocol: ProtocolConfig{
			URLTemplate: "/backups/week/%d",
		},
		Server: ServerConfig{
			Address:         "127.0.0.1:7930",
			Path:            "/ws",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Sources: SourcesConfig{
			RegistrationDir: "json_data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		ConfigReload: ReloadConfig{
			Enabled: true,
		},
	}
}

// RescanInterval is the fixed rescan period.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Rescan.Period) * time.Second
}

// BudgetBytes is the retention budget derived from Storage.MaxFolderGB.
func (c *Config) BudgetBytes() uint64 {
	return retention.BudgetFromGB(c.Storage.MaxFolderGB)
}
