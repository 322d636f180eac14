package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPath is used when PathEnvVar is unset.
const DefaultPath = "config.yaml"

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// envKeys maps environment variables onto config keys. The first three
// keep the variable names older deployments already export.
var envKeys = map[string]string{
	"PERIOD":                "rescan.period",
	"MAX_FOLDER_GB":         "storage.maxFolderGB",
	"PASSWORD":              "protocol.password",
	"SNAPKEEPER_ROOT":       "storage.root",
	"SNAPKEEPER_ADDRESS":    "server.address",
	"SNAPKEEPER_LOG_LEVEL":  "logging.level",
	"SNAPKEEPER_LOG_FORMAT": "logging.format",
}

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := mapEnvKey(envPattern.FindStringSubmatch(m)[1])
		return os.Getenv(key)
	})
}

// Path returns the config file to load.
func Path() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	return DefaultPath
}

// Load builds the configuration from defaults, then the YAML file at path
// (optional when missing), then environment overrides, and validates it.
// Every failure is a *ConfigError.
func Load(path string) (*Config, error) {
	cfg := Default()

	// read raw YAML file
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults and environment only
	case err != nil:
		return nil, &ConfigError{Err: fmt.Errorf("reading config file: %w", err)}
	default:
		// expand $(ENV_VAR) placeholders
		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("unmarshalling yaml: %w", err)}
		}
	}

	cfg, err = overlayEnv(cfg)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayEnv applies envKeys on top of base.
func overlayEnv(base *Config) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(base, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading file values: %w", err)
	}

	provider := env.Provider("", ".", func(s string) string {
		return envKeys[strings.ToUpper(s)]
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	out := &Config{}
	if err := k.Unmarshal("", out); err != nil {
		return nil, fmt.Errorf("unmarshalling layered config: %w", err)
	}
	return out, nil
}
