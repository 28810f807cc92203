// Package config loads runtime settings. Precedence, lowest to highest:
// built-in defaults, the .trellis.yaml config file, TRELLIS_* environment
// variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the working directory when no
// explicit path is given.
const FileName = ".trellis.yaml"

// Config is the resolved runtime configuration.
type Config struct {
	// Root is the directory scanned for work items.
	Root string

	// Addr is the HTTP listen address.
	Addr string

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string

	// LogFile, when set, routes logs to a rotated file.
	LogFile string

	// NoColor disables ANSI colors in terminal output.
	NoColor bool

	// Debounce is the watcher quiet window before a change fires.
	Debounce time.Duration

	// PingInterval is the WebSocket liveness probe interval.
	PingInterval time.Duration
}

// Load resolves the configuration. cfgFile overrides the default config
// file lookup and must exist when given; a missing .trellis.yaml in the
// working directory is fine. flags, when non-nil, are bound at highest
// precedence.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("root", ".")
	v.SetDefault("addr", ":8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")
	v.SetDefault("no-color", false)
	v.SetDefault("debounce", 100*time.Millisecond)
	v.SetDefault("ping-interval", 30*time.Second)

	v.SetEnvPrefix("TRELLIS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
			}
		}
	}

	cfg := &Config{
		Root:         v.GetString("root"),
		Addr:         v.GetString("addr"),
		LogLevel:     v.GetString("log-level"),
		LogFile:      v.GetString("log-file"),
		NoColor:      v.GetBool("no-color"),
		Debounce:     v.GetDuration("debounce"),
		PingInterval: v.GetDuration("ping-interval"),
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	return cfg, nil
}
