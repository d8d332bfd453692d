// Package config provides the process-wide configuration singleton and the
// in-memory user/admin registry for popd.
package config

import (
	"errors"
	"fmt"
)

// Defaults mirrored from the original implementation's argument parser.
const (
	DefaultPop3Address    = ":110"
	DefaultManagerAddress = ":4321"
	DefaultLogLevel       = "info"
)

// MetricsConfig holds configuration for the optional Prometheus endpoint.
// This is an ambient concern, carried regardless of the spec's "no
// persistent stats" non-goal, which only rules out durable storage of
// counters, not an in-process metrics surface.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Config is the single configuration record described in spec.md §3
// ("Configuration. Singleton with fields: POP3 listen address, manager
// listen address, maildir root, transformer command, byte-stuffer
// command"), extended with the ambient logging/metrics knobs every
// service in the retrieved pack carries.
type Config struct {
	Pop3Address    string        `toml:"pop3_address"`
	ManagerAddress string        `toml:"manager_address"`
	Maildir        string        `toml:"maildir"`
	Transformer    string        `toml:"transformer"`
	ByteStuffer    string        `toml:"bytestuffer"`
	LogLevel       string        `toml:"log_level"`
	Metrics        MetricsConfig `toml:"metrics"`
}

// FileConfig is the top-level wrapper for the TOML configuration file.
type FileConfig struct {
	Popd Config `toml:"popd"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Pop3Address:    DefaultPop3Address,
		ManagerAddress: DefaultManagerAddress,
		Maildir:        "./maildir",
		ByteStuffer:    "bytestuff",
		LogLevel:       DefaultLogLevel,
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9110",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is usable and returns an error
// describing the first problem found.
func (c *Config) Validate() error {
	if c.Pop3Address == "" {
		return errors.New("pop3_address is required")
	}
	if c.ManagerAddress == "" {
		return errors.New("manager_address is required")
	}
	if c.Pop3Address == c.ManagerAddress {
		return errors.New("pop3_address and manager_address must differ")
	}
	if c.Maildir == "" {
		return errors.New("maildir is required")
	}
	if c.ByteStuffer == "" {
		return errors.New("bytestuffer command is required")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return fmt.Errorf("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return fmt.Errorf("metrics path is required when metrics are enabled")
		}
	}
	return nil
}
