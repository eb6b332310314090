// Package config loads process-wide defaults for the bar binary: a layered
// viper configuration (flags > env > config file > defaults) plus an
// optional bar.toml file for settings that predate viper's adoption in this
// codebase and are still read with BurntSushi/toml for compatibility.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Should be called
// once at application startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD to find a project .bar/config.yaml, so
	//    subcommands work from any subdirectory of a job tree.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".bar", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/bar/config.yaml).
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "bar", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.bar/config.yaml).
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".bar", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// Environment variables take precedence over the config file, e.g.
	// BAR_JOBS_DIR, BAR_NO_DAEMON, BAR_LOCK_TIMEOUT.
	v.SetEnvPrefix("BAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("no-daemon", false)
	v.SetDefault("jobs-dir", defaultJobsDir())
	v.SetDefault("catalog-path", defaultCatalogPath())
	v.SetDefault("daemon.pid-file", defaultStatePath("daemon.pid"))
	v.SetDefault("daemon.scan-lock-file", defaultStatePath("jobs.lock"))
	v.SetDefault("lock-timeout", "10m")
	v.SetDefault("busy-retry-interval", "500ms")
	v.SetDefault("checkpoint-interval", "10m")
	v.SetDefault("scheduler-interval", "60s")
	v.SetDefault("pairing-interval", "60s")
	v.SetDefault("pairing-timeout", "120s")
	v.SetDefault("slave-connect-interval", "60s")
	v.SetDefault("slave-command-timeout", "10s")
	v.SetDefault("index-update-interval", "10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 100)
	v.SetDefault("log.max-backups", 5)
	v.SetDefault("log.max-age-days", 30)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return loadTOMLDefaults()
}

func defaultJobsDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".bar", "jobs")
	}
	return ".bar/jobs"
}

func defaultCatalogPath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".bar", "catalog.db")
	}
	return ".bar/catalog.db"
}

func defaultStatePath(name string) string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".bar", "run", name)
	}
	return filepath.Join(".bar", "run", name)
}

// tomlDefaults mirrors the legacy bar.toml shape: a flat table of process
// defaults loaded before viper's layered sources are consulted, for values
// an operator has chosen to keep in a plain TOML file rather than viper's
// YAML config.
type tomlDefaults struct {
	JobsDir       string `toml:"jobs_dir"`
	LockTimeout   string `toml:"lock_timeout"`
	LogLevel      string `toml:"log_level"`
	SlaveHostName string `toml:"slave_host_name"`
	SlavePort     int    `toml:"slave_port"`
}

func loadTOMLDefaults() error {
	path := tomlConfigPath()
	if path == "" {
		return nil
	}
	var defaults tomlDefaults
	if _, err := toml.DecodeFile(path, &defaults); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	if defaults.JobsDir != "" && !v.IsSet("jobs-dir") {
		v.SetDefault("jobs-dir", defaults.JobsDir)
	}
	if defaults.LockTimeout != "" && !v.IsSet("lock-timeout") {
		v.SetDefault("lock-timeout", defaults.LockTimeout)
	}
	if defaults.LogLevel != "" && !v.IsSet("log.level") {
		v.SetDefault("log.level", defaults.LogLevel)
	}
	if defaults.SlaveHostName != "" {
		v.SetDefault("default-slave-host-name", defaults.SlaveHostName)
		v.SetDefault("default-slave-port", defaults.SlavePort)
	}
	return nil
}

func tomlConfigPath() string {
	if p := os.Getenv("BAR_TOML"); p != "" {
		return p
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".bar", "bar.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value, overriding any file/env/default value.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map.
func AllSettings() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v.AllSettings()
}
