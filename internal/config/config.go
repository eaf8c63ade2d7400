// Package config loads stride configuration from a TOML file with
// STRIDE_* environment overrides, and watches the file for hot reload of
// the engine tuning knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	DBPath        string
	LogFile       string
	DashboardPort int

	RemoteBaseURL string
	RemoteToken   string
	RemoteTimeout time.Duration

	PushInterval   time.Duration
	PullInterval   time.Duration
	BatchSize      int
	InterCallDelay time.Duration

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerOpenDuration     time.Duration
	BreakerDisabled         bool

	// loadedFrom is the config file actually read, if any; the watcher
	// uses it for hot reload.
	loadedFrom string
}

// Load reads configuration from path, or from ./stride.toml and
// ~/.stride/stride.toml when path is empty. A missing file is fine;
// defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STRIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stride")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".stride"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("db_path", filepath.Join(home, ".stride", "stride.db"))
	v.SetDefault("log_file", "")
	v.SetDefault("dashboard_port", 8080)

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.timeout", "15s")

	v.SetDefault("sync.push_interval", "30s")
	v.SetDefault("sync.pull_interval", "15m")
	v.SetDefault("sync.batch_size", 10)
	v.SetDefault("sync.inter_call_delay", "350ms")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.max_delay", "10s")

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.open_duration", "30s")
	v.SetDefault("breaker.disabled", false)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		DBPath:        v.GetString("db_path"),
		LogFile:       v.GetString("log_file"),
		DashboardPort: v.GetInt("dashboard_port"),

		RemoteBaseURL: v.GetString("remote.base_url"),
		RemoteToken:   v.GetString("remote.token"),
		RemoteTimeout: v.GetDuration("remote.timeout"),

		PushInterval:   v.GetDuration("sync.push_interval"),
		PullInterval:   v.GetDuration("sync.pull_interval"),
		BatchSize:      v.GetInt("sync.batch_size"),
		InterCallDelay: v.GetDuration("sync.inter_call_delay"),

		RetryMaxAttempts:  v.GetInt("retry.max_attempts"),
		RetryInitialDelay: v.GetDuration("retry.initial_delay"),
		RetryMaxDelay:     v.GetDuration("retry.max_delay"),

		BreakerFailureThreshold: v.GetInt("breaker.failure_threshold"),
		BreakerSuccessThreshold: v.GetInt("breaker.success_threshold"),
		BreakerOpenDuration:     v.GetDuration("breaker.open_duration"),
		BreakerDisabled:         v.GetBool("breaker.disabled"),

		loadedFrom: v.ConfigFileUsed(),
	}
}

// Path returns the config file the settings were loaded from, if any.
func (c *Config) Path() string {
	return c.loadedFrom
}
