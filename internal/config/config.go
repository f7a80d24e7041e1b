// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	DB      DBConfig      `mapstructure:"db"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines admin API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store, which is only suitable for local development.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// WorkerConfig governs the hygiene worker passes.
type WorkerConfig struct {
	LockTTLSeconds      int     `mapstructure:"lock_ttl_seconds"`
	NormalizeBatch      int     `mapstructure:"normalize_batch"`
	URLCheckLimit       int     `mapstructure:"urlcheck_limit"`
	ProbeTimeoutSeconds int     `mapstructure:"probe_timeout_seconds"`
	ProbeRPS            float64 `mapstructure:"probe_rps"`
	UserAgent           string  `mapstructure:"user_agent"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HYGIENE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("worker.lock_ttl_seconds", 60)
	v.SetDefault("worker.normalize_batch", 20)
	v.SetDefault("worker.urlcheck_limit", 25)
	v.SetDefault("worker.probe_timeout_seconds", 10)
	v.SetDefault("worker.probe_rps", 4)
	v.SetDefault("worker.user_agent", "Mozilla/5.0 (compatible; CompAceBot/1.0; +http://compace.com)")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Worker.LockTTLSeconds <= 0 {
		return fmt.Errorf("worker.lock_ttl_seconds must be > 0")
	}
	if c.Worker.NormalizeBatch <= 0 {
		return fmt.Errorf("worker.normalize_batch must be > 0")
	}
	if c.Worker.URLCheckLimit <= 0 {
		return fmt.Errorf("worker.urlcheck_limit must be > 0")
	}
	if c.Worker.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("worker.probe_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// LockTTL returns the worker lock expiry as a duration.
func (c Config) LockTTL() time.Duration {
	return time.Duration(c.Worker.LockTTLSeconds) * time.Second
}

// ProbeTimeout returns the per-probe HTTP timeout as a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Worker.ProbeTimeoutSeconds) * time.Second
}
