// Package config loads the top-level server.json: the HTTP bind address,
// deployment profile, audit-log and fetch-cache backend selection, the
// log sink, and the adapter mount table. It deliberately does not support
// hot reload: unlike a rule's action (re-read from the status tree on
// every fire), the server config is fixed for the life of the process.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Profile names the deployment profile. It is validated and logged at
// startup; the audit log and fetch cache backends are chosen by
// audit.backend and cache.backend, not by the profile.
type Profile string

const (
	ProfileLite     Profile = "lite"
	ProfileStandard Profile = "standard"
)

// ServerConfig is the HTTP bind configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	DownloadsDir string `mapstructure:"downloads_dir"`
}

// AuditConfig selects and configures the audit-log backend.
type AuditConfig struct {
	Backend string `mapstructure:"backend"` // "none", "sqlite", "postgres"
	Path    string `mapstructure:"path"`    // sqlite file path, or postgres DSN
}

// CacheConfig selects and configures the fetch-cache backend.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // "memory" or "redis"
	RedisAddr string `mapstructure:"redis_addr"`
}

// LogConfig mirrors internal/logging.Config field-for-field except
// Compress, which has no config-file key, using JSON config-file naming
// (snake_case, *_mb/*_days suffixes).
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AdapterConfig is one entry of the "adapters" map: a name bound to a
// mount URL and, for the File adapter, a source filename.
type AdapterConfig struct {
	Mount    string `mapstructure:"mount"`
	Filename string `mapstructure:"filename"`
}

// Config is the fully-parsed server.json.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Profile   Profile                  `mapstructure:"profile"`
	Audit     AuditConfig              `mapstructure:"audit"`
	Cache     CacheConfig              `mapstructure:"cache"`
	Log       LogConfig                `mapstructure:"log"`
	Latitude  float64                  `mapstructure:"latitude"`
	Longitude float64                  `mapstructure:"longitude"`
	Adapters  map[string]AdapterConfig `mapstructure:"adapters"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.downloads_dir", "./downloads")

	v.SetDefault("profile", "lite")

	v.SetDefault("audit.backend", "sqlite")
	v.SetDefault("audit.path", "./data/audit.db")

	v.SetDefault("cache.backend", "memory")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("latitude", 0.0)
	v.SetDefault("longitude", 0.0)
}

// Load reads and parses path as JSON (unknown top-level fields are
// ignored, per spec), applying defaults for anything absent. An empty
// path loads defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields Load's defaults don't already guarantee are
// sane: the discriminated backend selectors and the profile value.
func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileLite, ProfileStandard:
	default:
		return fmt.Errorf("unknown profile %q (want %q or %q)", c.Profile, ProfileLite, ProfileStandard)
	}

	switch strings.ToLower(c.Audit.Backend) {
	case "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown audit.backend %q", c.Audit.Backend)
	}
	if strings.ToLower(c.Audit.Backend) != "none" && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required for backend %q", c.Audit.Backend)
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if strings.ToLower(c.Cache.Backend) == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for backend \"redis\"")
	}

	for name, a := range c.Adapters {
		if a.Mount == "" {
			return fmt.Errorf("adapters.%s.mount must not be empty", name)
		}
	}

	return nil
}
