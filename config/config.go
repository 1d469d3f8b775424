/*
Package config holds the server configuration.

SOURCES (later wins):
  1. `default:` struct tags (go-defaults)
  2. YAML file (-config flag), optional
  3. Environment: ABSENCE_PORT, ABSENCE_DB_DRIVER, ABSENCE_DB_PATH,
     ABSENCE_LOG_LEVEL, ABSENCE_LOG_FORMAT, ABSENCE_RULES_FILE,
     ABSENCE_AUTH_HEADER
  4. Command-line flags, applied by cmd/server

EXAMPLE:
  server:
    port: 8080
    allowed_origins: ["http://localhost:5173"]
  database:
    driver: sqlite
    path: ./data/absence.db
    seed: true
  log:
    level: debug
    format: console
  rules_file: ./rules.yaml
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	defaults "github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Log       LogConfig      `yaml:"log"`
	Auth      AuthConfig     `yaml:"auth"`
	RulesFile string         `yaml:"rules_file"` // empty: built-in rules
}

type ServerConfig struct {
	Port           int           `yaml:"port" default:"8080"`
	ReadTimeout    time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" default:"60s"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" default:"sqlite"` // sqlite | memory
	Path   string `yaml:"path" default:"absence.db"`
	Seed   bool   `yaml:"seed" default:"true"` // load demo data into an empty database
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"` // json | console
}

type AuthConfig struct {
	HeaderKey string `yaml:"header_key" default:"X-User-ID"`
	// How long resolved users are cached.
	UserCacheTTL time.Duration `yaml:"user_cache_ttl" default:"5m"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads path (when non-empty) over the defaults and applies the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document into cfg. Keys absent from the document keep
// their current value.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv applies the ABSENCE_* overrides. lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ABSENCE_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: ABSENCE_PORT %q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("ABSENCE_DB_DRIVER"); ok {
		c.Database.Driver = strings.TrimSpace(v)
	}
	if v, ok := lookup("ABSENCE_DB_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup("ABSENCE_LOG_LEVEL"); ok {
		c.Log.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup("ABSENCE_LOG_FORMAT"); ok {
		c.Log.Format = strings.TrimSpace(v)
	}
	if v, ok := lookup("ABSENCE_RULES_FILE"); ok {
		c.RulesFile = v
	}
	if v, ok := lookup("ABSENCE_AUTH_HEADER"); ok {
		c.Auth.HeaderKey = strings.TrimSpace(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("%w: database driver %q (use sqlite or memory)", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("%w: sqlite needs a database path", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Auth.HeaderKey == "" {
		return fmt.Errorf("%w: empty auth header key", ErrInvalidConfig)
	}
	return nil
}
