package ogm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the mapper configuration, usually loaded from YAML:
//
//	id_property: uuid
//	log_level: info
//	cache:
//	  enabled: true
//	neo4j:
//	  uri: bolt://localhost:7687
//	  username: neo4j
//	  password: ${NEO4J_PASSWORD}
//	  database: neo4j
//	  max_pool_size: 50
//	  connect_timeout: 5s
//
// Environment variables in the file are expanded before parsing.
type Config struct {
	IDProperty string      `yaml:"id_property"`
	LogLevel   string      `yaml:"log_level"`
	Cache      CacheConfig `yaml:"cache"`
	Neo4j      Neo4jConfig `yaml:"neo4j"`
}

// CacheConfig controls per-record association caching.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Neo4jConfig holds the connection settings consumed by driver.Open.
type Neo4jConfig struct {
	URI            string        `yaml:"uri"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		IDProperty: "uuid",
		LogLevel:   "info",
		Cache:      CacheConfig{Enabled: true},
		Neo4j: Neo4jConfig{
			URI:            "bolt://localhost:7687",
			Username:       "neo4j",
			Database:       "neo4j",
			MaxPoolSize:    100,
			ConnectTimeout: 5 * time.Second,
		},
	}
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses YAML over DefaultConfig, so omitted keys keep their
// defaults, and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the mapper cannot use.
func (c *Config) Validate() error {
	if err := ValidateIdentifier(c.IDProperty, "property"); err != nil {
		return fmt.Errorf("id_property: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri is required")
	}
	if c.Neo4j.MaxPoolSize < 0 {
		return fmt.Errorf("neo4j.max_pool_size must not be negative, got %d", c.Neo4j.MaxPoolSize)
	}
	if c.Neo4j.ConnectTimeout < 0 {
		return fmt.Errorf("neo4j.connect_timeout must not be negative, got %s", c.Neo4j.ConnectTimeout)
	}
	return nil
}

// SlogLevel returns LogLevel as a slog.Level. Unknown levels map to Info.
func (c *Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", s)
}

// Apply installs the configured id property as DefaultIDProperty. It only
// affects models registered afterwards.
func (c *Config) Apply() {
	if c.IDProperty != "" {
		DefaultIDProperty = c.IDProperty
	}
}

// SessionOptions returns the session options implied by the configuration.
// A nil logger leaves the package logger in place.
func (c *Config) SessionOptions(l *slog.Logger) []SessionOption {
	opts := []SessionOption{WithCache(c.Cache.Enabled)}
	if l != nil {
		opts = append(opts, WithLogger(l))
	}
	return opts
}
