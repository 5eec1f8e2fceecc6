package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "ROSTER_"

// Config is the server configuration.
type Config struct {
	Listen        string        `mapstructure:"listen"`
	Admin         string        `mapstructure:"admin"`
	MCPPort       int           `mapstructure:"mcp_port"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the optional presence mirror. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	Interval time.Duration `mapstructure:"interval"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Listen:        "127.0.0.1:4406",
		Admin:         "127.0.0.1:8080",
		LogLevel:      "info",
		LogFormat:     "text",
		StatsInterval: time.Second,
		ShutdownGrace: 10 * time.Second,
		Redis: RedisConfig{
			Prefix:   "roster:",
			TTL:      30 * time.Second,
			Interval: 10 * time.Second,
		},
	}
}

// envKeys maps environment variables (without EnvPrefix) to document paths.
var envKeys = map[string][]string{
	"LISTEN":         {"listen"},
	"ADMIN":          {"admin"},
	"MCP_PORT":       {"mcp_port"},
	"LOG_LEVEL":      {"log_level"},
	"LOG_FORMAT":     {"log_format"},
	"STATS_INTERVAL": {"stats_interval"},
	"SHUTDOWN_GRACE": {"shutdown_grace"},
	"REDIS_ADDR":     {"redis", "addr"},
	"REDIS_PASSWORD": {"redis", "password"},
	"REDIS_DB":       {"redis", "db"},
	"REDIS_PREFIX":   {"redis", "prefix"},
	"REDIS_TTL":      {"redis", "ttl"},
	"REDIS_INTERVAL": {"redis", "interval"},
}

// Load reads a configuration file (YAML, JSON or TOML, chosen by extension),
// applies ROSTER_* environment overrides and validates the result.
// An empty path or a missing file yields the defaults plus overrides.
func Load(path string) (Config, error) {
	raw, err := readDocument(path)
	if err != nil {
		return Config{}, err
	}
	applyEnv(raw)

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("invalid config: listen address is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid config: log_format must be text or json, got %q", c.LogFormat)
	}
	if c.MCPPort < 0 || c.MCPPort > 65535 {
		return fmt.Errorf("invalid config: mcp_port out of range: %d", c.MCPPort)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("invalid config: stats_interval must be positive")
	}
	if c.Redis.Addr != "" && (c.Redis.TTL <= 0 || c.Redis.Interval <= 0) {
		return fmt.Errorf("invalid config: redis ttl and interval must be positive")
	}
	return nil
}

func readDocument(path string) (map[string]any, error) {
	raw := map[string]any{}
	if path == "" {
		return raw, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing default file means "nothing configured".
			return raw, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		// Default to YAML
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}
	return raw, nil
}

func applyEnv(raw map[string]any) {
	for name, path := range envKeys {
		val, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		setPath(raw, path, val)
	}
}

func setPath(doc map[string]any, path []string, val string) {
	for _, key := range path[:len(path)-1] {
		next, ok := doc[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			doc[key] = next
		}
		doc = next
	}
	doc[path[len(path)-1]] = val
}
