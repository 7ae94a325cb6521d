package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes structured environment overrides, e.g.
// EXPLAINER_RATELIMIT__LIMIT=20.
const EnvPrefix = "EXPLAINER_"

// DefaultPath is the config file read when EXPLAINER_CONFIG is unset.
const DefaultPath = "config.yaml"

// Config is the process-wide configuration. It is read once at startup and
// never mutated afterwards.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	Demo      DemoConfig      `koanf:"demo"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	CORSOrigins    []string      `koanf:"cors_origins"`
}

// AnthropicConfig configures the generative-text provider.
type AnthropicConfig struct {
	APIKey        string        `koanf:"api_key"`
	BaseURL       string        `koanf:"base_url"`
	Model         string        `koanf:"model"`
	FallbackModel string        `koanf:"fallback_model"`
	Version       string        `koanf:"version"`
	MaxTokens     int           `koanf:"max_tokens"`
	Temperature   float64       `koanf:"temperature"`
	Timeout       time.Duration `koanf:"timeout"`
}

type DemoConfig struct {
	Enabled bool `koanf:"enabled"`
}

// AuthConfig configures the optional shared-secret gate for live mode.
type AuthConfig struct {
	Secret string `koanf:"secret"`
	Header string `koanf:"header"`
}

type RateLimitConfig struct {
	Limit   int           `koanf:"limit"`
	Window  time.Duration `koanf:"window"`
	Backend string        `koanf:"backend"` // memory, redis
	Redis   RedisConfig   `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// defaults are applied to every key the file and environment left unset.
var defaults = map[string]any{
	"server.port":              8787,
	"server.request_timeout":   30 * time.Second,
	"server.max_body_bytes":    int64(1 << 20),
	"server.cors_origins":      []string{"http://localhost:5173"},
	"anthropic.base_url":       "https://api.anthropic.com",
	"anthropic.model":          "claude-3-5-haiku-latest",
	"anthropic.fallback_model": "claude-3-5-haiku-latest",
	"anthropic.version":        "2023-06-01",
	"anthropic.max_tokens":     600,
	"anthropic.temperature":    0.2,
	"anthropic.timeout":        15 * time.Second,
	"auth.header":              "x-demo-pass",
	"ratelimit.limit":          12,
	"ratelimit.window":         time.Minute,
	"ratelimit.backend":        "memory",
	"ratelimit.redis.prefix":   "explainer:ratelimit:",
	"log.level":                "info",
	"telemetry.service_name":   "api-explainer",
}

// legacyEnv maps the plain environment names the service has always
// accepted onto config keys.
var legacyEnv = map[string]string{
	"PORT":               "server.port",
	"ANTHROPIC_API_KEY":  "anthropic.api_key",
	"ANTHROPIC_MODEL":    "anthropic.model",
	"ANTHROPIC_VERSION":  "anthropic.version",
	"ANTHROPIC_BASE_URL": "anthropic.base_url",
	"DEMO_MODE":          "demo.enabled",
	"DEMO_PASS":          "auth.secret",
	"REDIS_URL":          "ratelimit.redis.addr",
}

// PathFromEnv returns the config file path.
func PathFromEnv() string {
	if p := os.Getenv("EXPLAINER_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the optional YAML file at path, then legacy environment
// variables, then EXPLAINER_* overrides, and fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Anthropic.MaxTokens <= 0 {
		errs = append(errs, errors.New("anthropic.max_tokens must be positive"))
	}
	if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
		errs = append(errs, fmt.Errorf("anthropic.temperature %v must be within [0, 1]", c.Anthropic.Temperature))
	}
	if c.Anthropic.Timeout <= 0 {
		errs = append(errs, errors.New("anthropic.timeout must be positive"))
	}
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, errors.New("ratelimit.limit must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.Redis.Addr == "" {
			errs = append(errs, errors.New("ratelimit.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ratelimit.backend %q", c.RateLimit.Backend))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Warnings reports configuration that is valid but likely a mistake.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Anthropic.APIKey == "" && !c.Demo.Enabled {
		warnings = append(warnings, "Missing ANTHROPIC_API_KEY and demo mode is disabled; provider calls will be rejected")
	}
	return warnings
}

// SlogLevel returns the configured log level.
func (c LogConfig) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q", s)
	}
	return lvl, nil
}
