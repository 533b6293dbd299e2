package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Chat      ChatConfig       `json:"chat"`
	Catalog   CatalogConfig    `json:"catalog"`
	Database  DatabaseConfig   `json:"database"`
}

type ServerConfig struct {
	Port                int    `json:"port"`
	LogLevel            string `json:"log_level"`
	UploadRatePerMinute *int   `json:"upload_rate_per_minute,omitempty"`
}

type ProviderConfig struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	Endpoint       string            `json:"endpoint"`
	APIKey         string            `json:"api_key"`
	Extra          map[string]string `json:"extra,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

// ChatConfig selects the model used by the tutor.
type ChatConfig struct {
	Provider               string   `json:"provider"`
	Model                  string   `json:"model"`
	MaxTokens              int      `json:"max_tokens"`
	Temperature            *float64 `json:"temperature,omitempty"`
	Stream                 *bool    `json:"stream,omitempty"`
	TimeoutSeconds         int      `json:"timeout_seconds"`
	BreakerFailures        uint32   `json:"breaker_failures"`
	BreakerCooldownSeconds int      `json:"breaker_cooldown_seconds"`
	RequestsPerMinute      int      `json:"requests_per_minute,omitempty"`
}

// CatalogConfig locates the image catalog and the upload area.
type CatalogConfig struct {
	Path           string `json:"path"`
	PublicDir      string `json:"public_dir"`
	UploadsDir     string `json:"uploads_dir"`
	UploadsURL     string `json:"uploads_url"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN           string `json:"dsn"`
	MigrationsDir string `json:"migrations_dir"`
}

type RedisConfig struct {
	URL              string `json:"url"`
	DigestTTLMinutes int    `json:"digest_ttl_minutes"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable references
// and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a config document and applies defaults.
func Parse(data []byte) (*Config, error) {
	resolved := expandEnv(string(data))

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "debug"
	}
	if c.Server.UploadRatePerMinute == nil {
		n := 30
		c.Server.UploadRatePerMinute = &n
	}

	if c.Chat.Model == "" {
		c.Chat.Model = "gpt-5-mini"
	}
	if c.Chat.MaxTokens == 0 {
		c.Chat.MaxTokens = 500
	}
	if c.Chat.Temperature == nil {
		v := 0.7
		c.Chat.Temperature = &v
	}
	if c.Chat.Stream == nil {
		v := true
		c.Chat.Stream = &v
	}
	if c.Chat.TimeoutSeconds == 0 {
		c.Chat.TimeoutSeconds = 30
	}
	if c.Chat.BreakerFailures == 0 {
		c.Chat.BreakerFailures = 5
	}
	if c.Chat.BreakerCooldownSeconds == 0 {
		c.Chat.BreakerCooldownSeconds = 30
	}

	if c.Catalog.Path == "" {
		c.Catalog.Path = "data/images.json"
	}
	if c.Catalog.PublicDir == "" {
		c.Catalog.PublicDir = "public"
	}
	if c.Catalog.UploadsDir == "" {
		c.Catalog.UploadsDir = "public/uploads"
	}
	if c.Catalog.UploadsURL == "" {
		c.Catalog.UploadsURL = "/uploads"
	}
	if c.Catalog.MaxUploadBytes == 0 {
		c.Catalog.MaxUploadBytes = 10 << 20
	}

	if c.Database.Postgres.MigrationsDir == "" {
		c.Database.Postgres.MigrationsDir = "migrations"
	}
	if c.Database.Redis.DigestTTLMinutes == 0 {
		c.Database.Redis.DigestTTLMinutes = 24 * 60
	}
}

// Timeout returns the tutor deadline.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BreakerCooldown returns how long the breaker stays open.
func (c ChatConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

// DigestTTL returns the digest cache entry lifetime.
func (r RedisConfig) DigestTTL() time.Duration {
	return time.Duration(r.DigestTTLMinutes) * time.Minute
}

// Timeout returns the provider HTTP timeout, zero meaning the client default.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}
