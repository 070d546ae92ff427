// Package config loads outline.yaml.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/aretw0/outline/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "outline.yaml"

// Config is the full application configuration.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	History    HistoryConfig    `mapstructure:"history"`
	Autosave   AutosaveConfig   `mapstructure:"autosave"`
	Editor     EditorConfig     `mapstructure:"editor"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Redact     RedactConfig     `mapstructure:"redact"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Publish    PublishConfig    `mapstructure:"publish"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
}

type StoreConfig struct {
	// Backend is file, memory or redis.
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HistoryConfig struct {
	// Backend is sqlite, memory, redis or none.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type AutosaveConfig struct {
	// Interval between autosave ticks; zero disables autosave.
	Interval time.Duration `mapstructure:"interval"`
	// IdleTimeout releases projects untouched for this long; zero keeps them open.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type EditorConfig struct {
	ID    string `mapstructure:"id"`
	Email string `mapstructure:"email"`
}

type EncryptionConfig struct {
	// Key is a base64 encoded 32 byte AES key. Empty disables encryption.
	Key          string   `mapstructure:"key"`
	PreviousKeys []string `mapstructure:"previous_keys"`
}

type RedactConfig struct {
	// PayloadKeys are regular expressions matched against payload keys.
	PayloadKeys []string `mapstructure:"payload_keys"`
}

type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PublishConfig struct {
	// Dir is the loam repository receiving published outlines. Empty disables publishing.
	Dir string `mapstructure:"dir"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Store:    StoreConfig{Backend: "file", Dir: ".outline/projects"},
		Redis:    RedisConfig{Addr: "localhost:6379", Prefix: "outline:"},
		History:  HistoryConfig{Backend: "sqlite", Path: ".outline/history.db"},
		Autosave: AutosaveConfig{Interval: 30 * time.Second, IdleTimeout: 30 * time.Minute},
		Breaker:  BreakerConfig{MaxFailures: 5, Timeout: 30 * time.Second},
		HTTP:     HTTPConfig{Addr: ":8080", CORSOrigins: []string{"*"}},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := Decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode merges YAML data into cfg. Durations accept Go syntax ("30s") and
// string lists accept comma separated values.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			intToDurationHook,
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// intToDurationHook reads bare YAML numbers as seconds.
func intToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OUTLINE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("OUTLINE_ENCRYPTION_KEY"); v != "" {
		cfg.Encryption.Key = v
	}
	if v := os.Getenv("OUTLINE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate rejects unknown backends, bad keys and bad levels.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "file", "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.History.Backend {
	case "sqlite", "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.Autosave.Interval < 0 {
		return fmt.Errorf("autosave interval must not be negative")
	}
	if c.Autosave.IdleTimeout < 0 {
		return fmt.Errorf("autosave idle timeout must not be negative")
	}
	if c.Encryption.Key != "" {
		if _, err := c.EncryptionKeys(); err != nil {
			return err
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// EncryptionKeys decodes the active key followed by previous keys.
func (c Config) EncryptionKeys() ([][]byte, error) {
	encoded := append([]string{c.Encryption.Key}, c.Encryption.PreviousKeys...)
	keys := make([][]byte, 0, len(encoded))
	for i, s := range encoded {
		k, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("encryption key %d: %w", i, err)
		}
		if len(k) != 32 {
			return nil, fmt.Errorf("encryption key %d: must be 32 bytes, got %d", i, len(k))
		}
		keys = append(keys, k)
	}
	return keys, nil
}
