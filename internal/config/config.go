// Package config loads the tendril configuration file.
package config

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/session"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit path is given.
const DefaultPath = "tendril.yaml"

// RedisConfig enables the Redis snapshot store and distributed locker.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// EncryptionConfig holds base64-encoded AES-256 keys.
type EncryptionConfig struct {
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys,omitempty"`
}

func (e *EncryptionConfig) decode() (middleware.EncryptionConfig, error) {
	var out middleware.EncryptionConfig
	key, err := base64.StdEncoding.DecodeString(e.Key)
	if err != nil {
		return out, fmt.Errorf("encryption.key: %w", err)
	}
	out.ActiveKey = key
	for i, k := range e.FallbackKeys {
		fallback, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return out, fmt.Errorf("encryption.fallback_keys[%d]: %w", i, err)
		}
		out.FallbackKeys = append(out.FallbackKeys, fallback)
	}
	return out, nil
}

// Config models tendril.yaml.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// LockTTL bounds distributed locks held on process instances.
	LockTTL time.Duration `yaml:"lock_ttl"`

	// HTTPAddr is where "serve" listens; /metrics is exposed there too.
	HTTPAddr string `yaml:"http_addr"`

	// Redis is optional; snapshots stay in memory without it.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// StorePath keeps snapshots as JSON files when Redis is not configured.
	StorePath string `yaml:"store_path,omitempty"`

	// Encryption encrypts snapshot data at rest.
	Encryption *EncryptionConfig `yaml:"encryption,omitempty"`

	// MaskVariables are key patterns whose values are masked before saving.
	MaskVariables []string `yaml:"mask_variables,omitempty"`

	// Globals are visible to every process instance.
	Globals map[string]any `yaml:"globals,omitempty"`

	// Definitions lists process definition files loaded at startup.
	Definitions []string `yaml:"definitions,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: string(logging.FormatText),
		LockTTL:   session.DefaultConfig().LockTTL,
		HTTPAddr:  ":8080",
	}
}

// Load reads a YAML configuration file over the defaults.
// A missing file at DefaultPath is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch logging.Format(c.LogFormat) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.LockTTL < 0 {
		errs = append(errs, fmt.Errorf("lock_ttl must not be negative"))
	}
	if c.Redis != nil && c.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("redis.addr is required when redis is configured"))
	}
	if _, err := c.storeMiddleware(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logger builds the application logger.
func (c *Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.New(level, logging.Format(c.LogFormat))
}

// Session returns the session settings.
func (c *Config) Session() session.Config {
	return session.Config{LockTTL: c.LockTTL}
}

// NewEnvironment implements ports.EnvironmentProvider. Snapshots go to Redis
// when configured, to StorePath otherwise, or stay in memory.
func (c *Config) NewEnvironment(ctx context.Context) (*ports.Environment, error) {
	mws, err := c.storeMiddleware()
	if err != nil {
		return nil, err
	}

	env := &ports.Environment{Globals: c.Globals}
	switch {
	case c.Redis != nil:
		var opts []redis.Option
		if c.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(c.Redis.Prefix+"process:"))
		}
		if c.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(c.Redis.TTL))
		}
		store := redis.New(c.Redis.Addr, c.Redis.Password, c.Redis.DB, opts...)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", c.Redis.Addr, err)
		}

		prefix := c.Redis.Prefix
		if prefix == "" {
			prefix = "tendril:"
		}
		env.Store = store
		env.Locker = redis.NewLocker(store.Client(), prefix)
	case c.StorePath != "":
		env.Store = file.New(c.StorePath)
	default:
		env.Store = memory.NewStore()
	}

	env.Store = middleware.Chain(env.Store, mws...)
	return env, nil
}

// storeMiddleware builds masking then encryption, in that order.
func (c *Config) storeMiddleware() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(c.MaskVariables) > 0 {
		pii, err := middleware.NewPIIMiddleware(c.MaskVariables)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if c.Encryption != nil {
		keys, err := c.Encryption.decode()
		if err != nil {
			return nil, err
		}
		enc, err := middleware.NewEncryptionMiddleware(keys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}
