// Package config loads verbgate's YAML configuration and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/semreg"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Environment overrides.
const (
	EnvPolicyMode = "VERBGATE_POLICY_MODE"
	EnvStore      = "VERBGATE_STORE"
	EnvRedisAddr  = "VERBGATE_REDIS_ADDR"
	EnvRedisDB    = "VERBGATE_REDIS_DB"
	EnvHTTPAddr   = "VERBGATE_HTTP_ADDR"
	EnvCatalog    = "VERBGATE_CATALOG"
	// EnvEncryptionKey holds a base64 AES-256 key, kept out of config files.
	EnvEncryptionKey = "VERBGATE_ENCRYPTION_KEY"
)

// Config is the full service configuration.
type Config struct {
	Policy    semreg.Policy   `mapstructure:"policy"`
	Store     StoreConfig     `mapstructure:"store"`
	Trace     TraceConfig     `mapstructure:"trace"`
	Stage     StageConfig     `mapstructure:"stage"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Log       LogConfig       `mapstructure:"log"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// TTL expires pending choices. Zero keeps them until answered.
	TTL   time.Duration `mapstructure:"ttl"`
	Redis RedisConfig   `mapstructure:"redis"`
	// Encryption seals pending choices at rest when Key is set.
	Encryption EncryptionConfig `mapstructure:"encryption"`
}

type EncryptionConfig struct {
	Key          string   `mapstructure:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type TraceConfig struct {
	Capacity int `mapstructure:"capacity"`
	// RedisKey enables the redis trace sink when the store backend is redis.
	RedisKey string `mapstructure:"redis_key"`
	// Redact lists regular expressions masked in utterances before records leave the process.
	Redact []string `mapstructure:"redact"`
}

type StageConfig struct {
	// RedisKey is the queue staged DSL is pushed to when the store backend is redis.
	RedisKey string `mapstructure:"redis_key"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type GeneratorConfig struct {
	// Trusted skips re-extraction of generated DSL. Only for generators that
	// cannot emit more than the requested call.
	Trusted bool `mapstructure:"trusted"`
	// Command, when set, replaces the catalog generator with an external program.
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Policy: semreg.Policy{Mode: domain.ModeStrict},
		Store: StoreConfig{
			Backend: StoreMemory,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode merges YAML data into cfg.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvPolicyMode); ok {
		cfg.Policy.Mode = domain.PolicyMode(v)
	}
	if v, ok := os.LookupEnv(EnvStore); ok {
		cfg.Store.Backend = v
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		cfg.Store.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(EnvRedisDB); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRedisDB, err)
		}
		cfg.Store.Redis.DB = db
	}
	if v, ok := os.LookupEnv(EnvHTTPAddr); ok {
		cfg.HTTP.Addr = v
	}
	if v, ok := os.LookupEnv(EnvCatalog); ok {
		cfg.Catalog.Path = v
	}
	if v, ok := os.LookupEnv(EnvEncryptionKey); ok {
		cfg.Store.Encryption.Key = v
	}
	return nil
}

// Validate normalises enumerations and rejects unusable settings.
func (c *Config) Validate() error {
	mode, err := domain.ParsePolicyMode(string(c.Policy.Mode))
	if err != nil {
		return err
	}
	c.Policy.Mode = mode

	switch c.Store.Backend {
	case "", StoreMemory:
		c.Store.Backend = StoreMemory
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.TTL < 0 {
		return errors.New("store.ttl must not be negative")
	}
	if c.Generator.Timeout < 0 {
		return errors.New("generator.timeout must not be negative")
	}
	if c.Trace.Capacity < 0 {
		return errors.New("trace.capacity must not be negative")
	}
	return nil
}
