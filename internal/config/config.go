// Package config loads sapling settings from an optional YAML file overlaid
// by SAPLING_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/reveal"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "sapling.yaml"

// Classifier modes.
const (
	ClassifierLocal  = "local"
	ClassifierRemote = "remote"
)

// Config holds all sapling configuration.
type Config struct {
	LogLevel     string           `yaml:"log_level"`
	Session      string           `yaml:"session"`
	Tolerance    float64          `yaml:"tolerance"`
	Construction reveal.Timing    `yaml:"construction"`
	Playback     reveal.Timing    `yaml:"playback"`
	Server       ServerConfig     `yaml:"server"`
	Redis        RedisConfig      `yaml:"redis"`
	Store        StoreConfig      `yaml:"store"`
	Classifier   ClassifierConfig `yaml:"classifier"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig enables the Redis model store when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// StoreConfig enables the file model store when Dir is set and Redis is not.
// Key, when set, encrypts stored models in either store.
type StoreConfig struct {
	Dir string `yaml:"dir"`
	// Key is a base64 encoded AES-256 key.
	Key string `yaml:"key"`
	// PreviousKeys still open models sealed before a key rotation.
	PreviousKeys []string `yaml:"previous_keys"`
}

// Keys decodes the encryption keys. It returns a nil active key when
// encryption is off.
func (s StoreConfig) Keys() (active []byte, previous [][]byte, err error) {
	if s.Key == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(s.Key); err != nil {
		return nil, nil, fmt.Errorf("store.key: %w", err)
	}
	for i, k := range s.PreviousKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.previous_keys[%d]: %w", i, err)
		}
		previous = append(previous, key)
	}
	return active, previous, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ClassifierConfig selects the classification service.
type ClassifierConfig struct {
	Mode    string        `yaml:"mode"` // "local" or "remote"
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// LegacyTraces makes the local classifier omit node identities.
	LegacyTraces bool `yaml:"legacy_traces"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:     "info",
		Tolerance:    align.DefaultTolerance,
		Construction: reveal.ConstructionTiming,
		Playback:     reveal.PlaybackTiming,
		Server:       ServerConfig{Addr: ":8080"},
		Redis:        RedisConfig{Prefix: "sapling:model:", TTL: 24 * time.Hour},
		Classifier:   ClassifierConfig{Mode: ClassifierLocal, Timeout: 10 * time.Second},
	}
}

// Load reads path over the defaults, then applies the environment.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Construction.Interval <= 0 || c.Playback.Interval <= 0 {
		return errors.New("reveal intervals must be positive")
	}
	if c.Construction.Settle < 0 || c.Construction.Linger < 0 || c.Playback.Settle < 0 || c.Playback.Linger < 0 {
		return errors.New("reveal delays cannot be negative")
	}
	if c.Tolerance <= 0 {
		return errors.New("tolerance must be positive")
	}
	if _, _, err := c.Store.Keys(); err != nil {
		return err
	}
	switch c.Classifier.Mode {
	case ClassifierLocal:
	case ClassifierRemote:
		if c.Classifier.URL == "" {
			return errors.New("remote classifier requires classifier.url")
		}
	default:
		return fmt.Errorf("unknown classifier mode %q", c.Classifier.Mode)
	}
	return nil
}

func applyEnv(c *Config) error {
	c.LogLevel = getenv("SAPLING_LOG_LEVEL", c.LogLevel)
	c.Session = getenv("SAPLING_SESSION", c.Session)
	c.Server.Addr = getenv("SAPLING_ADDR", c.Server.Addr)
	c.Redis.Addr = getenv("SAPLING_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getenv("SAPLING_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.Prefix = getenv("SAPLING_REDIS_PREFIX", c.Redis.Prefix)
	c.Store.Dir = getenv("SAPLING_STORE_DIR", c.Store.Dir)
	c.Store.Key = getenv("SAPLING_STORE_KEY", c.Store.Key)
	c.Classifier.Mode = getenv("SAPLING_CLASSIFIER", c.Classifier.Mode)
	c.Classifier.URL = getenv("SAPLING_CLASSIFIER_URL", c.Classifier.URL)

	var err error
	if c.Redis.DB, err = getenvInt("SAPLING_REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Redis.TTL, err = getenvDuration("SAPLING_REDIS_TTL", c.Redis.TTL); err != nil {
		return err
	}
	if c.Classifier.Timeout, err = getenvDuration("SAPLING_CLASSIFIER_TIMEOUT", c.Classifier.Timeout); err != nil {
		return err
	}
	if c.Construction.Interval, err = getenvDuration("SAPLING_BUILD_INTERVAL", c.Construction.Interval); err != nil {
		return err
	}
	if c.Playback.Interval, err = getenvDuration("SAPLING_PATH_INTERVAL", c.Playback.Interval); err != nil {
		return err
	}
	if c.Tolerance, err = getenvFloat("SAPLING_TOLERANCE", c.Tolerance); err != nil {
		return err
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
