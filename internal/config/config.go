// Package config holds the service configuration, populated from
// defaults, an optional YAML file, and environment variables, in that
// order
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Config holds configuration settings for the control plane
	Config struct {
		// API server
		APIHost  string `yaml:"apiHost"`
		APIPort  int    `yaml:"apiPort"`
		LogLevel string `yaml:"logLevel"`

		// Persistence
		Redis RedisConfig `yaml:"redis"`

		// Artifacts
		ArtifactBucketURL string `yaml:"artifactBucketUrl"`
		ArtifactPrefix    string `yaml:"artifactPrefix"`

		// Execution
		MaxFlowTime     time.Duration `yaml:"maxFlowTime"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	}

	// RedisConfig addresses the repository's Redis instance
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	}
)

const (
	DefaultAPIHost = "0.0.0.0"
	DefaultAPIPort = 8080
	MaxTCPPort     = 65535

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0
	MaxRedisDB       = 15

	DefaultMaxFlowTime     = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
	MaxFlowTimeMinutes     = 24 * 60
)

var (
	ErrInvalidAPIPort     = errors.New("invalid API port")
	ErrInvalidMaxFlowTime = errors.New("max flow time must be positive")
	ErrReadConfigFile     = errors.New("failed to read config file")
	ErrParseConfigFile    = errors.New("failed to parse config file")
)

// NewDefaultConfig creates a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		LogLevel: "info",
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
			DB:   DefaultRedisDB,
		},
		MaxFlowTime:     DefaultMaxFlowTime,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFile overlays values from a YAML config file. A missing file is
// an error; callers decide whether the file is optional
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadConfigFile, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %w", ErrParseConfigFile, err)
	}
	return nil
}

// LoadFromEnv populates configuration values from environment
// variables. Returns an error if any value cannot be parsed
func (c *Config) LoadFromEnv() error {
	if host := os.Getenv("API_HOST"); host != "" {
		c.APIHost = host
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if bucket := os.Getenv("ARTIFACT_BUCKET_URL"); bucket != "" {
		c.ArtifactBucketURL = bucket
	}
	if prefix := os.Getenv("ARTIFACT_PREFIX"); prefix != "" {
		c.ArtifactPrefix = prefix
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt("REDIS_DB", &c.Redis.DB, -1, MaxRedisDB); err != nil {
		return err
	}

	var flowMinutes int64
	err := loadEnvInt("MAX_FLOW_MINUTES", &flowMinutes, 0, MaxFlowTimeMinutes)
	if err != nil {
		return err
	}
	if flowMinutes > 0 {
		c.MaxFlowTime = time.Duration(flowMinutes) * time.Minute
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.MaxFlowTime <= 0 {
		return ErrInvalidMaxFlowTime
	}
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer,
// and sets *dst if the value is in the range (min, max). Returns an
// error if the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
