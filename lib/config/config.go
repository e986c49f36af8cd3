// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/chunkstore/lib/chunk"
	"github.com/bureau-foundation/chunkstore/lib/compress"
	"github.com/bureau-foundation/chunkstore/lib/encrypt"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "CHUNKSTORE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local use: no log locking, debug-friendly.
	Development Environment = "development"
	// Production is for shared hosts where several ingesters may
	// target one log.
	Production Environment = "production"
)

// Config is the complete configuration for an ingestion run.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment" json:"environment"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Chunk configures block splitting and hashing.
	Chunk ChunkConfig `yaml:"chunk" json:"chunk"`

	// Compression names the algorithm applied to every file: zlib,
	// zstd, lz4, or none.
	Compression string `yaml:"compression" json:"compression"`

	// Cipher names the AEAD: aes-256-gcm or chacha20-poly1305.
	Cipher string `yaml:"cipher" json:"cipher"`

	// Lock configures serialization of writers to the manifest log.
	Lock LockConfig `yaml:"lock" json:"lock"`

	// LogLevel is the slog level for operational logs: debug, info,
	// warn, or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Development *ConfigOverrides `yaml:"development,omitempty" json:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Nil or empty fields leave the base value alone.
type ConfigOverrides struct {
	Paths    *PathsConfig `yaml:"paths,omitempty" json:"paths,omitempty"`
	Chunk    *ChunkConfig `yaml:"chunk,omitempty" json:"chunk,omitempty"`
	Lock     *LockConfig  `yaml:"lock,omitempty" json:"lock,omitempty"`
	LogLevel string       `yaml:"log_level,omitempty" json:"log_level,omitempty"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for chunkstore data.
	Root string `yaml:"root" json:"root"`

	// Log is the manifest log appended to by every ingestion.
	// Default: ${CHUNKSTORE_ROOT}/manifest.log
	Log string `yaml:"log" json:"log"`

	// Spool, when set, receives a copy of every ciphertext chunk.
	// Empty disables spooling.
	Spool string `yaml:"spool" json:"spool"`
}

// ChunkConfig configures block splitting and hashing.
type ChunkConfig struct {
	// Size is the block size in bytes. Default: 1 MiB.
	Size int `yaml:"size" json:"size"`

	// MaxWorkers caps concurrent hashing tasks. Zero means one task
	// per block.
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`

	// Digest names the block digest: sha256 or blake3.
	Digest string `yaml:"digest" json:"digest"`
}

// LockConfig configures the advisory lock around log appends.
type LockConfig struct {
	// Enabled takes an exclusive lock on "<log>.lock" around every
	// append. Default: false (development), true (production).
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Timeout bounds the wait for the lock, as a Go duration string.
	// Empty waits indefinitely.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// defaultLog is the manifest log location before variable expansion.
const defaultLog = "${CHUNKSTORE_ROOT}/manifest.log"

// Default returns the default configuration with path variables
// expanded.
func Default() *Config {
	cfg := defaults()
	cfg.expandVariables()
	return cfg
}

// defaults returns the base that a config file is merged over. Paths
// still hold their ${VAR} references so they follow a configured root.
func defaults() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "chunkstore")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root: defaultRoot,
			Log:  defaultLog,
		},
		Chunk: ChunkConfig{
			Size:   chunk.DefaultSize,
			Digest: chunk.SHA256.String(),
		},
		Compression: compress.Zlib.String(),
		Cipher:      encrypt.AES256GCM.String(),
		LogLevel:    "info",
	}
}

// Load loads configuration from the file named by CHUNKSTORE_CONFIG.
// It fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your chunkstore.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// Resolve returns the configuration the commands run with: the file at
// configPath if non-empty, else the file named by CHUNKSTORE_CONFIG if
// set, else Default.
func Resolve(configPath string) (*Config, error) {
	if configPath != "" {
		return LoadFile(configPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

// LoadFile loads configuration from a specific file path, merged over
// Default, with environment overrides applied and path variables
// expanded.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return fmt.Errorf("unsupported config file extension %q (want .yaml, .yml, .json, or .jsonc)", filepath.Ext(path))
	}
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if c.Lock.Enabled == nil && (overrides == nil || overrides.Lock == nil || overrides.Lock.Enabled == nil) {
			enabled := true
			c.Lock.Enabled = &enabled
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Log != "" {
			c.Paths.Log = overrides.Paths.Log
		}
		if overrides.Paths.Spool != "" {
			c.Paths.Spool = overrides.Paths.Spool
		}
	}

	if overrides.Chunk != nil {
		if overrides.Chunk.Size != 0 {
			c.Chunk.Size = overrides.Chunk.Size
		}
		if overrides.Chunk.MaxWorkers != 0 {
			c.Chunk.MaxWorkers = overrides.Chunk.MaxWorkers
		}
		if overrides.Chunk.Digest != "" {
			c.Chunk.Digest = overrides.Chunk.Digest
		}
	}

	if overrides.Lock != nil {
		if overrides.Lock.Enabled != nil {
			c.Lock.Enabled = overrides.Lock.Enabled
		}
		if overrides.Lock.Timeout != "" {
			c.Lock.Timeout = overrides.Lock.Timeout
		}
	}

	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"CHUNKSTORE_ROOT": c.Paths.Root,
		"HOME":            os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CHUNKSTORE_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Log = expandVars(c.Paths.Log, vars)
	c.Paths.Spool = expandVars(c.Paths.Spool, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Log == "" {
		errs = append(errs, fmt.Errorf("paths.log is required"))
	}

	if c.Chunk.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk.size must be positive, got %d", c.Chunk.Size))
	}
	if c.Chunk.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("chunk.max_workers must not be negative, got %d", c.Chunk.MaxWorkers))
	}
	if _, err := c.ChunkDigest(); err != nil {
		errs = append(errs, fmt.Errorf("chunk.digest: %w", err))
	}
	if _, err := c.CompressionAlgorithm(); err != nil {
		errs = append(errs, fmt.Errorf("compression: %w", err))
	}
	if _, err := c.CipherSuite(); err != nil {
		errs = append(errs, fmt.Errorf("cipher: %w", err))
	}
	if _, err := c.LockTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("lock.timeout: %w", err))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ChunkDigest returns the configured block digest.
func (c *Config) ChunkDigest() (chunk.Digest, error) {
	return chunk.ParseDigest(c.Chunk.Digest)
}

// CompressionAlgorithm returns the configured compression algorithm.
func (c *Config) CompressionAlgorithm() (compress.Algorithm, error) {
	return compress.ParseAlgorithm(c.Compression)
}

// CipherSuite returns the configured AEAD.
func (c *Config) CipherSuite() (encrypt.Cipher, error) {
	return encrypt.ParseCipher(c.Cipher)
}

// LockEnabled reports whether log appends take the advisory lock.
func (c *Config) LockEnabled() bool {
	return c.Lock.Enabled != nil && *c.Lock.Enabled
}

// LockTimeout returns the lock wait bound. Zero means wait
// indefinitely.
func (c *Config) LockTimeout() (time.Duration, error) {
	if c.Lock.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Lock.Timeout)
	if err != nil {
		return 0, err
	}
	if timeout < 0 {
		return 0, fmt.Errorf("must not be negative, got %v", timeout)
	}
	return timeout, nil
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}
