// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-securestorage.
//
// go-securestorage is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the securestore configuration file, applies
// environment overrides and validates the result before any storage is
// opened.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/metrics"
	"github.com/jeremyhahn/go-securestorage/pkg/securestorage"
	"github.com/jeremyhahn/go-securestorage/pkg/validation"
)

// Environment variables that override file settings
const (
	EnvPassphrase       = "SECURESTORAGE_PASSPHRASE"
	EnvDir              = "SECURESTORAGE_DIR"
	EnvType             = "SECURESTORAGE_TYPE"
	EnvAlias            = "SECURESTORAGE_ALIAS"
	EnvDirectKeySupport = "SECURESTORAGE_DIRECT_KEY_SUPPORT"
	EnvKeyringService   = "SECURESTORAGE_KEYRING_SERVICE"
	EnvLogLevel         = "SECURESTORAGE_LOG_LEVEL"
	EnvLogFormat        = "SECURESTORAGE_LOG_FORMAT"
	EnvMetricsTextfile  = "SECURESTORAGE_METRICS_TEXTFILE"
)

// DefaultDir is the storage directory when none is configured
const DefaultDir = "~/.securestorage"

// Config represents the complete securestore configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Keyring KeyringConfig `yaml:"keyring"`
	KDF     KDFConfig     `yaml:"kdf"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects and locates the backend
type StorageConfig struct {
	Type             string `yaml:"type"` // keystore, file, keyring
	Dir              string `yaml:"dir"`
	Alias            string `yaml:"alias"`
	DirectKeySupport bool   `yaml:"direct_key_support"`

	// Passphrase protects artifacts and keys at rest. Prefer the
	// environment or PassphraseFile over writing it into the config file.
	Passphrase     string `yaml:"passphrase"`
	PassphraseFile string `yaml:"passphrase_file"`
}

// KeyringConfig configures the platform keyring backend
type KeyringConfig struct {
	Service string `yaml:"service"`
}

// KDFConfig overrides the Argon2id cost parameters. Zero values keep the
// defaults.
type KDFConfig struct {
	MemoryKiB uint32 `yaml:"memory_kib"`
	Time      uint32 `yaml:"time"`
	Threads   uint8  `yaml:"threads"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus instrumentation. When Textfile is set
// the collected metrics are written there in the text exposition format
// on exit, for node_exporter's textfile collector.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Type:             string(securestorage.TypeKeyStore),
			Dir:              DefaultDir,
			Alias:            securestorage.DefaultAlias,
			DirectKeySupport: true,
		},
		Keyring: KeyringConfig{
			Service: securestorage.DefaultKeyringService,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path loads only defaults
// and environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if passphrase := os.Getenv(EnvPassphrase); passphrase != "" {
		cfg.Storage.Passphrase = passphrase
	}
	if dir := os.Getenv(EnvDir); dir != "" {
		cfg.Storage.Dir = dir
	}
	if typ := os.Getenv(EnvType); typ != "" {
		cfg.Storage.Type = typ
	}
	if alias := os.Getenv(EnvAlias); alias != "" {
		cfg.Storage.Alias = alias
	}
	if direct := os.Getenv(EnvDirectKeySupport); direct != "" {
		v, err := strconv.ParseBool(direct)
		if err != nil {
			log.Printf("Warning: invalid %s value %q, using %t: %v",
				EnvDirectKeySupport, direct, cfg.Storage.DirectKeySupport, err)
		} else {
			cfg.Storage.DirectKeySupport = v
		}
	}
	if service := os.Getenv(EnvKeyringService); service != "" {
		cfg.Keyring.Service = service
	}

	// Logging
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		cfg.Logging.Format = format
	}

	if textfile := os.Getenv(EnvMetricsTextfile); textfile != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = textfile
	}
}

// Validate checks every setting that can be checked without touching the
// storage. A missing passphrase is not an error here: the CLI may prompt
// for it, and securestorage.Open rejects it otherwise.
func (c *Config) Validate() error {
	switch securestorage.StorageType(strings.ToLower(c.Storage.Type)) {
	case securestorage.TypeKeyStore, securestorage.TypeFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir must be specified for %s storage", c.Storage.Type)
		}
		if err := validation.ValidateAlias(c.Storage.Alias); err != nil {
			return fmt.Errorf("invalid storage alias: %w", err)
		}
	case securestorage.TypeKeyring:
		if strings.TrimSpace(c.Keyring.Service) == "" {
			return fmt.Errorf("keyring service must be specified")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be keystore, file, or keyring)", c.Storage.Type)
	}

	if c.Storage.Passphrase != "" && c.Storage.PassphraseFile != "" {
		return fmt.Errorf("passphrase and passphrase_file are mutually exclusive")
	}

	if c.KDF != (KDFConfig{}) {
		if err := c.kdfParams().Validate(); err != nil {
			return fmt.Errorf("invalid kdf settings: %w", err)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// Passphrase returns the configured passphrase, reading PassphraseFile when
// set. Trailing newlines in the file are ignored.
func (c *Config) Passphrase() ([]byte, error) {
	if c.Storage.PassphraseFile == "" {
		return []byte(c.Storage.Passphrase), nil
	}
	path, err := ExpandHome(c.Storage.PassphraseFile)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - passphrase file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase file: %w", err)
	}
	return []byte(strings.TrimRight(string(data), "\r\n")), nil
}

// StorageConfig converts the file settings into a securestorage.Config.
// The passphrase is passed separately since it may come from a prompt.
func (c *Config) StorageConfig(passphrase []byte, logger logging.Logger, recorder metrics.Recorder) (securestorage.Config, error) {
	dir, err := ExpandHome(c.Storage.Dir)
	if err != nil {
		return securestorage.Config{}, err
	}

	cfg := securestorage.Config{
		Type:             securestorage.StorageType(strings.ToLower(c.Storage.Type)),
		Dir:              dir,
		Alias:            c.Storage.Alias,
		DirectKeySupport: c.Storage.DirectKeySupport,
		Passphrase:       passphrase,
		KeyringService:   c.Keyring.Service,
		Logger:           logger,
		Recorder:         recorder,
	}
	if c.KDF != (KDFConfig{}) {
		cfg.KDF = c.kdfParams()
	}
	return cfg, nil
}

// NeedsPassphrase reports whether the selected backend requires one
func (c *Config) NeedsPassphrase() bool {
	return securestorage.StorageType(strings.ToLower(c.Storage.Type)) != securestorage.TypeKeyring
}

func (c *Config) kdfParams() kdf.Params {
	params := kdf.DefaultParams()
	if c.KDF.MemoryKiB != 0 {
		params.Memory = c.KDF.MemoryKiB
	}
	if c.KDF.Time != 0 {
		params.Time = c.KDF.Time
	}
	if c.KDF.Threads != 0 {
		params.Threads = c.KDF.Threads
	}
	return params
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
