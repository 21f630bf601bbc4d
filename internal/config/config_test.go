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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/securestorage"
)

// clearEnv isolates a test from the caller's environment
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvPassphrase, EnvDir, EnvType, EnvAlias, EnvDirectKeySupport,
		EnvKeyringService, EnvLogLevel, EnvLogFormat, EnvMetricsTextfile,
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return path
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  type: "file"
  dir: "/data/secure"
  alias: "app-secrets"
  direct_key_support: false

keyring:
  service: "my-app"

kdf:
  memory_kib: 16384
  time: 2

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  textfile: "/var/lib/node_exporter/securestore.prom"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Storage.Type != "file" {
		t.Errorf("Expected type 'file', got '%s'", cfg.Storage.Type)
	}
	if cfg.Storage.Dir != "/data/secure" {
		t.Errorf("Expected dir '/data/secure', got '%s'", cfg.Storage.Dir)
	}
	if cfg.Storage.Alias != "app-secrets" {
		t.Errorf("Expected alias 'app-secrets', got '%s'", cfg.Storage.Alias)
	}
	if cfg.Storage.DirectKeySupport {
		t.Error("Expected direct_key_support to be false")
	}
	if cfg.Keyring.Service != "my-app" {
		t.Errorf("Expected keyring service 'my-app', got '%s'", cfg.Keyring.Service)
	}
	if cfg.KDF.MemoryKiB != 16384 || cfg.KDF.Time != 2 {
		t.Errorf("Unexpected kdf settings: %+v", cfg.KDF)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging settings: %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics to be enabled")
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/securestore.prom" {
		t.Errorf("Unexpected metrics textfile: '%s'", cfg.Metrics.Textfile)
	}
}

// TestLoad_PartialFileKeepsDefaults tests that unset keys keep default values
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
logging:
  level: "warn"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	def := Default()
	if cfg.Storage != def.Storage {
		t.Errorf("Expected default storage settings, got %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected level 'warn', got '%s'", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got '%s'", cfg.Logging.Format)
	}
}

// TestLoad_NoPath tests loading defaults without a config file
func TestLoad_NoPath(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Storage.Type != string(securestorage.TypeKeyStore) {
		t.Errorf("Expected keystore type, got '%s'", cfg.Storage.Type)
	}
	if cfg.Storage.Alias != securestorage.DefaultAlias {
		t.Errorf("Expected alias '%s', got '%s'", securestorage.DefaultAlias, cfg.Storage.Alias)
	}
	if !cfg.Storage.DirectKeySupport {
		t.Error("Expected direct key support by default")
	}
}

// TestLoad_FileNotFound tests error when config file doesn't exist
func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

// TestLoad_InvalidYAML tests error for malformed YAML
func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "storage: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

// TestLoad_EnvOverrides tests that environment variables win over the file
func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  type: "keystore"
  dir: "/from/file"
  alias: "file-alias"
`)

	t.Setenv(EnvPassphrase, "env-secret")
	t.Setenv(EnvDir, "/from/env")
	t.Setenv(EnvType, "file")
	t.Setenv(EnvAlias, "env-alias")
	t.Setenv(EnvDirectKeySupport, "false")
	t.Setenv(EnvKeyringService, "env-service")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvMetricsTextfile, "/tmp/metrics.prom")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Storage.Passphrase != "env-secret" {
		t.Errorf("Expected passphrase from env, got '%s'", cfg.Storage.Passphrase)
	}
	if cfg.Storage.Dir != "/from/env" {
		t.Errorf("Expected dir from env, got '%s'", cfg.Storage.Dir)
	}
	if cfg.Storage.Type != "file" {
		t.Errorf("Expected type from env, got '%s'", cfg.Storage.Type)
	}
	if cfg.Storage.Alias != "env-alias" {
		t.Errorf("Expected alias from env, got '%s'", cfg.Storage.Alias)
	}
	if cfg.Storage.DirectKeySupport {
		t.Error("Expected direct key support disabled from env")
	}
	if cfg.Keyring.Service != "env-service" {
		t.Errorf("Expected keyring service from env, got '%s'", cfg.Keyring.Service)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" {
		t.Errorf("Expected logging from env, got %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Textfile != "/tmp/metrics.prom" {
		t.Errorf("Expected metrics textfile from env, got %+v", cfg.Metrics)
	}
}

// TestLoad_InvalidDirectKeySupportEnv tests that a malformed boolean is ignored
func TestLoad_InvalidDirectKeySupportEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDirectKeySupport, "maybe")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.Storage.DirectKeySupport {
		t.Error("Expected default direct key support to be kept")
	}
}

// TestValidate tests configuration validation rules
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"file type", func(c *Config) { c.Storage.Type = "file" }, false},
		{"uppercase type", func(c *Config) { c.Storage.Type = "KEYSTORE" }, false},
		{"keyring type without dir", func(c *Config) {
			c.Storage.Type = "keyring"
			c.Storage.Dir = ""
		}, false},
		{"unknown type", func(c *Config) { c.Storage.Type = "cloud" }, true},
		{"missing dir", func(c *Config) { c.Storage.Dir = "" }, true},
		{"traversal alias", func(c *Config) { c.Storage.Alias = "../escape" }, true},
		{"empty alias", func(c *Config) { c.Storage.Alias = "" }, true},
		{"keyring without service", func(c *Config) {
			c.Storage.Type = "keyring"
			c.Keyring.Service = " "
		}, true},
		{"passphrase and file", func(c *Config) {
			c.Storage.Passphrase = "a"
			c.Storage.PassphraseFile = "/tmp/p"
		}, true},
		{"kdf memory too low", func(c *Config) { c.KDF.MemoryKiB = 1 }, true},
		{"kdf time only", func(c *Config) { c.KDF.Time = 3 }, false},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestPassphrase tests reading the passphrase inline and from a file
func TestPassphrase(t *testing.T) {
	cfg := Default()
	cfg.Storage.Passphrase = "inline"
	got, err := cfg.Passphrase()
	if err != nil {
		t.Fatalf("Passphrase() failed: %v", err)
	}
	if string(got) != "inline" {
		t.Errorf("Expected 'inline', got '%s'", got)
	}

	path := filepath.Join(t.TempDir(), "passphrase")
	if err := os.WriteFile(path, []byte("from-file\n"), 0600); err != nil {
		t.Fatalf("Failed to write passphrase file: %v", err)
	}
	cfg.Storage.Passphrase = ""
	cfg.Storage.PassphraseFile = path
	got, err = cfg.Passphrase()
	if err != nil {
		t.Fatalf("Passphrase() failed: %v", err)
	}
	if string(got) != "from-file" {
		t.Errorf("Expected 'from-file', got '%s'", got)
	}

	cfg.Storage.PassphraseFile = filepath.Join(t.TempDir(), "missing")
	if _, err := cfg.Passphrase(); err == nil {
		t.Error("Expected error for missing passphrase file")
	}
}

// TestStorageConfig tests conversion into a securestorage.Config
func TestStorageConfig(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	cfg := Default()
	cfg.Storage.Type = "FILE"
	cfg.Storage.Dir = "~/secrets"
	cfg.KDF.Threads = 2

	logger := logging.NewNoOpLogger()
	sc, err := cfg.StorageConfig([]byte("pw"), logger, nil)
	if err != nil {
		t.Fatalf("StorageConfig() failed: %v", err)
	}

	if sc.Type != securestorage.TypeFile {
		t.Errorf("Expected type file, got '%s'", sc.Type)
	}
	if sc.Dir != filepath.Join(home, "secrets") {
		t.Errorf("Expected expanded dir, got '%s'", sc.Dir)
	}
	if string(sc.Passphrase) != "pw" {
		t.Errorf("Expected passphrase to be passed through")
	}
	if sc.KDF.Threads != 2 || sc.KDF.Memory == 0 || sc.KDF.KeyLength == 0 {
		t.Errorf("Expected defaults merged with overrides, got %+v", sc.KDF)
	}
	if sc.Alias != securestorage.DefaultAlias {
		t.Errorf("Expected alias '%s', got '%s'", securestorage.DefaultAlias, sc.Alias)
	}

	cfg.KDF = KDFConfig{}
	sc, err = cfg.StorageConfig(nil, logger, nil)
	if err != nil {
		t.Fatalf("StorageConfig() failed: %v", err)
	}
	if sc.KDF.Memory != 0 {
		t.Errorf("Expected zero KDF to defer to Open defaults, got %+v", sc.KDF)
	}
}

// TestNeedsPassphrase tests which backends require a passphrase
func TestNeedsPassphrase(t *testing.T) {
	cfg := Default()
	if !cfg.NeedsPassphrase() {
		t.Error("Expected keystore type to need a passphrase")
	}
	cfg.Storage.Type = "keyring"
	if cfg.NeedsPassphrase() {
		t.Error("Expected keyring type to not need a passphrase")
	}
}

// TestExpandHome tests tilde expansion
func TestExpandHome(t *testing.T) {
	got, err := ExpandHome("/abs/path")
	if err != nil || got != "/abs/path" {
		t.Errorf("Expected absolute path unchanged, got '%s' (%v)", got, err)
	}
	got, err = ExpandHome("~user/path")
	if err != nil || got != "~user/path" {
		t.Errorf("Expected ~user form unchanged, got '%s' (%v)", got, err)
	}
}
