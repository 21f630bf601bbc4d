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

package securestorage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jeremyhahn/go-securestorage/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
	"github.com/jeremyhahn/go-securestorage/pkg/keyprovider"
	"github.com/jeremyhahn/go-securestorage/pkg/keystore"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/metrics"
	"github.com/jeremyhahn/go-securestorage/pkg/storage/file"
	"github.com/jeremyhahn/go-securestorage/pkg/validation"
)

// StorageType selects the backend strategy
type StorageType string

const (
	// TypeKeyStore encrypts each value with a key from the key provider
	TypeKeyStore StorageType = "keystore"

	// TypeFile keeps every entry in one passphrase-sealed artifact
	TypeFile StorageType = "file"

	// TypeKeyring delegates to the platform keyring
	TypeKeyring StorageType = "keyring"
)

const (
	// DefaultAlias names the artifact and keys when none is configured
	DefaultAlias = "SecureStorage"

	// DefaultKeyringService is the keyring service name when none is configured
	DefaultKeyringService = "go-securestorage"
)

// Config selects and configures a backend. It is fixed for the lifetime
// of the Storage returned by Open.
type Config struct {
	// Type selects the backend; empty means TypeKeyStore
	Type StorageType

	// Dir is the directory holding artifacts and keys (file and keystore types)
	Dir string

	// Alias names the artifact and the data-encryption key
	Alias string

	// DirectKeySupport selects the direct key strategy for the keystore
	// type. When false the data-encryption key is wrapped with an RSA key
	// pair instead.
	DirectKeySupport bool

	// Passphrase protects artifacts and keys at rest (file and keystore types)
	Passphrase []byte

	// KeyringService scopes keyring entries
	KeyringService string

	// KDF overrides the Argon2id parameters; zero uses kdf.DefaultParams
	KDF kdf.Params

	Logger   logging.Logger
	Recorder metrics.Recorder
}

// DefaultConfig returns a keystore-type configuration with direct key
// support. Dir and Passphrase must still be set.
func DefaultConfig() Config {
	return Config{
		Type:             TypeKeyStore,
		Alias:            DefaultAlias,
		DirectKeySupport: true,
		KeyringService:   DefaultKeyringService,
	}
}

// Validate checks the configuration for the selected type
func (c *Config) Validate() error {
	switch c.Type {
	case TypeKeyStore, TypeFile:
		if strings.TrimSpace(c.Dir) == "" {
			return fmt.Errorf("%w: storage directory is required for %s storage", ErrConfiguration, c.Type)
		}
		if len(c.Passphrase) == 0 {
			return fmt.Errorf("%w: passphrase is required for %s storage", ErrConfiguration, c.Type)
		}
		if err := validation.ValidateAlias(c.Alias); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	case TypeKeyring:
		if strings.TrimSpace(c.KeyringService) == "" {
			return fmt.Errorf("%w: keyring service is required", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrConfiguration, c.Type)
	}
	if c.KDF != (kdf.Params{}) {
		if err := c.KDF.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	return nil
}

// Open validates cfg, constructs the selected backend and wraps it in the
// facade. Load failures (wrong passphrase, corrupt artifact) are returned
// here rather than on first use.
func Open(cfg Config) (*Storage, error) {
	if cfg.Type == "" {
		cfg.Type = TypeKeyStore
	}
	if cfg.Alias == "" {
		cfg.Alias = DefaultAlias
	}
	if cfg.KeyringService == "" {
		cfg.KeyringService = DefaultKeyringService
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Recorder = metrics.OrNoOp(cfg.Recorder)
	logger := logging.OrNoOp(cfg.Logger)

	var (
		backend Backend
		closers []func() error
		err     error
	)
	switch cfg.Type {
	case TypeFile:
		backend, closers, err = openProtectedFile(cfg, logger)
	case TypeKeyStore:
		backend, closers, err = openKeyStore(cfg, logger)
	case TypeKeyring:
		backend, err = NewKeyringBackend(cfg.KeyringService)
	}
	if err != nil {
		runClosers(closers)
		return nil, classify(err)
	}

	opts := []Option{WithLogger(logger), WithRecorder(cfg.Recorder)}
	for _, fn := range closers {
		opts = append(opts, WithCloser(fn))
	}

	s, err := New(backend, opts...)
	if err != nil {
		runClosers(closers)
		return nil, err
	}

	s.logger.Info("storage opened",
		logging.String("type", string(cfg.Type)),
		logging.String("alias", validation.SanitizeForLog(cfg.Alias)))
	return s, nil
}

func newCipher(cfg Config, logger logging.Logger) *aesgcm.AESGCM {
	return aesgcm.New(
		aesgcm.WithLogger(logger),
		aesgcm.WithFallbackFunc(cfg.Recorder.RecordCipherFallback))
}

func openProtectedFile(cfg Config, logger logging.Logger) (Backend, []func() error, error) {
	files, err := file.New(cfg.Dir)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{files.Close}

	b, err := NewProtectedFileBackend(ProtectedFileConfig{
		Storage:    files,
		Artifact:   cfg.Alias,
		Passphrase: cfg.Passphrase,
		KDF:        cfg.KDF,
		Cipher:     newCipher(cfg, logger),
		Logger:     logger,
	})
	if err != nil {
		return nil, closers, err
	}
	return b, closers, nil
}

// openKeyStore lays out the keystore type under cfg.Dir:
//
//	keys/            key stores (symmetric keys, RSA key pairs)
//	prefs/<alias>/   wrapped key and encrypted values
func openKeyStore(cfg Config, logger logging.Logger) (Backend, []func() error, error) {
	var closers []func() error

	keyFiles, err := file.New(filepath.Join(cfg.Dir, "keys"))
	if err != nil {
		return nil, closers, err
	}
	prefs, err := file.New(filepath.Join(cfg.Dir, "prefs", cfg.Alias))
	if err != nil {
		return nil, append(closers, keyFiles.Close), err
	}
	closers = append(closers, prefs.Close)

	ksOpts := []keystore.Option{keystore.WithLogger(logger)}
	if cfg.KDF != (kdf.Params{}) {
		ksOpts = append(ksOpts, keystore.WithKDFParams(cfg.KDF))
	}

	pcfg := keyprovider.Config{
		Alias:       cfg.Alias,
		Direct:      cfg.DirectKeySupport,
		Preferences: prefs,
		Logger:      logger,
	}
	if cfg.DirectKeySupport {
		ks, err := keystore.NewSymmetricKeyStore(keyFiles, cfg.Passphrase, ksOpts...)
		if err != nil {
			return nil, append(closers, keyFiles.Close), err
		}
		closers = append(closers, ks.Close)
		pcfg.SymmetricKeys = ks
	} else {
		ks, err := keystore.NewKeyPairStore(keyFiles, cfg.Passphrase, ksOpts...)
		if err != nil {
			return nil, append(closers, keyFiles.Close), err
		}
		closers = append(closers, ks.Close)
		pcfg.KeyPairs = ks
	}

	provider, err := keyprovider.New(pcfg)
	if err != nil {
		return nil, closers, err
	}
	// provider first so the cached key is destroyed before the stores close
	closers = append([]func() error{provider.Close}, closers...)

	b, err := NewKeyStoreBackend(KeyStoreConfig{
		Preferences: prefs,
		Keys:        provider,
		Cipher:      newCipher(cfg, logger),
		Logger:      logger,
	})
	if err != nil {
		return nil, closers, err
	}
	return b, closers, nil
}

func runClosers(closers []func() error) {
	for _, fn := range closers {
		_ = fn()
	}
}
