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
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-securestorage/pkg/codec"
	"github.com/jeremyhahn/go-securestorage/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
)

// KeySource lends the data-encryption key to fn. keyprovider.KeyProvider
// implements it.
type KeySource interface {
	UseKey(fn func(key []byte) error) error
}

// KeyStoreConfig configures a KeyStoreBackend
type KeyStoreConfig struct {
	// Preferences holds one encrypted entry per key
	Preferences storage.Backend

	// Keys supplies the data-encryption key
	Keys KeySource

	// Cipher overrides the symmetric cipher; nil uses aesgcm.New()
	Cipher *aesgcm.AESGCM

	Logger logging.Logger
}

// KeyStoreBackend encrypts each value individually with the key provider's
// data-encryption key. Entries are stored base64 encoded under the SHA-256
// of the storage key, so keys never appear in plaintext on disk.
type KeyStoreBackend struct {
	prefs  storage.Backend
	keys   KeySource
	cipher *aesgcm.AESGCM
	logger logging.Logger

	// serializes read-modify-write in Delete
	mu sync.Mutex
}

// NewKeyStoreBackend creates a per-value encrypted backend
func NewKeyStoreBackend(cfg KeyStoreConfig) (*KeyStoreBackend, error) {
	if cfg.Preferences == nil {
		return nil, fmt.Errorf("%w: preferences storage is required", ErrConfiguration)
	}
	if cfg.Keys == nil {
		return nil, fmt.Errorf("%w: key source is required", ErrConfiguration)
	}
	c := cfg.Cipher
	if c == nil {
		c = aesgcm.New(aesgcm.WithLogger(cfg.Logger))
	}
	return &KeyStoreBackend{
		prefs:  cfg.Preferences,
		keys:   cfg.Keys,
		cipher: c,
		logger: logging.OrNoOp(cfg.Logger),
	}, nil
}

// Name implements Named
func (b *KeyStoreBackend) Name() string {
	return BackendKeyStore
}

// Get implements Backend
func (b *KeyStoreBackend) Get(key string) (string, bool, error) {
	encoded, err := b.prefs.Get(storage.ValuePath(key))
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	blob, err := codec.DecodeBase64(string(encoded))
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	var plaintext []byte
	err = b.keys.UseKey(func(k []byte) error {
		plaintext, err = b.cipher.Decrypt(k, blob)
		return err
	})
	if err != nil {
		return "", false, err
	}

	value, err := codec.DecodeText(plaintext)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set implements Backend. The entry is replaced atomically by the
// preferences backend.
func (b *KeyStoreBackend) Set(key, value string) error {
	var blob []byte
	err := b.keys.UseKey(func(k []byte) error {
		var err error
		blob, err = b.cipher.Encrypt(k, codec.EncodeText(value))
		return err
	})
	if err != nil {
		return err
	}

	return b.prefs.Put(storage.ValuePath(key), []byte(codec.EncodeBase64(blob)), storage.DefaultOptions())
}

// Delete implements Backend
func (b *KeyStoreBackend) Delete(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.prefs.Delete(storage.ValuePath(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Has implements Backend
func (b *KeyStoreBackend) Has(key string) (bool, error) {
	return b.prefs.Exists(storage.ValuePath(key))
}

// Len implements Counter
func (b *KeyStoreBackend) Len() (int, error) {
	return storage.CountValues(b.prefs)
}
