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

package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-securestorage/internal/secure"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
)

// SoftwareSymmetricKeyStore keeps AES keys in a storage.Backend, each entry
// encrypted with a key derived from the store passphrase.
//
// Thread-safe: Yes, uses a read-write mutex for concurrent access.
type SoftwareSymmetricKeyStore struct {
	storage    storage.Backend
	passphrase *secure.Key
	opts       *options
	closed     bool
	mu         sync.RWMutex
}

// NewSymmetricKeyStore creates a symmetric key store over backend. The
// passphrase is copied into protected memory.
func NewSymmetricKeyStore(backend storage.Backend, passphrase []byte, opts ...Option) (*SoftwareSymmetricKeyStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("keystore: storage backend is required")
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	pw, err := newPassphrase(passphrase)
	if err != nil {
		return nil, err
	}
	return &SoftwareSymmetricKeyStore{
		storage:    backend,
		passphrase: pw,
		opts:       o,
	}, nil
}

// Get returns the key stored under alias
func (s *SoftwareSymmetricKeyStore) Get(alias string) ([]byte, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	sealed, err := s.storage.Get(storage.SymmetricKeyPath(alias))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keystore: failed to read key %s: %w", alias, err)
	}

	key, err := openWithPassphrase(s.passphrase, sealed, s.opts.params)
	if err != nil {
		return nil, err
	}
	if len(key) != SymmetricKeySize {
		secure.Wipe(key)
		return nil, fmt.Errorf("%w: unexpected key length %d", ErrDecrypt, len(key))
	}
	return key, nil
}

// Generate creates a new 256-bit AES key under alias
func (s *SoftwareSymmetricKeyStore) Generate(alias string) ([]byte, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("keystore: failed to generate key: %w", err)
	}

	sealed, err := sealWithPassphrase(s.passphrase, key, s.opts.params)
	if err != nil {
		secure.Wipe(key)
		return nil, err
	}

	if err := s.storage.Put(storage.SymmetricKeyPath(alias), sealed, storage.DefaultOptions()); err != nil {
		secure.Wipe(key)
		return nil, fmt.Errorf("keystore: failed to store key %s: %w", alias, err)
	}

	s.opts.logger.Debug("generated symmetric key", logging.String("alias", alias))
	return key, nil
}

// Delete removes the key under alias
func (s *SoftwareSymmetricKeyStore) Delete(alias string) error {
	if err := validateAlias(alias); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := s.storage.Delete(storage.SymmetricKeyPath(alias)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("keystore: failed to delete key %s: %w", alias, err)
	}
	return nil
}

// Close destroys the cached passphrase and closes the storage backend
func (s *SoftwareSymmetricKeyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.passphrase.Destroy()
	return s.storage.Close()
}
