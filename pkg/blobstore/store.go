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

// Package blobstore implements an encrypted key/value store held in memory
// and mirrored to a single sealed artifact. Every mutation re-serializes the
// full mapping, seals it and replaces the artifact; when that fails the
// in-memory mapping is restored to its last persisted state.
//
// A Store does not coordinate with other processes or other Store instances
// over the same artifact. Callers must use one instance per artifact.
package blobstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-securestorage/internal/secure"
	"github.com/jeremyhahn/go-securestorage/pkg/codec"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
)

// Sealer encrypts and decrypts the serialized mapping
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(blob []byte) ([]byte, error)
}

// Store is the encrypted key/value store
//
// Thread-safe: Yes. Mutations hold the write lock across mutate and
// persist so no intermediate state is observable.
type Store struct {
	backend  storage.Backend
	artifact string
	sealer   Sealer
	logger   logging.Logger

	mu   sync.RWMutex
	data map[string]string
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a Store and loads the artifact. An absent artifact yields an
// empty store. An artifact that cannot be read, opened or decoded is a
// fatal error; no partial recovery is attempted.
func New(backend storage.Backend, artifact string, sealer Sealer, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: storage backend is required", ErrInvalidConfig)
	}
	if artifact == "" {
		return nil, fmt.Errorf("%w: artifact name is required", ErrInvalidConfig)
	}
	if sealer == nil {
		return nil, fmt.Errorf("%w: sealer is required", ErrInvalidConfig)
	}

	s := &Store{
		backend:  backend,
		artifact: artifact,
		sealer:   sealer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNoOp(s.logger).With(logging.String("artifact", artifact))

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	blob, err := s.backend.Get(s.artifact)
	if errors.Is(err, storage.ErrNotFound) {
		s.data = make(map[string]string)
		s.logger.Debug("artifact not found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read artifact: %v", ErrPersistence, err)
	}

	plaintext, err := s.sealer.Open(blob)
	if err != nil {
		return fmt.Errorf("%w: failed to open artifact: %w", ErrCrypto, err)
	}

	data, err := codec.UnmarshalMapping(plaintext)
	secure.Wipe(plaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	s.data = data
	s.logger.Debug("loaded artifact", logging.Int("entries", len(data)))
	return nil
}

// Get returns the value stored under key
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok
}

// Has reports whether key is present
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Set inserts or overwrites key and persists the store. On failure the
// previous value, or its absence, is restored.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	s.data[key] = value

	if err := s.persist(); err != nil {
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Delete removes key and persists the store. It returns false without
// writing when key is absent.
func (s *Store) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	if !existed {
		return false, nil
	}
	delete(s.data, key)

	if err := s.persist(); err != nil {
		s.data[key] = prev
		return false, err
	}
	return true, nil
}

// persist serializes and seals the full mapping before handing it to the
// backend, which replaces the artifact atomically. Caller holds s.mu.
func (s *Store) persist() error {
	plaintext, err := codec.MarshalMapping(s.data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer secure.Wipe(plaintext)

	blob, err := s.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("%w: failed to seal artifact: %w", ErrCrypto, err)
	}

	if err := s.backend.Put(s.artifact, blob, storage.DefaultOptions()); err != nil {
		s.logger.Error("failed to write artifact", logging.Error(err))
		return fmt.Errorf("%w: failed to write artifact: %w", ErrPersistence, err)
	}
	return nil
}
