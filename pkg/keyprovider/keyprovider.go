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

// Package keyprovider obtains the data-encryption key used for per-value
// encryption. Two strategies are supported and selected once at
// construction:
//
//   - Direct: the symmetric key store holds the key under the store alias,
//     generating it on first use.
//   - Wrapped: a random key is generated once, wrapped with the public half
//     of an RSA key pair kept in the key pair store, and only the wrapped
//     bytes are persisted. Each process unwraps it once with the private key.
//
// After the first retrieval the key is cached in protected memory.
package keyprovider

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-securestorage/internal/secure"
	"github.com/jeremyhahn/go-securestorage/pkg/codec"
	"github.com/jeremyhahn/go-securestorage/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-securestorage/pkg/keystore"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
)

const (
	// WrappedKeyPreference is the preference name holding the wrapped key
	WrappedKeyPreference = "SecureStorageKey"

	// KeyPairSuffix is appended to the alias to name the wrapping key pair
	KeyPairSuffix = ".asymmetric"

	// DataKeySize is the length of generated data-encryption keys
	DataKeySize = 32
)

// Strategy identifies how the data-encryption key is held
type Strategy int

const (
	// StrategyDirect keeps the key in the symmetric key store
	StrategyDirect Strategy = iota

	// StrategyWrapped persists the key wrapped with an RSA key pair
	StrategyWrapped
)

// String returns the strategy name
func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyWrapped:
		return "wrapped"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Config configures a KeyProvider
type Config struct {
	// Alias names the key (direct) or derives the key pair alias (wrapped)
	Alias string

	// Direct selects the direct strategy. It reflects whether a symmetric
	// key store is available and is fixed for the provider's lifetime.
	Direct bool

	// SymmetricKeys is required for the direct strategy
	SymmetricKeys keystore.SymmetricKeyStore

	// KeyPairs is required for the wrapped strategy
	KeyPairs keystore.KeyPairStore

	// Preferences persists the wrapped key for the wrapped strategy
	Preferences storage.Backend

	// Algorithm is the wrapping algorithm; defaults to RSA-OAEP SHA-256
	Algorithm wrapping.Algorithm

	Logger logging.Logger
}

// KeyProvider returns the data-encryption key for a storage instance.
//
// Thread-safe: Yes, key creation is serialized by a mutex.
type KeyProvider struct {
	cfg      Config
	strategy Strategy
	logger   logging.Logger

	mu     sync.Mutex
	cached *secure.Key
	closed bool
}

// New validates cfg and returns a provider. No key material is touched
// until the first call to GetOrCreateKey or UseKey.
func New(cfg Config) (*KeyProvider, error) {
	if strings.TrimSpace(cfg.Alias) == "" {
		return nil, fmt.Errorf("%w: alias is required", ErrInvalidConfig)
	}

	strategy := StrategyWrapped
	if cfg.Direct {
		strategy = StrategyDirect
		if cfg.SymmetricKeys == nil {
			return nil, fmt.Errorf("%w: symmetric key store is required for the direct strategy", ErrInvalidConfig)
		}
	} else {
		if cfg.KeyPairs == nil {
			return nil, fmt.Errorf("%w: key pair store is required for the wrapped strategy", ErrInvalidConfig)
		}
		if cfg.Preferences == nil {
			return nil, fmt.Errorf("%w: preferences are required for the wrapped strategy", ErrInvalidConfig)
		}
	}

	if cfg.Algorithm == "" {
		cfg.Algorithm = wrapping.AlgorithmOAEPSHA256
	}

	logger := logging.OrNoOp(cfg.Logger).With(
		logging.String("alias", cfg.Alias),
		logging.String("strategy", strategy.String()))

	return &KeyProvider{
		cfg:      cfg,
		strategy: strategy,
		logger:   logger,
	}, nil
}

// Strategy returns the strategy selected at construction
func (p *KeyProvider) Strategy() Strategy {
	return p.strategy
}

// UseKey calls fn with the data-encryption key, creating it on first use.
// fn must not retain the slice.
func (p *KeyProvider) UseKey(fn func(key []byte) error) error {
	key, err := p.handle()
	if err != nil {
		return err
	}
	return key.Use(fn)
}

// GetOrCreateKey returns a copy of the data-encryption key, creating it on
// first use. Callers should wipe the returned slice when done.
func (p *KeyProvider) GetOrCreateKey() ([]byte, error) {
	var out []byte
	err := p.UseKey(func(key []byte) error {
		out = make([]byte, len(key))
		copy(out, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close destroys the cached key. The underlying key stores are owned by
// the caller and left open.
func (p *KeyProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.cached != nil {
		p.cached.Destroy()
		p.cached = nil
	}
	return nil
}

func (p *KeyProvider) handle() (*secure.Key, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.cached != nil {
		return p.cached, nil
	}

	var (
		key []byte
		err error
	)
	switch p.strategy {
	case StrategyDirect:
		key, err = p.directKey()
	default:
		key, err = p.wrappedKey()
	}
	if err != nil {
		return nil, err
	}

	p.cached = secure.NewKey(key)
	return p.cached, nil
}

func (p *KeyProvider) directKey() ([]byte, error) {
	key, err := p.cfg.SymmetricKeys.Get(p.cfg.Alias)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, keystore.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	key, err = p.cfg.SymmetricKeys.Generate(p.cfg.Alias)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	p.logger.Info("generated data-encryption key")
	return key, nil
}

func (p *KeyProvider) wrappedKey() ([]byte, error) {
	pairAlias := p.cfg.Alias + KeyPairSuffix

	pair, err := p.cfg.KeyPairs.Get(pairAlias)
	regenerated := false
	if errors.Is(err, keystore.ErrKeyNotFound) {
		pair, err = p.cfg.KeyPairs.Generate(pairAlias)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		regenerated = true
		p.logger.Info("generated wrapping key pair", logging.String("key_pair", pairAlias))
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	encoded, err := p.cfg.Preferences.Get(WrappedKeyPreference)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return p.createWrappedKey(pair)
	case err != nil:
		return nil, fmt.Errorf("%w: failed to read wrapped key: %v", ErrKeyUnavailable, err)
	}

	// A wrapped key left behind by a previous key pair can never be
	// unwrapped again.
	if regenerated {
		p.logger.Warn("discarding wrapped key orphaned by key pair regeneration")
		if err := p.cfg.Preferences.Delete(WrappedKeyPreference); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: failed to discard orphaned wrapped key: %v", ErrKeyUnavailable, err)
		}
		return p.createWrappedKey(pair)
	}

	wrapped, err := codec.DecodeBase64(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: wrapped key is not valid base64: %v", ErrKeyUnavailable, err)
	}

	key, err := wrapping.UnwrapRSAOAEP(wrapped, pair.PrivateKey, p.cfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		secure.Wipe(key)
		return nil, fmt.Errorf("%w: unwrapped key has invalid length %d", ErrKeyUnavailable, len(key))
	}
	return key, nil
}

func (p *KeyProvider) createWrappedKey(pair *keystore.KeyPair) ([]byte, error) {
	key := make([]byte, DataKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: failed to generate key: %v", ErrKeyUnavailable, err)
	}

	wrapped, err := wrapping.WrapRSAOAEP(key, pair.Public(), p.cfg.Algorithm)
	if err != nil {
		secure.Wipe(key)
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	encoded := codec.EncodeBase64(wrapped)
	if err := p.cfg.Preferences.Put(WrappedKeyPreference, []byte(encoded), storage.DefaultOptions()); err != nil {
		secure.Wipe(key)
		return nil, fmt.Errorf("%w: failed to persist wrapped key: %v", ErrKeyUnavailable, err)
	}

	p.logger.Info("generated wrapped data-encryption key")
	return key, nil
}
