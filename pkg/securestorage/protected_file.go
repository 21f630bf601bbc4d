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

	"github.com/jeremyhahn/go-securestorage/pkg/blobstore"
	"github.com/jeremyhahn/go-securestorage/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
	"github.com/jeremyhahn/go-securestorage/pkg/logging"
	"github.com/jeremyhahn/go-securestorage/pkg/storage"
	"github.com/jeremyhahn/go-securestorage/pkg/validation"
)

// ProtectedFileConfig configures a ProtectedFileBackend
type ProtectedFileConfig struct {
	// Storage holds the artifact, normally a file.FileStorage
	Storage storage.Backend

	// Artifact names the single blob holding the whole mapping
	Artifact string

	// Passphrase protects the artifact. Required.
	Passphrase []byte

	// KDF overrides the Argon2id parameters; zero uses kdf.DefaultParams
	KDF kdf.Params

	// Cipher overrides the symmetric cipher; nil uses aesgcm.New()
	Cipher *aesgcm.AESGCM

	Logger logging.Logger
}

// ProtectedFileBackend keeps every entry in one passphrase-sealed artifact.
// The whole mapping is rewritten on each mutation.
type ProtectedFileBackend struct {
	store  *blobstore.Store
	sealer *blobstore.PassphraseSealer
}

// NewProtectedFileBackend loads the artifact, or starts empty when it does
// not exist yet. A wrong passphrase or a corrupt artifact is fatal.
func NewProtectedFileBackend(cfg ProtectedFileConfig) (*ProtectedFileBackend, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("%w: storage is required", ErrConfiguration)
	}
	if len(cfg.Passphrase) == 0 {
		return nil, fmt.Errorf("%w: passphrase is required", ErrConfiguration)
	}
	if err := validation.ValidateAlias(cfg.Artifact); err != nil {
		return nil, classify(err)
	}

	params := cfg.KDF
	if params == (kdf.Params{}) {
		params = kdf.DefaultParams()
	}

	sealer, err := blobstore.NewPassphraseSealer(cfg.Passphrase, cfg.Cipher, params)
	if err != nil {
		return nil, classify(err)
	}

	store, err := blobstore.New(cfg.Storage, cfg.Artifact, sealer, blobstore.WithLogger(cfg.Logger))
	if err != nil {
		sealer.Close()
		return nil, classify(err)
	}

	return &ProtectedFileBackend{store: store, sealer: sealer}, nil
}

// Name implements Named
func (b *ProtectedFileBackend) Name() string {
	return BackendProtectedFile
}

// Get implements Backend
func (b *ProtectedFileBackend) Get(key string) (string, bool, error) {
	v, ok := b.store.Get(key)
	return v, ok, nil
}

// Set implements Backend
func (b *ProtectedFileBackend) Set(key, value string) error {
	return b.store.Set(key, value)
}

// Delete implements Backend
func (b *ProtectedFileBackend) Delete(key string) (bool, error) {
	return b.store.Delete(key)
}

// Has implements Backend
func (b *ProtectedFileBackend) Has(key string) (bool, error) {
	return b.store.Has(key), nil
}

// Len implements Counter
func (b *ProtectedFileBackend) Len() (int, error) {
	return b.store.Len(), nil
}

// Keys implements Lister
func (b *ProtectedFileBackend) Keys() ([]string, error) {
	return b.store.Keys(), nil
}

// Close destroys the cached key material
func (b *ProtectedFileBackend) Close() error {
	b.sealer.Close()
	return nil
}
