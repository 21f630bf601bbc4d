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

package blobstore

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-securestorage/internal/secure"
	"github.com/jeremyhahn/go-securestorage/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
)

// PassphraseSealer seals artifacts with a key derived from a passphrase.
//
// Blob layout: salt(16) || nonce(12) || ciphertext || tag(16)
//
// The salt is generated on the first Seal, or taken from the first artifact
// opened, and reused afterwards so the Argon2id derivation runs once per
// process rather than on every write. Every Seal still uses a fresh nonce.
type PassphraseSealer struct {
	cipher     *aesgcm.AESGCM
	passphrase *secure.Key
	params     kdf.Params

	mu   sync.Mutex
	salt []byte
	key  *secure.Key
}

// NewPassphraseSealer copies passphrase into protected memory. A nil cipher
// uses aesgcm.New().
func NewPassphraseSealer(passphrase []byte, cipher *aesgcm.AESGCM, params kdf.Params) (*PassphraseSealer, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: passphrase is required", ErrInvalidConfig)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cipher == nil {
		cipher = aesgcm.New()
	}

	cp := make([]byte, len(passphrase))
	copy(cp, passphrase)

	return &PassphraseSealer{
		cipher:     cipher,
		passphrase: secure.NewKey(cp),
		params:     params,
	}, nil
}

// Seal implements Sealer
func (p *PassphraseSealer) Seal(plaintext []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key == nil {
		salt, err := kdf.NewSalt()
		if err != nil {
			return nil, err
		}
		key, err := p.derive(salt)
		if err != nil {
			return nil, err
		}
		p.salt, p.key = salt, key
	}

	var blob []byte
	err := p.key.Use(func(key []byte) error {
		sealed, err := p.cipher.Encrypt(key, plaintext)
		if err != nil {
			return err
		}
		blob = make([]byte, 0, len(p.salt)+len(sealed))
		blob = append(blob, p.salt...)
		blob = append(blob, sealed...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Open implements Sealer
func (p *PassphraseSealer) Open(blob []byte) ([]byte, error) {
	if len(blob) < kdf.SaltSize+aesgcm.NonceSize {
		return nil, fmt.Errorf("%w: %d bytes", aesgcm.ErrInvalidInput, len(blob))
	}
	salt, sealed := blob[:kdf.SaltSize], blob[kdf.SaltSize:]

	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.key
	cached := key != nil && bytes.Equal(salt, p.salt)
	if !cached {
		var err error
		if key, err = p.derive(salt); err != nil {
			return nil, err
		}
	}

	var plaintext []byte
	err := key.Use(func(k []byte) error {
		var err error
		plaintext, err = p.cipher.Decrypt(k, sealed)
		return err
	})
	if err != nil {
		if !cached {
			key.Destroy()
		}
		return nil, err
	}

	if !cached {
		if p.key != nil {
			p.key.Destroy()
		}
		p.salt = append([]byte(nil), salt...)
		p.key = key
	}
	return plaintext, nil
}

// Close destroys the passphrase and any derived key
func (p *PassphraseSealer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.passphrase.Destroy()
	if p.key != nil {
		p.key.Destroy()
		p.key = nil
	}
}

func (p *PassphraseSealer) derive(salt []byte) (*secure.Key, error) {
	var derived []byte
	err := p.passphrase.Use(func(pw []byte) error {
		var err error
		derived, err = kdf.DeriveKey(pw, salt, p.params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return secure.NewKey(derived), nil
}
