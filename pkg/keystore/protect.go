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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-securestorage/internal/secure"
	"github.com/jeremyhahn/go-securestorage/pkg/kdf"
)

// sealWithPassphrase encrypts data with an Argon2id-derived key.
// Format: [salt][nonce][ciphertext+tag], salt bound as additional data.
func sealWithPassphrase(passphrase *secure.Key, data []byte, params kdf.Params) ([]byte, error) {
	salt, err := kdf.NewSalt()
	if err != nil {
		return nil, err
	}

	var sealed []byte
	err = passphrase.Use(func(pw []byte) error {
		derived, err := kdf.DeriveKey(pw, salt, params)
		if err != nil {
			return err
		}
		defer secure.Wipe(derived)

		gcm, err := newGCM(derived)
		if err != nil {
			return err
		}

		nonce := make([]byte, gcm.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("keystore: failed to generate nonce: %w", err)
		}

		sealed = make([]byte, 0, len(salt)+len(nonce)+len(data)+gcm.Overhead())
		sealed = append(sealed, salt...)
		sealed = append(sealed, nonce...)
		sealed = gcm.Seal(sealed, nonce, data, salt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

// openWithPassphrase reverses sealWithPassphrase
func openWithPassphrase(passphrase *secure.Key, sealed []byte, params kdf.Params) ([]byte, error) {
	const nonceSize = 12
	minSize := kdf.SaltSize + nonceSize + 16
	if len(sealed) < minSize {
		return nil, fmt.Errorf("%w: entry too short: %d bytes (minimum %d)", ErrDecrypt, len(sealed), minSize)
	}

	salt := sealed[:kdf.SaltSize]
	nonce := sealed[kdf.SaltSize : kdf.SaltSize+nonceSize]
	ciphertext := sealed[kdf.SaltSize+nonceSize:]

	var plaintext []byte
	err := passphrase.Use(func(pw []byte) error {
		derived, err := kdf.DeriveKey(pw, salt, params)
		if err != nil {
			return err
		}
		defer secure.Wipe(derived)

		gcm, err := newGCM(derived)
		if err != nil {
			return err
		}

		plaintext, err = gcm.Open(nil, nonce, ciphertext, salt)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// newPassphrase copies passphrase into an enclave
func newPassphrase(passphrase []byte) (*secure.Key, error) {
	if len(passphrase) == 0 {
		return nil, ErrInvalidPassphrase
	}
	cp := make([]byte, len(passphrase))
	copy(cp, passphrase)
	return secure.NewKey(cp), nil
}
