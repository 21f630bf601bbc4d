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

// Package wrapping wraps and unwraps symmetric data-encryption keys with an
// RSA key pair using RSA-OAEP.
package wrapping

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 - OAEP-SHA1 is kept only for reading keys wrapped by older installs
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
)

// Algorithm identifies the RSA-OAEP hash used for wrapping
type Algorithm string

const (
	// AlgorithmOAEPSHA1 is RSAES-OAEP with SHA-1
	AlgorithmOAEPSHA1 Algorithm = "RSAES_OAEP_SHA_1"

	// AlgorithmOAEPSHA256 is RSAES-OAEP with SHA-256, the default
	AlgorithmOAEPSHA256 Algorithm = "RSAES_OAEP_SHA_256"
)

var (
	// ErrUnsupportedAlgorithm is returned for unknown wrapping algorithms
	ErrUnsupportedAlgorithm = errors.New("wrapping: unsupported algorithm")

	// ErrUnwrap is returned when wrapped material cannot be decrypted,
	// e.g. corrupted material or a mismatched key pair
	ErrUnwrap = errors.New("wrapping: failed to unwrap key material")
)

// WrapRSAOAEP wraps key material using RSA-OAEP encryption.
// Key material must fit within the RSA key size minus OAEP overhead,
// which holds for any AES key.
func WrapRSAOAEP(keyMaterial []byte, publicKey *rsa.PublicKey, algorithm Algorithm) ([]byte, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("wrapping: key material cannot be nil or empty")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("wrapping: public key cannot be nil")
	}

	hashFunc, err := hashFor(algorithm)
	if err != nil {
		return nil, err
	}

	wrapped, err := rsa.EncryptOAEP(hashFunc, rand.Reader, publicKey, keyMaterial, nil)
	if err != nil {
		return nil, fmt.Errorf("wrapping: failed to wrap key material with RSA-OAEP: %w", err)
	}

	return wrapped, nil
}

// UnwrapRSAOAEP unwraps key material that was encrypted using RSA-OAEP.
// The algorithm parameter must match the algorithm used during wrapping.
func UnwrapRSAOAEP(wrappedKey []byte, privateKey *rsa.PrivateKey, algorithm Algorithm) ([]byte, error) {
	if len(wrappedKey) == 0 {
		return nil, fmt.Errorf("%w: wrapped key cannot be nil or empty", ErrUnwrap)
	}
	if privateKey == nil {
		return nil, fmt.Errorf("wrapping: private key cannot be nil")
	}

	hashFunc, err := hashFor(algorithm)
	if err != nil {
		return nil, err
	}

	unwrapped, err := rsa.DecryptOAEP(hashFunc, rand.Reader, privateKey, wrappedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrap, err)
	}

	return unwrapped, nil
}

func hashFor(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmOAEPSHA1:
		return sha1.New(), nil
	case AlgorithmOAEPSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}
